// Package audio renders briefing markdown to an audio file by shelling out
// to a configured text-to-speech command.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Generator runs a TTS command template for each briefing. The template
// placeholders {input} and {output} are replaced with the markdown file
// path and the target audio path.
type Generator struct {
	command string
	dir     string
}

// NewGenerator creates an audio generator writing files under dir.
// Returns nil when no command is configured; callers treat a nil
// generator as audio disabled.
func NewGenerator(command, dir string) *Generator {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	return &Generator{command: command, dir: dir}
}

// Generate writes the markdown to a temp file, runs the TTS command, and
// returns the path of the produced audio file.
func (g *Generator) Generate(ctx context.Context, markdown, briefingID string) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio directory: %w", err)
	}

	input := filepath.Join(g.dir, briefingID+".md")
	if err := os.WriteFile(input, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("writing briefing text: %w", err)
	}
	defer os.Remove(input)

	output := filepath.Join(g.dir, briefingID+".mp3")

	cmdline := strings.ReplaceAll(g.command, "{input}", input)
	cmdline = strings.ReplaceAll(cmdline, "{output}", output)
	parts := strings.Fields(cmdline)
	if len(parts) == 0 {
		return "", fmt.Errorf("empty audio command")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("tts command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if _, err := os.Stat(output); err != nil {
		return "", fmt.Errorf("tts command produced no output file: %w", err)
	}
	return output, nil
}
