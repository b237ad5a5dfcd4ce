package audio

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewGeneratorDisabledWithoutCommand(t *testing.T) {
	if g := NewGenerator("", t.TempDir()); g != nil {
		t.Error("expected nil generator for empty command")
	}
	if g := NewGenerator("   ", t.TempDir()); g != nil {
		t.Error("expected nil generator for blank command")
	}
}

func TestGenerateRunsCommand(t *testing.T) {
	dir := t.TempDir()
	// stand-in for a real TTS binary: copy input to output
	g := NewGenerator("cp {input} {output}", dir)
	if g == nil {
		t.Fatal("expected generator")
	}

	path, err := g.Generate(context.Background(), "# Briefing\n\nhello", "bf-123")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, "bf-123.mp3") {
		t.Errorf("unexpected output path %q", path)
	}
}

func TestGenerateCommandFailure(t *testing.T) {
	g := NewGenerator("false", t.TempDir())
	if _, err := g.Generate(context.Background(), "text", "bf-err"); err == nil {
		t.Error("expected error from failing command")
	}
}

func TestGenerateMissingOutputFile(t *testing.T) {
	g := NewGenerator("true", t.TempDir())
	if _, err := g.Generate(context.Background(), "text", "bf-none"); err == nil {
		t.Error("expected error when no output file produced")
	}
}
