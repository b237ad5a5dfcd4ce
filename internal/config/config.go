package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Owner    string   `yaml:"owner"`
	Sources  Sources  `yaml:"sources"`
	LLM      LLM      `yaml:"llm"`
	Briefing Briefing `yaml:"briefing"`
	Audio    Audio    `yaml:"audio"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
}

type Sources struct {
	Feeds []Feed `yaml:"feeds"`
}

// Feed is one RSS/Atom source. SourceType drives tier classification,
// so it must be one of the known source type strings.
type Feed struct {
	URL        string   `yaml:"url"`
	Name       string   `yaml:"name"`
	SourceType string   `yaml:"source_type"`
	Categories []string `yaml:"categories"`
}

type LLM struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Briefing struct {
	WindowDays int    `yaml:"window_days"`
	TierCutoff int    `yaml:"tier_cutoff"`
	Title      string `yaml:"title"`
}

// Audio configures optional text-to-speech rendering of briefings.
// Command is an executable template; {input} and {output} are replaced
// with the markdown file and the target audio path.
type Audio struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for civicscope.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "civicscope")
}

// DataDir returns the XDG data directory for civicscope.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "civicscope")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/civicscope/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'civicscope init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Owner: "default",
		LLM: LLM{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
		},
		Briefing: Briefing{
			WindowDays: 7,
			TierCutoff: 2,
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Briefing.WindowDays < 1 {
		return nil, fmt.Errorf("briefing.window_days must be at least 1, got %d", cfg.Briefing.WindowDays)
	}
	if cfg.Briefing.TierCutoff < 1 || cfg.Briefing.TierCutoff > 4 {
		return nil, fmt.Errorf("briefing.tier_cutoff must be 1-4, got %d", cfg.Briefing.TierCutoff)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabasePath returns the sqlite database path under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "civicscope.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
