package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	for _, f := range cfg.Sources.Feeds {
		if f.SourceType == "" {
			t.Errorf("feed %q missing source_type", f.Name)
		}
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.LLM.Provider)
	}
	if cfg.Briefing.WindowDays != 7 {
		t.Errorf("expected window_days 7, got %d", cfg.Briefing.WindowDays)
	}
	if cfg.Briefing.TierCutoff != 2 {
		t.Errorf("expected tier_cutoff 2, got %d", cfg.Briefing.TierCutoff)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
llm:
  provider: openai
  model: gpt-4o
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.LLM.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.LLM.OllamaURL)
	}
	if cfg.Briefing.WindowDays != 7 {
		t.Errorf("expected default window_days 7, got %d", cfg.Briefing.WindowDays)
	}
	if cfg.Owner != "default" {
		t.Errorf("expected default owner, got %q", cfg.Owner)
	}
}

func TestParseRejectsBadBriefingSettings(t *testing.T) {
	if _, err := parse([]byte("briefing:\n  window_days: 0\n")); err == nil {
		t.Error("expected error for window_days 0")
	}
	if _, err := parse([]byte("briefing:\n  tier_cutoff: 5\n")); err == nil {
		t.Error("expected error for tier_cutoff 5")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DatabasePath() != "/custom/path/civicscope.db" {
		t.Errorf("unexpected database path %q", cfg.DatabasePath())
	}
}
