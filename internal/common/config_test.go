package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Paths.InputDir = "/in"
	cfg.Paths.OutputDir = "/out"
	cfg.Paths.TrashDir = "/trash"
	cfg.LLM.APIKey = "key"
	return cfg
}

func TestDefaultsApplyWithoutFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("OPENAI_MODEL", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("model %q", cfg.LLM.Model)
	}
	if cfg.Duplicates.Threshold != 0.85 {
		t.Errorf("threshold %v", cfg.Duplicates.Threshold)
	}
	if cfg.Processing.Concurrency != 1 {
		t.Errorf("concurrency %d", cfg.Processing.Concurrency)
	}
}

func TestYAMLOverridesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("OPENAI_MODEL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
paths:
  input_dir: /inbox
  output_dir: /archive
  trash_dir: /trash
openai:
  model: gpt-4o
  timeout: 90s
document_processing:
  concurrency: 4
duplicate_detection:
  similarity_threshold: 0.9
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.InputDir != "/inbox" {
		t.Errorf("input dir %q", cfg.Paths.InputDir)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("model %q", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout.Std() != 90*time.Second {
		t.Errorf("timeout %v", cfg.LLM.Timeout.Std())
	}
	if cfg.Processing.Concurrency != 4 {
		t.Errorf("concurrency %d", cfg.Processing.Concurrency)
	}
	if cfg.Duplicates.Threshold != 0.9 {
		t.Errorf("threshold %v", cfg.Duplicates.Threshold)
	}
	// Untouched sections keep their defaults.
	if cfg.LLM.MaxRetries != 3 {
		t.Errorf("max retries %d", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("api key not taken from env: %q", cfg.LLM.APIKey)
	}
	if cfg.Catalog.Path != filepath.Join("/archive", "maehrdocs.db") {
		t.Errorf("catalog path %q", cfg.Catalog.Path)
	}
}

func TestEnvModelOverridesYAML(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("OPENAI_MODEL", "gpt-5")
	t.Setenv("OPENAI_BASE_URL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("openai:\n  model: gpt-4o\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Model != "gpt-5" {
		t.Errorf("env override lost: %q", cfg.LLM.Model)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input dir", func(c *Config) { c.Paths.InputDir = "" }},
		{"missing output dir", func(c *Config) { c.Paths.OutputDir = "" }},
		{"missing trash dir", func(c *Config) { c.Paths.TrashDir = "" }},
		{"threshold above one", func(c *Config) { c.Duplicates.Threshold = 1.5 }},
		{"threshold negative", func(c *Config) { c.Duplicates.Threshold = -0.1 }},
		{"zero concurrency", func(c *Config) { c.Processing.Concurrency = 0 }},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("want ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("openai:\n  retry_backoff: 500ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("OPENAI_MODEL", "")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.RetryBackoff.Std() != 500*time.Millisecond {
		t.Errorf("backoff %v", cfg.LLM.RetryBackoff.Std())
	}
}

func TestDurationUnmarshalRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("openai:\n  timeout: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("bad duration accepted")
	}
}
