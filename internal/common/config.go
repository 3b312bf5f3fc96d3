package common

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "45s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration. It is built once in main and
// read-only afterwards; the pipeline never mutates it.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	LLM        LLMConfig        `yaml:"openai"`
	Processing ProcessingConfig `yaml:"document_processing"`
	Duplicates DuplicateConfig  `yaml:"duplicate_detection"`
	Naming     NamingConfig     `yaml:"naming"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

// PathsConfig names the directories the pipeline works against.
type PathsConfig struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	TrashDir  string `yaml:"trash_dir"`
	BackupDir string `yaml:"backup_dir"` // empty disables the pre-move backup copy
}

// LLMConfig holds classification-call configuration.
type LLMConfig struct {
	BaseURL       string   `yaml:"base_url"`
	Model         string   `yaml:"model"`
	FallbackModel string   `yaml:"fallback_model"` // empty disables escalation
	APIKey        string   `yaml:"-"`              // env only, never from file
	Temperature   float32  `yaml:"temperature"`
	MaxRetries    int      `yaml:"max_retries"`
	RetryBackoff  Duration `yaml:"retry_backoff"`
	Timeout       Duration `yaml:"timeout"`
	ContextChars  int      `yaml:"context_chars"`
	MinConfidence float32  `yaml:"min_confidence"`
}

// ProcessingConfig holds pipeline-wide ceilings and behavior flags.
type ProcessingConfig struct {
	MaxFileSizeMB  int64    `yaml:"max_file_size_mb"`
	MaxPages       int      `yaml:"max_pages"`
	Concurrency    int      `yaml:"concurrency"`
	ExtractTimeout Duration `yaml:"extract_timeout"`
	ValidDocTypes  []string `yaml:"valid_doc_types"`
	ForceOverwrite bool     `yaml:"force_overwrite"`
}

// DuplicateConfig holds duplicate-detection settings.
type DuplicateConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Threshold   float64 `yaml:"similarity_threshold"`
	ReportFloor float64 `yaml:"report_floor"`
}

// NamingConfig holds the filename grammar.
type NamingConfig struct {
	Template       string `yaml:"template"`
	MaxSenderLen   int    `yaml:"max_sender_len"`
	MaxSubjectLen  int    `yaml:"max_subject_len"`
	MaxFilenameLen int    `yaml:"max_filename_len"`
}

// CatalogConfig locates the filed-document index.
type CatalogConfig struct {
	Path string `yaml:"path"` // empty derives <output_dir>/maehrdocs.db
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o-mini",
			Temperature:   0.3,
			MaxRetries:    3,
			RetryBackoff:  Duration(2 * time.Second),
			Timeout:       Duration(45 * time.Second),
			ContextChars:  3000,
			MinConfidence: 0.60,
		},
		Processing: ProcessingConfig{
			MaxFileSizeMB:  20,
			MaxPages:       200,
			Concurrency:    1,
			ExtractTimeout: Duration(60 * time.Second),
			ValidDocTypes: []string{
				"rechnung", "vertrag", "brief", "meldung", "bescheid", "dokument", "antrag",
			},
		},
		Duplicates: DuplicateConfig{
			Enabled:     true,
			Threshold:   0.85,
			ReportFloor: 0.50,
		},
		Naming: NamingConfig{
			Template:       "{date}_{type}_{sender}_{subject}.pdf",
			MaxSenderLen:   50,
			MaxSubjectLen:  100,
			MaxFilenameLen: 240,
		},
	}
}

// LoadConfig reads the YAML config at path (if non-empty) over the defaults,
// then applies environment overrides for secrets and model selection.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", "")
	cfg.LLM.BaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)
	if cfg.Catalog.Path == "" && cfg.Paths.OutputDir != "" {
		cfg.Catalog.Path = cfg.Paths.OutputDir + string(os.PathSeparator) + "maehrdocs.db"
	}
	return cfg, nil
}

// Helper for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate checks the loaded configuration. A validation failure is the only
// fault class that aborts a batch before any document is processed.
func (c *Config) Validate() error {
	if c.Paths.InputDir == "" {
		return NewAppError("CONFIG_ERROR", "paths.input_dir is required", ErrInvalidInput)
	}
	if c.Paths.OutputDir == "" {
		return NewAppError("CONFIG_ERROR", "paths.output_dir is required", ErrInvalidInput)
	}
	if c.Paths.TrashDir == "" {
		return NewAppError("CONFIG_ERROR", "paths.trash_dir is required", ErrInvalidInput)
	}
	if c.Duplicates.Threshold < 0 || c.Duplicates.Threshold > 1 {
		return NewAppError("CONFIG_ERROR", "duplicate_detection.similarity_threshold must be in [0,1]", ErrInvalidInput)
	}
	if c.Processing.Concurrency < 1 {
		return NewAppError("CONFIG_ERROR", "document_processing.concurrency must be >= 1", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
