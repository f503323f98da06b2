// Package config provides configuration management for the tablescribe CLI.
//
// Values are layered with koanf: built-in defaults, then tablescribe.yaml,
// then TABLESCRIBE_* environment variables, then explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
)

// Default configuration values.
const (
	DefaultTargetType  = "postgres"
	DefaultJournalFile = ".tablescribe/journal.db"
	DefaultEnv         = ""
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
	DefaultDownload    = "converted_batch_data.csv"
	DefaultTable       = "people"
	DefaultSampleRows  = 5
	DefaultServerAddr  = ":8765"
	DefaultMaxUploadMB = 10
)

// TargetConfig holds the store connection settings.
type TargetConfig struct {
	Type string `koanf:"type"` // postgres, duckdb, sqlite, mysql, sqlserver

	// File-based databases (DuckDB, SQLite) use Database as the path.
	Database string `koanf:"database"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	// Options are driver options such as sslmode or bulk.
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific settings (DuckDB extensions and settings).
	Params map[string]any `koanf:"params"`
}

// AdapterConfig converts the target into an adapter connection config.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     t.Type,
		Path:     t.Database,
		Database: t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// ModelConfig selects and configures the language model.
type ModelConfig struct {
	Provider    string        `koanf:"provider"`
	Name        string        `koanf:"name"`
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Temperature float32       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
}

// LLMConfig converts the model section into a generator config.
func (m *ModelConfig) LLMConfig() llm.Config {
	return llm.Config{
		Provider:    m.Provider,
		Model:       m.Name,
		APIKey:      m.APIKey,
		BaseURL:     m.BaseURL,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		Timeout:     m.Timeout,
	}
}

// ExtractConfig holds image extraction settings.
type ExtractConfig struct {
	Output string `koanf:"output"`
	Review bool   `koanf:"review"`
}

// AskConfig holds query assistant settings.
type AskConfig struct {
	DefaultTable string `koanf:"default_table"`
	SampleRows   int    `koanf:"sample_rows"`
	ReadOnly     bool   `koanf:"read_only"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	MaxUploadMB int64  `koanf:"max_upload_mb"`
}

// WatchConfig holds inbox watcher settings.
type WatchConfig struct {
	Dir        string `koanf:"dir"`
	Table      string `koanf:"table"`
	Schedule   string `koanf:"schedule"`
	ArchiveDir string `koanf:"archive_dir"`
}

// Config holds all CLI configuration options.
type Config struct {
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	LogLevel     string               `koanf:"log_level"`
	LogFormat    string               `koanf:"log_format"`
	JournalPath  string               `koanf:"journal_path"`
	Target       *TargetConfig        `koanf:"target"`
	Model        *ModelConfig         `koanf:"model"`
	Extract      ExtractConfig        `koanf:"extract"`
	Ask          AskConfig            `koanf:"ask"`
	Server       ServerConfig         `koanf:"server"`
	Watch        WatchConfig          `koanf:"watch"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the file the values were read from, if any.
	ConfigFile string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	JournalPath string        `koanf:"journal_path"`
	Target      *TargetConfig `koanf:"target"`
	Model       *ModelConfig  `koanf:"model"`
}
