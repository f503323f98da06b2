package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix is the prefix of environment variables read as configuration.
// A double underscore separates nested keys: TABLESCRIBE_MODEL__NAME.
const EnvPrefix = "TABLESCRIBE_"

// ConfigFileNames are the file names searched for, in order.
var ConfigFileNames = []string{"tablescribe.yaml", "tablescribe.yml"}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps global flag names onto config keys where they differ.
var flagKeys = map[string]string{
	"env":       "environment",
	"journal":   "journal_path",
	"log-level": "log_level",
	"provider":  "model.provider",
	"model":     "model.name",
}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if path := configExistsIn(dir); path != "" {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func defaults() map[string]any {
	return map[string]any{
		"environment":          DefaultEnv,
		"verbose":              false,
		"output":               DefaultOutput,
		"log_level":            DefaultLogLevel,
		"log_format":           DefaultLogFormat,
		"journal_path":         DefaultJournalFile,
		"target.type":          DefaultTargetType,
		"model.provider":       llm.DefaultProvider,
		"model.name":           llm.DefaultModel,
		"model.timeout":        llm.DefaultTimeout.String(),
		"extract.output":       DefaultDownload,
		"extract.review":       false,
		"ask.default_table":    DefaultTable,
		"ask.sample_rows":      DefaultSampleRows,
		"ask.read_only":        true,
		"server.addr":          DefaultServerAddr,
		"server.max_upload_mb": DefaultMaxUploadMB,
	}
}

// Load loads configuration from defaults, the config file, environment
// variables and flags, in increasing precedence. cfgFile may be empty, in
// which case tablescribe.yaml is searched for from the working directory
// upward. Only flags marked as changed are applied.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	projectRoot := cwd
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment variables
	// Transform: TABLESCRIBE_MODEL__API_KEY -> model.api_key
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	var flagJournal string
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
		// Paths given as flags are relative to the working directory.
		if flags.Changed("journal") {
			if v, _ := flags.GetString("journal"); v != "" {
				flagJournal = resolvePathRelativeTo(v, cwd)
			}
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot
	cfg.ConfigFile = cfgFile

	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}

	if cfg.Target == nil {
		cfg.Target = &TargetConfig{Type: DefaultTargetType}
	}
	if cfg.Model == nil {
		cfg.Model = &ModelConfig{Provider: llm.DefaultProvider, Name: llm.DefaultModel}
	}
	ApplyTargetDefaults(cfg.Target)
	expandTargetEnvVars(cfg.Target)
	expandModelEnvVars(cfg.Model)

	if flagJournal != "" {
		cfg.JournalPath = flagJournal
	} else {
		cfg.JournalPath = resolvePathRelativeTo(cfg.JournalPath, projectRoot)
	}
	if isFileTarget(cfg.Target.Type) {
		cfg.Target.Database = resolvePathRelativeTo(cfg.Target.Database, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvironment merges the selected named environment over the base
// target and model.
func (c *Config) applyEnvironment() error {
	if c.Environment == "" {
		return nil
	}
	envCfg, ok := c.Environments[c.Environment]
	if !ok {
		return fmt.Errorf("unknown environment %q\nHint: define it under environments: in tablescribe.yaml", c.Environment)
	}
	if envCfg.JournalPath != "" {
		c.JournalPath = envCfg.JournalPath
	}
	if envCfg.Target != nil {
		c.Target = MergeTargetConfig(c.Target, envCfg.Target)
	}
	if envCfg.Model != nil {
		c.Model = MergeModelConfig(c.Model, envCfg.Model)
	}
	return nil
}

// ApplyTargetDefaults fills in connection defaults for the target type.
// Network targets default to the environment's DB_HOST and DB_PASSWORD.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Type = strings.ToLower(t.Type)

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}

	switch t.Type {
	case "postgres":
		applyNetworkDefaults(t, 5432, "postgres", "postgres")
	case "mysql":
		applyNetworkDefaults(t, 3306, "root", "")
	case "sqlserver":
		applyNetworkDefaults(t, 1433, "sa", "")
	case "sqlite":
		if t.Database == "" {
			t.Database = ".tablescribe/store.db"
		}
	}
}

func applyNetworkDefaults(t *TargetConfig, port int, user, database string) {
	if t.Host == "" {
		t.Host = "${DB_HOST}"
	}
	if t.Port == 0 {
		t.Port = port
	}
	if t.User == "" {
		t.User = user
	}
	if t.Password == "" {
		t.Password = "${DB_PASSWORD}"
	}
	if t.Database == "" {
		t.Database = database
	}
}

// DefaultSchemaForType returns the default schema for a database type.
// It looks up the dialect in the registry; if not found, returns "" so the
// adapter uses its connection default.
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(dbType); ok {
		return d.DefaultSchema
	}
	return ""
}

func isFileTarget(t string) bool {
	return t == "sqlite" || t == "duckdb"
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	if t.Host == "" && !isFileTarget(t.Type) {
		t.Host = "localhost"
	}
}

func expandModelEnvVars(m *ModelConfig) {
	if m == nil {
		return
	}
	m.APIKey = expandEnvVars(m.APIKey)
	m.BaseURL = expandEnvVars(m.BaseURL)
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &TargetConfig{
		Type:     base.Type,
		Database: base.Database,
		Host:     base.Host,
		Port:     base.Port,
		User:     base.User,
		Password: base.Password,
		Schema:   base.Schema,
		Options:  make(map[string]string),
		Params:   make(map[string]any),
	}
	for k, v := range base.Options {
		merged.Options[k] = v
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}

	if override.Type != "" && override.Type != merged.Type {
		// A different engine does not inherit connection details.
		merged = &TargetConfig{Type: override.Type, Options: map[string]string{}, Params: map[string]any{}}
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return merged
}

// MergeModelConfig merges two model configs, with override taking precedence.
func MergeModelConfig(base, override *ModelConfig) *ModelConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}
	merged := *base
	if override.Provider != "" {
		merged.Provider = override.Provider
	}
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.APIKey != "" {
		merged.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		merged.BaseURL = override.BaseURL
	}
	if override.Temperature != 0 {
		merged.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		merged.MaxTokens = override.MaxTokens
	}
	if override.Timeout != 0 {
		merged.Timeout = override.Timeout
	}
	return &merged
}
