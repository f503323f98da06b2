package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/tablescribe/internal/cli/config"
	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
)

// scaffold is the tablescribe.yaml written by init.
type scaffold struct {
	JournalPath string         `yaml:"journal_path"`
	Target      scaffoldTarget `yaml:"target"`
	Model       scaffoldModel  `yaml:"model"`
	Extract     scaffoldSimple `yaml:"extract"`
	Ask         scaffoldAsk    `yaml:"ask"`
	Watch       scaffoldWatch  `yaml:"watch"`
}

type scaffoldTarget struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

type scaffoldModel struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	Timeout  string `yaml:"timeout"`
}

type scaffoldSimple struct {
	Output string `yaml:"output"`
	Review bool   `yaml:"review"`
}

type scaffoldAsk struct {
	DefaultTable string `yaml:"default_table"`
	SampleRows   int    `yaml:"sample_rows"`
	ReadOnly     bool   `yaml:"read_only"`
}

type scaffoldWatch struct {
	Dir   string `yaml:"dir"`
	Table string `yaml:"table"`
}

const scaffoldHeader = `# tablescribe configuration
#
# Values can be overridden with TABLESCRIBE_* environment variables
# (TABLESCRIBE_TARGET__HOST for target.host) and with command-line flags.
# ${VAR} in target and model settings is read from the environment.
# The model API key is read from GOOGLE_API_KEY, GEMINI_API_KEY or
# OPENAI_API_KEY unless model.api_key is set.

`

const gitignore = `.tablescribe/
inbox/archive/
inbox/failed/
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var (
		force  bool
		target string
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a tablescribe.yaml",
		Long: `Create a tablescribe.yaml with the default settings for a target database.

This creates:
  - tablescribe.yaml configuration file
  - inbox/ directory for the watch command
  - .gitignore for the local journal and processed images`,
		Example: `  # Initialize in current directory
  tablescribe init

  # Use a local SQLite database instead of PostgreSQL
  tablescribe init --target sqlite

  # Initialize in a new directory
  tablescribe init my-project

  # Force overwrite existing config
  tablescribe init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			r := NewCommandContext(cmd).Renderer

			files, err := runInit(dir, target, force)
			if err != nil {
				return err
			}
			for _, f := range files {
				r.Success("created " + f)
			}
			r.Println("")
			r.Println("Next steps:")
			r.Println("  1. Set the model API key (GOOGLE_API_KEY) and the target connection")
			r.Println("  2. Run 'tablescribe doctor' to check the setup")
			r.Println("  3. Run 'tablescribe extract table.jpg --table people'")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&target, "target", config.DefaultTargetType, "Target database type")
	_ = cmd.RegisterFlagCompletionFunc("target", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return adapter.ListAdapters(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit writes the project files into dir and returns the paths it created.
func runInit(dir, targetType string, force bool) ([]string, error) {
	if !adapter.IsRegistered(targetType) {
		return nil, &adapter.UnknownAdapterError{Type: targetType, Available: adapter.ListAdapters()}
	}

	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileNames[0])
	if _, err := os.Stat(configPath); err == nil && !force {
		return nil, fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileNames[0])
	}

	content, err := renderScaffold(targetType)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(configPath, content, 0600); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	created := []string{config.ConfigFileNames[0]}

	if err := os.MkdirAll(filepath.Join(dir, "inbox"), 0750); err != nil {
		return nil, fmt.Errorf("failed to create inbox: %w", err)
	}
	created = append(created, "inbox/")

	ignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte(gitignore), 0600); err != nil {
			return nil, fmt.Errorf("failed to write .gitignore: %w", err)
		}
		created = append(created, ".gitignore")
	}

	return created, nil
}

func renderScaffold(targetType string) ([]byte, error) {
	t := &config.TargetConfig{Type: targetType}
	if targetType == "duckdb" {
		t.Database = ".tablescribe/store.duckdb"
	}
	config.ApplyTargetDefaults(t)

	s := scaffold{
		JournalPath: config.DefaultJournalFile,
		Target: scaffoldTarget{
			Type:     t.Type,
			Host:     t.Host,
			Port:     t.Port,
			User:     t.User,
			Password: t.Password,
			Database: t.Database,
		},
		Model: scaffoldModel{
			Provider: llm.DefaultProvider,
			Name:     llm.DefaultModel,
			Timeout:  llm.DefaultTimeout.String(),
		},
		Extract: scaffoldSimple{Output: config.DefaultDownload},
		Ask: scaffoldAsk{
			DefaultTable: config.DefaultTable,
			SampleRows:   config.DefaultSampleRows,
			ReadOnly:     true,
		},
		Watch: scaffoldWatch{Dir: "inbox"},
	}

	var buf bytes.Buffer
	buf.WriteString(scaffoldHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
