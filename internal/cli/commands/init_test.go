package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tablescribe/internal/cli/config"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string) // setup before running
		args      []string
		wantErr   string
		wantFiles []string
	}{
		{
			name:      "init empty directory",
			args:      []string{"--target", "sqlite"},
			wantFiles: []string{"tablescribe.yaml", "inbox", ".gitignore"},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "tablescribe.yaml"), []byte("existing"), 0600)
			},
			args:    []string{"--target", "sqlite"},
			wantErr: "tablescribe.yaml already exists. Use --force to overwrite",
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "tablescribe.yaml"), []byte("existing"), 0600)
			},
			args:      []string{"--force", "--target", "sqlite"},
			wantFiles: []string{"tablescribe.yaml", "inbox"},
		},
		{
			name:    "unknown target",
			args:    []string{"--target", "oracle"},
			wantErr: "unknown adapter type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(append([]string{tmpDir}, tt.args...))

			err := cmd.ExecuteContext(WithConfig(context.Background(), &config.Config{OutputFormat: "text"}))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				_, err := os.Stat(filepath.Join(tmpDir, f))
				assert.False(t, os.IsNotExist(err), "expected file/dir %q to exist", f)
			}
		})
	}
}

func TestInitCreatesLoadableConfig(t *testing.T) {
	tmpDir := t.TempDir()

	files, err := runInit(tmpDir, "sqlite", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"tablescribe.yaml", "inbox/", ".gitignore"}, files)

	content, err := os.ReadFile(filepath.Join(tmpDir, "tablescribe.yaml"))
	require.NoError(t, err)
	for _, expected := range []string{
		"# tablescribe configuration",
		"journal_path: .tablescribe/journal.db",
		"type: sqlite",
		"database: .tablescribe/store.db",
		"provider: gemini",
		"default_table: people",
		"read_only: true",
	} {
		assert.Contains(t, string(content), expected, "config should contain %q", expected)
	}
	assert.NotContains(t, string(content), "host:", "file targets have no host")

	cfg, err := config.Load(filepath.Join(tmpDir, "tablescribe.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.Equal(t, filepath.Join(tmpDir, ".tablescribe", "store.db"), cfg.Target.Database)
	assert.Equal(t, filepath.Join(tmpDir, ".tablescribe", "journal.db"), cfg.JournalPath)
	assert.Equal(t, "inbox", cfg.Watch.Dir)
}

func TestInitNetworkTargetKeepsPlaceholders(t *testing.T) {
	content, err := renderScaffold("postgres")
	require.NoError(t, err)
	assert.Contains(t, string(content), "host: ${DB_HOST}")
	assert.Contains(t, string(content), "password: ${DB_PASSWORD}")
	assert.Contains(t, string(content), "port: 5432")
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
}
