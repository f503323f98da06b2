package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tablescribe/internal/cli/config"
	"github.com/leapstack-labs/tablescribe/internal/cli/testutil"
	"github.com/leapstack-labs/tablescribe/internal/llm"
)

// echoModel answers every question with one query.
type echoModel struct{}

func (echoModel) Name() string { return "echo" }

func (echoModel) Generate(context.Context, string) (string, error) {
	return "```sql\nSELECT batch FROM batches WHERE checked\n```", nil
}

func (echoModel) GenerateWithImage(context.Context, string, []byte, string) (string, error) {
	return "batch,weight\nB3,3\n", nil
}

func init() {
	llm.Register("echo", func(context.Context, llm.Config, *slog.Logger) (llm.Generator, error) {
		return echoModel{}, nil
	})
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestRoot_UploadPreviewAsk(t *testing.T) {
	dir := testutil.SetupTestProject(t, "echo")
	cfgPath := filepath.Join(dir, "tablescribe.yaml")

	out, _, err := run(t, "--config", cfgPath, "upload", filepath.Join(dir, "batch.csv"), "--table", "batches")
	require.NoError(t, err)
	assert.Contains(t, out, "Created batches with 2 rows")
	assert.FileExists(t, filepath.Join(dir, ".tablescribe", "store.db"))
	assert.FileExists(t, filepath.Join(dir, ".tablescribe", "journal.db"))

	out, _, err = run(t, "--config", cfgPath, "preview")
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "B2")
	assert.Contains(t, out, "(2 rows)")

	out, _, err = run(t, "--config", cfgPath, "ask", "which", "batches", "were", "checked?")
	require.NoError(t, err)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "```sql\nSELECT batch FROM batches WHERE checked\n```")
	assert.Contains(t, out, "B1")
	assert.NotContains(t, out, "| B2")
}

func TestRoot_OutputFlagOverridesFile(t *testing.T) {
	dir := testutil.SetupTestProject(t, "echo")
	cfgPath := filepath.Join(dir, "tablescribe.yaml")

	_, _, err := run(t, "--config", cfgPath, "upload", filepath.Join(dir, "batch.csv"), "--table", "batches")
	require.NoError(t, err)

	out, _, err := run(t, "--config", cfgPath, "-o", "json", "preview", "-n", "1")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "B1", rows[0]["batch"])
}

func TestRoot_VerboseLogsToStderr(t *testing.T) {
	dir := testutil.SetupTestProject(t, "echo")
	cfgPath := filepath.Join(dir, "tablescribe.yaml")

	_, errOut, err := run(t, "--config", cfgPath, "-v", "tables")
	require.NoError(t, err)
	assert.Contains(t, errOut, "using config file")
	assert.Contains(t, errOut, "level=DEBUG")
}

func TestRoot_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tablescribe.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: xml\n"), 0600))

	_, _, err := run(t, "--config", cfgPath, "tables")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid output "xml"`)
}

func TestRoot_HelpSkipsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tablescribe.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: xml\n"), 0600))

	out, _, err := run(t, "--config", cfgPath, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "tablescribe")
}

func TestRoot_Subcommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"extract", "upload", "preview", "ask", "tables", "history", "serve", "mcp", "watch", "init", "doctor", "version", "completion"} {
		assert.Contains(t, names, want)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, &config.Config{LogLevel: "info", LogFormat: "json"})
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", slog.String("k", "v"))
	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "json handler")
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	logger, err = newLogger(&buf, &config.Config{LogLevel: "error", LogFormat: "text", Verbose: true})
	require.NoError(t, err)
	logger.Debug("verbose wins")
	assert.Contains(t, buf.String(), "verbose wins")

	_, err = newLogger(&buf, &config.Config{LogLevel: "loud"})
	require.Error(t, err)
}
