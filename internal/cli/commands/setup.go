package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/cli/config"
	"github.com/leapstack-labs/tablescribe/internal/cli/output"
	"github.com/leapstack-labs/tablescribe/internal/journal"
	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/internal/service"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
)

// configKey is used to store config in context.
type configKey struct{}

// WithConfig returns a context carrying cfg for commands to read.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// needs selects which dependencies a command opens.
type needs int

const (
	needStore needs = 1 << iota
	needModel
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext reads the config and logger from the command context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the loaded configuration, or one built from defaults
// when the command runs outside the root (tests, completion).
func getConfig(ctx context.Context) *config.Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
			return cfg
		}
	}
	cfg, err := config.Load("", nil)
	if err != nil {
		return &config.Config{OutputFormat: config.DefaultOutput}
	}
	return cfg
}

// OpenStore connects to the configured target.
func (c *CommandContext) OpenStore(ctx context.Context) (adapter.Adapter, error) {
	if c.Cfg.Target == nil {
		return nil, fmt.Errorf("no target configured\nHint: run 'tablescribe init' or set target.type in tablescribe.yaml")
	}
	ac := c.Cfg.Target.AdapterConfig()
	store, err := adapter.NewAdapter(ac, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx, ac); err != nil {
		return nil, fmt.Errorf("failed to connect to %s target: %w", ac.Type, err)
	}
	c.Logger.Debug("connected to target", slog.String("type", ac.Type), slog.String("schema", ac.Schema))
	return store, nil
}

// OpenModel creates the configured generator.
func (c *CommandContext) OpenModel(ctx context.Context) (llm.Generator, error) {
	if c.Cfg.Model == nil {
		return llm.NewGenerator(ctx, llm.Config{}, c.Logger)
	}
	return llm.NewGenerator(ctx, c.Cfg.Model.LLMConfig(), c.Logger)
}

// OpenJournal opens the history journal. A journal that cannot be opened
// is reported and skipped; history is not worth failing a command for.
func (c *CommandContext) OpenJournal(ctx context.Context) *journal.Journal {
	if c.Cfg.JournalPath == "" {
		return nil
	}
	j, err := journal.Open(ctx, c.Cfg.JournalPath, c.Logger)
	if err != nil {
		c.Logger.Warn("journal unavailable", slog.String("path", c.Cfg.JournalPath), slog.String("error", err.Error()))
		return nil
	}
	return j
}

// Service opens what n asks for and wires a service over it. The returned
// cleanup closes everything that was opened.
func (c *CommandContext) Service(ctx context.Context, n needs) (*service.Service, func(), error) {
	var deps service.Deps
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	if n&needStore != 0 {
		store, err := c.OpenStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		deps.Store = store
		closers = append(closers, store.Close)
	}
	if n&needModel != 0 {
		model, err := c.OpenModel(ctx)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.Model = model
	}
	if j := c.OpenJournal(ctx); j != nil {
		deps.Journal = j
		closers = append(closers, j.Close)
	}

	svc := service.New(deps, service.Options{
		DefaultTable: c.Cfg.Ask.DefaultTable,
		SampleRows:   c.Cfg.Ask.SampleRows,
		ReadOnly:     c.Cfg.Ask.ReadOnly,
	}, c.Logger)
	return svc, cleanup, nil
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
