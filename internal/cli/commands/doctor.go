package commands

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/cli/output"
	"github.com/leapstack-labs/tablescribe/internal/llm"
)

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, markdown, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, target database, model and journal",
		Long: `Check that tablescribe is ready to use.

The doctor command loads the configuration, connects to the target database,
creates the model client (without calling it) and opens the journal. Each
check reports pass, warn or error.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  tablescribe doctor
  tablescribe doctor --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks []HealthCheck `json:"checks"`
	Errors int           `json:"errors"`
	Warns  int           `json:"warnings"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	Group   string   `json:"group"`
	Name    string   `json:"name"`
	Status  string   `json:"status"` // "pass", "warn", "error"
	Details []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	out := &DoctorOutput{}
	out.add(checkConfig(cmdCtx))
	out.add(checkTarget(ctx, cmdCtx)...)
	out.add(checkModel(ctx, cmdCtx))
	out.add(checkJournal(ctx, cmdCtx))

	var err error
	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	if err != nil {
		return err
	}
	if out.Errors > 0 {
		return fmt.Errorf("%d check(s) failed", out.Errors)
	}
	return nil
}

func (o *DoctorOutput) add(checks ...HealthCheck) {
	for _, c := range checks {
		switch c.Status {
		case statusError:
			o.Errors++
		case statusWarn:
			o.Warns++
		}
		o.Checks = append(o.Checks, c)
	}
}

func checkConfig(c *CommandContext) HealthCheck {
	check := HealthCheck{Group: "configuration", Name: "config file", Status: statusPass}
	if c.Cfg.ConfigFile == "" {
		check.Status = statusWarn
		check.Details = []string{"no tablescribe.yaml found, using defaults (run 'tablescribe init')"}
		return check
	}
	check.Details = []string{c.Cfg.ConfigFile}
	if c.Cfg.Environment != "" {
		check.Details = append(check.Details, "environment: "+c.Cfg.Environment)
	}
	return check
}

func checkTarget(ctx context.Context, c *CommandContext) []HealthCheck {
	conn := HealthCheck{Group: "target", Name: "connection", Status: statusPass}
	if c.Cfg.Target == nil {
		conn.Status = statusError
		conn.Details = []string{"no target configured"}
		return []HealthCheck{conn}
	}

	store, err := c.OpenStore(ctx)
	if err != nil {
		conn.Status = statusError
		conn.Details = []string{err.Error()}
		return []HealthCheck{conn}
	}
	defer func() { _ = store.Close() }()

	tables, err := store.ListTables(ctx)
	if err != nil {
		conn.Status = statusError
		conn.Details = []string{err.Error()}
		return []HealthCheck{conn}
	}
	conn.Details = []string{fmt.Sprintf("%s, %d table(s)", store.Dialect().Name, len(tables))}

	table := HealthCheck{Group: "target", Name: "default table", Status: statusPass}
	name := c.Cfg.Ask.DefaultTable
	found := false
	for _, t := range tables {
		if t == name {
			found = true
			break
		}
	}
	if found {
		table.Details = []string{name}
	} else {
		table.Status = statusWarn
		table.Details = []string{fmt.Sprintf("%s does not exist yet; the first upload creates it", name)}
	}
	return []HealthCheck{conn, table}
}

func checkModel(ctx context.Context, c *CommandContext) HealthCheck {
	check := HealthCheck{Group: "model", Name: "client", Status: statusPass}
	model, err := c.OpenModel(ctx)
	if err != nil {
		check.Status = statusError
		check.Details = []string{err.Error()}
		return check
	}
	name := llm.DefaultModel
	if c.Cfg.Model != nil && c.Cfg.Model.Name != "" {
		name = c.Cfg.Model.Name
	}
	check.Details = []string{model.Name() + " / " + name}
	return check
}

func checkJournal(ctx context.Context, c *CommandContext) HealthCheck {
	check := HealthCheck{Group: "journal", Name: "history", Status: statusPass}
	if c.Cfg.JournalPath == "" {
		check.Status = statusWarn
		check.Details = []string{"journal_path is empty; history is not recorded"}
		return check
	}
	j := c.OpenJournal(ctx)
	if j == nil {
		check.Status = statusWarn
		check.Details = []string{"cannot open " + c.Cfg.JournalPath}
		return check
	}
	defer func() { _ = j.Close() }()

	version, err := j.Version()
	if err != nil {
		check.Status = statusWarn
		check.Details = []string{err.Error()}
		return check
	}
	check.Details = []string{fmt.Sprintf("%s (schema version %d)", j.Path(), version)}
	return check
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header.Render("tablescribe health report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 45)))

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("")
			r.Println(styles.Key.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.Error.Render("✗")
		}
		r.Printf("   %s %s\n", icon, check.Name)
		for _, detail := range check.Details {
			r.Println(styles.Muted.Render("       " + detail))
		}
	}

	r.Println("")
	r.Println(styles.Muted.Render(strings.Repeat("=", 45)))
	summary := fmt.Sprintf("   %d error(s), %d warning(s)", out.Errors, out.Warns)
	switch {
	case out.Errors > 0:
		r.Println(styles.Error.Render(summary))
	case out.Warns > 0:
		r.Println(styles.Warning.Render(summary))
	default:
		r.Println(styles.Success.Render("   All checks passed"))
	}
	r.Println("")
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# tablescribe health report")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("## " + titleCaser.String(currentGroup))
			r.Println("")
		}
		r.Printf("- **[%s]** %s\n", strings.ToUpper(check.Status), check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")
	r.Printf("**%d error(s), %d warning(s)**\n", out.Errors, out.Warns)
}
