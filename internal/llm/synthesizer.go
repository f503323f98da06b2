package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/leapstack-labs/tablescribe/internal/tabular"
	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

// Sample is the leading rows of a table shown to the model.
type Sample struct {
	Columns []string
	Rows    [][]any
}

// QueryRequest is everything the synthesizer needs for one question.
type QueryRequest struct {
	Table    string
	Dialect  *dialect.Dialect
	Sample   Sample
	Question string
}

// Synthesizer writes SQL for natural-language questions about one table.
type Synthesizer struct {
	gen    Generator
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer backed by gen.
func NewSynthesizer(gen Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synthesizer{gen: gen, logger: logger}
}

// Synthesize returns the model's SQL for req with code fences removed.
func (s *Synthesizer) Synthesize(ctx context.Context, req QueryRequest) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", fmt.Errorf("question is required")
	}
	prompt := QueryPrompt(req)

	s.logger.Debug("generating SQL", slog.String("table", req.Table), slog.String("question", req.Question))
	answer, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate SQL: %w", err)
	}
	sql := strings.TrimSpace(tabular.StripCodeFence(answer))
	if sql == "" {
		return "", ErrEmptyResponse
	}
	return sql, nil
}

// QueryPrompt renders the instruction for req. The dialect's display name
// and quoting rule are named so the model writes SQL the store accepts.
func QueryPrompt(req QueryRequest) string {
	name := "SQL"
	hint := `Always enclose table and column names in double quotes.`
	if req.Dialect != nil {
		if req.Dialect.DisplayName != "" {
			name = req.Dialect.DisplayName
		}
		hint = req.Dialect.QuotingHint()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s assistant. I have a database table named '%s'.\n", name, req.Table)
	fmt.Fprintf(&b, "Here are the first %d rows of the table to help you understand the column names and data types:\n\n", len(req.Sample.Rows))
	b.WriteString(RenderSample(req.Sample))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Based on this schema, write a valid %s query to answer the following question: %q\n\n", name, req.Question)
	b.WriteString("Rules:\n")
	b.WriteString("1. Output ONLY the raw SQL query.\n")
	b.WriteString("2. Do not use markdown formatting (no ```sql or blockquotes).\n")
	b.WriteString("3. Do not add explanations or conversational text.\n")
	b.WriteString("4. " + hint + "\n")
	return b.String()
}

// RenderSample formats a sample as a borderless text table.
func RenderSample(s Sample) string {
	if len(s.Columns) == 0 {
		return "(no columns)"
	}
	t := table.NewWriter()
	t.Style().Options = table.OptionsNoBordersAndSeparators
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range s.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = tabular.FormatValue(v)
		}
		t.AppendRow(row)
	}
	return t.Render()
}
