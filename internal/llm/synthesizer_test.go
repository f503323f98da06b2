package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

func samplePeople() Sample {
	return Sample{
		Columns: []string{"id", "batch", "weight"},
		Rows: [][]any{
			{int64(1), "A1", 2.5},
			{int64(2), "B7", nil},
		},
	}
}

func TestQueryPrompt_Postgres(t *testing.T) {
	pg := dialect.NewDialect("postgres").DisplayName("PostgreSQL").Build()

	prompt := QueryPrompt(QueryRequest{
		Table:    "people",
		Dialect:  pg,
		Sample:   samplePeople(),
		Question: "What are the unique batch numbers?",
	})

	assert.Contains(t, prompt, "You are an expert PostgreSQL assistant.")
	assert.Contains(t, prompt, "table named 'people'")
	assert.Contains(t, prompt, "first 2 rows")
	assert.Contains(t, prompt, `"What are the unique batch numbers?"`)
	assert.Contains(t, prompt, "Always enclose table and column names in double quotes.")
	assert.Contains(t, prompt, "A1")
	assert.Contains(t, prompt, "B7")
}

func TestQueryPrompt_BracketDialect(t *testing.T) {
	ss := dialect.NewDialect("sqlserver").
		DisplayName("SQL Server").
		Identifiers("[", "]", "]", dialect.NormCaseInsensitive).
		Build()

	prompt := QueryPrompt(QueryRequest{Table: "t", Dialect: ss, Sample: samplePeople(), Question: "q"})
	assert.Contains(t, prompt, "expert SQL Server assistant")
	assert.Contains(t, prompt, "square brackets")
}

func TestRenderSample(t *testing.T) {
	out := RenderSample(samplePeople())

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "batch", "header keeps column case")
	assert.Contains(t, lines[1], "2.5")
	assert.NotContains(t, out, "<nil>")

	assert.Equal(t, "(no columns)", RenderSample(Sample{}))
}

func TestSynthesizer_StripsFence(t *testing.T) {
	gen := &fakeGenerator{answer: "```sql\nSELECT DISTINCT \"batch\" FROM \"people\";\n```"}
	s := NewSynthesizer(gen, nil)

	sql, err := s.Synthesize(context.Background(), QueryRequest{
		Table:    "people",
		Sample:   samplePeople(),
		Question: "What are the unique batch numbers?",
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT DISTINCT "batch" FROM "people";`, sql)
	require.Len(t, gen.prompts, 1)
}

func TestSynthesizer_EmptyQuestion(t *testing.T) {
	gen := &fakeGenerator{answer: "SELECT 1"}
	s := NewSynthesizer(gen, nil)

	_, err := s.Synthesize(context.Background(), QueryRequest{Table: "people", Question: "  "})
	require.Error(t, err)
	assert.Empty(t, gen.prompts)
}

func TestSynthesizer_EmptyAnswer(t *testing.T) {
	s := NewSynthesizer(&fakeGenerator{answer: "```sql\n```"}, nil)

	_, err := s.Synthesize(context.Background(), QueryRequest{Table: "people", Question: "q"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
