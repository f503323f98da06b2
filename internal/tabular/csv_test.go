package tabular

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	e, err := ParseCSV("name,age,batch\nAlice,30,B1\nBob,,B2\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age", "batch"}, e.Names())
	assert.Equal(t, 2, e.NumRows())

	age, ok := e.Column("age")
	require.True(t, ok)
	assert.Equal(t, TypeInteger, age.Type)
	assert.Equal(t, []any{int64(30), nil}, age.Values)

	name, _ := e.Column("name")
	assert.Equal(t, TypeText, name.Type)
}

func TestParseCSV_Variants(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantNames []string
		wantRows  int
	}{
		{
			name:      "byte order mark",
			text:      "\ufeffa,b\n1,2\n",
			wantNames: []string{"a", "b"},
			wantRows:  1,
		},
		{
			name:      "tab separated",
			text:      "a\tb\n1\t2\n3\t4\n",
			wantNames: []string{"a", "b"},
			wantRows:  2,
		},
		{
			name:      "semicolon separated",
			text:      "a;b\n1;2\n",
			wantNames: []string{"a", "b"},
			wantRows:  1,
		},
		{
			name:      "blank lines skipped",
			text:      "a,b\n\n1,2\n,\n3,4\n",
			wantNames: []string{"a", "b"},
			wantRows:  2,
		},
		{
			name:      "short row padded",
			text:      "a,b,c\n1,2\n",
			wantNames: []string{"a", "b", "c"},
			wantRows:  1,
		},
		{
			name:      "header only",
			text:      "a,b\n",
			wantNames: []string{"a", "b"},
			wantRows:  0,
		},
		{
			name:      "duplicate and blank headers",
			text:      "x,x,,x.1\n1,2,3,4\n",
			wantNames: []string{"x", "x.2", "Unnamed: 2", "x.1"},
			wantRows:  1,
		},
		{
			name:      "quoted field with comma",
			text:      "name,note\n\"Smith, J\",ok\n",
			wantNames: []string{"name", "note"},
			wantRows:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseCSV(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, e.Names())
			assert.Equal(t, tt.wantRows, e.NumRows())
			assert.NoError(t, e.Validate())
		})
	}
}

func TestParseCSV_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		errMsg string
	}{
		{name: "empty", text: "", errMsg: "empty text"},
		{name: "whitespace", text: "  \n ", errMsg: "empty text"},
		{name: "row longer than header", text: "a,b\n1,2,3\n", errMsg: "has 3 fields, header has 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	e, err := ParseCSV("name,score,when\nAlice,1.5,2024-01-02\nBob,,2024-01-03 09:30:00\n")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, e))

	assert.Equal(t, "name,score,when\nAlice,1.5,2024-01-02\nBob,,2024-01-03 09:30:00\n", buf.String())
}

func TestParseHTMLTable(t *testing.T) {
	html := `<table>
  <tr><th>Name</th><th>Batch</th></tr>
  <tr><td>Alice</td><td>7</td></tr>
  <tr><td>Bob</td></tr>
</table>`

	e, err := ParseCSV(html)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Batch"}, e.Names())
	batch, _ := e.Column("Batch")
	assert.Equal(t, TypeInteger, batch.Type)
	assert.Equal(t, []any{int64(7), nil}, batch.Values)
}

func TestParseHTMLTable_Malformed(t *testing.T) {
	_, err := ParseHTMLTable("<div>nothing</div>")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ParseHTMLTable("<table><tr><td>a</td></tr><tr><td>1</td><td>2</td></tr></table>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2 has 2 cells")
}
