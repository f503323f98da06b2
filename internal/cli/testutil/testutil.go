// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// SetupTestProject creates a temporary project with a tablescribe.yaml
// pointing at a SQLite target, and a sample CSV at batch.csv. The model
// provider is set to provider.
func SetupTestProject(t *testing.T, provider string) string {
	t.Helper()

	tmpDir := t.TempDir()

	config := `journal_path: .tablescribe/journal.db
target:
  type: sqlite
  database: .tablescribe/store.db
model:
  provider: ` + provider + `
  name: test-model
ask:
  default_table: batches
`
	if err := os.WriteFile(filepath.Join(tmpDir, "tablescribe.yaml"), []byte(config), 0600); err != nil {
		t.Fatalf("failed to create tablescribe.yaml: %v", err)
	}

	batch := `batch,weight,checked
B1,1.5,true
B2,2.25,false`
	if err := os.WriteFile(filepath.Join(tmpDir, "batch.csv"), []byte(batch), 0600); err != nil {
		t.Fatalf("failed to create batch.csv: %v", err)
	}

	return tmpDir
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
