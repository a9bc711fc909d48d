package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_transactions.sql", true, "0001", "create_transactions"},
		{"0004_create_analyses.sql", true, "0004", "create_analyses"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationFilePattern.FindStringSubmatch(tt.filename)
			if tt.valid {
				if matches == nil {
					t.Fatalf("expected %s to match", tt.filename)
				}
				if matches[1] != tt.version || matches[2] != tt.name {
					t.Errorf("got version %q name %q, want %q %q", matches[1], matches[2], tt.version, tt.name)
				}
			} else if matches != nil {
				t.Errorf("expected %s not to match, got %v", tt.filename, matches)
			}
		})
	}
}

func TestReadMigrationsSortsAndSubstitutes(t *testing.T) {
	dir := t.TempDir()

	write := func(name, sql string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("0002_second.sql", "SELECT 2")
	write("0001_first.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id STRING)")
	write("notes.txt", "ignored")

	migrations, err := readMigrations(dir, "my-project", "statements")
	if err != nil {
		t.Fatal(err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("migrations not sorted by version: %+v", migrations)
	}
	if want := "CREATE TABLE `my-project.statements.t` (id STRING)"; migrations[0].SQL != want {
		t.Errorf("placeholders not substituted: %q", migrations[0].SQL)
	}
	if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
		t.Error("expected distinct non-empty checksums")
	}
}
