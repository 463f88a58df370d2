package migrations

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

// Every up migration must have a matching down, and versions must be
// sequential starting at 1 so golang-migrate accepts the set.
func TestMigrationFilesPairUp(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}

	for base := range ups {
		if !downs[base] {
			t.Errorf("migration %s has no down file", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("migration %s has no up file", base)
		}
	}

	for i := 1; i <= len(ups); i++ {
		prefix := fmt.Sprintf("%04d_", i)
		found := false
		for base := range ups {
			if strings.HasPrefix(base, prefix) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing migration version %d", i)
		}
	}
}

func TestMigrationFilesAreNotEmpty(t *testing.T) {
	err := fs.WalkDir(files, "sql", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(files, path)
		if err != nil {
			return err
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			t.Errorf("migration %s is empty", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk embedded migrations: %v", err)
	}
}
