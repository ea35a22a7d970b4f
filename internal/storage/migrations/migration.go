package migrations

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrInvalidMigration is returned for a migration file that cannot be applied.
	ErrInvalidMigration = errors.New("invalid migration")
	// ErrMigrationMismatch is returned when a recorded version names a different migration.
	ErrMigrationMismatch = errors.New("migration history mismatch")
)

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// load reads the .sql files of dir, sorted by version.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations %s: %w", dir, err)
	}

	var result []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := parseName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[m.Version]; ok {
			return nil, fmt.Errorf("%w: %s and %s share version %d", ErrInvalidMigration, prev, m.Name, m.Version)
		}
		seen[m.Version] = m.Name

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		m.SQL = strings.TrimSpace(string(data))
		if m.SQL == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidMigration, entry.Name())
		}
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})
	return result, nil
}

// parseName splits "001_ticks.sql" into version 1 and name "001_ticks".
func parseName(file string) (Migration, error) {
	name := strings.TrimSuffix(file, ".sql")
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return Migration{}, fmt.Errorf("%w: %s has no version prefix", ErrInvalidMigration, file)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return Migration{}, fmt.Errorf("%w: %s has version %q", ErrInvalidMigration, file, prefix)
	}
	return Migration{Version: version, Name: name}, nil
}

// pending returns the migrations not yet in applied, in version order.
// applied maps recorded versions to their names.
func pending(all []Migration, applied map[int]string) ([]Migration, error) {
	var result []Migration
	for _, m := range all {
		name, ok := applied[m.Version]
		if !ok {
			result = append(result, m)
			continue
		}
		if name != m.Name {
			return nil, fmt.Errorf("%w: version %d recorded as %s, embedded as %s",
				ErrMigrationMismatch, m.Version, name, m.Name)
		}
	}
	return result, nil
}
