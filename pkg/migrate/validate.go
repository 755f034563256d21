package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

type migrationFile struct {
	filename string
	version  string
	name     string
}

// scanMigrations lists the .sql files of fsys in version order. Filenames
// that do not follow <YYYYMMDDHHMMSS>_<name>.sql are an error.
func scanMigrations(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		files = append(files, migrationFile{filename: e.Name(), version: m[1], name: m[2]})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// ValidateDir checks the migrations on disk at dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(Source(dir))
}

// ValidateFS checks filenames, version and name uniqueness, and that each
// file has an Up section before its Down section with balanced
// StatementBegin/StatementEnd markers.
func ValidateFS(fsys fs.FS) error {
	files, err := scanMigrations(fsys)
	if err != nil {
		return err
	}

	versions := map[string]string{}
	names := map[string]string{}
	for _, f := range files {
		if prev, ok := versions[f.version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", f.version, prev, f.filename)
		}
		versions[f.version] = f.filename
		if prev, ok := names[f.name]; ok {
			return fmt.Errorf("duplicate migration name %q in %q and %q", f.name, prev, f.filename)
		}
		names[f.name] = f.filename

		b, err := fs.ReadFile(fsys, f.filename)
		if err != nil {
			return fmt.Errorf("read file %q: %w", f.filename, err)
		}
		if err := checkSections(string(b)); err != nil {
			return fmt.Errorf("migration %q: %w", f.filename, err)
		}
	}
	return nil
}

func checkSections(txt string) error {
	up := strings.Index(txt, "-- +goose Up")
	down := strings.Index(txt, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf("down section precedes up section")
	}

	for _, section := range []struct {
		name string
		body string
	}{
		{"up", txt[up:down]},
		{"down", txt[down:]},
	} {
		begins := strings.Count(section.body, "-- +goose StatementBegin")
		ends := strings.Count(section.body, "-- +goose StatementEnd")
		if begins != ends {
			return fmt.Errorf("%s section has %d StatementBegin and %d StatementEnd", section.name, begins, ends)
		}
	}
	return nil
}
