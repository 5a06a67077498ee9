package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

var fileName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every .sql file in migrations: the name carries a unique
// 14-digit version, both goose sections are present, and StatementBegin /
// StatementEnd markers pair up.
func Validate(migrations fs.FS) error {
	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	versions := make(map[string]string, len(names))
	for _, name := range names {
		m := fileName.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("%s: name must look like YYYYMMDDHHMMSS_snake_case.sql", name)
		}
		if other, dup := versions[m[1]]; dup {
			return fmt.Errorf("%s: version %s already used by %s", name, m[1], other)
		}
		versions[m[1]] = name

		raw, err := fs.ReadFile(migrations, name)
		if err != nil {
			return err
		}
		if err := checkAnnotations(string(raw)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func checkAnnotations(sql string) error {
	if !strings.Contains(sql, "-- +goose Up") {
		return fmt.Errorf("missing -- +goose Up")
	}
	if !strings.Contains(sql, "-- +goose Down") {
		return fmt.Errorf("missing -- +goose Down")
	}
	open := 0
	for _, line := range strings.Split(sql, "\n") {
		switch strings.TrimSpace(line) {
		case "-- +goose StatementBegin":
			if open > 0 {
				return fmt.Errorf("nested StatementBegin")
			}
			open++
		case "-- +goose StatementEnd":
			if open == 0 {
				return fmt.Errorf("StatementEnd without StatementBegin")
			}
			open--
		}
	}
	if open != 0 {
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}
