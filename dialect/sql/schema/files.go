package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// MigrationFile is one on-disk migration: the exact filename is the
// identity key for applied/pending comparison.
type MigrationFile struct {
	Name     string
	SQL      string
	Sequence int
}

// ParseMigrationName splits `NNNN_description.ext` into its sequence and
// description. The sequence is fixed-width left-zero-padded decimal, at
// least four digits.
func ParseMigrationName(name string) (seq int, desc string, err error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	num, rest, ok := strings.Cut(base, "_")
	if !ok || len(num) < 4 {
		return 0, "", fmt.Errorf("schema: migration %q: want NNNN_description with a 4+ digit sequence", name)
	}
	seq, err = strconv.Atoi(num)
	if err != nil {
		return 0, "", fmt.Errorf("schema: migration %q: non-numeric sequence %q", name, num)
	}
	return seq, rest, nil
}

// FormatMigrationName renders a sequence and description into the on-disk
// naming convention.
func FormatMigrationName(seq int, desc string) string {
	return fmt.Sprintf("%04d_%s.sql", seq, desc)
}

// ReadMigrationDir loads every migration file under dir, sorted ascending
// by sequence. Files not matching the naming convention are an error: a
// typo in a sequence must not silently drop a migration.
func ReadMigrationDir(dir string) ([]MigrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("schema: read migration dir: %w", err)
	}
	var files []MigrationFile
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		seq, _, err := ParseMigrationName(e.Name())
		if err != nil {
			return nil, err
		}
		body, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("schema: read migration %q: %w", e.Name(), err)
		}
		files = append(files, MigrationFile{Name: e.Name(), SQL: string(body), Sequence: seq})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Sequence < files[j].Sequence })
	return files, nil
}

// NextSequence returns the first unused sequence number after every file's.
func NextSequence(files []MigrationFile) int {
	max := 0
	for _, f := range files {
		if f.Sequence > max {
			max = f.Sequence
		}
	}
	return max + 1
}

// SplitStatements splits a migration body into individual statements on
// semicolon boundaries, respecting single-quoted literals and skipping
// line comments.
func SplitStatements(sql string) []string {
	var (
		stmts   []string
		sb      strings.Builder
		inQuote bool
	)
	lines := strings.Split(sql, "\n")
	for _, line := range lines {
		if !inQuote && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for _, r := range line {
			switch {
			case r == '\'':
				inQuote = !inQuote
				sb.WriteRune(r)
			case r == ';' && !inQuote:
				if s := strings.TrimSpace(sb.String()); s != "" {
					stmts = append(stmts, s)
				}
				sb.Reset()
			default:
				sb.WriteRune(r)
			}
		}
		sb.WriteByte('\n')
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
