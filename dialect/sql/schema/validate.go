package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  " + e.Error() + "\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  " + w.Error() + "\n")
		}
	}
	if sb.Len() == 0 {
		return "ok"
	}
	return sb.String()
}

func (r *ValidationResult) errorf(table, column, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(table, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

// canonicalTypes is the closed scalar type vocabulary of a snapshot; a
// column type outside it must name a declared enum.
var canonicalTypes = map[string]bool{
	"string": true, "text": true, "int": true, "bigint": true,
	"float": true, "decimal": true, "bool": true, "datetime": true,
	"date": true, "json": true, "uuid": true, "bytes": true,
}

// Validate checks a snapshot for structural problems before it is diffed
// or compiled to DDL: duplicate or empty names, types that name neither a
// scalar nor a declared enum, foreign keys and indexes referencing missing
// columns or tables.
func Validate(s *Snapshot) *ValidationResult {
	r := &ValidationResult{}
	seenTables := map[string]bool{}
	for i := range s.Tables {
		t := &s.Tables[i]
		if t.Name == "" {
			r.errorf("", "", "table with empty name")
			continue
		}
		if seenTables[t.Name] {
			r.errorf(t.Name, "", "duplicate table")
			continue
		}
		seenTables[t.Name] = true
		validateTable(r, s, t)
	}
	seenEnums := map[string]bool{}
	for _, e := range s.Enums {
		if len(e.Values) == 0 {
			r.errorf(e.Name, "", "enum has no values")
		}
		if seenEnums[e.Name] {
			r.errorf(e.Name, "", "duplicate enum")
		}
		seenEnums[e.Name] = true
	}
	return r
}

func validateTable(r *ValidationResult, s *Snapshot, t *TableSnapshot) {
	seen := map[string]bool{}
	for _, c := range t.Columns {
		if c.Name == "" {
			r.errorf(t.Name, "", "column with empty name")
			continue
		}
		if seen[c.Name] {
			r.errorf(t.Name, c.Name, "duplicate column")
			continue
		}
		seen[c.Name] = true
		if _, isEnum := s.Enum(c.Type); !isEnum && !canonicalTypes[c.Type] {
			r.errorf(t.Name, c.Name, "unknown type %q", c.Type)
		}
		if c.Primary && c.Nullable {
			r.errorf(t.Name, c.Name, "primary key column cannot be nullable")
		}
	}
	if len(t.PrimaryKey()) == 0 {
		r.warnf(t.Name, "", "table has no primary key")
	}
	for _, fk := range t.ForeignKeys {
		if !seen[fk.Column] {
			r.errorf(t.Name, fk.Column, "foreign key on unknown column")
		}
		target, ok := s.Table(fk.TargetTable)
		if !ok {
			r.errorf(t.Name, fk.Column, "foreign key references unknown table %q", fk.TargetTable)
			continue
		}
		if _, ok := target.Column(fk.TargetColumn); !ok {
			r.errorf(t.Name, fk.Column, "foreign key references unknown column %s.%s", fk.TargetTable, fk.TargetColumn)
		}
	}
	for _, idx := range t.Indexes {
		if len(idx.Columns) == 0 {
			r.errorf(t.Name, "", "index with no columns")
		}
		for _, c := range idx.Columns {
			if !seen[c] {
				r.errorf(t.Name, c, "index on unknown column")
			}
		}
	}
}

// DestructiveChanges describes the data-losing changes in a diff: dropped
// tables and columns, and columns whose type changes in place. They are
// reported for logging, not blocked.
func DestructiveChanges(changes []Change) []string {
	var out []string
	for _, c := range changes {
		switch c := c.(type) {
		case DropTable:
			out = append(out, fmt.Sprintf("dropping table %q", c.Table.Name))
		case DropColumn:
			out = append(out, fmt.Sprintf("dropping column %q.%q", c.Table, c.Column.Name))
		case ModifyColumn:
			if c.Aspects&AspectType != 0 {
				out = append(out, fmt.Sprintf("changing type of %q.%q from %s to %s", c.Table, c.To.Name, c.From.Type, c.To.Type))
			}
		}
	}
	return out
}
