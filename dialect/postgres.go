package dialect

import (
	"fmt"
	"strings"
)

// PostgresDialect is the capability profile of the full-featured backend.
type PostgresDialect struct{}

// Name returns the dialect name.
func (PostgresDialect) Name() string { return Postgres }

// Placeholder renders the i-th placeholder as $i.
func (PostgresDialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

// Now returns the current-timestamp expression.
func (PostgresDialect) Now() string { return "CURRENT_TIMESTAMP" }

// Quote quotes an identifier with double quotes, doubling embedded ones.
func (PostgresDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// postgresTypes maps canonical scalar type names to PostgreSQL types.
var postgresTypes = map[string]string{
	"string":   "varchar",
	"text":     "text",
	"int":      "integer",
	"bigint":   "bigint",
	"float":    "double precision",
	"decimal":  "numeric",
	"bool":     "boolean",
	"datetime": "timestamptz",
	"date":     "date",
	"json":     "jsonb",
	"uuid":     "uuid",
	"bytes":    "bytea",
}

// ColumnType maps a canonical type name to the PostgreSQL column type.
func (PostgresDialect) ColumnType(canonical string) (string, error) {
	if t, ok := postgresTypes[canonical]; ok {
		return t, nil
	}
	return "", fmt.Errorf("dialect: postgres: unknown canonical type %q", canonical)
}

// SupportsEnums reports native enumerated type support.
func (PostgresDialect) SupportsEnums() bool { return true }

// SupportsJSONPath reports path-addressed column support.
func (PostgresDialect) SupportsJSONPath() bool { return true }

// SupportsArrays reports array operator support.
func (PostgresDialect) SupportsArrays() bool { return true }

// SupportsAlterColumnType reports in-place column type changes.
func (PostgresDialect) SupportsAlterColumnType() bool { return true }

var _ Dialect = PostgresDialect{}
