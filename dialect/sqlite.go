package dialect

import (
	"fmt"
	"strings"
)

// SQLiteDialect is the capability profile of the embedded, file-based
// backend. Enum columns compile to CHECK-constrained text, and the
// array/json-path operators are unavailable.
type SQLiteDialect struct{}

// Name returns the dialect name.
func (SQLiteDialect) Name() string { return SQLite }

// Placeholder renders every placeholder as ?.
func (SQLiteDialect) Placeholder(int) string { return "?" }

// Now returns the current-timestamp expression.
func (SQLiteDialect) Now() string { return "CURRENT_TIMESTAMP" }

// Quote quotes an identifier with backticks, doubling embedded ones.
func (SQLiteDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// sqliteTypes maps canonical scalar type names to SQLite storage types.
var sqliteTypes = map[string]string{
	"string":   "text",
	"text":     "text",
	"int":      "integer",
	"bigint":   "integer",
	"float":    "real",
	"decimal":  "numeric",
	"bool":     "boolean",
	"datetime": "datetime",
	"date":     "date",
	"json":     "text",
	"uuid":     "text",
	"bytes":    "blob",
}

// ColumnType maps a canonical type name to the SQLite column type.
func (SQLiteDialect) ColumnType(canonical string) (string, error) {
	if t, ok := sqliteTypes[canonical]; ok {
		return t, nil
	}
	return "", fmt.Errorf("dialect: sqlite: unknown canonical type %q", canonical)
}

// SupportsEnums reports native enumerated type support.
func (SQLiteDialect) SupportsEnums() bool { return false }

// SupportsJSONPath reports path-addressed column support.
func (SQLiteDialect) SupportsJSONPath() bool { return false }

// SupportsArrays reports array operator support.
func (SQLiteDialect) SupportsArrays() bool { return false }

// SupportsAlterColumnType reports in-place column type changes.
func (SQLiteDialect) SupportsAlterColumnType() bool { return false }

var _ Dialect = SQLiteDialect{}
