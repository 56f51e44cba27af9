package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/stratumdb/stratum/dialect"
	"github.com/stratumdb/stratum/dialect/sql"
)

// Inspect reads a live database's catalog into the snapshot shape, the
// reverse of DDL generation. It is used to detect drift against databases
// not provisioned purely through tracked migrations. The history ledger
// table is excluded.
func Inspect(ctx context.Context, drv *sql.Driver) (*Snapshot, error) {
	switch drv.Dialect() {
	case dialect.Postgres:
		return inspectPostgres(ctx, drv)
	case dialect.SQLite:
		return inspectSQLite(ctx, drv)
	default:
		return nil, fmt.Errorf("schema: inspect: unsupported dialect %q", drv.Dialect())
	}
}

func inspectPostgres(ctx context.Context, drv *sql.Driver) (*Snapshot, error) {
	s := New()
	tables, err := sql.QueryMaps(ctx, drv,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range tables {
		name := toString(row["table_name"])
		if name == DefaultHistoryTable {
			continue
		}
		t, err := inspectPostgresTable(ctx, drv, name)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, *t)
	}
	enums, err := sql.QueryMaps(ctx, drv,
		`SELECT t.typname AS name, e.enumlabel AS value
		 FROM pg_type t JOIN pg_enum e ON e.enumtypid = t.oid
		 ORDER BY t.typname, e.enumsortorder`, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range enums {
		name, value := toString(row["name"]), toString(row["value"])
		if n := len(s.Enums); n > 0 && s.Enums[n-1].Name == name {
			s.Enums[n-1].Values = append(s.Enums[n-1].Values, value)
			continue
		}
		s.Enums = append(s.Enums, EnumSnapshot{Name: name, Values: []string{value}})
	}
	return s, nil
}

func inspectPostgresTable(ctx context.Context, drv *sql.Driver, name string) (*TableSnapshot, error) {
	t := &TableSnapshot{Name: name}

	constrained, err := sql.QueryMaps(ctx, drv,
		`SELECT kcu.column_name, tc.constraint_type
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
		 WHERE tc.table_schema = 'public' AND tc.table_name = $1
		   AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')`,
		[]any{name})
	if err != nil {
		return nil, err
	}
	primary := map[string]bool{}
	unique := map[string]bool{}
	for _, row := range constrained {
		col := toString(row["column_name"])
		if toString(row["constraint_type"]) == "PRIMARY KEY" {
			primary[col] = true
		} else {
			unique[col] = true
		}
	}

	columns, err := sql.QueryMaps(ctx, drv,
		`SELECT column_name, data_type, udt_name, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`,
		[]any{name})
	if err != nil {
		return nil, err
	}
	for _, row := range columns {
		col := toString(row["column_name"])
		t.Columns = append(t.Columns, ColumnSnapshot{
			Name:     col,
			Type:     canonicalPostgresType(toString(row["data_type"]), toString(row["udt_name"])),
			Nullable: toString(row["is_nullable"]) == "YES",
			Primary:  primary[col],
			Unique:   unique[col],
			Default:  introspectedDefault(row["column_default"]),
		})
	}

	fks, err := sql.QueryMaps(ctx, drv,
		`SELECT kcu.column_name, ccu.table_name AS target_table, ccu.column_name AS target_column
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
		 JOIN information_schema.constraint_column_usage ccu ON tc.constraint_name = ccu.constraint_name
		 WHERE tc.table_schema = 'public' AND tc.table_name = $1 AND tc.constraint_type = 'FOREIGN KEY'`,
		[]any{name})
	if err != nil {
		return nil, err
	}
	for _, row := range fks {
		t.ForeignKeys = append(t.ForeignKeys, ForeignKeySnapshot{
			Column:       toString(row["column_name"]),
			TargetTable:  toString(row["target_table"]),
			TargetColumn: toString(row["target_column"]),
		})
	}

	indexes, err := sql.QueryMaps(ctx, drv,
		`SELECT i.relname AS index_name, a.attname AS column_name, ix.indisunique AS is_unique
		 FROM pg_class c
		 JOIN pg_index ix ON c.oid = ix.indrelid
		 JOIN pg_class i ON i.oid = ix.indexrelid
		 JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(ix.indkey)
		 WHERE c.relname = $1 AND NOT ix.indisprimary
		 ORDER BY i.relname, a.attnum`,
		[]any{name})
	if err != nil {
		return nil, err
	}
	byIndex := map[string]*IndexSnapshot{}
	var order []string
	for _, row := range indexes {
		iname := toString(row["index_name"])
		idx, ok := byIndex[iname]
		if !ok {
			idx = &IndexSnapshot{Unique: row["is_unique"] == true}
			byIndex[iname] = idx
			order = append(order, iname)
		}
		idx.Columns = append(idx.Columns, toString(row["column_name"]))
	}
	for _, iname := range order {
		idx := byIndex[iname]
		// Single-column unique indexes back column-level UNIQUE constraints
		// and are already captured on the column itself.
		if idx.Unique && len(idx.Columns) == 1 && unique[idx.Columns[0]] {
			continue
		}
		t.Indexes = append(t.Indexes, *idx)
	}
	return t, nil
}

// canonicalPostgresType reverses the dialect's type map. Enum columns
// report data_type USER-DEFINED, and their udt_name is the enum type.
func canonicalPostgresType(dataType, udtName string) string {
	switch dataType {
	case "character varying", "text":
		return "string"
	case "integer":
		return "int"
	case "bigint":
		return "bigint"
	case "double precision", "real", "numeric":
		return "float"
	case "boolean":
		return "bool"
	case "timestamp with time zone", "timestamp without time zone":
		return "datetime"
	case "jsonb", "json":
		return "json"
	case "uuid":
		return "uuid"
	case "bytea":
		return "bytes"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

func inspectSQLite(ctx context.Context, drv *sql.Driver) (*Snapshot, error) {
	s := New()
	tables, err := sql.QueryMaps(ctx, drv,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range tables {
		name := toString(row["name"])
		if name == DefaultHistoryTable {
			continue
		}
		t, err := inspectSQLiteTable(ctx, drv, name)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, *t)
	}
	return s, nil
}

func inspectSQLiteTable(ctx context.Context, drv *sql.Driver, name string) (*TableSnapshot, error) {
	t := &TableSnapshot{Name: name}
	quoted := "`" + strings.ReplaceAll(name, "`", "``") + "`"

	columns, err := sql.QueryMaps(ctx, drv, "PRAGMA table_info("+quoted+")", nil)
	if err != nil {
		return nil, err
	}
	for _, row := range columns {
		t.Columns = append(t.Columns, ColumnSnapshot{
			Name:     toString(row["name"]),
			Type:     canonicalSQLiteType(toString(row["type"])),
			Nullable: isZero(row["notnull"]) && !truthy(row["pk"]),
			Primary:  truthy(row["pk"]),
			Default:  introspectedDefault(row["dflt_value"]),
		})
	}

	fks, err := sql.QueryMaps(ctx, drv, "PRAGMA foreign_key_list("+quoted+")", nil)
	if err != nil {
		return nil, err
	}
	for _, row := range fks {
		t.ForeignKeys = append(t.ForeignKeys, ForeignKeySnapshot{
			Column:       toString(row["from"]),
			TargetTable:  toString(row["table"]),
			TargetColumn: toString(row["to"]),
		})
	}

	indexes, err := sql.QueryMaps(ctx, drv, "PRAGMA index_list("+quoted+")", nil)
	if err != nil {
		return nil, err
	}
	for _, row := range indexes {
		iname := toString(row["name"])
		if strings.HasPrefix(iname, "sqlite_autoindex") {
			continue
		}
		cols, err := sql.QueryMaps(ctx, drv, "PRAGMA index_info(`"+strings.ReplaceAll(iname, "`", "``")+"`)", nil)
		if err != nil {
			return nil, err
		}
		idx := IndexSnapshot{Unique: truthy(row["unique"])}
		for _, c := range cols {
			idx.Columns = append(idx.Columns, toString(c["name"]))
		}
		t.Indexes = append(t.Indexes, idx)
	}
	return t, nil
}

// canonicalSQLiteType reverses the embedded profile's type map. SQLite's
// affinity model erases some distinctions (int vs bigint, string vs uuid),
// so the widest canonical type is reported.
func canonicalSQLiteType(typ string) string {
	switch strings.ToLower(typ) {
	case "integer", "int":
		return "bigint"
	case "text", "varchar":
		return "string"
	case "real", "double", "float":
		return "float"
	case "boolean":
		return "bool"
	case "datetime", "timestamp":
		return "datetime"
	case "blob":
		return "bytes"
	default:
		return strings.ToLower(typ)
	}
}

// introspectedDefault normalizes a catalog default expression back to the
// snapshot's literal form.
func introspectedDefault(v any) string {
	if v == nil {
		return ""
	}
	s := toString(v)
	// Postgres reports defaults with a cast suffix, e.g. 'active'::text.
	if i := strings.Index(s, "::"); i >= 0 {
		s = s[:i]
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != "0" && v != "" && v != "false"
	default:
		return false
	}
}

func isZero(v any) bool { return !truthy(v) }
