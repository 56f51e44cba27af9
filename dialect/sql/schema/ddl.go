package schema

import (
	"strings"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

// MigrationSQL compiles an ordered change list into DDL statements for one
// dialect. The target snapshot supplies enum definitions for columns whose
// type names an enum. Identifiers are always quoted; embedded literals
// (defaults, enum members) have internal quotes doubled rather than being
// parameterized, since DDL derives from trusted schema input. Statement
// order follows change order; no dependency sort is attempted, so tables
// must be declared in a dependency-safe order.
func MigrationSQL(d dialect.Dialect, changes []Change, target *Snapshot) ([]string, error) {
	if target == nil {
		target = New()
	}
	g := &ddlGen{d: d, snap: target}
	var stmts []string
	for _, c := range changes {
		s, err := g.statements(c)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s...)
	}
	return stmts, nil
}

// BootstrapSQL treats the snapshot as all-new: the DDL provisioning an
// empty database to the full schema, enums first so columns can use them.
func BootstrapSQL(d dialect.Dialect, s *Snapshot) ([]string, error) {
	var changes []Change
	for _, e := range s.Enums {
		changes = append(changes, AddEnum{Enum: e})
	}
	for _, t := range s.Tables {
		changes = append(changes, AddTable{Table: t})
	}
	return MigrationSQL(d, changes, s)
}

// RollbackSQL compiles the inverse DDL: every change reversed, replayed in
// reverse order. The source snapshot (the pre-migration state) supplies the
// enum definitions the reversed changes restore.
func RollbackSQL(d dialect.Dialect, changes []Change, source *Snapshot) ([]string, error) {
	return MigrationSQL(d, Reverse(changes), source)
}

type ddlGen struct {
	d    dialect.Dialect
	snap *Snapshot
}

func (g *ddlGen) statements(c Change) ([]string, error) {
	switch c := c.(type) {
	case AddTable:
		return g.addTable(c.Table)
	case DropTable:
		return []string{"DROP TABLE " + g.d.Quote(c.Table.Name)}, nil
	case AddColumn:
		def, err := g.columnDef(c.Column)
		if err != nil {
			return nil, err
		}
		return []string{"ALTER TABLE " + g.d.Quote(c.Table) + " ADD COLUMN " + def}, nil
	case DropColumn:
		return []string{"ALTER TABLE " + g.d.Quote(c.Table) + " DROP COLUMN " + g.d.Quote(c.Column.Name)}, nil
	case RenameColumn:
		return []string{
			"ALTER TABLE " + g.d.Quote(c.Table) +
				" RENAME COLUMN " + g.d.Quote(c.From.Name) + " TO " + g.d.Quote(c.To.Name),
		}, nil
	case ModifyColumn:
		return g.modifyColumn(c)
	case AddIndex:
		return []string{g.createIndex(c.Table, c.Index)}, nil
	case DropIndex:
		return []string{"DROP INDEX " + g.d.Quote(indexName(c.Table, c.Index))}, nil
	case AddEnum:
		if !g.d.SupportsEnums() {
			// Embedded profile: enum columns carry CHECK constraints instead,
			// so the type declaration itself has no DDL.
			return nil, nil
		}
		return []string{"CREATE TYPE " + g.d.Quote(c.Enum.Name) + " AS ENUM (" + enumList(c.Enum.Values) + ")"}, nil
	case DropEnum:
		if !g.d.SupportsEnums() {
			return nil, nil
		}
		return []string{"DROP TYPE " + g.d.Quote(c.Enum.Name)}, nil
	case ModifyEnum:
		return g.modifyEnum(c)
	default:
		return nil, stratum.Queryf("ddl", "unknown change type %T", c)
	}
}

func (g *ddlGen) addTable(t TableSnapshot) ([]string, error) {
	defs := make([]string, 0, len(t.Columns)+1+len(t.ForeignKeys))
	for _, c := range t.Columns {
		def, err := g.columnDef(c)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if pk := t.PrimaryKey(); len(pk) > 0 {
		quoted := make([]string, len(pk))
		for i, c := range pk {
			quoted[i] = g.d.Quote(c)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	// References assume the target table already exists in statement order.
	for _, fk := range t.ForeignKeys {
		defs = append(defs, "FOREIGN KEY ("+g.d.Quote(fk.Column)+") REFERENCES "+
			g.d.Quote(fk.TargetTable)+" ("+g.d.Quote(fk.TargetColumn)+")")
	}
	stmts := []string{"CREATE TABLE " + g.d.Quote(t.Name) + " (" + strings.Join(defs, ", ") + ")"}
	for _, idx := range t.Indexes {
		stmts = append(stmts, g.createIndex(t.Name, idx))
	}
	return stmts, nil
}

// columnDef renders `"name" type [NOT NULL] [UNIQUE] [DEFAULT lit]`.
func (g *ddlGen) columnDef(c ColumnSnapshot) (string, error) {
	typ, err := g.columnType(c)
	if err != nil {
		return "", err
	}
	def := g.d.Quote(c.Name) + " " + typ
	if enum, ok := g.snap.Enum(c.Type); ok && !g.d.SupportsEnums() {
		def += " CHECK (" + g.d.Quote(c.Name) + " IN (" + enumList(enum.Values) + "))"
	}
	if !c.Nullable {
		def += " NOT NULL"
	}
	if c.Unique && !c.Primary {
		def += " UNIQUE"
	}
	if c.Default != "" {
		def += " DEFAULT " + literal(c.Default)
	}
	return def, nil
}

func (g *ddlGen) columnType(c ColumnSnapshot) (string, error) {
	if _, ok := g.snap.Enum(c.Type); ok {
		if g.d.SupportsEnums() {
			return g.d.Quote(c.Type), nil
		}
		return "text", nil
	}
	return g.d.ColumnType(c.Type)
}

func (g *ddlGen) modifyColumn(c ModifyColumn) ([]string, error) {
	table, col := g.d.Quote(c.Table), g.d.Quote(c.To.Name)
	var stmts []string
	if c.Aspects&AspectType != 0 {
		if !g.d.SupportsAlterColumnType() {
			return nil, stratum.NewUnsupportedError(g.d.Name(), "altering a column's type")
		}
		typ, err := g.columnType(c.To)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, "ALTER TABLE "+table+" ALTER COLUMN "+col+" TYPE "+typ)
	}
	if c.Aspects&AspectNullable != 0 {
		action := " SET NOT NULL"
		if c.To.Nullable {
			action = " DROP NOT NULL"
		}
		stmts = append(stmts, "ALTER TABLE "+table+" ALTER COLUMN "+col+action)
	}
	if c.Aspects&AspectDefault != 0 {
		action := " DROP DEFAULT"
		if c.To.Default != "" {
			action = " SET DEFAULT " + literal(c.To.Default)
		}
		stmts = append(stmts, "ALTER TABLE "+table+" ALTER COLUMN "+col+action)
	}
	return stmts, nil
}

// modifyEnum emits ADD VALUE for each new member on the full-featured
// profile. Value removal has no safe in-place DDL and is skipped; the
// embedded profile stores enums as CHECK text and needs no statement.
func (g *ddlGen) modifyEnum(c ModifyEnum) ([]string, error) {
	if !g.d.SupportsEnums() {
		return nil, nil
	}
	old := make(map[string]bool, len(c.From.Values))
	for _, v := range c.From.Values {
		old[v] = true
	}
	var stmts []string
	for _, v := range c.To.Values {
		if !old[v] {
			stmts = append(stmts, "ALTER TYPE "+g.d.Quote(c.To.Name)+" ADD VALUE "+literal(v))
		}
	}
	return stmts, nil
}

func (g *ddlGen) createIndex(table string, idx IndexSnapshot) string {
	quoted := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		quoted[i] = g.d.Quote(c)
	}
	kind := "CREATE INDEX "
	if idx.Unique {
		kind = "CREATE UNIQUE INDEX "
	}
	return kind + g.d.Quote(indexName(table, idx)) +
		" ON " + g.d.Quote(table) + " (" + strings.Join(quoted, ", ") + ")"
}

// indexName derives the deterministic index identifier from its table and
// column tuple.
func indexName(table string, idx IndexSnapshot) string {
	return "idx_" + table + "_" + strings.Join(idx.Columns, "_")
}

// enumList renders enum members as a quoted literal list.
func enumList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = literal(v)
	}
	return strings.Join(quoted, ", ")
}

// literal renders a trusted schema value as a SQL literal. Numeric and
// boolean values and the current-timestamp keyword pass through raw; any
// other text is single-quoted with internal quotes doubled.
func literal(v string) string {
	if isRawLiteral(v) {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func isRawLiteral(v string) bool {
	switch strings.ToUpper(v) {
	case "TRUE", "FALSE", "NULL", "CURRENT_TIMESTAMP":
		return true
	}
	if v == "" {
		return false
	}
	for i, r := range v {
		if r >= '0' && r <= '9' || r == '.' || (i == 0 && r == '-') {
			continue
		}
		return false
	}
	return true
}
