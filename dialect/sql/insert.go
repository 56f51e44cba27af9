package sql

import (
	"strings"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

// NowValue is the reserved sentinel: a column listed in an allow-list whose
// value equals it compiles to the dialect's current-timestamp expression
// instead of a bound parameter.
const NowValue = "now"

// ColumnValue is one (column, value) pair. Rows are ordered association
// lists so the declared order stays SQL-observable.
type ColumnValue struct {
	Column string
	Value  any
}

// Row is an ordered list of column values.
type Row []ColumnValue

// Get returns the value for a column and whether it is present.
func (r Row) Get(column string) (any, bool) {
	for _, cv := range r {
		if cv.Column == column {
			return cv.Value, true
		}
	}
	return nil, false
}

// Columns returns the column names in declared order.
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, cv := range r {
		cols[i] = cv.Column
	}
	return cols
}

// ConflictAction describes the ON CONFLICT clause of an insert.
type ConflictAction struct {
	// Columns is the conflict target.
	Columns []string
	// DoNothing emits DO NOTHING.
	DoNothing bool
	// UpdateColumns emits DO UPDATE SET copying each named column from the
	// inserted row (the excluded pseudo-table).
	UpdateColumns []string
	// UpdateValues emits DO UPDATE SET with explicit caller-supplied values,
	// for when the create and update payloads differ.
	UpdateValues Row
}

// InsertSpec describes an INSERT statement for one or more rows. The column
// list is taken from the first row; every row must carry the same columns.
type InsertSpec struct {
	Table string
	Rows  []Row
	// NowColumns is the allow-list of columns whose NowValue sentinel
	// compiles to the dialect's current-timestamp expression.
	NowColumns   []string
	Returning    []Column
	ReturningAll bool
	OnConflict   *ConflictAction
}

// BuildInsert compiles the spec into a parameterized statement.
func BuildInsert(d dialect.Dialect, spec InsertSpec) (string, []any, error) {
	if spec.Table == "" {
		return "", nil, stratum.Queryf("insert", "missing table")
	}
	if len(spec.Rows) == 0 {
		return "", nil, stratum.Queryf("insert", "no rows to insert")
	}
	cols := spec.Rows[0].Columns()
	if len(cols) == 0 {
		return "", nil, stratum.Queryf("insert", "first row has no columns")
	}

	var (
		sb   strings.Builder
		args []any
	)
	now := make(map[string]bool, len(spec.NowColumns))
	for _, c := range spec.NowColumns {
		now[c] = true
	}

	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.Quote(spec.Table))
	sb.WriteString(" (")
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
	}
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES ")

	tuples := make([]string, len(spec.Rows))
	for i, row := range spec.Rows {
		vals := make([]string, len(cols))
		for j, col := range cols {
			v, ok := row.Get(col)
			if !ok {
				return "", nil, stratum.Queryf("insert", "row %d is missing column %q", i, col)
			}
			if now[col] && v == NowValue {
				vals[j] = d.Now()
				continue
			}
			args = append(args, v)
			vals[j] = d.Placeholder(len(args))
		}
		tuples[i] = "(" + strings.Join(vals, ", ") + ")"
	}
	sb.WriteString(strings.Join(tuples, ", "))

	if spec.OnConflict != nil {
		clause, cargs, err := conflictClause(d, spec.OnConflict, now, len(args))
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(clause)
		args = append(args, cargs...)
	}

	if ret := returningClause(d, spec.ReturningAll, spec.Returning); ret != "" {
		sb.WriteString(ret)
	}
	return sb.String(), args, nil
}

func conflictClause(d dialect.Dialect, c *ConflictAction, now map[string]bool, offset int) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(" ON CONFLICT")
	if len(c.Columns) > 0 {
		quoted := make([]string, len(c.Columns))
		for i, col := range c.Columns {
			quoted[i] = d.Quote(col)
		}
		sb.WriteString(" (" + strings.Join(quoted, ", ") + ")")
	}
	switch {
	case c.DoNothing:
		sb.WriteString(" DO NOTHING")
		return sb.String(), nil, nil
	case len(c.UpdateValues) > 0:
		sb.WriteString(" DO UPDATE SET ")
		var args []any
		sets := make([]string, len(c.UpdateValues))
		for i, cv := range c.UpdateValues {
			if now[cv.Column] && cv.Value == NowValue {
				sets[i] = d.Quote(cv.Column) + " = " + d.Now()
				continue
			}
			args = append(args, cv.Value)
			sets[i] = d.Quote(cv.Column) + " = " + d.Placeholder(offset+len(args))
		}
		sb.WriteString(strings.Join(sets, ", "))
		return sb.String(), args, nil
	case len(c.UpdateColumns) > 0:
		sb.WriteString(" DO UPDATE SET ")
		sets := make([]string, len(c.UpdateColumns))
		for i, col := range c.UpdateColumns {
			sets[i] = d.Quote(col) + " = excluded." + d.Quote(col)
		}
		sb.WriteString(strings.Join(sets, ", "))
		return sb.String(), nil, nil
	default:
		return "", nil, stratum.Queryf("insert", "ON CONFLICT requires DO NOTHING or update columns/values")
	}
}

// returningClause renders RETURNING * or an aliased explicit list.
func returningClause(d dialect.Dialect, all bool, cols []Column) string {
	switch {
	case all:
		return " RETURNING *"
	case len(cols) > 0:
		return " RETURNING " + projection(d, cols)
	default:
		return ""
	}
}
