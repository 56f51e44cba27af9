package sql

import (
	"strings"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

// Direction is a sort direction.
type Direction string

// Sort directions. Anything else is rejected before query construction.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether the direction is one of the two allowed values.
func (d Direction) Valid() bool { return d == Asc || d == Desc }

func (d Direction) keyword() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// OrderBy is a single ORDER BY term.
type OrderBy struct {
	Column    string
	Direction Direction
}

// Column is a projected column with an optional alias for
// storage-to-declared renaming.
type Column struct {
	Name  string
	Alias string
}

// TotalColumn is the alias of the running-total window column emitted when
// SelectSpec.WithTotal is set.
const TotalColumn = "total_count"

// SelectSpec describes a SELECT statement.
type SelectSpec struct {
	Table   string
	Columns []Column // empty means *
	Where   Filter
	OrderBy []OrderBy
	Limit   *int
	Offset  *int
	// WithTotal adds a COUNT(*) OVER () running-total column so a paginated
	// listing returns its total count in the same round trip.
	WithTotal bool
	// Cursor holds keyset-pagination values, one per OrderBy term. A single
	// value compiles to a strict inequality; multiple values compile to a
	// row-value comparison over the matching multi-column ORDER BY.
	Cursor []any
}

// BuildSelect compiles the spec into a parameterized statement.
func BuildSelect(d dialect.Dialect, spec SelectSpec) (string, []any, error) {
	return BuildSelectAt(d, spec, 0)
}

// BuildSelectAt compiles the spec with placeholder numbering starting at
// offset, so the fragment composes into a larger statement.
func BuildSelectAt(d dialect.Dialect, spec SelectSpec, offset int) (string, []any, error) {
	if spec.Table == "" {
		return "", nil, stratum.Queryf("select", "missing table")
	}
	for _, o := range spec.OrderBy {
		if o.Direction != "" && !o.Direction.Valid() {
			return "", nil, stratum.Queryf("select", "invalid sort direction %q", o.Direction)
		}
	}
	where, err := cursorWhere(spec)
	if err != nil {
		return "", nil, err
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT ")
	sb.WriteString(projection(d, spec.Columns))
	if spec.WithTotal {
		sb.WriteString(", COUNT(*) OVER () AS " + d.Quote(TotalColumn))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(d.Quote(spec.Table))

	if where != nil {
		expr, wargs, err := CompileWhere(d, where, offset+len(args))
		if err != nil {
			return "", nil, err
		}
		if expr != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(expr)
			args = append(args, wargs...)
		}
	}

	if len(spec.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		terms := make([]string, len(spec.OrderBy))
		for i, o := range spec.OrderBy {
			terms[i] = d.Quote(o.Column) + " " + o.Direction.keyword()
		}
		sb.WriteString(strings.Join(terms, ", "))
	}

	if spec.Limit != nil {
		args = append(args, *spec.Limit)
		sb.WriteString(" LIMIT " + d.Placeholder(offset+len(args)))
	}
	if spec.Offset != nil {
		args = append(args, *spec.Offset)
		sb.WriteString(" OFFSET " + d.Placeholder(offset+len(args)))
	}
	return sb.String(), args, nil
}

// projection renders the column list, aliasing storage names back to their
// declared form when they differ.
func projection(d dialect.Dialect, cols []Column) string {
	if len(cols) == 0 {
		return "*"
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = d.Quote(c.Name)
		if c.Alias != "" && c.Alias != c.Name {
			parts[i] += " AS " + d.Quote(c.Alias)
		}
	}
	return strings.Join(parts, ", ")
}

// cursorWhere folds the keyset cursor into the spec's filter. The cursor
// positions strictly after the last-seen row under the spec's ordering,
// remaining stable under leading-column ties for multi-column cursors.
func cursorWhere(spec SelectSpec) (Filter, error) {
	if len(spec.Cursor) == 0 {
		return spec.Where, nil
	}
	if len(spec.Cursor) != len(spec.OrderBy) {
		return nil, stratum.Queryf("select", "cursor has %d values for %d ORDER BY columns", len(spec.Cursor), len(spec.OrderBy))
	}
	dir := spec.OrderBy[0].Direction
	for _, o := range spec.OrderBy[1:] {
		if o.Direction.keyword() != dir.keyword() {
			return nil, stratum.Queryf("select", "multi-column cursor requires a uniform sort direction")
		}
	}
	op := OpGT
	if dir == Desc {
		op = OpLT
	}
	var cmp Filter
	if len(spec.Cursor) == 1 {
		cmp = Comparison{Column: spec.OrderBy[0].Column, Op: op, Value: spec.Cursor[0]}
	} else {
		cols := make([]string, len(spec.OrderBy))
		for i, o := range spec.OrderBy {
			cols[i] = o.Column
		}
		cmp = rowComparison{Columns: cols, Op: op, Values: spec.Cursor}
	}
	if spec.Where == nil {
		return cmp, nil
	}
	return And{Filters: []Filter{spec.Where, cmp}}, nil
}

// rowComparison is a row-value comparison, e.g. ("a", "b") > ($1, $2).
// It is produced only by cursor compilation and never by caller input.
type rowComparison struct {
	Columns []string
	Op      Op
	Values  []any
}

func (rowComparison) filter() {}

func (c *whereCompiler) rowComparison(f rowComparison) (string, error) {
	op := " > "
	if f.Op == OpLT {
		op = " < "
	}
	cols := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		cols[i] = c.d.Quote(col)
	}
	ph := make([]string, len(f.Values))
	for i, v := range f.Values {
		ph[i] = c.arg(v)
	}
	return "(" + strings.Join(cols, ", ") + ")" + op + "(" + strings.Join(ph, ", ") + ")", nil
}
