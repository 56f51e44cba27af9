package sql

import (
	"strings"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

// AggregateFunc is an aggregation function.
type AggregateFunc string

// The supported aggregation functions.
const (
	Count AggregateFunc = "count"
	Avg   AggregateFunc = "avg"
	Sum   AggregateFunc = "sum"
	Min   AggregateFunc = "min"
	Max   AggregateFunc = "max"
)

// Aggregate is one aggregation projection. A Count with an empty Column
// compiles to COUNT(*).
type Aggregate struct {
	Func   AggregateFunc
	Column string
}

// Alias returns the output alias implied by the aggregation: "count" for a
// bare COUNT(*), otherwise func_column (e.g. "avg_price").
func (a Aggregate) Alias() string {
	if a.Func == Count && a.Column == "" {
		return "count"
	}
	return string(a.Func) + "_" + a.Column
}

// AggregateSpec describes a single-statement aggregation query.
type AggregateSpec struct {
	Table      string
	Aggregates []Aggregate
	GroupBy    []string
	Where      Filter
	// OrderBy terms may reference only group-by columns and the exact
	// aliases implied by Aggregates. This is the one place an identifier
	// derived from caller input reaches raw SQL text, so it is validated
	// before any query is constructed.
	OrderBy []OrderBy
	Limit   *int
}

// BuildAggregate compiles the spec into a parameterized statement.
func BuildAggregate(d dialect.Dialect, spec AggregateSpec) (string, []any, error) {
	if spec.Table == "" {
		return "", nil, stratum.Queryf("aggregate", "missing table")
	}
	if len(spec.Aggregates) == 0 {
		return "", nil, stratum.Queryf("aggregate", "no aggregation fields")
	}

	allowed := make(map[string]bool, len(spec.Aggregates)+len(spec.GroupBy))
	for _, a := range spec.Aggregates {
		switch a.Func {
		case Count, Avg, Sum, Min, Max:
		default:
			return "", nil, stratum.Queryf("aggregate", "unknown aggregation function %q", a.Func)
		}
		allowed[a.Alias()] = true
	}
	for _, g := range spec.GroupBy {
		allowed[g] = true
	}
	for _, o := range spec.OrderBy {
		if o.Direction != "" && !o.Direction.Valid() {
			return "", nil, stratum.Queryf("aggregate", "invalid sort direction %q", o.Direction)
		}
		if !allowed[o.Column] {
			return "", nil, stratum.Queryf("aggregate", "ORDER BY %q is not an aggregation alias or group column", o.Column)
		}
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT ")
	parts := make([]string, 0, len(spec.GroupBy)+len(spec.Aggregates))
	for _, g := range spec.GroupBy {
		parts = append(parts, d.Quote(g))
	}
	for _, a := range spec.Aggregates {
		expr := "COUNT(*)"
		if !(a.Func == Count && a.Column == "") {
			expr = strings.ToUpper(string(a.Func)) + "(" + d.Quote(a.Column) + ")"
		}
		parts = append(parts, expr+" AS "+d.Quote(a.Alias()))
	}
	sb.WriteString(strings.Join(parts, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(d.Quote(spec.Table))

	if spec.Where != nil {
		expr, wargs, err := CompileWhere(d, spec.Where, 0)
		if err != nil {
			return "", nil, err
		}
		if expr != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(expr)
			args = append(args, wargs...)
		}
	}

	if len(spec.GroupBy) > 0 {
		quoted := make([]string, len(spec.GroupBy))
		for i, g := range spec.GroupBy {
			quoted[i] = d.Quote(g)
		}
		sb.WriteString(" GROUP BY " + strings.Join(quoted, ", "))
	}

	if len(spec.OrderBy) > 0 {
		terms := make([]string, len(spec.OrderBy))
		for i, o := range spec.OrderBy {
			terms[i] = d.Quote(o.Column) + " " + o.Direction.keyword()
		}
		sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	if spec.Limit != nil {
		args = append(args, *spec.Limit)
		sb.WriteString(" LIMIT " + d.Placeholder(len(args)))
	}
	return sb.String(), args, nil
}
