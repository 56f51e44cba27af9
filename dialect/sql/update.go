package sql

import (
	"strings"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

// UpdateSpec describes an UPDATE statement.
type UpdateSpec struct {
	Table        string
	Set          Row
	NowColumns   []string
	Where        Filter
	Returning    []Column
	ReturningAll bool
}

// BuildUpdate compiles the spec into a parameterized statement. An empty
// WHERE is rejected before any SQL is built: a multi-row update with no
// filter would silently mutate the whole table.
func BuildUpdate(d dialect.Dialect, spec UpdateSpec) (string, []any, error) {
	if spec.Table == "" {
		return "", nil, stratum.Queryf("update", "missing table")
	}
	if len(spec.Set) == 0 {
		return "", nil, stratum.Queryf("update", "no columns to set")
	}
	if emptyFilter(spec.Where) {
		return "", nil, stratum.Queryf("update", "empty WHERE on multi-row update")
	}

	var (
		sb   strings.Builder
		args []any
	)
	now := make(map[string]bool, len(spec.NowColumns))
	for _, c := range spec.NowColumns {
		now[c] = true
	}

	sb.WriteString("UPDATE ")
	sb.WriteString(d.Quote(spec.Table))
	sb.WriteString(" SET ")
	sets := make([]string, len(spec.Set))
	for i, cv := range spec.Set {
		if now[cv.Column] && cv.Value == NowValue {
			sets[i] = d.Quote(cv.Column) + " = " + d.Now()
			continue
		}
		args = append(args, cv.Value)
		sets[i] = d.Quote(cv.Column) + " = " + d.Placeholder(len(args))
	}
	sb.WriteString(strings.Join(sets, ", "))

	expr, wargs, err := CompileWhere(d, spec.Where, len(args))
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(expr)
	args = append(args, wargs...)

	if ret := returningClause(d, spec.ReturningAll, spec.Returning); ret != "" {
		sb.WriteString(ret)
	}
	return sb.String(), args, nil
}

// emptyFilter reports whether the filter carries no condition at all.
// An empty Or is not empty in this sense: it is an always-false predicate.
func emptyFilter(f Filter) bool {
	switch f := f.(type) {
	case nil:
		return true
	case And:
		for _, c := range f.Filters {
			if !emptyFilter(c) {
				return false
			}
		}
		return true
	case *And:
		return emptyFilter(*f)
	default:
		return false
	}
}
