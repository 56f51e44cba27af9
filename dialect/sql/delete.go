package sql

import (
	"strings"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

// DeleteSpec describes a DELETE statement.
type DeleteSpec struct {
	Table        string
	Where        Filter
	Returning    []Column
	ReturningAll bool
}

// BuildDelete compiles the spec into a parameterized statement. Like
// BuildUpdate, it rejects an empty WHERE before building any SQL.
func BuildDelete(d dialect.Dialect, spec DeleteSpec) (string, []any, error) {
	if spec.Table == "" {
		return "", nil, stratum.Queryf("delete", "missing table")
	}
	if emptyFilter(spec.Where) {
		return "", nil, stratum.Queryf("delete", "empty WHERE on multi-row delete")
	}

	expr, args, err := CompileWhere(d, spec.Where, 0)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(d.Quote(spec.Table))
	sb.WriteString(" WHERE ")
	sb.WriteString(expr)
	if ret := returningClause(d, spec.ReturningAll, spec.Returning); ret != "" {
		sb.WriteString(ret)
	}
	return sb.String(), args, nil
}
