package sql

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

// Op is a comparison operator in a WHERE filter leaf.
type Op string

// The closed operator set. A bare scalar in caller input is sugar for OpEQ.
const (
	OpEQ               Op = "eq"
	OpNE               Op = "ne"
	OpGT               Op = "gt"
	OpGTE              Op = "gte"
	OpLT               Op = "lt"
	OpLTE              Op = "lte"
	OpContains         Op = "contains"
	OpStartsWith       Op = "startsWith"
	OpEndsWith         Op = "endsWith"
	OpIn               Op = "in"
	OpNotIn            Op = "notIn"
	OpIsNull           Op = "isNull"
	OpArrayContains    Op = "arrayContains"
	OpArrayContainedBy Op = "arrayContainedBy"
	OpArrayOverlaps    Op = "arrayOverlaps"
)

// Filter is a boolean filter tree: a Comparison leaf or an And/Or/Not
// combinator. The type is closed; compilation is structural recursion.
type Filter interface {
	filter()
}

// Comparison is a single column comparison. Column may be path-addressed
// (`col->seg->seg`) on dialects that support it.
type Comparison struct {
	Column string
	Op     Op
	Value  any
}

// And is the conjunction of its children. An empty And is always true.
type And struct {
	Filters []Filter
}

// Or is the disjunction of its children. An empty Or is always false.
type Or struct {
	Filters []Filter
}

// Not negates its child filter.
type Not struct {
	Filter Filter
}

func (Comparison) filter() {}
func (And) filter()        {}
func (Or) filter()         {}
func (Not) filter()        {}

// Eq returns an equality comparison. Shorthand for the common leaf.
func Eq(column string, v any) Comparison {
	return Comparison{Column: column, Op: OpEQ, Value: v}
}

// F returns a comparison with an explicit operator.
func F(column string, op Op, v any) Comparison {
	return Comparison{Column: column, Op: op, Value: v}
}

// CompileWhere compiles a filter tree into a predicate string and its
// ordered parameters. Placeholder numbering starts at offset+1 so fragments
// compose without renumbering collisions. A nil filter compiles to the
// empty string.
func CompileWhere(d dialect.Dialect, f Filter, offset int) (string, []any, error) {
	if f == nil {
		return "", nil, nil
	}
	c := &whereCompiler{d: d, offset: offset}
	expr, err := c.compile(f)
	if err != nil {
		return "", nil, err
	}
	return expr, c.args, nil
}

type whereCompiler struct {
	d      dialect.Dialect
	offset int
	args   []any
}

// arg binds a parameter and returns its placeholder.
func (c *whereCompiler) arg(v any) string {
	c.args = append(c.args, v)
	return c.d.Placeholder(c.offset + len(c.args))
}

func (c *whereCompiler) compile(f Filter) (string, error) {
	switch f := f.(type) {
	case Comparison:
		return c.comparison(f)
	case *Comparison:
		return c.comparison(*f)
	case And:
		return c.junction(f.Filters, " AND ", "TRUE")
	case *And:
		return c.junction(f.Filters, " AND ", "TRUE")
	case Or:
		return c.junction(f.Filters, " OR ", "FALSE")
	case *Or:
		return c.junction(f.Filters, " OR ", "FALSE")
	case Not:
		return c.negation(f.Filter)
	case *Not:
		return c.negation(f.Filter)
	case rowComparison:
		return c.rowComparison(f)
	default:
		return "", stratum.Queryf("where", "unknown filter type %T", f)
	}
}

func (c *whereCompiler) junction(fs []Filter, sep, identity string) (string, error) {
	if len(fs) == 0 {
		return identity, nil
	}
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		expr, err := c.compile(f)
		if err != nil {
			return "", err
		}
		if multiClause(f) {
			expr = "(" + expr + ")"
		}
		parts = append(parts, expr)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return strings.Join(parts, sep), nil
}

func (c *whereCompiler) negation(f Filter) (string, error) {
	if f == nil {
		return "", stratum.Queryf("where", "NOT requires a sub-filter")
	}
	expr, err := c.compile(f)
	if err != nil {
		return "", err
	}
	return "NOT (" + expr + ")", nil
}

// multiClause reports whether a filter compiles to more than one clause and
// therefore needs parentheses inside a combinator.
func multiClause(f Filter) bool {
	switch f := f.(type) {
	case And:
		return len(f.Filters) > 1
	case *And:
		return len(f.Filters) > 1
	case Or:
		return len(f.Filters) > 1
	case *Or:
		return len(f.Filters) > 1
	default:
		return false
	}
}

func (c *whereCompiler) comparison(f Comparison) (string, error) {
	expr, err := c.columnExpr(f.Column)
	if err != nil {
		return "", err
	}
	switch f.Op {
	case OpEQ:
		return expr + " = " + c.arg(f.Value), nil
	case OpNE:
		return expr + " <> " + c.arg(f.Value), nil
	case OpGT:
		return expr + " > " + c.arg(f.Value), nil
	case OpGTE:
		return expr + " >= " + c.arg(f.Value), nil
	case OpLT:
		return expr + " < " + c.arg(f.Value), nil
	case OpLTE:
		return expr + " <= " + c.arg(f.Value), nil
	case OpContains:
		return c.like(expr, f, "%", "%")
	case OpStartsWith:
		return c.like(expr, f, "", "%")
	case OpEndsWith:
		return c.like(expr, f, "%", "")
	case OpIn:
		return c.inList(expr, f, false)
	case OpNotIn:
		return c.inList(expr, f, true)
	case OpIsNull:
		if b, ok := f.Value.(bool); ok && !b {
			return expr + " IS NOT NULL", nil
		}
		return expr + " IS NULL", nil
	case OpArrayContains:
		return c.array(expr, f, "@>")
	case OpArrayContainedBy:
		return c.array(expr, f, "<@")
	case OpArrayOverlaps:
		return c.array(expr, f, "&&")
	default:
		return "", stratum.Queryf("where", "unknown operator %q on column %q", f.Op, f.Column)
	}
}

// columnExpr renders a column reference, expanding `col->seg->seg` paths
// into chained extraction on dialects that support it.
func (c *whereCompiler) columnExpr(column string) (string, error) {
	segs := strings.Split(column, "->")
	if len(segs) == 1 {
		return c.d.Quote(column), nil
	}
	if !c.d.SupportsJSONPath() {
		return "", stratum.NewUnsupportedError(c.d.Name(), "path-addressed columns")
	}
	var sb strings.Builder
	sb.WriteString(c.d.Quote(segs[0]))
	for i, seg := range segs[1:] {
		// The final segment extracts text so comparisons bind as text.
		if i == len(segs)-2 {
			sb.WriteString("->>")
		} else {
			sb.WriteString("->")
		}
		sb.WriteString("'" + strings.ReplaceAll(seg, "'", "''") + "'")
	}
	return sb.String(), nil
}

func (c *whereCompiler) like(expr string, f Comparison, prefix, suffix string) (string, error) {
	s, ok := f.Value.(string)
	if !ok {
		return "", stratum.Queryf("where", "%s requires a string value on column %q, got %T", f.Op, f.Column, f.Value)
	}
	return expr + ` LIKE ` + c.arg(prefix+escapeLike(s)+suffix) + ` ESCAPE '\'`, nil
}

// escapeLike escapes LIKE metacharacters in user text: backslash first,
// then the two wildcard characters.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (c *whereCompiler) inList(expr string, f Comparison, negate bool) (string, error) {
	vs, err := anySlice(f.Value)
	if err != nil {
		return "", stratum.Queryf("where", "%s on column %q: %v", f.Op, f.Column, err)
	}
	if len(vs) == 0 {
		// Empty-set identities: `in: []` never matches, `notIn: []` always does.
		if negate {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = c.arg(v)
	}
	op := " IN ("
	if negate {
		op = " NOT IN ("
	}
	return expr + op + strings.Join(ph, ", ") + ")", nil
}

func (c *whereCompiler) array(expr string, f Comparison, op string) (string, error) {
	if !c.d.SupportsArrays() {
		return "", stratum.NewUnsupportedError(c.d.Name(), "array operators")
	}
	return expr + " " + op + " " + c.arg(pq.Array(f.Value)), nil
}

// anySlice converts the supported list-value shapes to []any.
func anySlice(v any) ([]any, error) {
	switch vs := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return vs, nil
	case []string:
		out := make([]any, len(vs))
		for i := range vs {
			out[i] = vs[i]
		}
		return out, nil
	case []int:
		out := make([]any, len(vs))
		for i := range vs {
			out[i] = vs[i]
		}
		return out, nil
	case []int64:
		out := make([]any, len(vs))
		for i := range vs {
			out[i] = vs[i]
		}
		return out, nil
	case []float64:
		out := make([]any, len(vs))
		for i := range vs {
			out[i] = vs[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list value, got %T", v)
	}
}
