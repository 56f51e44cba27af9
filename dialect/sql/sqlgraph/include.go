package sqlgraph

import (
	"sort"

	"github.com/stratumdb/stratum"
)

// MaxIncludeDepth bounds include nesting beyond the primary query.
const MaxIncludeDepth = 2

// Include maps relation names to their load options. A nil option loads
// the whole target row with no nesting.
type Include map[string]*IncludeOpt

// IncludeOpt narrows an included relation's projection and nests further
// includes.
type IncludeOpt struct {
	Select  []string
	Include Include
}

// names returns the included relation names sorted, for deterministic
// query order.
func (inc Include) names() []string {
	names := make([]string, 0, len(inc))
	for name := range inc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks an include tree against a table definition before any
// query is issued: unknown relations and over-deep nesting fail fast.
func (inc Include) Validate(def *TableDef) error {
	return inc.validate(def, 1)
}

func (inc Include) validate(def *TableDef, depth int) error {
	if len(inc) == 0 {
		return nil
	}
	if depth > MaxIncludeDepth {
		return stratum.Queryf("include", "relation nesting exceeds %d levels on %q", MaxIncludeDepth, def.Name)
	}
	for _, name := range inc.names() {
		rel, ok := def.Relation(name)
		if !ok {
			return stratum.Queryf("include", "unknown relation %q on %q", name, def.Name)
		}
		opt := inc[name]
		if opt == nil || len(opt.Include) == 0 {
			continue
		}
		if err := opt.Include.validate(rel.Target(), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// selection resolves the storage columns to fetch for an included target,
// force-including the columns the loader needs as attachment keys even if
// the caller narrowed them out.
func selection(def *TableDef, opt *IncludeOpt, forced ...string) []string {
	if opt == nil || len(opt.Select) == 0 {
		return nil // wildcard
	}
	cols := make([]string, 0, len(opt.Select)+len(forced))
	seen := make(map[string]bool, len(opt.Select)+len(forced))
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	add(def.PrimaryKey)
	for _, c := range forced {
		add(c)
	}
	for _, c := range opt.Select {
		add(c)
	}
	return cols
}
