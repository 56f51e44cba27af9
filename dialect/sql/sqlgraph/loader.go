package sqlgraph

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stratumdb/stratum/dialect"
	"github.com/stratumdb/stratum/dialect/sql"
)

// Loader resolves declared relations for batches of rows. All reads go
// through the execution boundary; the loader holds no mutable state and is
// safe for concurrent use.
type Loader struct {
	drv dialect.Driver
	d   dialect.Dialect
	reg *Registry
}

// NewLoader returns a Loader bound to the driver's dialect.
func NewLoader(drv *sql.Driver, reg *Registry) (*Loader, error) {
	d, err := dialect.New(drv.Dialect())
	if err != nil {
		return nil, err
	}
	return &Loader{drv: drv, d: d, reg: reg}, nil
}

// Load attaches the included relations onto rows in place. Each parent row
// gains one key per included relation: the related row or nil for One,
// a never-nil slice for Many. Relations at the same depth are fetched
// concurrently; attachment and recursion are sequential, so the next depth
// sees fully resolved key sets.
func (l *Loader) Load(ctx context.Context, def *TableDef, rows []map[string]any, inc Include) error {
	if err := inc.Validate(def); err != nil {
		return err
	}
	return l.load(ctx, def, rows, inc)
}

// resolved is one relation's fetch result: the attachment closure plus the
// inputs for the next recursion level.
type resolved struct {
	attach  func()
	related []map[string]any
	target  *TableDef
	nested  Include
}

func (l *Loader) load(ctx context.Context, def *TableDef, rows []map[string]any, inc Include) error {
	if len(inc) == 0 || len(rows) == 0 {
		return nil
	}
	names := inc.names()
	results := make([]resolved, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		rel, _ := def.Relation(name)
		opt := inc[name]
		g.Go(func() error {
			res, err := l.resolve(gctx, def, name, rel, opt, rows)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, res := range results {
		res.attach()
	}
	// Nested includes re-batch across the entire level's related rows, not
	// per parent, preserving one query per relation per depth.
	for _, res := range results {
		if len(res.nested) == 0 {
			continue
		}
		if err := l.load(ctx, res.target, res.related, res.nested); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) resolve(ctx context.Context, def *TableDef, name string, rel Relation, opt *IncludeOpt, rows []map[string]any) (resolved, error) {
	switch {
	case rel.Through != nil:
		return l.loadThrough(ctx, def, name, rel, opt, rows)
	case rel.Kind == One:
		return l.loadOne(ctx, name, rel, opt, rows)
	default:
		return l.loadMany(ctx, def, name, rel, opt, rows)
	}
}

// loadOne resolves a belongs-to relation: one SELECT over the distinct
// foreign-key values, attached by target primary key. Missing or dangling
// keys attach nil.
func (l *Loader) loadOne(ctx context.Context, name string, rel Relation, opt *IncludeOpt, rows []map[string]any) (resolved, error) {
	target := rel.Target()
	keys := distinctKeys(rows, rel.ForeignKey)
	var related []map[string]any
	byKey := map[any]map[string]any{}
	if len(keys) > 0 {
		var err error
		related, err = l.query(ctx, target.Table, selection(target, opt), target.PrimaryKey, keys)
		if err != nil {
			return resolved{}, err
		}
		for _, row := range related {
			byKey[keyOf(row[target.PrimaryKey])] = row
		}
	}
	attach := func() {
		for _, row := range rows {
			if m, ok := byKey[keyOf(row[rel.ForeignKey])]; ok {
				row[name] = m
			} else {
				row[name] = nil
			}
		}
	}
	return resolved{attach: attach, related: related, target: target, nested: nestedOf(opt)}, nil
}

// loadMany resolves a has-many relation: one SELECT over the distinct
// parent primary keys against the target's foreign-key column, grouped per
// parent. Parents with no matches attach an empty slice, never nil.
func (l *Loader) loadMany(ctx context.Context, def *TableDef, name string, rel Relation, opt *IncludeOpt, rows []map[string]any) (resolved, error) {
	target := rel.Target()
	keys := distinctKeys(rows, def.PrimaryKey)
	var related []map[string]any
	groups := map[any][]map[string]any{}
	if len(keys) > 0 {
		var err error
		related, err = l.query(ctx, target.Table, selection(target, opt, rel.ForeignKey), rel.ForeignKey, keys)
		if err != nil {
			return resolved{}, err
		}
		for _, row := range related {
			k := keyOf(row[rel.ForeignKey])
			groups[k] = append(groups[k], row)
		}
	}
	attach := func() {
		for _, row := range rows {
			group := groups[keyOf(row[def.PrimaryKey])]
			if group == nil {
				group = []map[string]any{}
			}
			row[name] = group
		}
	}
	return resolved{attach: attach, related: related, target: target, nested: nestedOf(opt)}, nil
}

// loadThrough resolves a many-to-many relation in two phases: the join
// rows for the parent keys (projecting only the two join columns), then
// the target rows for the distinct other-side keys, fanned back per parent
// via the join mapping.
func (l *Loader) loadThrough(ctx context.Context, def *TableDef, name string, rel Relation, opt *IncludeOpt, rows []map[string]any) (resolved, error) {
	target := rel.Target()
	th := rel.Through
	parentKeys := distinctKeys(rows, def.PrimaryKey)
	var related []map[string]any
	links := map[any][]any{}
	byKey := map[any]map[string]any{}
	if len(parentKeys) > 0 {
		joins, err := l.query(ctx, th.Table, []string{th.SourceKey, th.TargetKey}, th.SourceKey, parentKeys)
		if err != nil {
			return resolved{}, err
		}
		var targetKeys []any
		seen := map[any]bool{}
		for _, j := range joins {
			src, dst := keyOf(j[th.SourceKey]), keyOf(j[th.TargetKey])
			links[src] = append(links[src], dst)
			if !seen[dst] {
				seen[dst] = true
				targetKeys = append(targetKeys, j[th.TargetKey])
			}
		}
		if len(targetKeys) > 0 {
			related, err = l.query(ctx, target.Table, selection(target, opt), target.PrimaryKey, targetKeys)
			if err != nil {
				return resolved{}, err
			}
			for _, row := range related {
				byKey[keyOf(row[target.PrimaryKey])] = row
			}
		}
	}
	attach := func() {
		for _, row := range rows {
			group := []map[string]any{}
			for _, dst := range links[keyOf(row[def.PrimaryKey])] {
				if m, ok := byKey[dst]; ok {
					group = append(group, m)
				}
			}
			row[name] = group
		}
	}
	return resolved{attach: attach, related: related, target: target, nested: nestedOf(opt)}, nil
}

// query issues the single batched SELECT of a relation load.
func (l *Loader) query(ctx context.Context, table string, cols []string, keyColumn string, keys []any) ([]map[string]any, error) {
	spec := sql.SelectSpec{
		Table: table,
		Where: sql.F(keyColumn, sql.OpIn, keys),
	}
	for _, c := range cols {
		spec.Columns = append(spec.Columns, sql.Column{Name: c})
	}
	query, args, err := sql.BuildSelect(l.d, spec)
	if err != nil {
		return nil, err
	}
	return sql.QueryMaps(ctx, l.drv, query, args)
}

func nestedOf(opt *IncludeOpt) Include {
	if opt == nil {
		return nil
	}
	return opt.Include
}

// distinctKeys collects the non-nil values of one column across rows,
// first occurrence order, deduplicated.
func distinctKeys(rows []map[string]any, column string) []any {
	var keys []any
	seen := map[any]bool{}
	for _, row := range rows {
		v := row[column]
		if v == nil {
			continue
		}
		k := keyOf(v)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, v)
		}
	}
	return keys
}

// keyOf normalizes a database value for use as a lookup key, so the same
// logical key compares equal across driver representations.
func keyOf(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case []byte:
		return string(v)
	default:
		return v
	}
}
