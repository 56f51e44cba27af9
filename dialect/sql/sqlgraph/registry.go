// Package sqlgraph resolves declared entity relations across batches of
// rows. Loading is N+1-safe: one query per relation per recursion depth,
// independent of how many parent rows are being resolved.
package sqlgraph

import (
	"fmt"
	"sort"
)

// RelKind tags a relation as to-one or to-many.
type RelKind int

const (
	// One is a belongs-to relation: the foreign key lives on the parent row.
	One RelKind = iota
	// Many is a has-many relation: the foreign key lives on the target rows.
	// With a Through descriptor it becomes many-to-many.
	Many
)

// Through describes the join table of a many-to-many relation.
type Through struct {
	// Table is the join table's storage name.
	Table string
	// SourceKey is the join column holding the parent's primary key.
	SourceKey string
	// TargetKey is the join column holding the target's primary key.
	TargetKey string
}

// Relation declares one edge of an entity. Target is lazy so mutually
// referencing table definitions can be declared in any order.
type Relation struct {
	Kind RelKind
	// ForeignKey is the storage column carrying the key: on the parent for
	// One, on the target for Many. Unused when Through is set.
	ForeignKey string
	Target     func() *TableDef
	Through    *Through
}

// TableDef is one modeled entity: its storage table, primary key, column
// set and relations. Definitions are built once at startup and treated as
// read-only for the process lifetime.
type TableDef struct {
	Name       string
	Table      string
	PrimaryKey string
	Columns    []string
	Relations  map[string]Relation
}

// Relation returns the named relation and whether it exists.
func (t *TableDef) Relation(name string) (Relation, bool) {
	r, ok := t.Relations[name]
	return r, ok
}

// RelationNames returns the relation names sorted, for deterministic
// iteration.
func (t *TableDef) RelationNames() []string {
	names := make([]string, 0, len(t.Relations))
	for name := range t.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry is the read-only shared set of table definitions, passed
// explicitly into every loader call.
type Registry struct {
	defs map[string]*TableDef
}

// NewRegistry builds a registry from the given definitions.
func NewRegistry(defs ...*TableDef) (*Registry, error) {
	r := &Registry{defs: make(map[string]*TableDef, len(defs))}
	for _, def := range defs {
		if def.Name == "" || def.Table == "" || def.PrimaryKey == "" {
			return nil, fmt.Errorf("sqlgraph: table definition %q needs a name, table and primary key", def.Name)
		}
		if _, ok := r.defs[def.Name]; ok {
			return nil, fmt.Errorf("sqlgraph: duplicate table definition %q", def.Name)
		}
		r.defs[def.Name] = def
	}
	return r, nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*TableDef, bool) {
	def, ok := r.defs[name]
	return def, ok
}
