// Package dialect provides database dialect abstraction for Stratum.
//
// A Dialect is a capability profile: it maps canonical column types to
// backend types, renders parameter placeholders and the current-timestamp
// expression, quotes identifiers, and reports feature availability. Two
// profiles are provided: Postgres (the full-featured backend) and SQLite
// (the embedded, file-based backend).
//
// The package also defines the Driver seam used for all outward calls.
// Every builder is pure; execution happens only through ExecQuerier.
package dialect

import (
	"context"
	"fmt"
)

// Dialect names.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Dialect is a backend capability profile injected into every builder.
// Unsupported-feature checks are explicit methods; builders consult them
// and fail fast instead of silently emitting invalid SQL.
type Dialect interface {
	// Name returns the dialect name ("postgres" or "sqlite").
	Name() string
	// Placeholder renders the i-th (1-based) parameter placeholder.
	Placeholder(i int) string
	// Now returns the dialect's current-timestamp expression.
	Now() string
	// Quote quotes an identifier, doubling embedded quote characters.
	Quote(ident string) string
	// ColumnType maps a canonical scalar type name to the backend type.
	ColumnType(canonical string) (string, error)

	// SupportsEnums reports whether the backend has native enumerated types.
	SupportsEnums() bool
	// SupportsJSONPath reports whether path-addressed column access
	// (col->seg->seg) is available.
	SupportsJSONPath() bool
	// SupportsArrays reports whether array columns and the array
	// containment/overlap operators are available.
	SupportsArrays() bool
	// SupportsAlterColumnType reports whether column types can be changed
	// in place with ALTER TABLE.
	SupportsAlterColumnType() bool
}

// New returns the Dialect profile for the given name.
func New(name string) (Dialect, error) {
	switch name {
	case Postgres:
		return PostgresDialect{}, nil
	case SQLite:
		return SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("dialect: unknown dialect %q", name)
	}
}

// ExecQuerier wraps the Exec and Query methods: the single boundary this
// engine uses to reach a database.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. The v parameter,
	// when non-nil, receives the execution result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows, binding them to v.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all database operations.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transaction commit and rollback on top of ExecQuerier.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
