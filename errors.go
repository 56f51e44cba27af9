// Package stratum implements a relational schema-migration and
// query-construction engine: schema snapshots and diffing, dialect-aware
// DDL planning, a tracked migration runner, parameterized query builders,
// and batched relation loading.
package stratum

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when zero rows matched a single-row operation.
	ErrNotFound = errors.New("stratum: row not found")

	// ErrUnsupported is returned when a dialect lacks a requested capability.
	ErrUnsupported = errors.New("stratum: unsupported dialect feature")
)

// NotFoundError represents an error when a single-row operation matched no rows.
type NotFoundError struct {
	label string
	id    any // Optional: the key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("stratum: %s not found (key=%v)", e.label, e.id)
	}
	return fmt.Sprintf("stratum: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given entity label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithKey returns a new NotFoundError with the key that was searched for.
func NewNotFoundErrorWithKey(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConstraintKind enumerates the constraint classes a backend can violate.
type ConstraintKind string

// Constraint kinds mapped from vendor error codes.
const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not_null"
)

// ConstraintError represents a database constraint violation, mapped from a
// vendor error code at the execution boundary. Table and Column are set when
// they can be derived from the backend error.
type ConstraintError struct {
	Kind   ConstraintKind
	Table  string
	Column string
	wrap   error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("stratum: %s constraint failed on %s.%s: %v", e.Kind, e.Table, e.Column, e.wrap)
	case e.Table != "":
		return fmt.Sprintf("stratum: %s constraint failed on %s: %v", e.Kind, e.Table, e.wrap)
	default:
		return fmt.Sprintf("stratum: %s constraint failed: %v", e.Kind, e.wrap)
	}
}

// Unwrap returns the underlying backend error.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError wrapping the backend error.
func NewConstraintError(kind ConstraintKind, table, column string, wrap error) *ConstraintError {
	return &ConstraintError{Kind: kind, Table: table, Column: column, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// ConnectionError represents a transport or authentication failure reaching
// the backend.
type ConnectionError struct {
	wrap error
}

// Error returns the error string.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("stratum: connection failed: %v", e.wrap)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.wrap
}

// NewConnectionError returns a new ConnectionError wrapping the transport error.
func NewConnectionError(wrap error) *ConnectionError {
	return &ConnectionError{wrap: wrap}
}

// IsConnectionError returns true if the error is a ConnectionError.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionError
	return errors.As(err, &e)
}

// QueryError represents a generic statement failure, including deliberate
// guard rejections that fail before any statement is sent: an empty WHERE on
// a multi-row mutation, an invalid aggregation ORDER BY identifier, or an
// unsupported dialect feature.
type QueryError struct {
	Op  string // Operation (e.g., "select", "update", "where")
	Err error  // Underlying error or guard reason
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("stratum: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("stratum: query: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(op string, err error) *QueryError {
	return &QueryError{Op: op, Err: err}
}

// Queryf returns a new QueryError with a formatted guard reason.
func Queryf(op, format string, args ...any) *QueryError {
	return &QueryError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// UnsupportedError represents a capability requested from a dialect that
// does not provide it. Builders fail with it before constructing any SQL.
type UnsupportedError struct {
	Dialect string
	Feature string
}

// Error returns the error string.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("stratum: dialect %q does not support %s", e.Dialect, e.Feature)
}

// Is reports whether the target error matches UnsupportedError.
func (e *UnsupportedError) Is(err error) bool {
	return err == ErrUnsupported
}

// NewUnsupportedError returns a new UnsupportedError.
func NewUnsupportedError(dialect, feature string) *UnsupportedError {
	return &UnsupportedError{Dialect: dialect, Feature: feature}
}

// IsUnsupported returns true if the error is an UnsupportedError.
func IsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupported)
}

// MigrationError wraps a failure while applying or listing migrations.
// It carries the migration name and the SQL that was being executed.
type MigrationError struct {
	Name string // Migration filename
	SQL  string // Statement that failed, if any
	Err  error  // Underlying error
}

// Error returns the error string.
func (e *MigrationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("stratum: migration %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("stratum: migration: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// NewMigrationError returns a new MigrationError.
func NewMigrationError(name, sql string, err error) *MigrationError {
	return &MigrationError{Name: name, SQL: sql, Err: err}
}

// IsMigrationError returns true if the error is a MigrationError.
func IsMigrationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MigrationError
	return errors.As(err, &e)
}
