package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"

	"github.com/stratumdb/stratum"
)

// errorCoder is an interface for database errors that provide error codes.
// Implemented by: pq.Error and some SQLite drivers.
type errorCoder interface {
	Code() string
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
// Implemented by: pq.Error and pgx.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23) and
// connection failures (Classes 08 and 28).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// classify maps a backend error into the structured taxonomy. It is called
// exactly once, at the execution boundary; callers never re-classify.
func classify(err error) error {
	if err == nil {
		return nil
	}
	// Context and standard sentinels pass through untouched so callers can
	// keep matching them with errors.Is.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if kind, ok := constraintKind(err); ok {
		table, column := constraintSubject(err)
		return stratum.NewConstraintError(kind, table, column, err)
	}
	if isConnectionError(err) {
		return stratum.NewConnectionError(err)
	}
	return stratum.NewQueryError("exec", err)
}

// constraintKind detects a constraint violation and its class.
func constraintKind(err error) (stratum.ConstraintKind, bool) {
	code := sqlState(err)
	switch code {
	case pgUniqueViolation:
		return stratum.ConstraintUnique, true
	case pgForeignKeyViolation:
		return stratum.ConstraintForeignKey, true
	case pgCheckViolation:
		return stratum.ConstraintCheck, true
	case pgNotNullViolation:
		return stratum.ConstraintNotNull, true
	}
	// Fallback to string matching for drivers without code interfaces.
	msg := err.Error()
	switch {
	case containsAny(msg, "violates unique constraint", "UNIQUE constraint failed"):
		return stratum.ConstraintUnique, true
	case containsAny(msg, "violates foreign key constraint", "FOREIGN KEY constraint failed"):
		return stratum.ConstraintForeignKey, true
	case containsAny(msg, "violates check constraint", "CHECK constraint failed"):
		return stratum.ConstraintCheck, true
	case containsAny(msg, "violates not-null constraint", "NOT NULL constraint failed"):
		return stratum.ConstraintNotNull, true
	}
	return "", false
}

// constraintSubject derives the table and column of a violation when the
// driver exposes them.
func constraintSubject(err error) (table, column string) {
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return pqe.Table, pqe.Column
	}
	// SQLite reports "UNIQUE constraint failed: users.email".
	msg := err.Error()
	if i := strings.Index(msg, "constraint failed: "); i >= 0 {
		subject := strings.TrimSpace(msg[i+len("constraint failed: "):])
		if t, c, ok := strings.Cut(subject, "."); ok && !strings.ContainsAny(c, " .") {
			return t, c
		}
	}
	return "", ""
}

// isConnectionError reports whether the error is a transport or
// authentication failure rather than a statement failure.
func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if code := sqlState(err); len(code) == 5 {
		// Class 08: connection exception. Class 28: invalid authorization.
		if strings.HasPrefix(code, "08") || strings.HasPrefix(code, "28") {
			return true
		}
	}
	return containsAny(err.Error(),
		"connection refused",
		"connection reset",
		"broken pipe",
		"unable to open database file", // SQLite
	)
}

// sqlState extracts a SQLSTATE code from the error chain, if any.
func sqlState(err error) string {
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return string(pqe.Code)
	}
	if e, ok := asError[sqlStateError](err); ok {
		return e.SQLState()
	}
	if e, ok := asError[errorCoder](err); ok {
		return e.Code()
	}
	return ""
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
