// Package apperrors defines the sentinel error kinds surfaced by the engine.
// Handlers map these onto HTTP status codes with errors.Is.
package apperrors

import "errors"

var (
	// ErrNotFound is returned when a connection, database, table, or column
	// is unknown. Resolved before any network call.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input, including identifiers
	// that fail the catalog membership check.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a connection name is already taken.
	ErrConflict = errors.New("conflict")

	// ErrConnectionFailed is returned when the remote database is unreachable
	// or rejects the stored credentials.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrStatementFailed is returned when the remote engine rejects a
	// statement. The engine's message is preserved in the wrapping error.
	ErrStatementFailed = errors.New("statement failed")

	// ErrTimeout is returned when a statement exceeds the execution budget.
	ErrTimeout = errors.New("statement timed out")

	// ErrCredentialsKeyMismatch is returned when stored credentials were
	// encrypted with a different key than the one configured.
	ErrCredentialsKeyMismatch = errors.New("connection credentials were encrypted with a different key")
)
