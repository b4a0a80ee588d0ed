package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for backend operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDuplicate indicates a unique index rejected the write, e.g. a
	// second conversation for the same participant pair or a second read
	// receipt for the same (message, reader).
	ErrDuplicate = errors.New("record already exists")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoUser indicates no authenticated user is available for an
	// operation that requires one.
	ErrNoUser = errors.New("no authenticated user")
)

// HumanMessage extracts the database-level message from a backend error
// when one is present, for display to the user.
func HumanMessage(err error) (string, bool) {
	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) && queryErr.Message != "" {
		return queryErr.Message, true
	}
	return "", false
}

// wrapQueryError inspects a SurrealDB error and wraps it with the
// appropriate sentinel error if it's a known query error type. Returns the
// original error otherwise.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already exists") || strings.Contains(msg, "already contains") {
			return fmt.Errorf("%w: %s", ErrDuplicate, msg)
		}
	}

	return err
}
