package postgres

import (
	"strings"

	"github.com/scholarsync/collab-plane/internal/store"
)

// Sentinel errors are shared across store implementations; the aliases
// keep call sites in this package readable.
var (
	ErrNotFound            = store.ErrNotFound
	ErrDuplicateKey        = store.ErrDuplicateKey
	ErrDuplicateDirectRoom = store.ErrDuplicateDirectRoom
	ErrInvalidCredentials  = store.ErrInvalidCredentials
	ErrStaleStatus         = store.ErrStaleStatus
)

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// PostgreSQL error code 23505 is unique_violation
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}
