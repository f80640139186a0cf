package store

import (
	"errors"
	"fmt"

	"ocpihub/internal/models"
)

// ErrNotFound is returned by lookups and patches of absent resources.
var ErrNotFound = errors.New("resource not found")

// ConflictError rejects a write that is older than the stored value while
// downgrades are not allowed. Current carries the untouched stored resource
// so the caller can reconcile.
type ConflictError struct {
	Key     models.SyncKey
	Current models.Syncable
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: earlier update already applied", e.Key.Kind, e.Key.ID)
}

// StructuralError rejects a malformed write: unresolved parent, identifier
// change through a patch, duplicate create-only resource.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string { return e.Reason }

func structural(format string, args ...any) *StructuralError {
	return &StructuralError{Reason: fmt.Sprintf(format, args...)}
}
