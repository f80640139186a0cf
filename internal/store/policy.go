package store

import (
	"ocpihub/internal/models"
)

// ShouldAccept decides whether an incoming write supersedes the stored
// value. Creation is always accepted; updates only when strictly newer,
// unless the caller explicitly allows a downgrade. Pure timestamp
// comparison, never fails.
func ShouldAccept(existing, incoming models.Syncable, allowDowngrade bool) bool {
	if existing == nil {
		return true
	}
	if allowDowngrade {
		return true
	}
	return incoming.Version().After(existing.Version())
}
