// Package sessionstore persists session deadlines under well-known keys so
// unrelated surfaces (basket drawer, checkout page) can agree on when a
// price-lock session ends without holding references to each other.
package sessionstore

import "time"

// Deadline is a stored session expiry keyed by purpose. At most one live
// deadline exists per purpose.
type Deadline struct {
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is the shared deadline key-value store. Implementations must be
// safe for concurrent use: multiple observers read and write the same key.
type Store interface {
	// Get returns the stored deadline for purpose, if any.
	Get(purpose string) (Deadline, bool, error)
	// Put stores the deadline, replacing any previous one for the purpose.
	Put(d Deadline) error
	// Delete removes the deadline for purpose. Deleting a missing key is
	// a no-op.
	Delete(purpose string) error
}
