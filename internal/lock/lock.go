// Package lock serializes work on a single key, such as one ticket or one
// bookable resource, across goroutines or across service replicas.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be obtained before the
// context or the configured wait expired.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires exclusive ownership of a key. The returned release func must
// be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// TicketKey names the lock guarding one ticket and its work orders.
func TicketKey(ticketID string) string { return "ticket:" + ticketID }

// ResourceKey names the lock guarding bookings of one resource.
func ResourceKey(resourceID string) string { return "resource:" + resourceID }
