package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates per-session exclusivity across replicas.
// Replies for the same session must never be processed concurrently, so
// the session manager holds a lock for the full read-modify-write of one
// advance call.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired, the context is
	// canceled, or the attempt fails. The returned UnlockFunc MUST be
	// called; the TTL only bounds damage if the holder dies.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
