package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker grants exclusive ownership of a named resource, such as a trigger
// channel shared by several acquisition rigs.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func must be
	// called to release it; the lock also expires after ttl.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
