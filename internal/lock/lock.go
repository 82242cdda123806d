// Package lock serializes work on a key, in process or across processes via Redis.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned by TryLock when another holder owns the key.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive ownership of a key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
	TryLock(ctx context.Context, key string) (func(), error)
}
