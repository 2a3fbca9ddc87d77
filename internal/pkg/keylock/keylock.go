// Package keylock provides per-key mutual exclusion.
//
// The memory driver serializes callers inside one process. The redis driver
// serializes callers across processes sharing the same redis instance.
package keylock

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// wait timeout elapsed.
var ErrLockTimeout = errors.New("keylock: timed out waiting for lock")

// Locker acquires an exclusive lock for a key.
//
// The returned release function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// WithLock runs fn while holding the lock for key.
func WithLock(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	release, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx)
}
