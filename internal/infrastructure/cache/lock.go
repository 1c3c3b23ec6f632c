package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orderflow-backend/pkg/cache"
)

// Locker provides short-lived mutual exclusion on top of the cache.
// Used to serialize cart merges per user and to fence webhook replays.
type Locker struct {
	cache cache.Cache
}

func NewLocker(c cache.Cache) *Locker {
	return &Locker{cache: c}
}

// Acquire tries to take the lock named by key for ttl.
// Returns a release func on success, ErrLockHeld when another holder owns it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()

	ok, err := l.cache.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		// Only delete if we still hold it. The TTL bounds the damage
		// if the check races with expiry.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		var current string
		found, err := l.cache.Get(rctx, key, &current)
		if err != nil || !found || current != token {
			return
		}
		_ = l.cache.Delete(rctx, key)
	}
	return release, nil
}

// ErrLockHeld is returned when the lock is owned by another caller.
var ErrLockHeld = fmt.Errorf("lock is held by another process")
