package cache

import (
	"context"
	"sync"
)

// CycleLock serializes reconciliation cycles so two runners never process
// the same ledger concurrently.
type CycleLock interface {
	// Acquire attempts to take the lock. Returns false when another
	// holder has it; the lock self-expires after its TTL if the holder
	// dies without releasing.
	Acquire(ctx context.Context) (bool, error)

	// Release frees the lock. Releasing a lock held by someone else
	// (after expiry and re-acquisition) is a no-op.
	Release(ctx context.Context) error
}

// LocalCycleLock implements CycleLock in process memory. Suitable for
// single-instance deployments and tests; it has no TTL because the lock
// dies with the process.
type LocalCycleLock struct {
	mu sync.Mutex
}

// NewLocalCycleLock creates a new in-process cycle lock.
func NewLocalCycleLock() *LocalCycleLock {
	return &LocalCycleLock{}
}

// Acquire attempts to take the lock without blocking.
func (l *LocalCycleLock) Acquire(_ context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

// Release frees the lock.
func (l *LocalCycleLock) Release(_ context.Context) error {
	l.mu.Unlock()
	return nil
}

// Ensure LocalCycleLock implements CycleLock
var _ CycleLock = (*LocalCycleLock)(nil)
