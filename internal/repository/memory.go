package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryCoordinationRepository is the single-process fallback. Locks live in
// a sync.Map with expiry; feed changes need no cross-process signal here
// because in-process observers already ride the event bus.
type MemoryCoordinationRepository struct {
	locks      sync.Map
	rateLimits sync.Map
}

func NewMemoryCoordinationRepository() *MemoryCoordinationRepository {
	return &MemoryCoordinationRepository{}
}

type lockEntry struct {
	expiresAt time.Time
}

func (r *MemoryCoordinationRepository) AcquireSettlementLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	entry := &lockEntry{expiresAt: now.Add(ttl)}

	for {
		actual, loaded := r.locks.LoadOrStore(bookingID, entry)
		if !loaded {
			return true, nil
		}
		existing := actual.(*lockEntry)
		if now.Before(existing.expiresAt) {
			return false, nil
		}
		// Expired holder: replace it and retry the store.
		if r.locks.CompareAndDelete(bookingID, actual) {
			continue
		}
		return false, nil
	}
}

func (r *MemoryCoordinationRepository) ReleaseSettlementLock(ctx context.Context, bookingID string) error {
	r.locks.Delete(bookingID)
	return nil
}

func (r *MemoryCoordinationRepository) PublishFeedChange(ctx context.Context, scope string) error {
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemoryCoordinationRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	// The entry pointer is stable per key, so callers racing on the same key
	// serialize on its mutex rather than losing increments.
	val, _ := r.rateLimits.LoadOrStore(key, &rateLimitEntry{})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
