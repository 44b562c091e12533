package repository

import (
	"context"
	"sync/atomic"
	"time"

	"wayfare/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverCoordinationRepository prefers the primary (redis) and falls back
// to the in-memory repository when it errors, probing for recovery once a
// minute. Lock safety degrades to single-process scope while failed over.
type FailoverCoordinationRepository struct {
	primary   domain.CoordinationRepository
	fallback  domain.CoordinationRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverCoordinationRepository(primary, fallback domain.CoordinationRepository, logger *zerolog.Logger) *FailoverCoordinationRepository {
	return &FailoverCoordinationRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCoordinationRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary coordination repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverCoordinationRepository) shouldProbe() bool {
	return r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverCoordinationRepository) AcquireSettlementLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		ok, err := r.primary.AcquireSettlementLock(ctx, bookingID, ttl)
		if err == nil {
			r.isDown.Store(false)
			return ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.AcquireSettlementLock(ctx, bookingID, ttl)
}

func (r *FailoverCoordinationRepository) ReleaseSettlementLock(ctx context.Context, bookingID string) error {
	if !r.isDown.Load() {
		if err := r.primary.ReleaseSettlementLock(ctx, bookingID); err == nil {
			return nil
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.ReleaseSettlementLock(ctx, bookingID)
}

func (r *FailoverCoordinationRepository) PublishFeedChange(ctx context.Context, scope string) error {
	if !r.isDown.Load() || r.shouldProbe() {
		err := r.primary.PublishFeedChange(ctx, scope)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.PublishFeedChange(ctx, scope)
}

func (r *FailoverCoordinationRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		ok, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

var _ domain.CoordinationRepository = (*FailoverCoordinationRepository)(nil)
var _ domain.CoordinationRepository = (*RedisCoordinationRepository)(nil)
var _ domain.CoordinationRepository = (*MemoryCoordinationRepository)(nil)
