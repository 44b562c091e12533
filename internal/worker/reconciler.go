package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wayfare/internal/domain"
	"wayfare/internal/models"
)

// Reconciler sweeps payments stuck in processing. A row goes stale when the
// process died between the gateway call and the ledger write: if its booking
// ended up confirmed the payment is promoted, otherwise the attempt is
// discarded.
type Reconciler struct {
	store        domain.Store
	pollInterval time.Duration
	staleAfter   time.Duration
	log          zerolog.Logger
}

func NewReconciler(store domain.Store, pollInterval, staleAfter time.Duration, log zerolog.Logger) *Reconciler {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &Reconciler{
		store:        store,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
		log:          log.With().Str("component", "reconciler").Logger(),
	}
}

// Start runs the sweep loop until ctx is done.
func (r *Reconciler) Start(ctx context.Context) {
	r.log.Info().Dur("poll_interval", r.pollInterval).Msg("reconciler started")
	defer r.log.Info().Msg("reconciler stopped")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepOnce(ctx)
		}
	}
}

// SweepOnce resolves every stale processing payment.
func (r *Reconciler) SweepOnce(ctx context.Context) {
	stale, err := r.store.ListStaleProcessingPayments(ctx, time.Now().Add(-r.staleAfter))
	if err != nil {
		r.log.Error().Err(err).Msg("list stale payments failed")
		return
	}

	for _, p := range stale {
		r.resolve(ctx, p)
	}
}

func (r *Reconciler) resolve(ctx context.Context, p *models.Payment) {
	booking, err := r.store.GetBooking(ctx, p.BookingID)
	if err != nil {
		r.log.Error().Err(err).Str("payment_id", p.ID).Str("booking_id", p.BookingID).Msg("load booking failed")
		return
	}

	if booking.Status == models.StatusConfirmed {
		if err := r.store.PromotePayment(ctx, p.ID); err != nil {
			r.log.Error().Err(err).Str("payment_id", p.ID).Msg("promote stale payment failed")
			return
		}
		r.log.Warn().Str("payment_id", p.ID).Str("booking_id", p.BookingID).Msg("stale payment promoted")
		return
	}

	if err := r.store.DeletePayment(ctx, p.ID); err != nil {
		r.log.Error().Err(err).Str("payment_id", p.ID).Msg("delete stale payment failed")
		return
	}
	r.log.Warn().Str("payment_id", p.ID).Str("booking_id", p.BookingID).Msg("stale payment discarded")
}
