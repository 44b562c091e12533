package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wayfare/internal/database"
	"wayfare/internal/domain"
	"wayfare/internal/events"
	"wayfare/internal/gateway"
	"wayfare/internal/metrics"
	"wayfare/internal/models"
)

const settlementLockTTL = 30 * time.Second

// PaymentService runs the settlement saga: a processing payment row is
// written before the gateway call, and the outcome either promotes it and
// confirms the booking in one transaction or rolls the attempt back.
type PaymentService struct {
	store          domain.Store
	coord          domain.CoordinationRepository
	gw             domain.PaymentGateway
	bus            domain.EventPublisher
	sync           domain.SyncWorker
	feeds          *NotificationService
	gatewayTimeout time.Duration
	log            zerolog.Logger
}

func NewPaymentService(store domain.Store, coord domain.CoordinationRepository, gw domain.PaymentGateway, bus domain.EventPublisher, sync domain.SyncWorker, feeds *NotificationService, gatewayTimeout time.Duration, log zerolog.Logger) *PaymentService {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &PaymentService{
		store:          store,
		coord:          coord,
		gw:             gw,
		bus:            bus,
		sync:           sync,
		feeds:          feeds,
		gatewayTimeout: gatewayTimeout,
		log:            log.With().Str("component", "payment_service").Logger(),
	}
}

// Settle charges the booking's full amount through the gateway and confirms
// the booking. Exactly one attempt per booking runs at a time; a second
// settle against an already-confirmed booking fails with ErrAlreadySettled
// and writes nothing.
func (s *PaymentService) Settle(ctx context.Context, bookingID, method string) (*models.Payment, *models.Booking, error) {
	bookingID = database.NormalizeBookingID(bookingID)
	if method == "" {
		method = "card"
	}

	acquired, err := s.coord.AcquireSettlementLock(ctx, bookingID, settlementLockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire settlement lock: %w", err)
	}
	if !acquired {
		metrics.SettlementsTotal.WithLabelValues("conflict").Inc()
		return nil, nil, ErrSettlementInProgress
	}
	defer func() {
		if rerr := s.coord.ReleaseSettlementLock(context.WithoutCancel(ctx), bookingID); rerr != nil {
			s.log.Warn().Err(rerr).Str("booking_id", bookingID).Msg("settlement lock release failed")
		}
	}()

	started := time.Now()
	payment, booking, err := s.settleLocked(ctx, bookingID, method)
	metrics.SettlementDuration.Observe(time.Since(started).Seconds())
	return payment, booking, err
}

func (s *PaymentService) settleLocked(ctx context.Context, bookingID, method string) (*models.Payment, *models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.Status == models.StatusConfirmed {
		metrics.SettlementsTotal.WithLabelValues("duplicate").Inc()
		return nil, nil, database.ErrAlreadySettled
	}
	if !booking.Settleable() {
		return nil, nil, database.ErrBookingNotSettleable
	}

	payment := &models.Payment{
		BookingID:   booking.ID,
		Amount:      booking.Amount,
		Method:      method,
		UserEmail:   booking.UserEmail,
		PackageName: booking.PackageName,
	}
	if err := s.store.CreateProcessingPayment(ctx, payment); err != nil {
		return nil, nil, fmt.Errorf("open payment: %w", err)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	chargeErr := s.gw.Charge(chargeCtx, payment.ID, payment.Amount)
	cancel()

	if chargeErr != nil {
		return nil, nil, s.abort(ctx, payment, booking, chargeErr)
	}

	if err := s.store.CompleteSettlement(ctx, payment.ID, booking.ID, booking.Version); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			// The booking moved underneath us; drop the attempt entirely.
			if derr := s.store.DeletePayment(context.WithoutCancel(ctx), payment.ID); derr != nil {
				s.log.Error().Err(derr).Str("payment_id", payment.ID).Msg("orphan payment cleanup failed")
			}
			metrics.SettlementsTotal.WithLabelValues("conflict").Inc()
			return nil, nil, err
		}
		metrics.SettlementsTotal.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("complete settlement: %w", err)
	}

	payment, err = s.store.GetPayment(ctx, payment.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload payment: %w", err)
	}
	booking, err = s.store.GetBooking(ctx, booking.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload booking: %w", err)
	}

	metrics.SettlementsTotal.WithLabelValues("success").Inc()
	s.log.Info().
		Str("booking_id", booking.ID).
		Str("payment_id", payment.ID).
		Int64("amount", payment.Amount).
		Msg("settlement completed")

	_ = s.bus.PublishJSON(events.EventBookingConfirmed, events.BookingEventPayload{
		BookingID:   booking.ID,
		PackageID:   booking.PackageID,
		PackageName: booking.PackageName,
		UserEmail:   booking.UserEmail,
		Status:      booking.Status,
		Amount:      booking.Amount,
		PaymentID:   payment.ID,
	})
	if s.sync != nil {
		s.sync.EnqueueTask(ctx, models.TaskTypeStatusUpdate, booking, booking.Status)
	}
	if s.feeds != nil {
		s.feeds.NotifyBooking(ctx, booking,
			fmt.Sprintf("Payment %s received, booking %s confirmed", payment.ID, booking.ID),
			fmt.Sprintf("Booking %s settled via %s (%s)", booking.ID, method, payment.ID))
	}
	return payment, booking, nil
}

// abort unwinds a failed attempt: the processing payment is removed and the
// booking is marked failed so the customer can retry.
func (s *PaymentService) abort(ctx context.Context, payment *models.Payment, booking *models.Booking, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.AbortSettlement(ctx, payment.ID, booking.ID, booking.Version); err != nil {
		s.log.Error().Err(err).
			Str("payment_id", payment.ID).
			Str("booking_id", booking.ID).
			Msg("settlement abort failed, reconciler will sweep")
	}

	outcome := "error"
	if errors.Is(cause, gateway.ErrDeclined) {
		outcome = "declined"
	} else if errors.Is(cause, context.DeadlineExceeded) {
		outcome = "timeout"
	}
	metrics.SettlementsTotal.WithLabelValues(outcome).Inc()
	s.log.Warn().Err(cause).
		Str("booking_id", booking.ID).
		Str("outcome", outcome).
		Msg("settlement failed")

	_ = s.bus.PublishJSON(events.EventSettlementFailed, events.BookingEventPayload{
		BookingID:   booking.ID,
		PackageID:   booking.PackageID,
		PackageName: booking.PackageName,
		UserEmail:   booking.UserEmail,
		Status:      models.StatusFailed,
		Amount:      booking.Amount,
	})
	// Failed attempts surface through the API response and the retryable
	// failed status; the feeds only announce settled bookings.
	return fmt.Errorf("charge booking %s: %w", booking.ID, cause)
}

// ListForBooking returns every payment recorded against the booking.
func (s *PaymentService) ListForBooking(ctx context.Context, bookingID string) ([]*models.Payment, error) {
	return s.store.ListPaymentsByBooking(ctx, database.NormalizeBookingID(bookingID))
}
