package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/database"
	"wayfare/internal/domain"
	"wayfare/internal/events"
	"wayfare/internal/gateway"
	"wayfare/internal/models"
	"wayfare/internal/repository"
)

type settleEnv struct {
	db    *database.DB
	bus   *events.EventBus
	coord domain.CoordinationRepository
	feeds *NotificationService
}

func newSettleEnv(t *testing.T) *settleEnv {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewEventBus()
	coord := repository.NewMemoryCoordinationRepository()
	feeds := NewNotificationService(db, bus, coord, 20, logger)
	return &settleEnv{db: db, bus: bus, coord: coord, feeds: feeds}
}

func (e *settleEnv) paymentService(t *testing.T, gw domain.PaymentGateway) *PaymentService {
	t.Helper()
	return NewPaymentService(e.db, e.coord, gw, e.bus, nil, e.feeds, 2*time.Second, zerolog.New(os.Stdout))
}

func (e *settleEnv) createBooking(t *testing.T, email string) *models.Booking {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.db.UpsertPackage(ctx, &models.Package{
		ID:             "bali-7d",
		Name:           "Bali Escape",
		Destination:    "Bali, Indonesia",
		PricePerPerson: 89900,
		DurationDays:   7,
		Active:         true,
	}))

	booking := &models.Booking{
		PackageID:   "bali-7d",
		PackageName: "Bali Escape",
		Destination: "Bali, Indonesia",
		TravelDate:  time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		Travelers:   2,
		TravelersDetails: []models.TravelerDetail{
			{Name: "Ana Reyes", Age: 34},
			{Name: "Luis Reyes", Age: 36},
		},
		Amount:    179800,
		UserEmail: email,
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))
	return booking
}

func TestSettleHappyPath(t *testing.T) {
	env := newSettleEnv(t)
	svc := env.paymentService(t, gateway.Static{})
	ctx := context.Background()

	booking := env.createBooking(t, "ana@example.com")

	payment, settled, err := svc.Settle(ctx, booking.ID, "card")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, booking.Amount, payment.Amount)
	assert.Equal(t, booking.ID, payment.BookingID)
	assert.Equal(t, models.StatusConfirmed, settled.Status)

	// Fan-out reached both feeds.
	adminFeed, err := env.db.ListNotifications(ctx, models.ScopeAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, adminFeed)

	customerFeed, err := env.db.ListNotifications(ctx, models.CustomerScope("ana@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, customerFeed)
}

func TestSettleDeclinedMarksBookingFailed(t *testing.T) {
	env := newSettleEnv(t)
	svc := env.paymentService(t, gateway.Static{Err: gateway.ErrDeclined})
	ctx := context.Background()

	booking := env.createBooking(t, "ana@example.com")

	_, _, err := svc.Settle(ctx, booking.ID, "card")
	require.ErrorIs(t, err, gateway.ErrDeclined)

	got, err := env.db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, int64(1), got.RetryCount)

	payments, err := env.db.ListPaymentsByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Empty(t, payments, "no payment record survives a decline")

	// A decline is reported to the caller only; the feeds stay quiet.
	adminFeed, err := env.db.ListNotifications(ctx, models.ScopeAdmin)
	require.NoError(t, err)
	assert.Empty(t, adminFeed)

	customerFeed, err := env.db.ListNotifications(ctx, models.CustomerScope("ana@example.com"))
	require.NoError(t, err)
	assert.Empty(t, customerFeed)
}

func TestSettleFailedBookingIsRetryable(t *testing.T) {
	env := newSettleEnv(t)
	ctx := context.Background()

	booking := env.createBooking(t, "ana@example.com")

	declined := env.paymentService(t, gateway.Static{Err: gateway.ErrDeclined})
	_, _, err := declined.Settle(ctx, booking.ID, "card")
	require.ErrorIs(t, err, gateway.ErrDeclined)

	accepted := env.paymentService(t, gateway.Static{})
	payment, settled, err := accepted.Settle(ctx, booking.ID, "card")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, models.StatusConfirmed, settled.Status)
}

func TestSettleTwiceReturnsAlreadySettled(t *testing.T) {
	env := newSettleEnv(t)
	svc := env.paymentService(t, gateway.Static{})
	ctx := context.Background()

	booking := env.createBooking(t, "ana@example.com")

	_, _, err := svc.Settle(ctx, booking.ID, "card")
	require.NoError(t, err)

	_, _, err = svc.Settle(ctx, booking.ID, "card")
	assert.ErrorIs(t, err, database.ErrAlreadySettled)

	payments, err := env.db.ListPaymentsByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "idempotence guard writes nothing on the second call")
}

func TestSettleCancelledBookingRejected(t *testing.T) {
	env := newSettleEnv(t)
	svc := env.paymentService(t, gateway.Static{})
	ctx := context.Background()

	booking := env.createBooking(t, "ana@example.com")
	status := models.StatusCancelled
	_, err := env.db.PatchBooking(ctx, booking.ID, models.BookingPatch{Status: &status})
	require.NoError(t, err)

	_, _, err = svc.Settle(ctx, booking.ID, "card")
	assert.ErrorIs(t, err, database.ErrBookingNotSettleable)
}

func TestSettleUnknownBooking(t *testing.T) {
	env := newSettleEnv(t)
	svc := env.paymentService(t, gateway.Static{})

	_, _, err := svc.Settle(context.Background(), "BKG-999", "card")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestConcurrentSettlesProduceOneConfirmation(t *testing.T) {
	env := newSettleEnv(t)
	svc := env.paymentService(t, gateway.Static{Delay: 50 * time.Millisecond})
	ctx := context.Background()

	booking := env.createBooking(t, "ana@example.com")

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Settle(ctx, booking.ID, "card")
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrSettlementInProgress),
			errors.Is(err, database.ErrAlreadySettled):
		default:
			t.Fatalf("unexpected settle error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one attempt may confirm")

	payments, err := env.db.ListPaymentsByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	got, err := env.db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
}
