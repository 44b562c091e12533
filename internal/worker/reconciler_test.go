package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/database"
	"wayfare/internal/models"
)

func reconcilerFixture(t *testing.T) (*database.DB, *Reconciler) {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rec := NewReconciler(db, time.Second, time.Minute, logger)
	return db, rec
}

func staleProcessingPayment(t *testing.T, db *database.DB, booking *models.Booking) *models.Payment {
	t.Helper()
	ctx := context.Background()
	payment := &models.Payment{
		BookingID:   booking.ID,
		Amount:      booking.Amount,
		Method:      "card",
		UserEmail:   booking.UserEmail,
		PackageName: booking.PackageName,
	}
	require.NoError(t, db.CreateProcessingPayment(ctx, payment))

	// Backdate the row so the sweep treats it as abandoned.
	_, err := db.ExecContext(ctx,
		`UPDATE payments SET created_at = ? WHERE id = ?`,
		time.Now().Add(-time.Hour), payment.ID)
	require.NoError(t, err)
	return payment
}

func reconcilerBooking(t *testing.T, db *database.DB) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		PackageID:   "bali-7d",
		PackageName: "Bali Escape",
		Destination: "Bali, Indonesia",
		TravelDate:  time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		Travelers:   1,
		TravelersDetails: []models.TravelerDetail{
			{Name: "Ana Reyes", Age: 34},
		},
		Amount:    89900,
		UserEmail: "ana@example.com",
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func TestSweepPromotesPaymentForConfirmedBooking(t *testing.T) {
	db, rec := reconcilerFixture(t)
	ctx := context.Background()

	booking := reconcilerBooking(t, db)
	payment := staleProcessingPayment(t, db, booking)

	// The booking made it to confirmed before the crash.
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusConfirmed))

	rec.SweepOnce(ctx)

	got, err := db.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, got.Status)
}

func TestSweepDiscardsPaymentForUnconfirmedBooking(t *testing.T) {
	db, rec := reconcilerFixture(t)
	ctx := context.Background()

	booking := reconcilerBooking(t, db)
	payment := staleProcessingPayment(t, db, booking)

	rec.SweepOnce(ctx)

	_, err := db.GetPayment(ctx, payment.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	// The booking itself is untouched; the customer can settle again.
	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestSweepIgnoresFreshProcessingPayments(t *testing.T) {
	db, rec := reconcilerFixture(t)
	ctx := context.Background()

	booking := reconcilerBooking(t, db)
	payment := &models.Payment{
		BookingID:   booking.ID,
		Amount:      booking.Amount,
		Method:      "card",
		UserEmail:   booking.UserEmail,
		PackageName: booking.PackageName,
	}
	require.NoError(t, db.CreateProcessingPayment(ctx, payment))

	rec.SweepOnce(ctx)

	got, err := db.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentProcessing, got.Status, "in-flight settlements stay untouched")
}
