package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testBooking(email string) *models.Booking {
	return &models.Booking{
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
}

func TestCreateBookingAssignsSequentialIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := testBooking("ana@example.com")
	require.NoError(t, db.CreateBooking(ctx, first))
	assert.Equal(t, "BKG-001", first.ID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, models.StatusPending, first.Status)
	assert.Equal(t, int64(1), first.Version)

	second := testBooking("luis@example.com")
	require.NoError(t, db.CreateBooking(ctx, second))
	assert.Equal(t, "BKG-002", second.ID)
}

func TestBookingIDsNeverReusedAfterDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := testBooking("a@example.com")
	require.NoError(t, db.CreateBooking(ctx, first))
	second := testBooking("b@example.com")
	require.NoError(t, db.CreateBooking(ctx, second))

	// Remove the newest row; the counter must not rewind.
	_, err := db.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", second.ID)
	require.NoError(t, err)

	third := testBooking("c@example.com")
	require.NoError(t, db.CreateBooking(ctx, third))
	assert.Equal(t, "BKG-003", third.ID)
}

func TestGetBookingNormalizesID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := testBooking("ana@example.com")
	require.NoError(t, db.CreateBooking(ctx, booking))

	got, err := db.GetBooking(ctx, "  bkg-001 ")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)
	assert.Equal(t, booking.Amount, got.Amount)
	assert.Len(t, got.TravelersDetails, 2)

	_, err = db.GetBooking(ctx, "BKG-999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatchBookingMergesOnlyProvidedFields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := testBooking("ana@example.com")
	require.NoError(t, db.CreateBooking(ctx, booking))

	notes := "window seats requested"
	patched, err := db.PatchBooking(ctx, booking.ID, models.BookingPatch{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, notes, patched.Notes)
	assert.Equal(t, models.StatusPending, patched.Status)
	assert.Equal(t, booking.Amount, patched.Amount)
	assert.Equal(t, booking.Travelers, patched.Travelers)
	assert.Equal(t, int64(2), patched.Version)

	status := models.StatusCancelled
	patched, err = db.PatchBooking(ctx, booking.ID, models.BookingPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, patched.Status)
	assert.Equal(t, notes, patched.Notes, "earlier patch must survive")
}

func TestPatchBookingCannotChangeAmount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := testBooking("ana@example.com")
	require.NoError(t, db.CreateBooking(ctx, booking))

	details := []models.TravelerDetail{{Name: "Solo Traveler", Age: 40}}
	patched, err := db.PatchBooking(ctx, booking.ID, models.BookingPatch{TravelersDetails: &details})
	require.NoError(t, err)

	assert.Equal(t, booking.Amount, patched.Amount, "amount is fixed at creation")
	assert.Len(t, patched.TravelersDetails, 1)
}

func TestUpdateBookingStatusWithVersionConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := testBooking("ana@example.com")
	require.NoError(t, db.CreateBooking(ctx, booking))

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, booking.ID, 1, models.StatusConfirmed))

	// Stale version loses.
	err := db.UpdateBookingStatusWithVersion(ctx, booking.ID, 1, models.StatusCancelled)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
}

func TestListBookingsFilterAndSort(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	emails := []string{"ana@example.com", "luis@example.com", "mia@example.com"}
	for _, email := range emails {
		require.NoError(t, db.CreateBooking(ctx, testBooking(email)))
	}
	status := models.StatusCancelled
	_, err := db.PatchBooking(ctx, "BKG-002", models.BookingPatch{Status: &status})
	require.NoError(t, err)

	t.Run("default order is newest first", func(t *testing.T) {
		all, err := db.ListBookings(ctx, models.BookingFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "BKG-003", all[0].ID)
		assert.Equal(t, "BKG-001", all[2].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		cancelled, err := db.ListBookings(ctx, models.BookingFilter{Status: models.StatusCancelled})
		require.NoError(t, err)
		require.Len(t, cancelled, 1)
		assert.Equal(t, "BKG-002", cancelled[0].ID)
	})

	t.Run("query matches email case-insensitively", func(t *testing.T) {
		found, err := db.ListBookings(ctx, models.BookingFilter{Query: "LUIS"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "luis@example.com", found[0].UserEmail)
	})

	t.Run("explicit ascending sort", func(t *testing.T) {
		asc, err := db.ListBookings(ctx, models.BookingFilter{SortBy: "id"})
		require.NoError(t, err)
		require.Len(t, asc, 3)
		assert.Equal(t, "BKG-001", asc[0].ID)
	})
}
