package export

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wayfare/internal/database"
	"wayfare/internal/models"
)

func exportFixture(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := NewService(db, t.TempDir(), logger)
	return svc, db
}

func seedBooking(t *testing.T, db *database.DB, email string) *models.Booking {
	t.Helper()
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
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func TestBookingsToFileWritesWorkbook(t *testing.T) {
	svc, db := exportFixture(t)
	booking := seedBooking(t, db, "ana@example.com")

	path, err := svc.BookingsToFile(context.Background(), models.BookingFilter{})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one booking")

	assert.Equal(t, "Booking", rows[0][0])
	assert.Equal(t, booking.ID, rows[1][0])
	assert.Equal(t, "Bali Escape", rows[1][1])
	assert.Equal(t, "1798.00 USD", rows[1][5])
	assert.Equal(t, "ana@example.com", rows[1][6])
}

func TestBookingsBufferHonorsFilter(t *testing.T) {
	svc, db := exportFixture(t)
	seedBooking(t, db, "ana@example.com")
	other := seedBooking(t, db, "luis@example.com")

	data, name, err := svc.Bookings(context.Background(), models.BookingFilter{Query: "luis"})
	require.NoError(t, err)
	assert.Contains(t, name, ".xlsx")
	assert.NotEmpty(t, data)

	tmp := t.TempDir() + "/check.xlsx"
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	f, err := excelize.OpenFile(tmp)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, other.ID, rows[1][0])
}
