package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/models"
)

func sampleInvoice(settled bool) *models.Invoice {
	booking := &models.Booking{
		ID:          "BKG-007",
		PackageID:   "bali-7d",
		PackageName: "Bali Escape",
		Destination: "Bali, Indonesia",
		TravelDate:  time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		Travelers:   2,
		Amount:      179800,
		UserEmail:   "ana@example.com",
		Status:      models.StatusPending,
	}
	inv := &models.Invoice{Booking: booking}
	if settled {
		booking.Status = models.StatusConfirmed
		inv.Payment = &models.Payment{
			ID:        "TXN-0001",
			BookingID: booking.ID,
			Amount:    booking.Amount,
			Method:    "card",
			Status:    models.PaymentSuccess,
			CreatedAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		}
	}
	return inv
}

func TestRenderSettledInvoice(t *testing.T) {
	data, name, err := Render(sampleInvoice(true))
	require.NoError(t, err)

	assert.Equal(t, "INVOICE_BKG-007.pdf", name)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderUnsettledInvoice(t *testing.T) {
	data, _, err := Render(sampleInvoice(false))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1798.00 USD", FormatAmount(179800))
	assert.Equal(t, "0.05 USD", FormatAmount(5))
	assert.Equal(t, "0.00 USD", FormatAmount(0))
	assert.Equal(t, "-12.34 USD", FormatAmount(-1234))
}
