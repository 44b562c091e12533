package invoice

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"wayfare/internal/models"
)

// Render produces the invoice PDF for a booking. When the invoice carries a
// settled payment the document shows the transaction; otherwise it is marked
// as awaiting payment.
func Render(inv *models.Invoice) ([]byte, string, error) {
	b := inv.Booking

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Invoice no : INV-"+b.ID)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Issued     : "+time.Now().Format("2006-01-02 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Email : "+safe(b.UserEmail, "-"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Details:")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	desc := fmt.Sprintf("%s (%s), travel date %s, %d traveler(s)",
		safe(b.PackageName, "-"), safe(b.Destination, "-"), b.TravelDate.Format("2006-01-02"), b.Travelers)
	pdf.MultiCell(0, 6, "1) "+desc, "", "", false)
	pdf.Ln(2)

	if b.Travelers > 0 {
		pdf.Cell(0, 6, "Price per traveler: "+FormatAmount(b.Amount/int64(b.Travelers)))
		pdf.Ln(8)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+FormatAmount(b.Amount))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	if p := inv.Payment; p != nil {
		pdf.Cell(0, 7, fmt.Sprintf("Paid via %s, transaction %s on %s",
			safe(p.Method, "-"), p.ID, p.CreatedAt.Format("2006-01-02 15:04")))
	} else {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.Cell(0, 7, "Payment pending. This booking has not been settled yet.")
	}
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Booking "+b.ID+", status: "+b.Status+".", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render invoice pdf: %w", err)
	}

	filename := fmt.Sprintf("INVOICE_%s.pdf", safeFilenamePart(b.ID))
	return buf.Bytes(), filename, nil
}

// FormatAmount renders minor units as a decimal money string.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d USD", sign, minor/100, minor%100)
}

func safe(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func safeFilenamePart(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
