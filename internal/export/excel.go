package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"wayfare/internal/domain"
	"wayfare/internal/invoice"
	"wayfare/internal/models"
)

var headers = []string{"Booking", "Package", "Destination", "Travel date", "Travelers", "Amount", "Customer", "Status", "Created"}

// Service writes booking reports as xlsx files for the back office.
type Service struct {
	store domain.Store
	dir   string
	log   zerolog.Logger
}

func NewService(store domain.Store, dir string, log zerolog.Logger) *Service {
	return &Service{store: store, dir: dir, log: log.With().Str("component", "export").Logger()}
}

// BookingsToFile renders every booking matching the filter into an xlsx file
// under the export directory and returns its path.
func (s *Service) BookingsToFile(ctx context.Context, filter models.BookingFilter) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("list bookings: %w", err)
	}

	f, err := s.build(bookings)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(s.dir, fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save export file: %w", err)
	}

	s.log.Info().Str("file_path", path).Int("rows", len(bookings)).Msg("bookings export created")
	return path, nil
}

// Bookings renders the report in memory for direct download.
func (s *Service) Bookings(ctx context.Context, filter models.BookingFilter) ([]byte, string, error) {
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, "", fmt.Errorf("list bookings: %w", err)
	}

	f, err := s.build(bookings)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write export buffer: %w", err)
	}
	name := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), name, nil
}

func (s *Service) build(bookings []*models.Booking) (*excelize.File, error) {
	f := excelize.NewFile()

	const sheetName = "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for row, b := range bookings {
		values := []interface{}{
			b.ID,
			b.PackageName,
			b.Destination,
			b.TravelDate.Format("2006-01-02"),
			b.Travelers,
			invoice.FormatAmount(b.Amount),
			b.UserEmail,
			b.Status,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "B", "D", 22)
	_ = f.SetColWidth(sheetName, "E", "I", 16)
	_ = f.DeleteSheet("Sheet1")

	return f, nil
}
