package service

import (
	"context"
	"errors"
	"fmt"

	"wayfare/internal/database"
	"wayfare/internal/domain"
	"wayfare/internal/models"
)

// InvoiceService projects a booking together with its settling payment.
// The projection is computed on demand; nothing is stored.
type InvoiceService struct {
	store domain.Store
}

func NewInvoiceService(store domain.Store) *InvoiceService {
	return &InvoiceService{store: store}
}

// Get returns the invoice view for a booking. Payment stays nil until the
// booking has been settled.
func (s *InvoiceService) Get(ctx context.Context, bookingID string) (*models.Invoice, error) {
	bookingID = database.NormalizeBookingID(bookingID)
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	payment, err := s.store.GetSuccessfulPayment(ctx, bookingID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("lookup settling payment: %w", err)
	}

	return &models.Invoice{Booking: booking, Payment: payment}, nil
}

// List projects invoices for every booking matching the filter.
func (s *InvoiceService) List(ctx context.Context, filter models.BookingFilter) ([]*models.Invoice, error) {
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}

	invoices := make([]*models.Invoice, 0, len(bookings))
	for _, b := range bookings {
		payment, err := s.store.GetSuccessfulPayment(ctx, b.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("lookup settling payment for %s: %w", b.ID, err)
		}
		invoices = append(invoices, &models.Invoice{Booking: b, Payment: payment})
	}
	return invoices, nil
}
