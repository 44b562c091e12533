package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wayfare/internal/database"
	"wayfare/internal/domain"
	"wayfare/internal/events"
	"wayfare/internal/models"
)

// CreateBookingInput carries everything the ledger needs to open a booking.
// Package name, destination and amount are snapshotted from the catalog at
// creation time, never taken from the caller.
type CreateBookingInput struct {
	PackageID        string
	TravelDate       string
	Travelers        int
	TravelersDetails []models.TravelerDetail
	UserEmail        string
	Notes            string
}

type BookingService struct {
	store  domain.Store
	bus    domain.EventPublisher
	sync   domain.SyncWorker
	wallet *WalletService
	feeds  *NotificationService
	log    zerolog.Logger
}

func NewBookingService(store domain.Store, bus domain.EventPublisher, sync domain.SyncWorker, wallet *WalletService, feeds *NotificationService, log zerolog.Logger) *BookingService {
	return &BookingService{
		store:  store,
		bus:    bus,
		sync:   sync,
		wallet: wallet,
		feeds:  feeds,
		log:    log.With().Str("component", "booking_service").Logger(),
	}
}

func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	travelDate, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	pkg, err := s.store.GetPackageByID(ctx, in.PackageID)
	if err != nil {
		if err == database.ErrNotFound {
			return nil, ValidationError{Field: "package_id", Msg: "unknown package"}
		}
		return nil, fmt.Errorf("resolve package: %w", err)
	}
	if !pkg.Active {
		return nil, database.ErrPackageInactive
	}

	booking := &models.Booking{
		PackageID:        pkg.ID,
		PackageName:      pkg.Name,
		Destination:      pkg.Destination,
		TravelDate:       travelDate,
		Travelers:        in.Travelers,
		TravelersDetails: in.TravelersDetails,
		Amount:           pkg.PricePerPerson * int64(in.Travelers),
		UserEmail:        strings.ToLower(strings.TrimSpace(in.UserEmail)),
		Notes:            in.Notes,
		Status:           models.StatusPending,
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	_ = s.bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{
		BookingID:   booking.ID,
		PackageID:   booking.PackageID,
		PackageName: booking.PackageName,
		UserEmail:   booking.UserEmail,
		Status:      booking.Status,
		Amount:      booking.Amount,
	})
	if s.sync != nil {
		s.sync.EnqueueTask(ctx, models.TaskTypeUpsert, booking, booking.Status)
	}
	if s.feeds != nil {
		s.feeds.NotifyBooking(ctx, booking,
			fmt.Sprintf("Booking %s created for %s", booking.ID, booking.PackageName),
			fmt.Sprintf("New booking %s: %s, %d traveler(s)", booking.ID, booking.PackageName, booking.Travelers))
	}

	s.log.Info().
		Str("booking_id", booking.ID).
		Str("package_id", booking.PackageID).
		Int64("amount", booking.Amount).
		Msg("booking created")
	return booking, nil
}

func (s *BookingService) validate(in CreateBookingInput) (time.Time, error) {
	if strings.TrimSpace(in.PackageID) == "" {
		return time.Time{}, ValidationError{Field: "package_id", Msg: "required"}
	}
	if strings.TrimSpace(in.TravelDate) == "" {
		return time.Time{}, ValidationError{Field: "travel_date", Msg: "required"}
	}
	travelDate, err := time.Parse("2006-01-02", in.TravelDate)
	if err != nil {
		return time.Time{}, ValidationError{Field: "travel_date", Msg: "must be YYYY-MM-DD"}
	}
	if in.Travelers < 1 {
		return time.Time{}, ValidationError{Field: "travelers", Msg: "must be at least 1"}
	}
	if len(in.TravelersDetails) != in.Travelers {
		return time.Time{}, ValidationError{Field: "travelers_details", Msg: fmt.Sprintf("expected %d entries, got %d", in.Travelers, len(in.TravelersDetails))}
	}
	for i, d := range in.TravelersDetails {
		if strings.TrimSpace(d.Name) == "" {
			return time.Time{}, ValidationError{Field: fmt.Sprintf("travelers_details[%d].name", i), Msg: "required"}
		}
		if d.Age <= 0 {
			return time.Time{}, ValidationError{Field: fmt.Sprintf("travelers_details[%d].age", i), Msg: "must be positive"}
		}
	}
	return travelDate, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.store.GetBooking(ctx, database.NormalizeBookingID(id))
}

func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	return s.store.ListBookings(ctx, filter)
}

// Patch applies a partial update. Amount and identity fields are not
// patchable; the store enforces that by only merging the patch fields.
func (s *BookingService) Patch(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error) {
	if patch.Status != nil && !models.ValidBookingStatus(*patch.Status) {
		return nil, ValidationError{Field: "status", Msg: "unknown status"}
	}
	if patch.TravelDate != nil && patch.TravelDate.IsZero() {
		return nil, ValidationError{Field: "travel_date", Msg: "must be a valid date"}
	}

	booking, err := s.store.PatchBooking(ctx, database.NormalizeBookingID(id), patch)
	if err != nil {
		return nil, err
	}
	if s.sync != nil {
		s.sync.EnqueueTask(ctx, models.TaskTypeStatusUpdate, booking, booking.Status)
	}
	return booking, nil
}

// Cancel moves a booking to cancelled. Cancelling a confirmed booking
// records a compensating refund credit on the customer's wallet.
func (s *BookingService) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	id = database.NormalizeBookingID(id)
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.StatusCancelled {
		return booking, nil
	}

	// The refund decision depends on the status read above, so the write is
	// guarded by the version we saw. A settle landing in between surfaces as
	// a conflict instead of being overwritten.
	wasConfirmed := booking.Status == models.StatusConfirmed
	if err := s.store.UpdateBookingStatusWithVersion(ctx, id, booking.Version, models.StatusCancelled); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCancelled
	booking.Version++
	booking.UpdatedAt = time.Now()

	if wasConfirmed && s.wallet != nil {
		note := fmt.Sprintf("Refund for cancelled booking %s", booking.ID)
		if _, werr := s.wallet.Credit(ctx, booking.UserEmail, booking.Amount, note); werr != nil {
			s.log.Error().Err(werr).Str("booking_id", booking.ID).Msg("refund credit failed")
		}
	}

	_ = s.bus.PublishJSON(events.EventBookingCancelled, events.BookingEventPayload{
		BookingID:   booking.ID,
		PackageID:   booking.PackageID,
		PackageName: booking.PackageName,
		UserEmail:   booking.UserEmail,
		Status:      booking.Status,
		Amount:      booking.Amount,
	})
	if s.sync != nil {
		s.sync.EnqueueTask(ctx, models.TaskTypeStatusUpdate, booking, booking.Status)
	}
	if s.feeds != nil {
		s.feeds.NotifyBooking(ctx, booking,
			fmt.Sprintf("Booking %s cancelled", booking.ID),
			fmt.Sprintf("Booking %s (%s) was cancelled", booking.ID, booking.PackageName))
	}
	return booking, nil
}
