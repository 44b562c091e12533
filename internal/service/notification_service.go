package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wayfare/internal/domain"
	"wayfare/internal/events"
	"wayfare/internal/metrics"
	"wayfare/internal/models"
)

const idCollisionRetries = 5

// NotificationService fans messages out to capped per-scope feeds and
// signals every change both in-process and over the coordination channel.
type NotificationService struct {
	store   domain.Store
	bus     domain.EventPublisher
	coord   domain.CoordinationRepository
	feedCap int
	log     zerolog.Logger
}

func NewNotificationService(store domain.Store, bus domain.EventPublisher, coord domain.CoordinationRepository, feedCap int, log zerolog.Logger) *NotificationService {
	if feedCap <= 0 {
		feedCap = models.DefaultFeedCap
	}
	return &NotificationService{
		store:   store,
		bus:     bus,
		coord:   coord,
		feedCap: feedCap,
		log:     log.With().Str("component", "notification_service").Logger(),
	}
}

// Add appends a notification to the scope's feed, trimming it to the cap.
// Ids combine a millisecond timestamp with a random suffix; on the remote
// chance of a collision within the scope a fresh suffix is drawn.
func (s *NotificationService) Add(ctx context.Context, scope, title string) (*models.Notification, error) {
	scope = models.NormalizeScope(scope)
	if scope == "" {
		return nil, ValidationError{Field: "scope", Msg: "required"}
	}
	if title == "" {
		return nil, ValidationError{Field: "title", Msg: "required"}
	}

	var id string
	for attempt := 0; ; attempt++ {
		id = newNotificationID()
		exists, err := s.store.NotificationIDExists(ctx, scope, id)
		if err != nil {
			return nil, fmt.Errorf("check notification id: %w", err)
		}
		if !exists {
			break
		}
		if attempt >= idCollisionRetries {
			return nil, fmt.Errorf("notification id collision persisted after %d attempts", idCollisionRetries)
		}
	}

	n := &models.Notification{
		ID:        id,
		Scope:     scope,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := s.store.AddNotification(ctx, n, s.feedCap); err != nil {
		return nil, fmt.Errorf("add notification: %w", err)
	}

	kind := "admin"
	if strings.HasPrefix(scope, "customer:") {
		kind = "customer"
	}
	metrics.NotificationsEmitted.WithLabelValues(kind).Inc()

	s.signalChange(ctx, scope)
	return n, nil
}

func newNotificationID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// List returns the scope's feed, most recent first, at most the cap entries.
func (s *NotificationService) List(ctx context.Context, scope string) ([]*models.Notification, error) {
	return s.store.ListNotifications(ctx, models.NormalizeScope(scope))
}

// MarkAllRead flips every unread entry in the scope and signals the change.
func (s *NotificationService) MarkAllRead(ctx context.Context, scope string) error {
	scope = models.NormalizeScope(scope)
	if err := s.store.MarkAllNotificationsRead(ctx, scope); err != nil {
		return err
	}
	s.signalChange(ctx, scope)
	return nil
}

// NotifyBooking writes the customer-facing message to the customer's feed
// and the back-office message to the admin feed. Failures are logged and
// swallowed; feeds never block the calling flow.
func (s *NotificationService) NotifyBooking(ctx context.Context, booking *models.Booking, customerTitle, adminTitle string) {
	if booking.UserEmail != "" {
		if _, err := s.Add(ctx, models.CustomerScope(booking.UserEmail), customerTitle); err != nil {
			s.log.Error().Err(err).Str("booking_id", booking.ID).Msg("customer notification failed")
		}
	}
	if _, err := s.Add(ctx, models.ScopeAdmin, adminTitle); err != nil {
		s.log.Error().Err(err).Str("booking_id", booking.ID).Msg("admin notification failed")
	}
}

func (s *NotificationService) signalChange(ctx context.Context, scope string) {
	_ = s.bus.PublishJSON(events.EventNotificationsChange, events.FeedEventPayload{Scope: scope})
	if s.coord != nil {
		if err := s.coord.PublishFeedChange(ctx, scope); err != nil {
			s.log.Debug().Err(err).Str("scope", scope).Msg("feed change publish failed")
		}
	}
}
