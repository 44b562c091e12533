package domain

import (
	"context"
	"time"

	"wayfare/internal/models"
)

// Store is the durable keyed store behind every component. The sqlite
// implementation lives in internal/database; tests may substitute their own.
type Store interface {
	// identity
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// catalog
	UpsertPackage(ctx context.Context, pkg *models.Package) error
	GetPackageByID(ctx context.Context, id string) (*models.Package, error)
	GetActivePackages(ctx context.Context) ([]*models.Package, error)
	DeactivatePackage(ctx context.Context, id string) error

	// booking ledger
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	PatchBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)

	// payments
	CreateProcessingPayment(ctx context.Context, payment *models.Payment) error
	CompleteSettlement(ctx context.Context, paymentID, bookingID string, fromVersion int64) error
	AbortSettlement(ctx context.Context, paymentID, bookingID string, fromVersion int64) error
	DeletePayment(ctx context.Context, paymentID string) error
	PromotePayment(ctx context.Context, paymentID string) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetSuccessfulPayment(ctx context.Context, bookingID string) (*models.Payment, error)
	ListPaymentsByBooking(ctx context.Context, bookingID string) ([]*models.Payment, error)
	ListStaleProcessingPayments(ctx context.Context, olderThan time.Time) ([]*models.Payment, error)

	// notifications
	AddNotification(ctx context.Context, n *models.Notification, cap int) error
	NotificationIDExists(ctx context.Context, scope, id string) (bool, error)
	ListNotifications(ctx context.Context, scope string) ([]*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, scope string) error

	// wallets
	GetWallet(ctx context.Context, email string) (*models.Wallet, error)
	AppendWalletTransaction(ctx context.Context, email, kind string, amount int64, note string) (*models.Wallet, error)
}

// CoordinationRepository serializes settlements per booking id and signals
// feed changes to observers outside the process.
type CoordinationRepository interface {
	AcquireSettlementLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error)
	ReleaseSettlementLock(ctx context.Context, bookingID string) error
	PublishFeedChange(ctx context.Context, scope string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventPublisher is the in-process change signal.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PaymentGateway is the external settlement boundary; the only call in the
// system with real latency and failure modes.
type PaymentGateway interface {
	Charge(ctx context.Context, paymentID string, amount int64) error
}

// SheetsWriter mirrors bookings into a back-office spreadsheet.
type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
}

// SyncWorker queues back-office synchronization jobs.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking, status string) error
}
