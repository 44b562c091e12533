package models

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// ValidBookingStatus reports whether s is a known booking status.
func ValidBookingStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Payment statuses. A payment starts in processing while the gateway call is
// in flight and is promoted to success in the same transaction that confirms
// the booking. Declined attempts never leave a payment row behind.
const (
	PaymentProcessing = "processing"
	PaymentSuccess    = "success"
)

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Wallet transaction kinds.
const (
	TxCredit = "credit"
	TxDebit  = "debit"
)

// Notification scope for the shared back-office feed. Customer feeds use
// "customer:<lowercased email>".
const ScopeAdmin = "admin"

// GuestWalletKey is the bucket used when no email is attached to a wallet call.
const GuestWalletKey = "guest"

const (
	// DefaultFeedCap is the per-scope notification retention bound.
	DefaultFeedCap = 20

	// BookingIDPrefix / PaymentIDPrefix head the human-readable sequence ids.
	BookingIDPrefix = "BKG"
	PaymentIDPrefix = "TXN"

	// WorkerQueueSize is the in-memory sync worker queue bound.
	WorkerQueueSize = 1000
)
