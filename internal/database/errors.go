package database

import "errors"

var (
	// ErrNotFound is returned for any absent booking, payment, package,
	// user or wallet key. Callers branch on it instead of catching panics.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification signals a lost optimistic version check.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrAlreadySettled rejects a second settlement of a confirmed booking.
	ErrAlreadySettled = errors.New("booking is already settled")

	// ErrBookingNotSettleable rejects settlement of a cancelled booking.
	ErrBookingNotSettleable = errors.New("booking cannot be settled")

	// ErrPackageInactive rejects new bookings against a deactivated package.
	ErrPackageInactive = errors.New("package is not active")

	// ErrEmailTaken rejects registration with an email that already exists.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrInsufficientFunds rejects a wallet debit beyond the derived balance.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)
