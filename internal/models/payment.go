package models

import "time"

type Payment struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"-"`
	BookingID   string    `json:"booking_id"`
	Amount      int64     `json:"amount"`
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	UserEmail   string    `json:"user_email,omitempty"`
	PackageName string    `json:"package_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Invoice joins a booking with its successful payment. Payment stays nil
// until the booking settles; callers render a "not yet settled" state then.
type Invoice struct {
	Booking *Booking `json:"booking"`
	Payment *Payment `json:"payment"`
}
