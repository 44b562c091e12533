package models

import "time"

// TravelerDetail is one traveler on a booking. Name and age are mandatory,
// the rest is whatever the front desk collected.
type TravelerDetail struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Contact  string `json:"contact,omitempty"`
	Passport string `json:"passport,omitempty"`
}

type Booking struct {
	ID               string           `json:"id"`
	Seq              int64            `json:"-"`
	PackageID        string           `json:"package_id"`
	PackageName      string           `json:"package_name"`
	Destination      string           `json:"destination"`
	TravelDate       time.Time        `json:"travel_date"`
	Travelers        int              `json:"travelers"`
	TravelersDetails []TravelerDetail `json:"travelers_details"`
	Amount           int64            `json:"amount"` // minor currency units, fixed at creation
	UserEmail        string           `json:"user_email,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Status           string           `json:"status"`
	RetryCount       int64            `json:"retry_count"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int64            `json:"version"`
}

// Settleable reports whether a settlement attempt may start for this booking.
// Failed bookings stay retryable; confirmed and cancelled are terminal.
func (b *Booking) Settleable() bool {
	return b.Status == StatusPending || b.Status == StatusFailed
}

// BookingPatch is the shallow merge contract shared by every booking writer.
// Nil fields are left untouched; amount, id and created_at are never patchable.
type BookingPatch struct {
	Status           *string           `json:"status,omitempty"`
	Notes            *string           `json:"notes,omitempty"`
	TravelDate       *time.Time        `json:"travel_date,omitempty"`
	TravelersDetails *[]TravelerDetail `json:"travelers_details,omitempty"`
}

// BookingFilter drives admin listing. Query matches id, owner email and
// destination case-insensitively.
type BookingFilter struct {
	Status   string
	Query    string
	SortBy   string
	SortDesc bool
}
