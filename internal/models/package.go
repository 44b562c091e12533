package models

import "time"

// Package is a travel catalog entry. Bookings snapshot name and destination
// at creation time, so catalog edits never rewrite history.
type Package struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	Destination    string    `yaml:"destination" json:"destination"`
	PricePerPerson int64     `yaml:"price_per_person" json:"price_per_person"` // minor units
	DurationDays   int       `yaml:"duration_days" json:"duration_days"`
	Inclusions     []string  `yaml:"inclusions" json:"inclusions,omitempty"`
	Active         bool      `yaml:"active" json:"active"`
	SortOrder      int64     `yaml:"sort_order" json:"sort_order"`
	CreatedAt      time.Time `yaml:"-" json:"created_at"`
	UpdatedAt      time.Time `yaml:"-" json:"updated_at"`
}
