package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wayfare/internal/models"
)

const bookingColumns = `id, seq, package_id, package_name, destination, travel_date,
	travelers, travelers_details, amount, user_email, notes, status,
	retry_count, created_at, updated_at, version`

// FormatBookingID renders the human-readable id for a sequence value.
func FormatBookingID(seq int64) string {
	return fmt.Sprintf("%s-%03d", models.BookingIDPrefix, seq)
}

// NormalizeBookingID makes id lookups tolerant of case and whitespace; ids
// are always compared as strings.
func NormalizeBookingID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// CreateBooking persists a new booking and assigns its sequence id inside a
// single transaction, so concurrent creates never collide and the numeric
// suffix stays strictly increasing across deletions.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	details, err := json.Marshal(booking.TravelersDetails)
	if err != nil {
		return fmt.Errorf("failed to encode travelers details: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	seq, err := nextSeq(ctx, tx, "bookings")
	if err != nil {
		return err
	}

	now := time.Now()
	query := `INSERT INTO bookings (
				id, seq, package_id, package_name, destination, travel_date,
				travelers, travelers_details, amount, user_email, notes, status,
				retry_count, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		FormatBookingID(seq),
		seq,
		booking.PackageID,
		booking.PackageName,
		booking.Destination,
		booking.TravelDate,
		booking.Travelers,
		string(details),
		booking.Amount,
		strings.ToLower(strings.TrimSpace(booking.UserEmail)),
		booking.Notes,
		models.StatusPending,
		0,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = FormatBookingID(seq)
	booking.Seq = seq
	booking.UserEmail = strings.ToLower(strings.TrimSpace(booking.UserEmail))
	booking.Status = models.StatusPending
	booking.RetryCount = 0
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, NormalizeBookingID(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return booking, err
}

// PatchBooking shallow-merges the patch into the stored record. Amount, id
// and timestamps are not reachable through the patch; status legality is the
// caller's concern.
func (db *DB) PatchBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	id = NormalizeBookingID(id)
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		booking.Status = *patch.Status
	}
	if patch.Notes != nil {
		booking.Notes = *patch.Notes
	}
	if patch.TravelDate != nil {
		booking.TravelDate = *patch.TravelDate
	}
	if patch.TravelersDetails != nil {
		booking.TravelersDetails = *patch.TravelersDetails
	}

	details, err := json.Marshal(booking.TravelersDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to encode travelers details: %w", err)
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, notes = ?, travel_date = ?, travelers_details = ?,
		        updated_at = ?, version = version + 1
         WHERE id = ? AND version = ?`,
		booking.Status, booking.Notes, booking.TravelDate, string(details),
		now, id, booking.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to patch booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking patch: %w", err)
	}

	booking.UpdatedAt = now
	booking.Version++
	return booking, nil
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), NormalizeBookingID(id), fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// sortColumns whitelists ListBookings sort fields.
var sortColumns = map[string]string{
	"id":          "seq",
	"created_at":  "created_at",
	"travel_date": "travel_date",
	"amount":      "amount",
	"status":      "status",
	"travelers":   "travelers",
	"user_email":  "user_email",
	"destination": "destination",
}

// ListBookings returns bookings most-recent-first unless the filter asks for
// another order. Free-text query matches id, owner email and destination.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Query != "" {
		needle := "%" + strings.ToLower(strings.TrimSpace(filter.Query)) + "%"
		conds = append(conds, "(LOWER(id) LIKE ? OR LOWER(user_email) LIKE ? OR LOWER(destination) LIKE ?)")
		args = append(args, needle, needle, needle)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "seq"
		filter.SortDesc = true
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", column, direction)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(s rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var details string
	var userEmail, notes sql.NullString
	err := s.Scan(
		&b.ID, &b.Seq, &b.PackageID, &b.PackageName, &b.Destination, &b.TravelDate,
		&b.Travelers, &details, &b.Amount, &userEmail, &notes, &b.Status,
		&b.RetryCount, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	b.UserEmail = userEmail.String
	b.Notes = notes.String
	if details != "" {
		if err := json.Unmarshal([]byte(details), &b.TravelersDetails); err != nil {
			return nil, fmt.Errorf("failed to decode travelers details for %s: %w", b.ID, err)
		}
	}
	return b, nil
}
