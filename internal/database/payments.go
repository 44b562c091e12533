package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wayfare/internal/models"
)

const paymentColumns = `id, seq, booking_id, amount, method, status, user_email, package_name, created_at`

// FormatPaymentID renders the human-readable id for a sequence value.
func FormatPaymentID(seq int64) string {
	return fmt.Sprintf("%s-%04d", models.PaymentIDPrefix, seq)
}

// NormalizePaymentID upper-cases and trims a caller-supplied payment id.
func NormalizePaymentID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// CreateProcessingPayment inserts the saga-intermediate payment row before
// the gateway is called. A crash leaves it in processing for the reconciler.
func (db *DB) CreateProcessingPayment(ctx context.Context, payment *models.Payment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	seq, err := nextSeq(ctx, tx, "payments")
	if err != nil {
		return err
	}

	now := time.Now()
	query := `INSERT INTO payments (id, seq, booking_id, amount, method, status, user_email, package_name, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		FormatPaymentID(seq),
		seq,
		NormalizeBookingID(payment.BookingID),
		payment.Amount,
		payment.Method,
		models.PaymentProcessing,
		strings.ToLower(strings.TrimSpace(payment.UserEmail)),
		payment.PackageName,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment: %w", err)
	}

	payment.ID = FormatPaymentID(seq)
	payment.Seq = seq
	payment.BookingID = NormalizeBookingID(payment.BookingID)
	payment.Status = models.PaymentProcessing
	payment.CreatedAt = now
	return nil
}

// CompleteSettlement promotes the processing payment to success and confirms
// the booking in one transaction, so the two can never disagree. The version
// check guards against a concurrent writer on the same booking.
func (db *DB) CompleteSettlement(ctx context.Context, paymentID, bookingID string, fromVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		models.PaymentSuccess, paymentID, models.PaymentProcessing)
	if err != nil {
		return fmt.Errorf("failed to promote payment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		models.StatusConfirmed, time.Now(), NormalizeBookingID(bookingID), fromVersion)
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConcurrentModification
	}

	return tx.Commit()
}

// AbortSettlement removes the processing payment after a gateway decline and
// marks the booking failed with a bumped retry counter. No payment record
// survives a declined attempt.
func (db *DB) AbortSettlement(ctx context.Context, paymentID, bookingID string, fromVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM payments WHERE id = ? AND status = ?`,
		paymentID, models.PaymentProcessing); err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, retry_count = retry_count + 1,
		        version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		models.StatusFailed, time.Now(), NormalizeBookingID(bookingID), fromVersion)
	if err != nil {
		return fmt.Errorf("failed to mark booking failed: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConcurrentModification
	}

	return tx.Commit()
}

// DeletePayment removes a payment row outright; the reconciler uses it for
// stale processing rows whose booking never confirmed.
func (db *DB) DeletePayment(ctx context.Context, paymentID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, paymentID)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

// PromotePayment flips a processing payment to success without touching the
// booking; the reconciler uses it when the booking already confirmed.
func (db *DB) PromotePayment(ctx context.Context, paymentID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		models.PaymentSuccess, paymentID, models.PaymentProcessing)
	if err != nil {
		return fmt.Errorf("failed to promote payment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	payment, err := scanPayment(db.QueryRowContext(ctx, query, NormalizePaymentID(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return payment, err
}

// GetSuccessfulPayment returns the first success payment for a booking, or
// ErrNotFound when the booking has not settled.
func (db *DB) GetSuccessfulPayment(ctx context.Context, bookingID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
              WHERE booking_id = ? AND status = ? ORDER BY seq ASC LIMIT 1`
	payment, err := scanPayment(db.QueryRowContext(ctx, query, NormalizeBookingID(bookingID), models.PaymentSuccess))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return payment, err
}

func (db *DB) ListPaymentsByBooking(ctx context.Context, bookingID string) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ? ORDER BY seq ASC`
	rows, err := db.QueryContext(ctx, query, NormalizeBookingID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListStaleProcessingPayments returns processing rows older than the cutoff;
// these are settlements interrupted before their final transaction.
func (db *DB) ListStaleProcessingPayments(ctx context.Context, olderThan time.Time) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
              WHERE status = ? AND created_at < ? ORDER BY seq ASC`
	rows, err := db.QueryContext(ctx, query, models.PaymentProcessing, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]*models.Payment, error) {
	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func scanPayment(s rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	var method, userEmail, packageName sql.NullString
	err := s.Scan(
		&p.ID, &p.Seq, &p.BookingID, &p.Amount, &method, &p.Status,
		&userEmail, &packageName, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	p.Method = method.String
	p.UserEmail = userEmail.String
	p.PackageName = packageName.String
	return p, nil
}
