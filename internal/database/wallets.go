package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wayfare/internal/models"
)

// WalletKey normalizes an email into a wallet bucket; empty keys map to the
// shared guest bucket.
func WalletKey(email string) string {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return models.GuestWalletKey
	}
	return key
}

// GetWallet lazily creates a wallet row on first access and returns the
// transaction history with the balance derived from it. Transactions are the
// source of truth; the balance is never stored.
func (db *DB) GetWallet(ctx context.Context, email string) (*models.Wallet, error) {
	key := WalletKey(email)

	_, err := db.ExecContext(ctx,
		`INSERT INTO wallets (key, created_at) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure wallet %s: %w", key, err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, wallet_key, kind, amount, note, created_at
         FROM wallet_transactions WHERE wallet_key = ? ORDER BY id DESC`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	wallet := &models.Wallet{Key: key, Transactions: []models.WalletTransaction{}}
	for rows.Next() {
		var tx models.WalletTransaction
		if err := rows.Scan(&tx.ID, &tx.WalletKey, &tx.Kind, &tx.Amount, &tx.Note, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		switch tx.Kind {
		case models.TxCredit:
			wallet.Balance += tx.Amount
		case models.TxDebit:
			wallet.Balance -= tx.Amount
		}
		wallet.Transactions = append(wallet.Transactions, tx)
	}
	return wallet, rows.Err()
}

// AppendWalletTransaction records a credit or debit and returns the updated
// wallet. Debits beyond the derived balance are rejected inside the
// transaction, so two racing debits cannot both pass the check.
func (db *DB) AppendWalletTransaction(ctx context.Context, email, kind string, amount int64, note string) (*models.Wallet, error) {
	if kind != models.TxCredit && kind != models.TxDebit {
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("transaction amount must be positive, got %d", amount)
	}
	key := WalletKey(email)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (key, created_at) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, now); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet %s: %w", key, err)
	}

	if kind == models.TxDebit {
		var balance int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE -amount END), 0)
             FROM wallet_transactions WHERE wallet_key = ?`,
			models.TxCredit, key).Scan(&balance)
		if err != nil {
			return nil, fmt.Errorf("failed to derive balance: %w", err)
		}
		if balance < amount {
			return nil, ErrInsufficientFunds
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (wallet_key, kind, amount, note, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		key, kind, amount, note, now); err != nil {
		return nil, fmt.Errorf("failed to append wallet transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit wallet transaction: %w", err)
	}

	return db.GetWallet(ctx, key)
}
