package service

import (
	"context"

	"github.com/rs/zerolog"

	"wayfare/internal/domain"
	"wayfare/internal/models"
)

// WalletService exposes the per-customer credit ledger. Balances are never
// stored; the store derives them from the transaction log on every read.
type WalletService struct {
	store domain.Store
	log   zerolog.Logger
}

func NewWalletService(store domain.Store, log zerolog.Logger) *WalletService {
	return &WalletService{store: store, log: log.With().Str("component", "wallet_service").Logger()}
}

// Get returns the wallet for the email, creating an empty one on first touch.
func (s *WalletService) Get(ctx context.Context, email string) (*models.Wallet, error) {
	return s.store.GetWallet(ctx, email)
}

func (s *WalletService) Credit(ctx context.Context, email string, amount int64, note string) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, ValidationError{Field: "amount", Msg: "must be positive"}
	}
	w, err := s.store.AppendWalletTransaction(ctx, email, models.TxCredit, amount, note)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wallet", w.Key).Int64("amount", amount).Msg("wallet credited")
	return w, nil
}

// Debit fails with ErrInsufficientFunds when the derived balance would go
// negative; the check and the append happen in one store transaction.
func (s *WalletService) Debit(ctx context.Context, email string, amount int64, note string) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, ValidationError{Field: "amount", Msg: "must be positive"}
	}
	w, err := s.store.AppendWalletTransaction(ctx, email, models.TxDebit, amount, note)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wallet", w.Key).Int64("amount", amount).Msg("wallet debited")
	return w, nil
}
