package models

import (
	"strings"
	"time"
)

// CustomerScope builds the feed key for a customer email. Case variants of
// one address always land in the same feed.
func CustomerScope(email string) string {
	return "customer:" + strings.ToLower(strings.TrimSpace(email))
}

// NormalizeScope lower-cases the email part of a customer scope and passes
// the admin scope through untouched.
func NormalizeScope(scope string) string {
	scope = strings.TrimSpace(scope)
	if after, ok := strings.CutPrefix(scope, "customer:"); ok {
		return CustomerScope(after)
	}
	return strings.ToLower(scope)
}

type Notification struct {
	ID        string    `json:"id"`
	Scope     string    `json:"-"`
	Title     string    `json:"title"`
	TimeLabel string    `json:"time"` // display string, e.g. "14:05, 02 Jan"
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type Wallet struct {
	Key          string              `json:"key"`
	Balance      int64               `json:"balance"` // derived from transactions on read
	Transactions []WalletTransaction `json:"transactions"`
}

type WalletTransaction struct {
	ID        int64     `json:"id"`
	WalletKey string    `json:"-"`
	Kind      string    `json:"kind"` // credit or debit
	Amount    int64     `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
