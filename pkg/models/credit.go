package models

import "time"

// CreditAccount tracks a user's usage budget. The balance is a non-negative
// integer number of credits; a debit that would take it negative is rejected,
// never clamped.
type CreditAccount struct {
	// UserID is the account owner.
	UserID string `json:"user_id"`
	// Balance is the remaining credits.
	Balance int64 `json:"balance"`
	// LastUpdated is when the balance last changed.
	LastUpdated time.Time `json:"last_updated"`
}
