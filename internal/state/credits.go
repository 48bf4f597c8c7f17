package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhitt/crew/pkg/models"
)

// ReadCreditBalance returns the account for a user, or a zero-balance
// account if none exists yet. Accounts are created lazily on first debit.
func (db *DB) ReadCreditBalance(userID string) (*models.CreditAccount, error) {
	row := db.QueryRow(`
		SELECT user_id, balance, last_updated FROM credits WHERE user_id = ?
	`, userID)

	var acct models.CreditAccount
	var lastUpdated string
	err := row.Scan(&acct.UserID, &acct.Balance, &lastUpdated)
	if err == sql.ErrNoRows {
		return &models.CreditAccount{UserID: userID}, nil
	}
	if err != nil {
		return nil, storageErr("read credit balance", err)
	}

	if acct.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("parse credit last_updated: %w", err)
	}
	return &acct, nil
}

// UpsertCreditBalance writes a user's balance.
func (db *DB) UpsertCreditBalance(userID string, balance int64, at time.Time) error {
	_, err := db.Exec(`
		INSERT INTO credits (user_id, balance, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance = excluded.balance,
			last_updated = excluded.last_updated
	`, userID, balance, formatTime(at))
	if err != nil {
		return storageErr("upsert credit balance", err)
	}
	return nil
}
