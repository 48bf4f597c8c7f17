package state

import (
	"testing"
	"time"
)

func TestReadCreditBalanceLazyAccount(t *testing.T) {
	db := setupTestDB(t)

	acct, err := db.ReadCreditBalance("user-1")
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if acct.UserID != "user-1" {
		t.Errorf("user ID = %q", acct.UserID)
	}
	if acct.Balance != 0 {
		t.Errorf("fresh account balance = %d, want 0", acct.Balance)
	}
}

func TestUpsertCreditBalance(t *testing.T) {
	db := setupTestDB(t)

	if err := db.UpsertCreditBalance("user-1", 100, time.Now()); err != nil {
		t.Fatalf("upsert balance: %v", err)
	}

	acct, err := db.ReadCreditBalance("user-1")
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if acct.Balance != 100 {
		t.Errorf("balance = %d, want 100", acct.Balance)
	}

	if err := db.UpsertCreditBalance("user-1", 40, time.Now()); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	acct, err = db.ReadCreditBalance("user-1")
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if acct.Balance != 40 {
		t.Errorf("balance after update = %d, want 40", acct.Balance)
	}
}
