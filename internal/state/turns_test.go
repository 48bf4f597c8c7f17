package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitt/crew/pkg/models"
)

func appendTestTurn(t *testing.T, db *DB, convID, userID, content string) {
	t.Helper()
	turn := &models.ConversationTurn{
		ID:             uuid.New().String(),
		ConversationID: convID,
		UserID:         userID,
		Participant:    userID,
		Role:           models.RoleUser,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := db.AppendTurn(turn); err != nil {
		t.Fatalf("append turn: %v", err)
	}
}

func TestAppendAndReadWindow(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 3; i++ {
		appendTestTurn(t, db, "conv-1", "user-1", fmt.Sprintf("message %d", i))
	}

	turns, err := db.ReadWindow("conv-1", 10)
	if err != nil {
		t.Fatalf("read window: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}

	// Chronological order.
	for i, turn := range turns {
		want := fmt.Sprintf("message %d", i)
		if turn.Content != want {
			t.Errorf("turn %d: expected %q, got %q", i, want, turn.Content)
		}
	}
}

func TestReadWindowTrimsToLimit(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 12; i++ {
		appendTestTurn(t, db, "conv-1", "user-1", fmt.Sprintf("message %d", i))
	}

	turns, err := db.ReadWindow("conv-1", 10)
	if err != nil {
		t.Fatalf("read window: %v", err)
	}
	if len(turns) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(turns))
	}

	// The last 10 of 12, still in original order.
	if turns[0].Content != "message 2" {
		t.Errorf("expected oldest kept turn %q, got %q", "message 2", turns[0].Content)
	}
	if turns[9].Content != "message 11" {
		t.Errorf("expected newest turn %q, got %q", "message 11", turns[9].Content)
	}
}

func TestReadWindowScopesByConversation(t *testing.T) {
	db := setupTestDB(t)

	appendTestTurn(t, db, "conv-1", "user-1", "in conv 1")
	appendTestTurn(t, db, "conv-2", "user-1", "in conv 2")

	turns, err := db.ReadWindow("conv-1", 10)
	if err != nil {
		t.Fatalf("read window: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "in conv 1" {
		t.Errorf("window leaked turns across conversations: %+v", turns)
	}
}

func TestClearUser(t *testing.T) {
	db := setupTestDB(t)

	appendTestTurn(t, db, "conv-1", "user-1", "a")
	appendTestTurn(t, db, "conv-2", "user-1", "b")
	appendTestTurn(t, db, "conv-3", "user-2", "c")

	count, err := db.ClearUser("user-1")
	if err != nil {
		t.Fatalf("clear user: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 turns cleared, got %d", count)
	}

	turns, err := db.ReadWindow("conv-1", 10)
	if err != nil {
		t.Fatalf("read window: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected user-1 turns gone, got %d", len(turns))
	}

	turns, err = db.ReadWindow("conv-3", 10)
	if err != nil {
		t.Fatalf("read window: %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("other users' turns should survive, got %d", len(turns))
	}
}
