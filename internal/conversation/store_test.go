package conversation

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mwhitt/crew/internal/state"
	"github.com/mwhitt/crew/pkg/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func userTurn(convID, content string) *models.ConversationTurn {
	return &models.ConversationTurn{
		ConversationID: convID,
		UserID:         "user-1",
		Participant:    "user-1",
		Role:           models.RoleUser,
		Content:        content,
	}
}

func TestAppendAssignsIDAndTime(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	turn := userTurn("conv-1", "hello")
	if err := s.Append(ctx, turn); err != nil {
		t.Fatalf("append: %v", err)
	}

	if turn.ID == "" {
		t.Error("append should assign a turn ID")
	}
	if turn.CreatedAt.IsZero() {
		t.Error("append should assign a timestamp")
	}
}

func TestAppendRejectsInvalidRole(t *testing.T) {
	s := setupStore(t)

	turn := userTurn("conv-1", "hello")
	turn.Role = "bot"
	if err := s.Append(context.Background(), turn); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestWindowRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	// 12 sequential turns, window of 10 returns the last 10 in order.
	for i := 0; i < 12; i++ {
		if err := s.Append(ctx, userTurn("conv-1", fmt.Sprintf("turn %d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	turns, err := s.Window(ctx, "conv-1", 10)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(turns) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		want := fmt.Sprintf("turn %d", i+2)
		if turn.Content != want {
			t.Errorf("turn %d content = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestWindowCapsLimit(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := s.Append(ctx, userTurn("conv-1", fmt.Sprintf("turn %d", i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	turns, err := s.Window(ctx, "conv-1", 50)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(turns) != MaxWindow {
		t.Errorf("limit above cap: got %d turns, want %d", len(turns), MaxWindow)
	}
}

func TestConcurrentAppendsLinearize(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Append(ctx, userTurn("conv-1", fmt.Sprintf("concurrent %d", i))); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	turns, err := s.Window(ctx, "conv-1", MaxWindow)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(turns) != MaxWindow {
		t.Errorf("expected full window of %d, got %d", MaxWindow, len(turns))
	}
}

func TestClear(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, userTurn("conv-1", "a")); err != nil {
		t.Fatalf("append: %v", err)
	}

	other := userTurn("conv-2", "b")
	other.UserID = "user-2"
	other.Participant = "user-2"
	if err := s.Append(ctx, other); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	turns, err := s.Window(ctx, "conv-1", 10)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("cleared user still has %d turns", len(turns))
	}

	turns, err = s.Window(ctx, "conv-2", 10)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("other user's turns should survive clear")
	}
}
