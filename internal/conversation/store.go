// Package conversation provides the append-only, bounded-window history of
// turns per conversation. Appends are serialized per conversation so turn
// order within one conversation is the order of successful append
// completions; unrelated conversations never contend.
package conversation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitt/crew/internal/state"
	"github.com/mwhitt/crew/pkg/models"
)

// MaxWindow caps the number of turns returned as model context. The cap
// bounds the size of what is sent upstream regardless of what callers ask
// for.
const MaxWindow = 10

// Store is the append path for conversation turns. It exclusively owns
// appends; readers receive copies.
type Store struct {
	db *state.DB

	// locks holds one mutex per conversation, created lazily.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store over the given database.
func NewStore(db *state.DB) *Store {
	return &Store{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) convLock(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}

// Append records a turn. On storage failure the turn is not recorded and
// the error carries state.ErrUnavailable. The turn's ID and CreatedAt are
// assigned here if unset.
func (s *Store) Append(ctx context.Context, turn *models.ConversationTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if turn.ConversationID == "" {
		return fmt.Errorf("append: empty conversation ID")
	}
	if !turn.Role.Valid() {
		return fmt.Errorf("append: invalid role %q", turn.Role)
	}

	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	lock := s.convLock(turn.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.AppendTurn(turn)
}

// Window returns the most recent turns for a conversation in chronological
// order, trimmed to limit. Limits above MaxWindow are capped.
func (s *Store) Window(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > MaxWindow {
		limit = MaxWindow
	}

	return s.db.ReadWindow(conversationID, limit)
}

// Clear removes all turns for the user's conversations. Irreversible.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	count, err := s.db.ClearUser(userID)
	if err != nil {
		return err
	}

	log.Printf("[conversation] cleared %d turns for user %s", count, userID)
	return nil
}
