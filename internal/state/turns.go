package state

import (
	"fmt"

	"github.com/mwhitt/crew/pkg/models"
)

// AppendTurn inserts a conversation turn. The sequence number is assigned
// from the current maximum for the conversation; callers serialize appends
// per conversation, so the read-then-insert stays race free.
func (db *DB) AppendTurn(turn *models.ConversationTurn) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return storageErr("append turn", err)
	}

	var seq int64
	row := tx.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM turns WHERE conversation_id = ?", turn.ConversationID)
	if err := row.Scan(&seq); err != nil {
		tx.Rollback()
		return storageErr("append turn", err)
	}

	_, err = tx.Exec(`
		INSERT INTO turns (id, conversation_id, user_id, participant, role, content, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, turn.ID, turn.ConversationID, turn.UserID, turn.Participant, string(turn.Role),
		turn.Content, formatTime(turn.CreatedAt), seq+1)
	if err != nil {
		tx.Rollback()
		return storageErr("append turn", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("append turn", err)
	}
	return nil
}

// ReadWindow returns the most recent limit turns for a conversation in
// chronological order.
func (db *DB) ReadWindow(conversationID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := db.Query(`
		SELECT id, conversation_id, user_id, participant, role, content, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, storageErr("read window", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		var role, createdAt string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.UserID, &t.Participant, &role, &t.Content, &createdAt); err != nil {
			return nil, storageErr("read window", err)
		}
		t.Role = models.Role(role)
		t.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse turn time: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read window", err)
	}

	// Rows came back newest first; reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// ClearUser removes all turns belonging to the user's conversations.
// Returns the number of turns deleted.
func (db *DB) ClearUser(userID string) (int64, error) {
	result, err := db.Exec("DELETE FROM turns WHERE user_id = ?", userID)
	if err != nil {
		return 0, storageErr("clear user", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("clear user", err)
	}
	return count, nil
}
