package models

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser marks a turn written by the human user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn written by an agent.
	RoleAssistant Role = "assistant"
	// RoleSystem marks an injected system turn.
	RoleSystem Role = "system"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// ConversationTurn is one utterance in a conversation. Turns are immutable
// once appended; readers always receive copies.
type ConversationTurn struct {
	// ID is the unique identifier for this turn.
	ID string `json:"id"`
	// ConversationID is the conversation the turn belongs to.
	ConversationID string `json:"conversation_id"`
	// UserID is the user the conversation belongs to.
	UserID string `json:"user_id"`
	// Participant is the user ID or agent ID that produced the turn.
	Participant string `json:"participant"`
	// Role is the speaker's role.
	Role Role `json:"role"`
	// Content is the turn text.
	Content string `json:"content"`
	// CreatedAt is when the turn was appended.
	CreatedAt time.Time `json:"created_at"`
}
