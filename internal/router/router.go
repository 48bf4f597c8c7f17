// Package router delivers messages between agents over the shared
// conversation. A route appends the outbound message, asks the receiving
// agent's persona for a reply, and appends that reply. Replies that open
// with an @mention of another agent cascade onward, bounded by a hop
// ceiling.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/mwhitt/crew/internal/config"
	"github.com/mwhitt/crew/internal/conversation"
	"github.com/mwhitt/crew/internal/gateway"
	"github.com/mwhitt/crew/pkg/models"
)

// ErrInvalidRoute indicates a self-route, an unknown receiver, or a
// cascade that hit the hop ceiling. Not retryable.
var ErrInvalidRoute = errors.New("invalid route")

// DefaultMaxHops bounds agent-to-agent cascades per originating request.
const DefaultMaxHops = 4

// mentionPattern matches a reply that opens by addressing another agent.
var mentionPattern = regexp.MustCompile(`^@([a-zA-Z0-9_-]+)\b`)

// Router sends messages between agents through the conversation store.
type Router struct {
	completer  gateway.Completer
	store      *conversation.Store
	roster     *config.Roster
	maxHops    int
	windowSize int
}

// NewRouter creates a Router. maxHops <= 0 selects DefaultMaxHops.
func NewRouter(completer gateway.Completer, store *conversation.Store, roster *config.Roster, maxHops int) *Router {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Router{
		completer:  completer,
		store:      store,
		roster:     roster,
		maxHops:    maxHops,
		windowSize: conversation.MaxWindow,
	}
}

// Route delivers message from sender to receiver in the conversation and
// returns the final reply after any cascade settles. The route is
// validated before anything is appended; a rejected route leaves the
// conversation untouched.
func (r *Router) Route(ctx context.Context, senderID, receiverID, conversationID, userID, message string) (string, error) {
	if err := r.checkRoute(senderID, receiverID); err != nil {
		return "", err
	}

	reply := ""
	for hop := 0; ; hop++ {
		if hop >= r.maxHops {
			return "", fmt.Errorf("%w: hop limit %d reached in conversation %s", ErrInvalidRoute, r.maxHops, conversationID)
		}

		var err error
		reply, err = r.deliver(ctx, senderID, receiverID, conversationID, userID, message)
		if err != nil {
			return "", err
		}

		next, rest := parseMention(reply)
		if next == "" {
			return reply, nil
		}
		if _, ok := r.roster.Get(next); !ok {
			// Mention of something that is not an agent; plain text.
			return reply, nil
		}
		if next == receiverID {
			return "", fmt.Errorf("%w: agent %s routed to itself", ErrInvalidRoute, next)
		}

		log.Printf("[router] cascade hop %d: %s -> %s in conversation %s", hop+1, receiverID, next, conversationID)
		senderID, receiverID, message = receiverID, next, rest
	}
}

// checkRoute validates sender and receiver before any side effect.
func (r *Router) checkRoute(senderID, receiverID string) error {
	if senderID == receiverID {
		return fmt.Errorf("%w: sender and receiver are both %s", ErrInvalidRoute, senderID)
	}
	if _, ok := r.roster.Get(receiverID); !ok {
		return fmt.Errorf("%w: unknown receiver %s", ErrInvalidRoute, receiverID)
	}
	return nil
}

// deliver performs one hop: append the outbound message, complete against
// the receiver's persona, append the reply.
func (r *Router) deliver(ctx context.Context, senderID, receiverID, conversationID, userID, message string) (string, error) {
	outbound := &models.ConversationTurn{
		ConversationID: conversationID,
		UserID:         userID,
		Participant:    senderID,
		Role:           r.roleFor(senderID),
		Content:        message,
	}
	if err := r.store.Append(ctx, outbound); err != nil {
		return "", err
	}

	window, err := r.store.Window(ctx, conversationID, r.windowSize)
	if err != nil {
		return "", err
	}

	receiver, _ := r.roster.Get(receiverID)
	resp, err := r.completer.Complete(ctx, gateway.CompletionRequest{
		SystemPrompt: receiver.SystemPrompt,
		Turns:        window,
		Prompt:       fmt.Sprintf("You are %s. Reply to the message from %s.", receiver.Name, senderID),
	})
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(resp.Text)
	inbound := &models.ConversationTurn{
		ConversationID: conversationID,
		UserID:         userID,
		Participant:    receiverID,
		Role:           models.RoleAssistant,
		Content:        reply,
	}
	if err := r.store.Append(ctx, inbound); err != nil {
		return "", err
	}

	return reply, nil
}

// roleFor maps a participant to a turn role: roster agents speak as the
// assistant, anyone else as the user.
func (r *Router) roleFor(participantID string) models.Role {
	if _, ok := r.roster.Get(participantID); ok {
		return models.RoleAssistant
	}
	return models.RoleUser
}

// parseMention splits a leading @agent mention off a reply. Returns the
// mentioned id and the remaining text, or "" when the reply does not open
// with a mention.
func parseMention(reply string) (string, string) {
	m := mentionPattern.FindStringSubmatch(reply)
	if m == nil {
		return "", ""
	}
	rest := strings.TrimSpace(strings.TrimPrefix(reply, m[0]))
	if rest == "" {
		rest = reply
	}
	return m[1], rest
}
