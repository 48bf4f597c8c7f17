package router

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mwhitt/crew/internal/config"
	"github.com/mwhitt/crew/internal/conversation"
	"github.com/mwhitt/crew/internal/gateway"
	"github.com/mwhitt/crew/internal/state"
	"github.com/mwhitt/crew/pkg/models"
)

type scriptedCompleter struct {
	responses []string
	calls     int
	systems   []string
}

func (s *scriptedCompleter) Complete(_ context.Context, req gateway.CompletionRequest) (*gateway.Completion, error) {
	if s.calls >= len(s.responses) {
		return nil, fmt.Errorf("unexpected call %d", s.calls)
	}
	text := s.responses[s.calls]
	s.calls++
	s.systems = append(s.systems, req.SystemPrompt)
	return &gateway.Completion{Text: text}, nil
}

func setupRouter(t *testing.T, maxHops int, responses ...string) (*Router, *scriptedCompleter, *conversation.Store) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	completer := &scriptedCompleter{responses: responses}
	store := conversation.NewStore(db)
	return NewRouter(completer, store, config.DefaultRoster(), maxHops), completer, store
}

func TestRouteAppendsBothTurns(t *testing.T) {
	r, completer, store := setupRouter(t, 4, "hello back")
	ctx := context.Background()

	reply, err := r.Route(ctx, "user-1", "assistant", "conv-1", "user-1", "hello")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if reply != "hello back" {
		t.Errorf("reply = %q", reply)
	}

	turns, err := store.Window(ctx, "conv-1", 10)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Participant != "user-1" || turns[0].Role != models.RoleUser {
		t.Errorf("outbound turn wrong: %+v", turns[0])
	}
	if turns[1].Participant != "assistant" || turns[1].Role != models.RoleAssistant {
		t.Errorf("reply turn wrong: %+v", turns[1])
	}

	agent, _ := config.DefaultRoster().Get("assistant")
	if completer.systems[0] != agent.SystemPrompt {
		t.Errorf("completion should carry the receiver's persona")
	}
}

func TestRouteSelfRouteRejectedBeforeAppend(t *testing.T) {
	r, completer, store := setupRouter(t, 4)
	ctx := context.Background()

	_, err := r.Route(ctx, "assistant", "assistant", "conv-1", "user-1", "hi me")
	if !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("expected ErrInvalidRoute, got %v", err)
	}
	if completer.calls != 0 {
		t.Error("rejected route should not reach the model")
	}

	turns, _ := store.Window(ctx, "conv-1", 10)
	if len(turns) != 0 {
		t.Errorf("rejected route appended %d turns", len(turns))
	}
}

func TestRouteUnknownReceiverRejected(t *testing.T) {
	r, _, _ := setupRouter(t, 4)

	_, err := r.Route(context.Background(), "user-1", "nobody", "conv-1", "user-1", "hi")
	if !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("expected ErrInvalidRoute, got %v", err)
	}
}

func TestRouteCascadesOnMention(t *testing.T) {
	r, completer, store := setupRouter(t, 4,
		"@reviewer please check this draft",
		"looks good to me",
	)
	ctx := context.Background()

	reply, err := r.Route(ctx, "user-1", "builder", "conv-1", "user-1", "write a draft")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if reply != "looks good to me" {
		t.Errorf("cascade should return the final reply, got %q", reply)
	}
	if completer.calls != 2 {
		t.Errorf("expected 2 hops, got %d calls", completer.calls)
	}

	turns, _ := store.Window(ctx, "conv-1", 10)
	if len(turns) != 4 {
		t.Errorf("cascade of 2 hops should append 4 turns, got %d", len(turns))
	}
	if turns[2].Participant != "builder" || turns[2].Role != models.RoleAssistant {
		t.Errorf("forwarded message should come from the builder as assistant: %+v", turns[2])
	}
}

func TestRouteMentionOfNonAgentIsPlainText(t *testing.T) {
	r, completer, _ := setupRouter(t, 4, "@alice this is for you")

	reply, err := r.Route(context.Background(), "user-1", "assistant", "conv-1", "user-1", "hi")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if reply != "@alice this is for you" {
		t.Errorf("non-agent mention should pass through, got %q", reply)
	}
	if completer.calls != 1 {
		t.Errorf("non-agent mention should not cascade, got %d calls", completer.calls)
	}
}

func TestRouteCascadeSelfMentionRejected(t *testing.T) {
	r, _, _ := setupRouter(t, 4, "@builder I will handle it myself")

	_, err := r.Route(context.Background(), "user-1", "builder", "conv-1", "user-1", "go")
	if !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("expected ErrInvalidRoute for self-mention cascade, got %v", err)
	}
}

func TestRouteHopCeilingBoundsCascade(t *testing.T) {
	r, completer, _ := setupRouter(t, 2,
		"@reviewer take a look",
		"@planner what next",
	)

	_, err := r.Route(context.Background(), "user-1", "builder", "conv-1", "user-1", "go")
	if !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("expected ErrInvalidRoute at hop ceiling, got %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("ceiling of 2 should allow exactly 2 model calls, got %d", completer.calls)
	}
}

func TestParseMention(t *testing.T) {
	tests := []struct {
		reply    string
		wantID   string
		wantRest string
	}{
		{"@reviewer check this", "reviewer", "check this"},
		{"plain text", "", ""},
		{"@reviewer", "reviewer", "@reviewer"},
		{"see @reviewer later", "", ""},
	}

	for _, tt := range tests {
		id, rest := parseMention(tt.reply)
		if id != tt.wantID {
			t.Errorf("parseMention(%q) id = %q, want %q", tt.reply, id, tt.wantID)
		}
		if tt.wantID != "" && rest != tt.wantRest {
			t.Errorf("parseMention(%q) rest = %q, want %q", tt.reply, rest, tt.wantRest)
		}
	}
}
