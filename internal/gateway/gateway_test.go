package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mwhitt/crew/pkg/models"
)

// testGateway returns a gateway whose upstream call is the given function.
func testGateway(send func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)) *Gateway {
	g := &Gateway{
		client:      &Client{tracker: NewTokenTracker()},
		maxAttempts: 3,
		baseDelay:   time.Millisecond,
		callTimeout: time.Second,
		send:        send,
	}
	return g
}

func textResponse(text string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
		Usage: anthropic.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

func TestCompleteSuccess(t *testing.T) {
	g := testGateway(func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		return textResponse("hello"), nil
	})

	got, err := g.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("text = %q, want %q", got.Text, "hello")
	}
	if got.InputTokens != 10 || got.OutputTokens != 5 {
		t.Errorf("usage = %d/%d, want 10/5", got.InputTokens, got.OutputTokens)
	}
}

func TestCompleteTracksTokens(t *testing.T) {
	g := testGateway(func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		return textResponse("ok"), nil
	})

	if _, err := g.Complete(context.Background(), CompletionRequest{Prompt: "a"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := g.Complete(context.Background(), CompletionRequest{Prompt: "b"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	in, out := g.client.Tracker().Total()
	if in != 20 || out != 10 {
		t.Errorf("tracked = %d/%d, want 20/10", in, out)
	}
	if g.client.Tracker().Calls() != 2 {
		t.Errorf("calls = %d, want 2", g.client.Tracker().Calls())
	}
}

func TestCompleteRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	g := testGateway(func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("connection reset")
		}
		return textResponse("recovered"), nil
	})

	got, err := g.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Text != "recovered" {
		t.Errorf("text = %q", got.Text)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	calls := 0
	g := testGateway(func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		calls++
		return nil, fmt.Errorf("connection refused")
	})

	_, err := g.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestCompletePermanentRejectionNoRetry(t *testing.T) {
	calls := 0
	g := testGateway(func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		calls++
		return nil, &anthropic.Error{StatusCode: 400}
	})

	_, err := g.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, ErrModelRejected) {
		t.Fatalf("expected ErrModelRejected, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent rejection should not retry, got %d attempts", calls)
	}
}

func TestCompleteRateLimitIsTransient(t *testing.T) {
	calls := 0
	g := testGateway(func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		calls++
		if calls == 1 {
			return nil, &anthropic.Error{StatusCode: 429}
		}
		return textResponse("after backoff"), nil
	})

	got, err := g.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Text != "after backoff" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestCompleteCancelledContext(t *testing.T) {
	g := testGateway(func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		return nil, fmt.Errorf("connection reset")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Complete(ctx, CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable on cancelled context, got %v", err)
	}
}

func TestBuildParamsRoles(t *testing.T) {
	g := testGateway(nil)

	req := CompletionRequest{
		SystemPrompt: "You are a planner.",
		Turns: []models.ConversationTurn{
			{Role: models.RoleUser, Content: "first"},
			{Role: models.RoleAssistant, Content: "second"},
			{Role: models.RoleSystem, Content: "note"},
		},
		Prompt: "final",
	}

	params := g.buildParams(req)

	// System turn folds into the system block, so 2 prior + 1 final message.
	if len(params.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(params.Messages))
	}
	if len(params.System) != 1 {
		t.Fatalf("expected 1 system block, got %d", len(params.System))
	}
	if params.System[0].Text != "You are a planner.\n\nnote" {
		t.Errorf("system text = %q", params.System[0].Text)
	}
	if params.MaxTokens != DefaultMaxTokens {
		t.Errorf("max tokens = %d, want default %d", params.MaxTokens, DefaultMaxTokens)
	}
}

func TestTransientClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &anthropic.Error{StatusCode: 429}, true},
		{"timeout status", &anthropic.Error{StatusCode: 408}, true},
		{"server error", &anthropic.Error{StatusCode: 503}, true},
		{"bad request", &anthropic.Error{StatusCode: 400}, false},
		{"auth failure", &anthropic.Error{StatusCode: 401}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain network", fmt.Errorf("dial tcp: connection refused"), true},
	}

	for _, c := range cases {
		if got := transient(c.err); got != c.want {
			t.Errorf("%s: transient = %v, want %v", c.name, got, c.want)
		}
	}
}
