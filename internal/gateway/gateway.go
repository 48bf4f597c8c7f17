package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mwhitt/crew/pkg/models"
)

// ErrModelUnavailable indicates a transient upstream failure that persisted
// through the gateway's bounded retries. Callers may try again later.
var ErrModelUnavailable = errors.New("model unavailable")

// ErrModelRejected indicates a non-retryable upstream rejection, such as an
// invalid request. Retrying without changing the request will not help.
var ErrModelRejected = errors.New("model rejected request")

// CompletionRequest describes one model call: a system prompt, the bounded
// conversation window, and the prompt being answered.
type CompletionRequest struct {
	// SystemPrompt is the persona or instruction block for the call.
	SystemPrompt string
	// Turns is the conversation window sent as prior messages, oldest first.
	Turns []models.ConversationTurn
	// Prompt is the final user message.
	Prompt string
	// MaxTokens caps the response length. Zero uses the gateway default.
	MaxTokens int64
}

// Completion is the result of a model call.
type Completion struct {
	// Text is the concatenated text content of the response.
	Text string
	// InputTokens and OutputTokens report usage for the call.
	InputTokens  int64
	OutputTokens int64
}

// Completer is the call interface the rest of the engine consumes.
// Exactly one logical completion per call; the implementation owns retries.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// DefaultMaxTokens is the response token ceiling when the request sets none.
const DefaultMaxTokens = 4096

// Gateway implements Completer over the Anthropic API. Each attempt wraps
// exactly one upstream Messages call; transient failures are retried with
// exponential backoff up to maxAttempts. There is no tool use in these
// calls, so every attempt is an idempotent read/generate and safe to retry.
type Gateway struct {
	client      *Client
	maxAttempts int
	baseDelay   time.Duration
	callTimeout time.Duration

	// send issues one upstream call. Swapped out in tests.
	send func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxAttempts sets the retry bound for transient failures.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		if n >= 1 {
			g.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the first backoff delay; subsequent delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.baseDelay = d
		}
	}
}

// WithCallTimeout sets the per-attempt wall-clock timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.callTimeout = d
		}
	}
}

// New creates a Gateway over the given client.
func New(client *Client, opts ...Option) *Gateway {
	g := &Gateway{
		client:      client,
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		callTimeout: 2 * time.Minute,
	}
	g.send = func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		return client.inner.Messages.New(ctx, params)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete issues the model call with the gateway's retry policy.
// Transient failures (rate limits, timeouts, 5xx, network) are retried with
// exponential backoff, then surface ErrModelUnavailable. Non-transient
// rejections surface ErrModelRejected immediately.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	params := g.buildParams(req)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		resp, err := g.send(callCtx, params)
		cancel()

		if err == nil {
			g.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)
			return &Completion{
				Text:         responseText(resp),
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			}, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, ctx.Err())
		}
		if !transient(err) {
			return nil, fmt.Errorf("%w: %v", ErrModelRejected, err)
		}

		lastErr = err
		if attempt < g.maxAttempts {
			delay := g.baseDelay << (attempt - 1)
			log.Printf("[gateway] transient failure (attempt %d/%d), retrying in %v: %v",
				attempt, g.maxAttempts, delay, err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrModelUnavailable, g.maxAttempts, lastErr)
}

// buildParams assembles the upstream request. System-role turns fold into
// the system block; user and assistant turns become prior messages.
func (g *Gateway) buildParams(req CompletionRequest) anthropic.MessageNewParams {
	system := req.SystemPrompt
	var messages []anthropic.MessageParam

	for _, turn := range req.Turns {
		switch turn.Role {
		case models.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		case models.RoleSystem:
			system = system + "\n\n" + turn.Content
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	if req.Prompt != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return anthropic.MessageNewParams{
		Model:     g.client.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: messages,
	}
}

// responseText concatenates the text blocks of a response.
func responseText(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// transient reports whether an upstream error is worth retrying:
// request timeouts, rate limits, server errors, and plain network failures.
// 4xx rejections (other than 408/429) are permanent.
func transient(err error) bool {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 408, apierr.StatusCode == 429:
			return true
		case apierr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// No structured status: assume a network-level failure, which is transient.
	return true
}
