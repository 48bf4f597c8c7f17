// Package decompose turns a free-text task into a validated, agent-bound
// plan, and revises existing plans from feedback.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitt/crew/internal/config"
	"github.com/mwhitt/crew/internal/conversation"
	"github.com/mwhitt/crew/internal/gateway"
	"github.com/mwhitt/crew/internal/state"
	"github.com/mwhitt/crew/pkg/models"
)

// ErrPlanInvalid indicates decomposition produced an unusable structure
// after the single correction attempt. The caller decides what to do next;
// there is no further automatic retry.
var ErrPlanInvalid = errors.New("plan invalid")

// ErrPlanActive indicates the conversation already has a non-terminal plan.
// One active plan per conversation at a time.
var ErrPlanActive = errors.New("plan already active for conversation")

// Classification is the simple/complex verdict for a request.
type Classification string

const (
	// ClassSimple marks requests answered directly as a one-step plan.
	ClassSimple Classification = "SIMPLE"
	// ClassComplex marks requests that warrant decomposition.
	ClassComplex Classification = "COMPLEX"
)

// Decomposer produces plans from task text and conversation context.
type Decomposer struct {
	completer  gateway.Completer
	store      *conversation.Store
	db         *state.DB
	roster     *config.Roster
	windowSize int
}

// NewDecomposer creates a Decomposer.
func NewDecomposer(completer gateway.Completer, store *conversation.Store, db *state.DB, roster *config.Roster, windowSize int) *Decomposer {
	if windowSize <= 0 || windowSize > conversation.MaxWindow {
		windowSize = conversation.MaxWindow
	}
	return &Decomposer{
		completer:  completer,
		store:      store,
		db:         db,
		roster:     roster,
		windowSize: windowSize,
	}
}

// Classify runs the lightweight simple/complex check. A transient model
// failure is returned as-is; the caller applies the documented fallback
// (treat as complex).
func (d *Decomposer) Classify(ctx context.Context, taskText string) (Classification, error) {
	resp, err := d.completer.Complete(ctx, gateway.CompletionRequest{
		SystemPrompt: "You classify requests. Answer with a single word.",
		Prompt:       fmt.Sprintf(classifyPrompt, taskText),
		MaxTokens:    16,
	})
	if err != nil {
		return "", err
	}

	if strings.Contains(strings.ToUpper(resp.Text), string(ClassSimple)) {
		return ClassSimple, nil
	}
	return ClassComplex, nil
}

// Decompose turns a task into a draft plan bound to the conversation.
// Simple requests short-circuit into a single step for the default agent.
// Complex requests get one structured decomposition call, validated, with
// one correction retry before ErrPlanInvalid.
func (d *Decomposer) Decompose(ctx context.Context, conversationID, userID, taskText string) (*models.Plan, error) {
	active, err := d.db.ActivePlan(conversationID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: plan %s is %s", ErrPlanActive, active.ID, active.Status)
	}

	class, err := d.Classify(ctx, taskText)
	if err != nil {
		if !errors.Is(err, gateway.ErrModelUnavailable) {
			return nil, fmt.Errorf("classify task: %w", err)
		}
		// Fallback policy: an unreachable classifier means we decompose.
		// More cost, never less capability.
		log.Printf("[decompose] classification unavailable, treating as complex: %v", err)
		class = ClassComplex
	}

	var steps []models.Step
	if class == ClassSimple {
		steps = []models.Step{{
			Index:         0,
			Description:   taskText,
			AssignedAgent: d.roster.Default().ID,
			Status:        models.StepStatusPending,
		}}
	} else {
		steps, err = d.decomposeComplex(ctx, conversationID, taskText)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	plan := &models.Plan{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		UserID:         userID,
		Task:           taskText,
		Status:         models.PlanStatusDraft,
		Steps:          steps,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := d.db.UpsertPlan(plan); err != nil {
		return nil, err
	}

	log.Printf("[decompose] plan %s created for conversation %s: %d steps (%s)",
		plan.ID, conversationID, len(steps), strings.ToLower(string(class)))
	return plan, nil
}

// decomposeComplex issues the decomposition call with the conversation
// window as context, validating the output and retrying once with an
// explicit correction instruction.
func (d *Decomposer) decomposeComplex(ctx context.Context, conversationID, taskText string) ([]models.Step, error) {
	window, err := d.store.Window(ctx, conversationID, d.windowSize)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(decompositionPrompt, d.roster.Describe(), taskText)

	steps, verr := d.requestSteps(ctx, window, prompt)
	if verr == nil {
		return steps, nil
	}
	if !isValidationError(verr) {
		return nil, verr
	}

	log.Printf("[decompose] invalid decomposition, retrying with correction: %v", verr)

	corrected := prompt + fmt.Sprintf(correctionInstruction, verr)
	steps, verr = d.requestSteps(ctx, window, corrected)
	if verr == nil {
		return steps, nil
	}
	if !isValidationError(verr) {
		return nil, verr
	}

	return nil, fmt.Errorf("%w: %v", ErrPlanInvalid, verr)
}

// gatewayRequest builds the planning-call request shared by decomposition
// and refinement.
func gatewayRequest(window []models.ConversationTurn, prompt string) gateway.CompletionRequest {
	return gateway.CompletionRequest{
		SystemPrompt: "You are a planner for a team of agents. Output only JSON.",
		Turns:        window,
		Prompt:       prompt,
	}
}

// requestSteps performs one decomposition call and validates the result.
func (d *Decomposer) requestSteps(ctx context.Context, window []models.ConversationTurn, prompt string) ([]models.Step, error) {
	resp, err := d.completer.Complete(ctx, gatewayRequest(window, prompt))
	if err != nil {
		return nil, err
	}

	steps, err := parseSteps(resp.Text)
	if err != nil {
		return nil, err
	}

	if err := d.validate(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// isValidationError distinguishes structural problems in model output
// (worth one correction retry) from gateway failures (not ours to retry).
func isValidationError(err error) bool {
	return !errors.Is(err, gateway.ErrModelUnavailable) &&
		!errors.Is(err, gateway.ErrModelRejected) &&
		!errors.Is(err, state.ErrUnavailable)
}
