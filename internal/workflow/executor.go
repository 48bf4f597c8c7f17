package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mwhitt/crew/internal/config"
	"github.com/mwhitt/crew/internal/conversation"
	"github.com/mwhitt/crew/internal/credit"
	"github.com/mwhitt/crew/internal/gateway"
	"github.com/mwhitt/crew/internal/graph"
	"github.com/mwhitt/crew/internal/state"
	"github.com/mwhitt/crew/pkg/models"
)

// InsufficientCreditReason is the failure reason recorded on a step whose
// credit admission was denied.
const InsufficientCreditReason = "insufficient credit"

// DefaultMaxParallel bounds concurrent steps within one plan.
const DefaultMaxParallel = 3

// stepPrompt frames one step for its assigned agent.
const stepPrompt = `Complete this step of a larger task.

Overall task:
%s

Step:
%s
%s
Respond with the step's result only, no preamble.`

// Executor runs plans to completion: steps start in dependency order,
// each one admitted against the user's credit balance, with bounded
// parallelism inside a plan.
type Executor struct {
	completer   gateway.Completer
	store       *conversation.Store
	ledger      *credit.Ledger
	db          *state.DB
	roster      *config.Roster
	maxParallel int

	// controllers holds the pause controller for each in-process run.
	mu          sync.Mutex
	controllers map[string]*PauseController
}

// NewExecutor creates an Executor. maxParallel <= 0 selects
// DefaultMaxParallel.
func NewExecutor(completer gateway.Completer, store *conversation.Store, ledger *credit.Ledger, db *state.DB, roster *config.Roster, maxParallel int) *Executor {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &Executor{
		completer:   completer,
		store:       store,
		ledger:      ledger,
		db:          db,
		roster:      roster,
		maxParallel: maxParallel,
		controllers: make(map[string]*PauseController),
	}
}

// stepResult carries one finished step back to the scheduling loop.
type stepResult struct {
	index  int
	output string
	err    error
}

// Start runs a draft plan. It blocks until the plan reaches a terminal
// status or execution is stopped.
func (e *Executor) Start(ctx context.Context, planID string) error {
	plan, err := e.readPlan(planID)
	if err != nil {
		return err
	}
	if plan.Status != models.PlanStatusDraft {
		return fmt.Errorf("start: plan %s is %s, not draft", planID, plan.Status)
	}
	return e.run(ctx, plan)
}

// Resume continues a paused plan. If the plan's run loop is live in this
// process the pause is simply lifted; otherwise eligibility is
// re-evaluated from persisted state and execution continues here.
func (e *Executor) Resume(ctx context.Context, planID string) error {
	plan, err := e.readPlan(planID)
	if err != nil {
		return err
	}
	if plan.Status != models.PlanStatusPaused {
		return fmt.Errorf("resume: plan %s is %s, not paused", planID, plan.Status)
	}

	if err := e.db.UpdatePlanStatus(planID, models.PlanStatusActive, time.Now()); err != nil {
		return err
	}

	e.mu.Lock()
	pc, live := e.controllers[planID]
	e.mu.Unlock()
	if live {
		pc.Resume()
		return nil
	}

	plan.Status = models.PlanStatusActive
	return e.run(ctx, plan)
}

// Pause stops new steps from starting. Running steps finish; their
// results are still committed.
func (e *Executor) Pause(ctx context.Context, planID string) error {
	plan, err := e.readPlan(planID)
	if err != nil {
		return err
	}
	if plan.Status != models.PlanStatusActive {
		return fmt.Errorf("pause: plan %s is %s, not active", planID, plan.Status)
	}

	if err := e.db.UpdatePlanStatus(planID, models.PlanStatusPaused, time.Now()); err != nil {
		return err
	}

	e.mu.Lock()
	if pc, ok := e.controllers[planID]; ok {
		pc.Pause()
	}
	e.mu.Unlock()

	log.Printf("[workflow] plan %s paused", planID)
	return nil
}

// Complete marks a plan completed on the caller's say-so, regardless of
// residual pending steps. Active or paused plans only.
func (e *Executor) Complete(ctx context.Context, planID string) error {
	plan, err := e.readPlan(planID)
	if err != nil {
		return err
	}
	if plan.Status != models.PlanStatusActive && plan.Status != models.PlanStatusPaused {
		return fmt.Errorf("complete: plan %s is %s", planID, plan.Status)
	}

	if err := e.db.UpdatePlanStatus(planID, models.PlanStatusCompleted, time.Now()); err != nil {
		return err
	}

	e.mu.Lock()
	if pc, ok := e.controllers[planID]; ok {
		pc.Stop()
	}
	e.mu.Unlock()

	log.Printf("[workflow] plan %s completed by caller", planID)
	return nil
}

// Controller returns the live pause controller for a running plan, or nil.
func (e *Executor) Controller(planID string) *PauseController {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controllers[planID]
}

func (e *Executor) readPlan(planID string) (*models.Plan, error) {
	plan, err := e.db.ReadPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %s not found", planID)
	}
	return plan, nil
}

// run is the scheduling loop. The loop goroutine exclusively owns the
// plan and graph; step goroutines only see copied inputs and report back
// over the results channel.
func (e *Executor) run(ctx context.Context, plan *models.Plan) error {
	g, err := graph.Build(plan.Steps)
	if err != nil {
		return err
	}
	// Interrupted runs resume from persisted step statuses. A step that
	// was mid-flight when the process died restarts from pending.
	for i := range plan.Steps {
		s := &plan.Steps[i]
		if s.Status == models.StepStatusRunning {
			s.Status = models.StepStatusPending
		}
		g.SetStatus(s.Index, s.Status)
	}

	if err := e.db.UpdatePlanStatus(plan.ID, models.PlanStatusActive, time.Now()); err != nil {
		return err
	}

	pc := NewPauseController()
	e.mu.Lock()
	e.controllers[plan.ID] = pc
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.controllers, plan.ID)
		e.mu.Unlock()
	}()

	results := make(chan stepResult, len(plan.Steps))
	running := make(map[int]bool)
	fatal := false

	for {
		if err := pc.WaitIfPaused(ctx); err != nil {
			break
		}

		if !fatal {
			e.launchReady(ctx, plan, g, running, results)
		}

		if len(running) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			// Wait out in-flight steps; their results commit below.
			for len(running) > 0 {
				res := <-results
				e.commitResult(plan, g, res)
				delete(running, res.index)
			}
			return ctx.Err()
		case res := <-results:
			delete(running, res.index)
			if e.commitResult(plan, g, res) {
				// Model-level step failure is fatal to the plan; only a
				// credit denial is scoped to its own branch, and that
				// never reaches this channel.
				fatal = true
			}
		}
	}

	return e.finalize(plan, g, fatal)
}

// launchReady starts every eligible step up to the parallelism bound.
// Credit admission happens here, before any model call; a denial fails
// the step in place and skips its dependents.
func (e *Executor) launchReady(ctx context.Context, plan *models.Plan, g *graph.StepGraph, running map[int]bool, results chan<- stepResult) {
	for _, idx := range g.Ready() {
		if running[idx] || len(running) >= e.maxParallel {
			continue
		}

		step := plan.StepByIndex(idx)
		agent, ok := e.roster.Get(step.AssignedAgent)
		if !ok {
			e.failStep(plan, g, step, fmt.Sprintf("unknown agent %q", step.AssignedAgent))
			continue
		}

		granted, err := e.ledger.TryDebit(ctx, plan.UserID, agent.StepCost)
		if err != nil {
			e.failStep(plan, g, step, err.Error())
			continue
		}
		if !granted {
			log.Printf("[workflow] step %d of plan %s denied: %s", idx, plan.ID, InsufficientCreditReason)
			e.failStep(plan, g, step, InsufficientCreditReason)
			continue
		}

		step.Status = models.StepStatusRunning
		g.SetStatus(idx, models.StepStatusRunning)
		if err := e.db.UpdateStep(plan.ID, step); err != nil {
			log.Printf("[workflow] persist step %d start: %v", idx, err)
		}
		running[idx] = true

		depContext := e.dependencyContext(plan, idx)
		go e.executeStep(ctx, plan, agent, idx, step.Description, depContext, results)
	}
}

// executeStep performs one step's model call with a single retry. No
// shared state is touched here; the result goes back over the channel.
func (e *Executor) executeStep(ctx context.Context, plan *models.Plan, agent models.Agent, idx int, description, depContext string, results chan<- stepResult) {
	prompt := fmt.Sprintf(stepPrompt, plan.Task, description, depContext)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		window, err := e.store.Window(ctx, plan.ConversationID, conversation.MaxWindow)
		if err != nil {
			lastErr = err
			break
		}

		resp, err := e.completer.Complete(ctx, gateway.CompletionRequest{
			SystemPrompt: agent.SystemPrompt,
			Turns:        window,
			Prompt:       prompt,
		})
		if err == nil {
			results <- stepResult{index: idx, output: strings.TrimSpace(resp.Text)}
			return
		}

		lastErr = err
		if errors.Is(err, gateway.ErrModelRejected) || ctx.Err() != nil {
			break
		}
		log.Printf("[workflow] step %d of plan %s failed, retrying once: %v", idx, plan.ID, err)
	}

	results <- stepResult{index: idx, err: lastErr}
}

// commitResult applies a finished step to the plan, the graph, and
// storage. Returns true when the step failed.
func (e *Executor) commitResult(plan *models.Plan, g *graph.StepGraph, res stepResult) bool {
	step := plan.StepByIndex(res.index)

	if res.err != nil {
		e.failStep(plan, g, step, res.err.Error())
		return true
	}

	step.Status = models.StepStatusSucceeded
	step.Output = res.output
	step.Error = ""
	g.SetStatus(res.index, models.StepStatusSucceeded)
	if err := e.db.UpdateStep(plan.ID, step); err != nil {
		log.Printf("[workflow] persist step %d result: %v", res.index, err)
	}

	turn := &models.ConversationTurn{
		ConversationID: plan.ConversationID,
		UserID:         plan.UserID,
		Participant:    step.AssignedAgent,
		Role:           models.RoleAssistant,
		Content:        res.output,
	}
	if err := e.store.Append(context.Background(), turn); err != nil {
		log.Printf("[workflow] append step %d output: %v", res.index, err)
	}

	return false
}

// failStep marks a step failed and skips every step that transitively
// depends on it. Independent branches are untouched.
func (e *Executor) failStep(plan *models.Plan, g *graph.StepGraph, step *models.Step, reason string) {
	step.Status = models.StepStatusFailed
	step.Error = reason
	g.SetStatus(step.Index, models.StepStatusFailed)
	if err := e.db.UpdateStep(plan.ID, step); err != nil {
		log.Printf("[workflow] persist step %d failure: %v", step.Index, err)
	}

	for _, idx := range g.Blocked() {
		blocked := plan.StepByIndex(idx)
		blocked.Status = models.StepStatusSkipped
		blocked.Error = fmt.Sprintf("dependency %d failed", step.Index)
		g.SetStatus(idx, models.StepStatusSkipped)
		if err := e.db.UpdateStep(plan.ID, blocked); err != nil {
			log.Printf("[workflow] persist step %d skip: %v", idx, err)
		}
	}
}

// dependencyContext renders the outputs of a step's settled dependencies
// for inclusion in its prompt.
func (e *Executor) dependencyContext(plan *models.Plan, idx int) string {
	step := plan.StepByIndex(idx)
	if len(step.DependsOn) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nResults from earlier steps:\n")
	for _, dep := range step.DependsOn {
		d := plan.StepByIndex(dep)
		if d == nil || d.Output == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", d.Description, d.Output)
	}
	return b.String()
}

// finalize records the plan's terminal status once the loop drains. A
// status already made terminal by an explicit Complete is left alone.
func (e *Executor) finalize(plan *models.Plan, g *graph.StepGraph, fatal bool) error {
	current, err := e.readPlan(plan.ID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return nil
	}
	if current.Status == models.PlanStatusPaused && !g.Done() && !fatal {
		// Paused with work remaining: stay paused for a later resume.
		return nil
	}

	final := models.PlanStatusFailed
	if g.AllSucceeded() {
		final = models.PlanStatusCompleted
	}
	if err := e.db.UpdatePlanStatus(plan.ID, final, time.Now()); err != nil {
		return err
	}

	log.Printf("[workflow] plan %s finished: %s", plan.ID, final)
	return nil
}
