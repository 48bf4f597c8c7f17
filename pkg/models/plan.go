package models

import "time"

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

const (
	// PlanStatusDraft indicates the plan has been created but not started.
	PlanStatusDraft PlanStatus = "draft"
	// PlanStatusActive indicates the plan is executing.
	PlanStatusActive PlanStatus = "active"
	// PlanStatusPaused indicates execution is suspended; running steps finish
	// but no new steps start.
	PlanStatusPaused PlanStatus = "paused"
	// PlanStatusCompleted indicates the plan reached a terminal accepted state.
	PlanStatusCompleted PlanStatus = "completed"
	// PlanStatusFailed indicates the plan terminated with unrecoverable failures.
	PlanStatusFailed PlanStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusDraft, PlanStatusActive, PlanStatusPaused, PlanStatusCompleted, PlanStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is completed or failed.
func (s PlanStatus) Terminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusFailed
}

// StepStatus represents the state of a single step within a plan.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is executing.
	StepStatusRunning StepStatus = "running"
	// StepStatusSucceeded indicates the step completed with output.
	StepStatusSucceeded StepStatus = "succeeded"
	// StepStatusFailed indicates the step failed after its retry.
	StepStatusFailed StepStatus = "failed"
	// StepStatusSkipped indicates the step was skipped because a dependency
	// failed or the plan was accepted before the step ran.
	StepStatusSkipped StepStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusSucceeded, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// Settled returns true if the step can satisfy a dependency edge:
// succeeded steps carry output forward, skipped steps are treated as
// satisfied so independent branches keep moving.
func (s StepStatus) Settled() bool {
	return s == StepStatusSucceeded || s == StepStatusSkipped
}

// Step is one unit of work in a plan, bound to an agent with explicit
// dependencies on prior step indexes.
type Step struct {
	// Index is the position of the step in the plan. Indexes are unique and
	// strictly increasing; refinement replaces steps by index, never renumbers.
	Index int `json:"index"`
	// Description is what the step's agent is asked to do.
	Description string `json:"description"`
	// AssignedAgent is the ID of the agent persona that executes this step.
	AssignedAgent string `json:"assigned_agent"`
	// DependsOn lists indexes of prior steps that must settle first.
	DependsOn []int `json:"depends_on,omitempty"`
	// Status is the current state of the step.
	Status StepStatus `json:"status"`
	// Output is the step's result text once it has succeeded.
	Output string `json:"output,omitempty"`
	// Error is the failure reason if the step failed.
	Error string `json:"error,omitempty"`
}

// Plan is the ordered set of steps produced by decomposing a task.
// The conversation ID is the natural key: at most one non-terminal plan
// exists per conversation at a time.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// ConversationID is the conversation this plan belongs to.
	ConversationID string `json:"conversation_id"`
	// UserID is the user the plan is billed to.
	UserID string `json:"user_id"`
	// Task is the original free-text task description.
	Task string `json:"task"`
	// Status is the current lifecycle state.
	Status PlanStatus `json:"status"`
	// Steps is the ordered step sequence, ascending by Index.
	Steps []Step `json:"steps"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the plan last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// StepByIndex returns a pointer to the step with the given index, or nil.
func (p *Plan) StepByIndex(idx int) *Step {
	for i := range p.Steps {
		if p.Steps[i].Index == idx {
			return &p.Steps[i]
		}
	}
	return nil
}

// NextIndex returns the index the next appended step should use.
func (p *Plan) NextIndex() int {
	next := 0
	for _, s := range p.Steps {
		if s.Index >= next {
			next = s.Index + 1
		}
	}
	return next
}
