package workflow

import (
	"fmt"

	"github.com/mwhitt/crew/pkg/models"
)

// StepStatus is one step's slice of a status snapshot.
type StepStatus struct {
	Index       int               `json:"index"`
	Description string            `json:"description"`
	Agent       string            `json:"agent"`
	Status      models.StepStatus `json:"status"`
	Output      string            `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// WorkflowStatus is a point-in-time snapshot of a plan. Reading it has no
// side effects; two reads without an intervening transition are
// identical.
type WorkflowStatus struct {
	PlanID      string            `json:"plan_id"`
	Task        string            `json:"task"`
	Status      models.PlanStatus `json:"status"`
	Steps       []StepStatus      `json:"steps"`
	FinalOutput string            `json:"final_output,omitempty"`
}

// Status builds a snapshot from persisted state. Steps appear in index
// order; FinalOutput is the highest-indexed succeeded step's output.
func (e *Executor) Status(planID string) (*WorkflowStatus, error) {
	plan, err := e.readPlan(planID)
	if err != nil {
		return nil, err
	}

	ws := &WorkflowStatus{
		PlanID: plan.ID,
		Task:   plan.Task,
		Status: plan.Status,
		Steps:  make([]StepStatus, 0, len(plan.Steps)),
	}

	for _, s := range plan.Steps {
		ws.Steps = append(ws.Steps, StepStatus{
			Index:       s.Index,
			Description: s.Description,
			Agent:       s.AssignedAgent,
			Status:      s.Status,
			Output:      s.Output,
			Error:       s.Error,
		})
		if s.Status == models.StepStatusSucceeded {
			ws.FinalOutput = s.Output
		}
	}

	return ws, nil
}

// Summary renders a one-line progress string for logs and the CLI.
func (ws *WorkflowStatus) Summary() string {
	succeeded := 0
	for _, s := range ws.Steps {
		if s.Status == models.StepStatusSucceeded {
			succeeded++
		}
	}
	return fmt.Sprintf("plan %s: %s, %d/%d steps succeeded", ws.PlanID, ws.Status, succeeded, len(ws.Steps))
}
