package decompose

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/mwhitt/crew/pkg/models"
)

// Refine revises a plan from user feedback. Completed work is preserved:
// a returned step that keeps its index and description also keeps its
// status and output. Changed or new steps come back pending. Steps the
// model does not mention are left exactly as they are.
func (d *Decomposer) Refine(ctx context.Context, planID, feedback string) (*models.Plan, error) {
	plan, err := d.db.ReadPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("refine: plan %s not found", planID)
	}
	if plan.Status.Terminal() {
		return nil, fmt.Errorf("refine: plan %s is %s", planID, plan.Status)
	}

	window, err := d.store.Window(ctx, plan.ConversationID, d.windowSize)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(refinePrompt, d.roster.Describe(), renderSteps(plan.Steps), feedback)

	merged, verr := d.requestRefinement(ctx, plan, window, prompt)
	if verr != nil && isValidationError(verr) {
		log.Printf("[decompose] invalid refinement, retrying with correction: %v", verr)
		corrected := prompt + fmt.Sprintf(correctionInstruction, verr)
		merged, verr = d.requestRefinement(ctx, plan, window, corrected)
	}
	if verr != nil {
		if isValidationError(verr) {
			return nil, fmt.Errorf("%w: %v", ErrPlanInvalid, verr)
		}
		return nil, verr
	}

	plan.Steps = merged
	plan.UpdatedAt = time.Now()
	if err := d.db.UpsertPlan(plan); err != nil {
		return nil, err
	}

	log.Printf("[decompose] plan %s refined: %d steps", plan.ID, len(plan.Steps))
	return plan, nil
}

// requestRefinement performs one refinement call, merging the indexed
// result into the existing step set and validating the outcome.
func (d *Decomposer) requestRefinement(ctx context.Context, plan *models.Plan, window []models.ConversationTurn, prompt string) ([]models.Step, error) {
	resp, err := d.completer.Complete(ctx, gatewayRequest(window, prompt))
	if err != nil {
		return nil, err
	}

	returned, err := parseIndexedSteps(resp.Text)
	if err != nil {
		return nil, err
	}

	merged, err := mergeSteps(plan.Steps, returned)
	if err != nil {
		return nil, err
	}

	if err := d.validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// mergeSteps applies returned steps onto the existing set by index.
// Settled steps whose description is unchanged keep their status and
// output; anything rewritten resets to pending. Unmentioned steps pass
// through untouched.
func mergeSteps(existing, returned []models.Step) ([]models.Step, error) {
	byIndex := make(map[int]models.Step, len(existing))
	maxIdx := -1
	for _, s := range existing {
		byIndex[s.Index] = s
		if s.Index > maxIdx {
			maxIdx = s.Index
		}
	}

	seen := make(map[int]bool, len(returned))
	for _, r := range returned {
		if r.Index < 0 {
			return nil, fmt.Errorf("negative step index %d", r.Index)
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("duplicate step index %d in refinement", r.Index)
		}
		seen[r.Index] = true

		old, exists := byIndex[r.Index]
		if !exists && r.Index <= maxIdx {
			return nil, fmt.Errorf("step index %d reuses a removed slot", r.Index)
		}
		if exists && old.Description == r.Description && old.AssignedAgent == r.AssignedAgent {
			// Same work, keep its history. Dependencies may still move.
			old.DependsOn = r.DependsOn
			byIndex[r.Index] = old
			continue
		}
		byIndex[r.Index] = r
	}

	merged := make([]models.Step, 0, len(byIndex))
	for _, s := range byIndex {
		merged = append(merged, s)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Index < merged[j].Index })
	return merged, nil
}

// renderSteps formats the plan for the refinement prompt.
func renderSteps(steps []models.Step) string {
	var b strings.Builder
	for _, s := range steps {
		deps := "none"
		if len(s.DependsOn) > 0 {
			parts := make([]string, len(s.DependsOn))
			for i, d := range s.DependsOn {
				parts[i] = fmt.Sprintf("%d", d)
			}
			deps = strings.Join(parts, ", ")
		}
		fmt.Fprintf(&b, "  [%d] (%s, agent=%s, depends on: %s) %s\n",
			s.Index, s.Status, s.AssignedAgent, deps, s.Description)
	}
	return b.String()
}
