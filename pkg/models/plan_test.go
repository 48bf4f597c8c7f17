package models

import "testing"

func TestPlanStatusValid(t *testing.T) {
	valid := []PlanStatus{PlanStatusDraft, PlanStatusActive, PlanStatusPaused, PlanStatusCompleted, PlanStatusFailed}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if PlanStatus("running").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestPlanStatusTerminal(t *testing.T) {
	if !PlanStatusCompleted.Terminal() {
		t.Error("completed should be terminal")
	}
	if !PlanStatusFailed.Terminal() {
		t.Error("failed should be terminal")
	}
	if PlanStatusActive.Terminal() {
		t.Error("active should not be terminal")
	}
	if PlanStatusPaused.Terminal() {
		t.Error("paused should not be terminal")
	}
}

func TestStepStatusSettled(t *testing.T) {
	if !StepStatusSucceeded.Settled() {
		t.Error("succeeded should be settled")
	}
	if !StepStatusSkipped.Settled() {
		t.Error("skipped should be settled")
	}
	if StepStatusFailed.Settled() {
		t.Error("failed should not satisfy a dependency edge")
	}
	if StepStatusPending.Settled() {
		t.Error("pending should not be settled")
	}
}

func TestStepByIndex(t *testing.T) {
	plan := &Plan{
		Steps: []Step{
			{Index: 0, Description: "first"},
			{Index: 2, Description: "third"},
		},
	}

	step := plan.StepByIndex(2)
	if step == nil {
		t.Fatal("expected step at index 2")
	}
	if step.Description != "third" {
		t.Errorf("expected description %q, got %q", "third", step.Description)
	}

	if plan.StepByIndex(1) != nil {
		t.Error("expected nil for missing index")
	}
}

func TestStepByIndexReturnsPointer(t *testing.T) {
	plan := &Plan{Steps: []Step{{Index: 0}}}

	plan.StepByIndex(0).Status = StepStatusSucceeded
	if plan.Steps[0].Status != StepStatusSucceeded {
		t.Error("StepByIndex should return a pointer into the plan")
	}
}

func TestNextIndex(t *testing.T) {
	plan := &Plan{}
	if got := plan.NextIndex(); got != 0 {
		t.Errorf("empty plan: expected next index 0, got %d", got)
	}

	plan.Steps = []Step{{Index: 0}, {Index: 1}, {Index: 4}}
	if got := plan.NextIndex(); got != 5 {
		t.Errorf("expected next index 5, got %d", got)
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if Role("bot").Valid() {
		t.Error("expected unknown role to be invalid")
	}
}
