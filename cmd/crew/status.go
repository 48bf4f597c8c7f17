package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwhitt/crew/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [plan-id]",
	Short: "Show a plan's steps and their progress",
	Long: `Display the status of a plan: each step with its agent, state, and
any output or failure reason, plus the plan's final output once the
last step has succeeded.

Without a plan id, the most recent plan in the conversation is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Status reads persisted state only; no model client needed.
		a.executor = newStatusExecutor(a)

		planID, err := resolvePlanID(a, args)
		if err != nil {
			return err
		}
		return printStatus(a, planID)
	},
}

// resolvePlanID picks the explicit plan id or falls back to the latest
// plan in the conversation.
func resolvePlanID(a *app, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	plan, err := a.db.LatestPlan(flagConversation)
	if err != nil {
		return "", err
	}
	if plan == nil {
		return "", fmt.Errorf("no plans in conversation %q; run 'crew run <task>' to start", flagConversation)
	}
	return plan.ID, nil
}

func printStatus(a *app, planID string) error {
	status, err := a.executor.Status(planID)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("Plan %s: %s\n", status.PlanID, status.Task)
	fmt.Printf("Status: %s\n\n", colorPlanStatus(status.Status))

	for _, s := range status.Steps {
		fmt.Printf("  %d. %s [%s] %s\n", s.Index, colorStepStatus(s.Status), s.Agent, s.Description)
		if s.Error != "" {
			color.Red("     error: %s", s.Error)
		}
	}

	if status.FinalOutput != "" {
		bold.Println("\nOutput:")
		fmt.Println(status.FinalOutput)
	}
	return nil
}

func colorPlanStatus(s models.PlanStatus) string {
	switch s {
	case models.PlanStatusCompleted:
		return color.GreenString(string(s))
	case models.PlanStatusFailed:
		return color.RedString(string(s))
	case models.PlanStatusPaused:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func colorStepStatus(s models.StepStatus) string {
	switch s {
	case models.StepStatusSucceeded:
		return color.GreenString("✓")
	case models.StepStatusFailed:
		return color.RedString("✗")
	case models.StepStatusSkipped:
		return color.YellowString("–")
	case models.StepStatusRunning:
		return color.CyanString("▸")
	default:
		return "·"
	}
}
