package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwhitt/crew/internal/decompose"
)

var refinePlanID string

var refineCmd = &cobra.Command{
	Use:   "refine <feedback>",
	Short: "Revise a plan from feedback",
	Long: `Revise a non-terminal plan based on feedback. Steps that already
succeeded and are not contradicted by the feedback keep their outputs;
changed or new steps come back pending and run on the next resume.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feedback := strings.Join(args, " ")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		planID := refinePlanID
		if planID == "" {
			planID, err = resolvePlanID(a, nil)
			if err != nil {
				return err
			}
		}

		plan, err := a.decomposer.Refine(cmd.Context(), planID, feedback)
		if err != nil {
			if errors.Is(err, decompose.ErrPlanInvalid) {
				return fmt.Errorf("the revision did not produce a usable plan; rephrase the feedback and try again")
			}
			return err
		}

		fmt.Printf("Plan %s revised: %d steps.\n", plan.ID, len(plan.Steps))
		printPlan(plan.ID, plan.Task, a)
		return nil
	},
}

func init() {
	refineCmd.Flags().StringVar(&refinePlanID, "plan", "", "Plan to refine (defaults to the conversation's latest)")
}
