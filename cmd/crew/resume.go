package main

import (
	"github.com/spf13/cobra"

	"github.com/mwhitt/crew/internal/workflow"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [plan-id]",
	Short: "Resume a paused plan",
	Long: `Resume a paused plan. Step eligibility is re-evaluated from persisted
state, so a plan paused in an earlier process picks up exactly where it
left off; completed steps are not re-run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		planID, err := resolvePlanID(a, args)
		if err != nil {
			return err
		}

		if sm, err := workflow.NewSignalManager("."); err == nil {
			sm.SendResume()
			sm.Close()
		}

		watchSignals(cmd.Context(), a, planID)

		if err := a.executor.Resume(cmd.Context(), planID); err != nil {
			return err
		}
		if err := printStatus(a, planID); err != nil {
			return err
		}
		printTokenUsage(a)
		return nil
	},
}
