package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwhitt/crew/internal/workflow"
)

var pauseCmd = &cobra.Command{
	Use:   "pause [plan-id]",
	Short: "Pause an active plan",
	Long: `Pause an active plan. Running steps finish and commit their results;
no new step starts until the plan is resumed.

If the plan is executing in another process, a pause signal file is
dropped in .crew/signals for that process to pick up.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}
		defer a.Close()
		a.executor = newStatusExecutor(a)

		planID, err := resolvePlanID(a, args)
		if err != nil {
			return err
		}

		if err := a.executor.Pause(cmd.Context(), planID); err != nil {
			return err
		}

		if sm, err := workflow.NewSignalManager("."); err == nil {
			sm.SendPause()
			sm.Close()
		}

		fmt.Printf("Plan %s paused.\n", planID)
		return nil
	},
}
