package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:   "complete [plan-id]",
	Short: "Accept a plan's output and mark it completed",
	Long: `Mark an active or paused plan as completed, regardless of steps still
pending. Use this when the output produced so far is good enough and
nothing further should run.`,
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

		if err := a.executor.Complete(cmd.Context(), planID); err != nil {
			return err
		}

		fmt.Printf("Plan %s marked completed.\n", planID)
		return nil
	},
}
