package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeOlderThan time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old finished plans",
	Long: `Delete completed and failed plans older than the cutoff, along with
their steps. Active, paused, and draft plans are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.db.PurgeOldPlans(purgeOlderThan)
		if err != nil {
			return err
		}

		fmt.Printf("Purged %d plans older than %s.\n", count, purgeOlderThan)
		return nil
	},
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "Age cutoff for terminal plans")
	rootCmd.AddCommand(purgeCmd)
}
