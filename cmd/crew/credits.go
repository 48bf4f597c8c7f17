package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the user's credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}
		defer a.Close()

		balance, err := a.ledger.Balance(cmd.Context(), flagUser)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d credits\n", flagUser, balance)
		return nil
	},
}

var creditsAddCmd = &cobra.Command{
	Use:   "add [amount]",
	Short: "Top up the user's credit balance",
	Long: `Add credits to the user's balance. Without an amount, the configured
initial balance is granted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}
		defer a.Close()

		amount := a.cfg.Defaults.InitialBalance
		if len(args) > 0 {
			amount, err = strconv.ParseInt(args[0], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[0])
			}
		}

		if err := a.ledger.Credit(cmd.Context(), flagUser, amount); err != nil {
			return err
		}

		balance, err := a.ledger.Balance(cmd.Context(), flagUser)
		if err != nil {
			return err
		}
		fmt.Printf("Added %d credits. %s now has %d.\n", amount, flagUser, balance)
		return nil
	},
}

func init() {
	creditsCmd.AddCommand(creditsAddCmd)
}
