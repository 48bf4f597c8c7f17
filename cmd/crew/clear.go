package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase the user's conversation history",
	Long: `Erase all conversation turns recorded for the user, across all of
their conversations. Plans and credit balances are untouched.

This is irreversible; the command asks for confirmation unless --force
is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearForce {
			fmt.Printf("Erase all conversation history for %q? This cannot be undone. [y/N] ", flagUser)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		a, err := newStorageApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Clear(cmd.Context(), flagUser); err != nil {
			return err
		}

		fmt.Printf("Conversation history cleared for %s.\n", flagUser)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Skip the confirmation prompt")
}
