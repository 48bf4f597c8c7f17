package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var chatAgent string

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to an agent",
	Long: `Send a message to an agent in the conversation and print the reply.
The exchange is recorded in the conversation history, so later plans
and other agents see it as context.

An agent reply that opens with @another-agent is forwarded onward,
bounded by the configured hop ceiling.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		reply, err := a.router.Route(cmd.Context(), flagUser, chatAgent, flagConversation, flagUser, message)
		if err != nil {
			return err
		}

		agent, _ := a.roster.Get(chatAgent)
		color.New(color.Bold).Printf("%s: ", agent.Name)
		fmt.Println(reply)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatAgent, "agent", "", "Agent to address (defaults to the roster's default)")
	chatCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if chatAgent == "" {
			if roster, err := loadRoster(); err == nil {
				chatAgent = roster.Default().ID
			}
		}
	}
}
