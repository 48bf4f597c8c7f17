package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConversation string
	flagUser         string
)

var rootCmd = &cobra.Command{
	Use:   "crew",
	Short: "Task decomposition and multi-agent workflow engine",
	Long: `Crew turns a natural-language task into a plan of steps, assigns each
step to an agent persona, and executes the plan in dependency order.

Simple requests get a single-step plan; complex requests are decomposed
by the model into steps with dependencies, which run with bounded
parallelism. Each step is admitted against the user's credit balance
before any model call is made.

Typical flow:
  crew run "research X and write a summary"   decompose and execute
  crew status                                 inspect the latest plan
  crew refine "make the summary shorter"      revise the plan
  crew resume                                 continue a paused plan
  crew complete                               accept the output as final`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConversation, "conversation", "default", "Conversation the command operates on")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", defaultUser(), "User the command acts as")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(creditsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
