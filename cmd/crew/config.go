package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwhitt/crew/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration after merging defaults, the user config file,
the project config file, and environment variables.

Config files:
  user:    ` + "~/.config/crew/config.yaml" + `
  project: .crew.yaml (searched upward from the working directory)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		roster, err := loadRoster()
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)

		bold.Println("Model")
		fmt.Printf("  model:        %s\n", cfg.Anthropic.Model)
		fmt.Printf("  api key:      %s\n", maskKey(cfg.Anthropic.APIKey))
		fmt.Printf("  bedrock:      %v\n", cfg.Anthropic.UseBedrock)

		bold.Println("Workflow")
		fmt.Printf("  max parallel: %d\n", cfg.Workflow.MaxParallel)
		fmt.Printf("  max hops:     %d\n", cfg.Workflow.MaxHops)

		bold.Println("Gateway")
		fmt.Printf("  call timeout: %s\n", cfg.Gateway.CallTimeout)
		fmt.Printf("  max attempts: %d\n", cfg.Gateway.MaxAttempts)

		bold.Println("Defaults")
		fmt.Printf("  window size:  %d\n", cfg.Defaults.WindowSize)
		fmt.Printf("  step cost:    %d\n", cfg.Defaults.StepCost)

		bold.Println("Agents")
		for _, id := range roster.IDs() {
			agent, _ := roster.Get(id)
			marker := " "
			if id == roster.Default().ID {
				marker = "*"
			}
			fmt.Printf("  %s %s (%s), step cost %d\n", marker, id, agent.Name, agent.StepCost)
		}

		return nil
	},
}

func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
