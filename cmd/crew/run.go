package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwhitt/crew/internal/decompose"
	"github.com/mwhitt/crew/internal/workflow"
)

var runPlanOnly bool

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Decompose a task and execute the resulting plan",
	Long: `Run a task end to end: classify it, decompose it into steps if it is
complex, and execute the steps in dependency order.

Each step is charged against your credit balance before its agent is
invoked. Use 'crew credits' to inspect or top up the balance.

While a run is in flight you can steer it from another terminal by
dropping files into .crew/signals: 'pause' stops new steps from
starting, 'resume' lifts the pause, 'kill' stops the run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().BoolVar(&runPlanOnly, "plan-only", false, "Decompose and show the plan without executing it")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, letting running steps finish...")
		cancel()
	}()

	plan, err := a.decomposer.Decompose(ctx, flagConversation, flagUser, task)
	if err != nil {
		if errors.Is(err, decompose.ErrPlanActive) {
			return fmt.Errorf("a plan is already active in this conversation; use 'crew status', 'crew resume', or 'crew complete' first")
		}
		return err
	}

	printPlan(plan.ID, task, a)

	if runPlanOnly {
		return nil
	}

	watchSignals(ctx, a, plan.ID)

	if err := a.executor.Start(ctx, plan.ID); err != nil {
		if ctx.Err() != nil {
			fmt.Println("Run interrupted; resume later with 'crew resume'.")
			return nil
		}
		return err
	}

	if err := printStatus(a, plan.ID); err != nil {
		return err
	}
	printTokenUsage(a)
	return nil
}

func printTokenUsage(a *app) {
	if a.tracker == nil {
		return
	}
	in, out := a.tracker.Total()
	fmt.Printf("\nModel usage: %d calls, %d input tokens, %d output tokens\n", a.tracker.Calls(), in, out)
}

// watchSignals bridges .crew/signals files to the plan's pause
// controller while the run loop is live.
func watchSignals(ctx context.Context, a *app, planID string) {
	sm, err := workflow.NewSignalManager(".")
	if err != nil {
		return
	}
	sm.ClearSignals()

	go func() {
		defer sm.Close()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		seen := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			pc := a.executor.Controller(planID)
			if pc == nil {
				// Not registered yet on the first ticks; gone means the
				// run finished.
				if seen {
					return
				}
				continue
			}
			seen = true
			switch {
			case sm.ShouldStop():
				pc.Stop()
				return
			case sm.ShouldPause() && !pc.IsPaused():
				a.executor.Pause(ctx, planID)
			case !sm.ShouldPause() && pc.IsPaused():
				a.executor.Resume(ctx, planID)
			}
		}
	}()
}

func printPlan(planID, task string, a *app) {
	plan, err := a.db.ReadPlan(planID)
	if err != nil || plan == nil {
		return
	}

	bold := color.New(color.Bold)
	bold.Printf("Plan for: %s\n", task)
	for _, s := range plan.Steps {
		deps := ""
		if len(s.DependsOn) > 0 {
			deps = fmt.Sprintf(" (after %v)", s.DependsOn)
		}
		fmt.Printf("  %d. [%s] %s%s\n", s.Index, s.AssignedAgent, s.Description, deps)
	}
}
