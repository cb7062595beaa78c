package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pilot/internal/agent"
	"pilot/internal/compaction"
	"pilot/internal/config"
	"pilot/internal/events"
	"pilot/internal/input"
	"pilot/internal/jsvm"
	"pilot/internal/screen"
	"pilot/internal/skills"
	"pilot/internal/storage"
	"pilot/internal/tools/builtin"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		jsonOutput    bool
		maxIterations int
		deadline      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Run a single goal in the foreground",
		Long: `Run a single automation goal without the daemon.

The command captures the screen, drives the decision loop and prints
progress events until the goal completes, fails or is interrupted with
Ctrl-C.`,
		Example: `  # Open the system settings
  pilot run "open the system settings and switch to dark mode"

  # Bound the loop
  pilot run --max-iterations 10 --deadline 2m "close all finder windows"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")
			return runGoal(cmd, goal, jsonOutput, maxIterations, deadline)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the final result as JSON")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration bound (overrides config)")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "goal deadline (overrides config)")

	return cmd
}

func runGoal(cmd *cobra.Command, goal string, jsonOutput bool, maxIterations int, deadline time.Duration) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Logger

	prov, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	db, err := storage.Open(cliCtx.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer db.Close()
	store := storage.NewStore(db)

	capturer := screen.New(screen.Config{
		MaxWidth:    cfg.Screen.MaxWidth,
		JPEGQuality: cfg.Screen.JPEGQuality,
	})
	driver := input.NewSystemDriver(cfg.Executor.ActionTimeout())
	if err := driver.Check(); err != nil {
		return fmt.Errorf("input driver unavailable: %w", err)
	}

	skillsDir := cfg.Skills.Dir
	if skillsDir == "" {
		skillsDir, err = config.DefaultSkillsDir()
		if err != nil {
			return fmt.Errorf("failed to determine skills dir: %w", err)
		}
	}
	skillsMgr := skills.NewManager(skillsDir)
	if err := skillsMgr.LoadAll(); err != nil {
		log.Warn().Err(err).Str("dir", skillsDir).Msg("Failed to load skills")
	}

	jsRuntime := jsvm.NewRuntime(jsvm.DefaultRuntimeConfig())
	defer jsRuntime.Close()

	bus := events.NewBus()
	defer bus.Close()

	var wg sync.WaitGroup
	if !jsonOutput {
		ch, cancel := bus.Subscribe()
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			printEvents(ch)
		}()
	}

	if maxIterations <= 0 {
		maxIterations = cfg.Loop.MaxIterations
	}
	if deadline <= 0 {
		deadline = cfg.Loop.Deadline()
	}

	orch := agent.New(agent.Config{
		Provider:               prov,
		Model:                  cfg.Provider.Model,
		Capturer:               capturer,
		Driver:                 driver,
		Tools:                  builtin.NewRegistryWithBuiltins(),
		Skills:                 skillsMgr,
		JSRuntime:              jsRuntime,
		Store:                  store,
		Bus:                    bus,
		Compactor:              compaction.NewCompactor(compaction.DefaultConfig(), prov),
		MaxIterations:          maxIterations,
		MaxConsecutiveFailures: cfg.Loop.MaxConsecutiveFailures,
		MaxCorrections:         cfg.Executor.MaxCorrections,
		Deadline:               deadline,
		ToolTimeout:            cfg.Executor.ActionTimeout(),
		ToolWait:               cfg.Executor.ToolWait(),
	})

	// Ctrl-C interrupts the goal, a second one kills the process
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupting...")
		orch.Interrupt()
	}()

	result, err := orch.ExecuteGoal(context.Background(), goal)
	if err != nil {
		return err
	}

	bus.Close()
	wg.Wait()

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		if result.Status == agent.StatusFailure {
			os.Exit(1)
		}
		return nil
	}

	fmt.Println()
	switch result.Status {
	case agent.StatusSuccess:
		fmt.Printf("✓ %s\n", result.Summary)
	case agent.StatusPartial:
		fmt.Printf("~ %s\n", result.Summary)
	default:
		fmt.Printf("✗ %s\n", result.Summary)
	}
	fmt.Printf("  Iterations: %d, actions: %d ok / %d failed\n",
		result.Iterations, result.SuccessfulActions, result.FailedActions)

	if result.Status == agent.StatusFailure {
		os.Exit(1)
	}
	return nil
}

// printEvents renders the bus stream as progress lines.
func printEvents(ch <-chan events.Event) {
	for ev := range ch {
		switch ev.Type {
		case events.GoalStarted:
			fmt.Println("→ goal started")
		case events.IterationStarted:
			if data, ok := ev.Data.(events.IterationStartedData); ok {
				fmt.Printf("→ iteration %d/%d\n", data.Iteration, data.MaxIterations)
			}
		case events.RoundStarted:
			if data, ok := ev.Data.(events.RoundStartedData); ok && data.Intent != "" {
				fmt.Printf("  %s\n", data.Intent)
			}
		case events.ActionExecuted:
			if data, ok := ev.Data.(events.ActionExecutedData); ok {
				fmt.Printf("  ✓ %s %s\n", data.Action, data.Detail)
			}
		case events.ActionFailed:
			if data, ok := ev.Data.(events.ActionFailedData); ok {
				fmt.Printf("  ✗ %s: %s\n", data.Action, data.Error)
			}
		case events.GoalCompleted, events.GoalFailed, events.GoalInterrupted:
			// 最终状态由 run 统一输出
		}
	}
}
