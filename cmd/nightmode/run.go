package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/claude-nightmode/internal/backlog"
	"github.com/hochfrequenz/claude-nightmode/internal/budget"
	"github.com/hochfrequenz/claude-nightmode/internal/config"
	"github.com/hochfrequenz/claude-nightmode/internal/executor"
	"github.com/hochfrequenz/claude-nightmode/internal/notify"
	"github.com/hochfrequenz/claude-nightmode/internal/schedule"
	"github.com/hochfrequenz/claude-nightmode/internal/taskstore"
)

var (
	runDryRun    bool
	runForce     bool
	runRemaining int64
	runResetIn   int
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and execute tonight's batch now",
		RunE:  runNight,
	}
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "plan and fabricate results without touching the agent or git")
	runCmd.Flags().BoolVar(&runForce, "force", false, "run even outside the night window")
	runCmd.Flags().Int64Var(&runRemaining, "remaining-cents", 0, "override the remaining balance")
	runCmd.Flags().IntVar(&runResetIn, "reset-minutes", 0, "override minutes until the window reset")
	rootCmd.AddCommand(runCmd)

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the backlog and run every night at the start hour",
		RunE:  runDaemon,
	}
	rootCmd.AddCommand(daemonCmd)
}

type nightOptions struct {
	dryRun            bool
	force             bool
	remainingOverride int64
	resetInOverride   int
}

func runNight(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return executeNight(cmd.Context(), cfg, store, nightOptions{
		dryRun:            runDryRun,
		force:             runForce,
		remainingOverride: runRemaining,
		resetInOverride:   runResetIn,
	})
}

// executeNight is the full nightly flow: plan against the budget, park
// operator work, run the batch, record spend, and report.
func executeNight(ctx context.Context, cfg *config.Config, store *taskstore.Store, opts nightOptions) error {
	planner := newPlanner(cfg)
	if !planner.IsNightTime() && !opts.force {
		fmt.Printf("Outside the night window (%02d:00-%02d:00); use --force to run anyway.\n",
			cfg.Night.StartHour, cfg.Night.EndHour)
		return nil
	}

	tasks, err := store.QueuedTasks()
	if err != nil {
		return err
	}

	source := newSource(cfg, store, opts.remainingOverride, opts.resetInOverride)
	remaining, resetAt, err := source.Remaining()
	if err != nil {
		if !opts.dryRun {
			return fmt.Errorf("%w (take a snapshot or pass --remaining-cents)", err)
		}
		// Dry runs should work before any bookkeeping exists
		remaining = 1000
		resetAt = budget.NextReset(time.Now(), cfg.Governor.WindowResetHour)
		fmt.Printf("No credit snapshot; assuming $%.2f for the dry run\n", float64(remaining)/100)
	}

	plan := planner.Plan(tasks, remaining, resetAt)
	if len(plan.Tasks) == 0 {
		fmt.Printf("Nothing to run: %s\n", plan.Reason)
		return nil
	}

	branch := planner.BranchName(time.Now())
	fmt.Printf("Running %d tasks on %s, batch cap $%.2f\n",
		len(plan.Tasks), branch, float64(plan.BudgetCapCents)/100)

	exe := executor.New(newRunner(cfg), store, nil)
	exe.SetDryRun(opts.dryRun)

	safetyCommits := exe.SafetyCommitAll(plan)
	for _, sc := range safetyCommits {
		if sc.Skipped {
			fmt.Printf("  safety commit %s: skipped (%s)\n", filepath.Base(sc.Project), sc.Reason)
		} else {
			fmt.Printf("  safety commit %s: %s\n", filepath.Base(sc.Project), sc.Branch)
		}
	}

	led := newLedger(store)
	results := exe.ExecuteBatch(ctx, plan, branch, func(completed, total int, result executor.TaskResult) {
		mark := "ok"
		if !result.Success {
			mark = "FAIL"
		}
		fmt.Printf("  [%d/%d] %s %s\n", completed, total, mark, result.Task.Title)

		if opts.dryRun {
			return
		}
		err := led.RecordExecution(result.Task.ID, result.Execution.ID,
			int64(result.Execution.TotalTokens), int64(result.Execution.CostUsdCents), result.Task.Title)
		if err != nil {
			fmt.Fprintf(os.Stderr, "recording spend for %s: %v\n", result.Task.ID, err)
		}
	})

	report := exe.GenerateMorningReport(results, safetyCommits)
	fmt.Println()
	fmt.Println(report)

	if opts.dryRun {
		return nil
	}

	typ := notify.NotifySuccess
	for _, r := range results {
		if !r.Success {
			typ = notify.NotifyWarning
		}
	}
	err = newNotifier(cfg).Send(notify.Notification{
		Title:   "Night Mode Report",
		Message: report,
		Type:    typ,
		Branch:  branch,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sending notification: %v\n", err)
	}
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.General.BacklogDir, 0755); err != nil {
		return err
	}

	importer := backlog.NewImporter(store)
	watcher, err := backlog.NewWatcher(cfg.General.BacklogDir, func(changed []string) {
		for _, path := range changed {
			if _, err := importer.ImportFile(path); err != nil {
				log.Printf("[daemon] importing %s: %v", path, err)
			}
		}
	})
	if err != nil {
		return err
	}
	watcher.Start(ctx)

	// Catch up on files dropped while the daemon was down
	if _, err := importer.ImportDir(cfg.General.BacklogDir); err != nil {
		log.Printf("[daemon] initial import: %v", err)
	}

	sched, err := schedule.New(cfg.Night.StartHour, nil)
	if err != nil {
		return err
	}

	log.Printf("[daemon] watching %s, next run %s",
		cfg.General.BacklogDir, sched.NextRun().Format("2006-01-02 15:04"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start(func() error {
			return executeNight(ctx, cfg, store, nightOptions{})
		})
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		watcher.Stop()
		return nil
	})
	return g.Wait()
}
