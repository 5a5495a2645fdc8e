package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/claude-nightmode/internal/backlog"
	"github.com/hochfrequenz/claude-nightmode/internal/budget"
	"github.com/hochfrequenz/claude-nightmode/internal/config"
	"github.com/hochfrequenz/claude-nightmode/internal/domain"
	"github.com/hochfrequenz/claude-nightmode/internal/executor"
	"github.com/hochfrequenz/claude-nightmode/internal/governor"
	"github.com/hochfrequenz/claude-nightmode/internal/ledger"
	"github.com/hochfrequenz/claude-nightmode/internal/nightplan"
	"github.com/hochfrequenz/claude-nightmode/internal/notify"
	"github.com/hochfrequenz/claude-nightmode/internal/schedule"
	"github.com/hochfrequenz/claude-nightmode/internal/taskstore"
)

var (
	listStatus    string
	listProject   string
	listMaxRisk   int
	listLimit     int
	planRemaining int64
	planResetIn   int
)

func init() {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file, database, and backlog directory",
		RunE:  runInit,
	}
	rootCmd.AddCommand(initCmd)

	importCmd := &cobra.Command{
		Use:   "import [PATH]",
		Short: "Import discovered tasks from backlog YAML files",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runImport,
	}
	rootCmd.AddCommand(importCmd)

	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage the task queue",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, best score first",
		RunE:  runTasksList,
	}
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().StringVar(&listProject, "project", "", "filter by project path")
	listCmd.Flags().IntVar(&listMaxRisk, "max-risk", 0, "filter by maximum risk")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "limit the number of rows")
	tasksCmd.AddCommand(listCmd)
	tasksCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show one task with its execution history",
		Args:  cobra.ExactArgs(1),
		RunE:  runTasksShow,
	})
	tasksCmd.AddCommand(&cobra.Command{
		Use:   "skip ID",
		Short: "Take a queued task out of consideration",
		Args:  cobra.ExactArgs(1),
		RunE:  runTasksSkip,
	})
	tasksCmd.AddCommand(&cobra.Command{
		Use:   "requeue ID",
		Short: "Put a failed or skipped task back in the queue",
		Args:  cobra.ExactArgs(1),
		RunE:  runTasksRequeue,
	})
	rootCmd.AddCommand(tasksCmd)

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the batch tonight's run would select",
		RunE:  runPlan,
	}
	planCmd.Flags().Int64Var(&planRemaining, "remaining-cents", 0, "override the remaining balance")
	planCmd.Flags().IntVar(&planResetIn, "reset-minutes", 0, "override minutes until the window reset")
	rootCmd.AddCommand(planCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue, budget, and window status",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (*taskstore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.General.DatabasePath), 0755); err != nil {
		return nil, err
	}
	return taskstore.New(cfg.General.DatabasePath)
}

func newGovernor(cfg *config.Config) *governor.Governor {
	return governor.New(governor.Config{
		CreditCapPercent:           cfg.Governor.CreditCapPercent,
		MaxBudgetPerTaskUsdCents:   cfg.Governor.MaxBudgetPerTaskCents,
		HardStopMinutesBeforeReset: cfg.Governor.HardStopMinutes,
		WindowResetHour:            cfg.Governor.WindowResetHour,
	}, nil)
}

func newPlanner(cfg *config.Config) *nightplan.Planner {
	return nightplan.New(nightplan.Config{
		StartHour: cfg.Night.StartHour,
		EndHour:   cfg.Night.EndHour,
		MaxRisk:   cfg.Night.MaxRisk,
	}, newGovernor(cfg), nil)
}

func newLedger(store *taskstore.Store) *ledger.Ledger {
	return ledger.New(store, nil)
}

func newNotifier(cfg *config.Config) notify.Notifier {
	return notify.NewMultiNotifier(
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
	)
}

func newRunner(cfg *config.Config) *executor.ClaudeRunner {
	runner := executor.NewClaudeRunner(cfg.Agent.Binary, cfg.Agent.Model,
		time.Duration(cfg.Agent.TimeoutSeconds)*time.Second)
	if cfg.Agent.MaxOutputKB > 0 {
		runner.MaxOutput = cfg.Agent.MaxOutputKB * 1024
	}
	return runner
}

// newSource picks the budget source: an explicit override from flags
// wins, otherwise the latest credit snapshot.
func newSource(cfg *config.Config, store *taskstore.Store, overrideCents int64, overrideResetIn int) budget.Source {
	if overrideCents > 0 {
		resetIn := overrideResetIn
		if resetIn <= 0 {
			return budget.FixedSource{
				Cents:   overrideCents,
				ResetAt: budget.NextReset(time.Now(), cfg.Governor.WindowResetHour),
			}
		}
		return budget.FixedSource{
			Cents:   overrideCents,
			ResetAt: time.Now().Add(time.Duration(resetIn) * time.Minute),
		}
	}
	return budget.NewSnapshotSource(newLedger(store), cfg.General.AccountID)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Default().Save(path); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
	} else {
		fmt.Printf("Config already exists at %s\n", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.General.BacklogDir, 0755); err != nil {
		return fmt.Errorf("creating backlog directory: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	store.Close()

	fmt.Printf("Database   %s\n", cfg.General.DatabasePath)
	fmt.Printf("Backlog    %s\n", cfg.General.BacklogDir)
	fmt.Println("Drop discovery YAML files into the backlog directory and run 'nightmode import'.")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	path := cfg.General.BacklogDir
	if len(args) > 0 {
		path = args[0]
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	importer := backlog.NewImporter(store)
	var result *backlog.ImportResult
	if info.IsDir() {
		result, err = importer.ImportDir(path)
	} else {
		result, err = importer.ImportFile(path)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d tasks, %d duplicates skipped\n", result.Imported, result.Skipped)
	for _, e := range result.Errors {
		fmt.Printf("  invalid: %s\n", e)
	}
	return nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.ListTasks(taskstore.ListOptions{
		Status:  domain.TaskStatus(listStatus),
		Project: listProject,
		MaxRisk: listMaxRisk,
		Limit:   listLimit,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCORE\tRISK\tSTATUS\tPROJECT\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%.2f\t%d\t%s\t%s\t%s\n",
			shortID(t.ID), t.EffectiveScore(), t.Risk, t.Status, filepath.Base(t.Project), t.Title)
	}
	w.Flush()
	return nil
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	task, err := store.GetTask(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID          %s\n", task.ID)
	fmt.Printf("Title       %s\n", task.Title)
	fmt.Printf("Project     %s\n", task.Project)
	if task.File != "" {
		fmt.Printf("Location    %s:%d\n", task.File, task.Line)
	}
	if task.Category != "" {
		fmt.Printf("Category    %s\n", task.Category)
	}
	fmt.Printf("Status      %s\n", task.Status)
	fmt.Printf("Score       %.2f (impact %d, confidence %d, risk %d, duration %d)\n",
		task.EffectiveScore(), task.Impact, task.Confidence, task.Risk, task.Duration)
	if task.Description != "" {
		fmt.Printf("\n%s\n", task.Description)
	}

	executions, err := store.ListExecutions(task.ID)
	if err != nil {
		return err
	}
	if len(executions) > 0 {
		fmt.Println("\nExecutions:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  STARTED\tEXIT\tCOST\tTOKENS\tCOMMIT")
		for _, e := range executions {
			fmt.Fprintf(w, "  %s\t%d\t$%.2f\t%d\t%s\n",
				e.StartedAt.Format("2006-01-02 15:04"), e.ExitCode,
				float64(e.CostUsdCents)/100, e.TotalTokens, shortID(e.CommitHash))
		}
		w.Flush()
	}
	return nil
}

func runTasksSkip(cmd *cobra.Command, args []string) error {
	return transitionTask(args[0], domain.StatusSkipped, domain.StatusQueued)
}

func runTasksRequeue(cmd *cobra.Command, args []string) error {
	return transitionTask(args[0], domain.StatusQueued, domain.StatusFailed, domain.StatusSkipped)
}

// transitionTask applies an operator-driven status change, refusing
// transitions from any status not in the allowed set.
func transitionTask(id string, to domain.TaskStatus, from ...domain.TaskStatus) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	task, err := store.GetTask(id)
	if err != nil {
		return err
	}

	allowed := false
	for _, f := range from {
		if task.Status == f {
			allowed = true
		}
	}
	if !allowed {
		return fmt.Errorf("cannot move task from %s to %s", task.Status, to)
	}

	if err := store.UpdateTaskStatus(task.ID, to); err != nil {
		return err
	}
	fmt.Printf("%s: %s -> %s\n", shortID(task.ID), task.Status, to)
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.QueuedTasks()
	if err != nil {
		return err
	}

	source := newSource(cfg, store, planRemaining, planResetIn)
	remaining, resetAt, err := source.Remaining()
	if err != nil {
		return fmt.Errorf("%w (take a snapshot or pass --remaining-cents)", err)
	}

	planner := newPlanner(cfg)
	gov := newGovernor(cfg)
	plan := planner.Plan(tasks, remaining, resetAt)
	eval := gov.Evaluate(tasks, remaining, resetAt)

	fmt.Printf("Remaining balance  $%.2f, window resets %s\n",
		float64(remaining)/100, resetAt.Format("15:04"))
	fmt.Printf("Batch cap          $%.2f (%d%% of remaining)\n",
		float64(plan.BudgetCapCents)/100, cfg.Governor.CreditCapPercent)
	fmt.Printf("Affordable         %d of %d queued\n", eval.ApprovedCount, len(tasks))

	if len(plan.Tasks) == 0 {
		fmt.Printf("\nNothing to run: %s\n", plan.Reason)
		return nil
	}

	fmt.Printf("\nSelected %d tasks (%d skipped), estimated %d min:\n",
		len(plan.Tasks), plan.TasksSkipped, planner.EstimateDurationMinutes(plan))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tSCORE\tRISK\tPROJECT\tTITLE")
	for _, t := range plan.Tasks {
		fmt.Fprintf(w, "  %s\t%.2f\t%d\t%s\t%s\n",
			shortID(t.ID), t.EffectiveScore(), t.Risk, filepath.Base(t.Project), t.Title)
	}
	w.Flush()
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.ListTasks(taskstore.ListOptions{})
	if err != nil {
		return err
	}

	counts := make(map[domain.TaskStatus]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	fmt.Printf("Tasks: %d total | %d queued | %d running | %d completed | %d failed | %d skipped\n",
		len(tasks), counts[domain.StatusQueued], counts[domain.StatusRunning],
		counts[domain.StatusCompleted], counts[domain.StatusFailed], counts[domain.StatusSkipped])

	planner := newPlanner(cfg)
	if planner.IsNightTime() {
		fmt.Printf("Window: inside night window (%02d:00-%02d:00)\n", cfg.Night.StartHour, cfg.Night.EndHour)
	} else {
		fmt.Printf("Window: outside night window (%02d:00-%02d:00)\n", cfg.Night.StartHour, cfg.Night.EndHour)
	}

	sched, err := schedule.New(cfg.Night.StartHour, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Next run: %s\n", sched.NextRun().Format("2006-01-02 15:04"))

	source := budget.NewSnapshotSource(newLedger(store), cfg.General.AccountID)
	remaining, resetAt, err := source.Remaining()
	if err != nil {
		fmt.Printf("Budget: unknown (%v)\n", err)
		return nil
	}

	gov := newGovernor(cfg)
	fmt.Printf("Budget: $%.2f remaining, window resets %s\n",
		float64(remaining)/100, resetAt.Format("2006-01-02 15:04"))
	if gov.WithinHardStop(resetAt) {
		fmt.Printf("Hard stop: active (within %d min of reset)\n", cfg.Governor.HardStopMinutes)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
