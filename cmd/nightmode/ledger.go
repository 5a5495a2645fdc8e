package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/claude-nightmode/internal/budget"
	"github.com/hochfrequenz/claude-nightmode/internal/domain"
	"github.com/hochfrequenz/claude-nightmode/internal/executor"
)

var (
	ledgerLimit       int
	creditCurrency    string
	creditDescription string
	snapshotUsdCents  int64
	snapshotTokens    int64
	snapshotResetAt   string
	reportSinceHours  int
)

func init() {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and adjust the spending ledger",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries, newest first",
		RunE:  runLedgerList,
	}
	listCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "limit the number of rows (0 for all)")
	ledgerCmd.AddCommand(listCmd)

	creditCmd := &cobra.Command{
		Use:   "credit AMOUNT",
		Short: "Record a credit from the subscription",
		Args:  cobra.ExactArgs(1),
		RunE:  runLedgerCredit,
	}
	creditCmd.Flags().StringVar(&creditCurrency, "currency", "usd_cents", "usd_cents or tokens")
	creditCmd.Flags().StringVar(&creditDescription, "description", "manual credit", "entry description")
	ledgerCmd.AddCommand(creditCmd)
	rootCmd.AddCommand(ledgerCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record and inspect credit window snapshots",
	}
	takeCmd := &cobra.Command{
		Use:   "take",
		Short: "Record the current subscription balance",
		RunE:  runSnapshotTake,
	}
	takeCmd.Flags().Int64Var(&snapshotUsdCents, "usd-cents", 0, "spendable balance in cents")
	takeCmd.Flags().Int64Var(&snapshotTokens, "tokens", 0, "token balance")
	takeCmd.Flags().StringVar(&snapshotResetAt, "reset-at", "", "window reset time (RFC 3339), default next reset hour")
	takeCmd.MarkFlagRequired("usd-cents")
	snapshotCmd.AddCommand(takeCmd)
	snapshotCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the latest snapshot and the derived balance",
		RunE:  runSnapshotShow,
	})
	rootCmd.AddCommand(snapshotCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuild the morning report from recorded executions",
		RunE:  runReport,
	}
	reportCmd.Flags().IntVar(&reportSinceHours, "since-hours", 24, "look back this many hours")
	rootCmd.AddCommand(reportCmd)
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListEntries(cfg.General.AccountID, ledgerLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tAMOUNT\tCOUNTERPARTY\tDESCRIPTION")
	for _, e := range entries {
		amount := fmt.Sprintf("%d tok", e.Amount)
		if e.Currency == domain.CurrencyUsdCents {
			amount = fmt.Sprintf("$%.2f", float64(e.Amount)/100)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.EntryType, amount, e.CounterpartyID, e.Description)
	}
	w.Flush()
	return nil
}

func runLedgerCredit(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing amount: %w", err)
	}

	var currency domain.Currency
	switch creditCurrency {
	case "usd_cents":
		currency = domain.CurrencyUsdCents
	case "tokens":
		currency = domain.CurrencyTokens
	default:
		return fmt.Errorf("unknown currency %q", creditCurrency)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := newLedger(store).RecordCredit(cfg.General.AccountID, amount, currency, creditDescription); err != nil {
		return err
	}
	fmt.Printf("Credited %d %s to %s\n", amount, creditCurrency, cfg.General.AccountID)
	return nil
}

func runSnapshotTake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resetAt := budget.NextReset(time.Now(), cfg.Governor.WindowResetHour)
	if snapshotResetAt != "" {
		resetAt, err = time.Parse(time.RFC3339, snapshotResetAt)
		if err != nil {
			return fmt.Errorf("parsing --reset-at: %w", err)
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := newLedger(store).TakeSnapshot(cfg.General.AccountID, snapshotTokens, snapshotUsdCents, resetAt)
	if err != nil {
		return err
	}

	fmt.Printf("Snapshot: $%.2f spendable, window resets %s\n",
		float64(snap.UsdCentsBalance)/100, snap.WindowResetAt.Format("2006-01-02 15:04"))
	return nil
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	led := newLedger(store)
	snap, err := led.LatestSnapshot(cfg.General.AccountID)
	if err != nil {
		return err
	}
	if snap == nil {
		fmt.Println("No snapshot recorded; run 'nightmode snapshot take --usd-cents N'.")
		return nil
	}

	fmt.Printf("Captured    %s\n", snap.CapturedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Balance     $%.2f, %d tokens\n", float64(snap.UsdCentsBalance)/100, snap.TokenBalance)
	fmt.Printf("Resets      %s\n", snap.WindowResetAt.Format("2006-01-02 15:04"))

	remaining, _, err := budget.NewSnapshotSource(led, cfg.General.AccountID).Remaining()
	if err != nil {
		return err
	}
	fmt.Printf("Remaining   $%.2f after recorded spend\n", float64(remaining)/100)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	since := time.Now().Add(-time.Duration(reportSinceHours) * time.Hour)
	executions, err := store.ListExecutionsSince(since)
	if err != nil {
		return err
	}

	results := make([]executor.TaskResult, 0, len(executions))
	for _, e := range executions {
		task, err := store.GetTask(e.TaskID)
		if err != nil {
			continue
		}
		results = append(results, executor.TaskResult{
			Task:      *task,
			Execution: *e,
			Success:   e.ExitCode == 0,
			Error:     e.Stderr,
		})
	}

	exe := executor.New(nil, nil, nil)
	fmt.Print(exe.GenerateMorningReport(results, nil))
	return nil
}
