package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/output"
)

var (
	historyLimit     int
	historyPruneDays int

	historyCmd = &cobra.Command{
		Use:   "history [package]",
		Short: "Show install and update history",
		Long: `Show the append-only history of installs and updates, newest first.

With a package argument only that app's rows are shown.`,
		Example: `  # Recent activity across all apps
  ghstore history

  # One app's full history
  ghstore history lazygit`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	historyPruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete history rows older than the retention window",
		Example: `  # Prune using the configured retention
  ghstore history prune

  # Prune rows older than 30 days
  ghstore history prune --older-than 30`,
		RunE: runHistoryPrune,
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum rows to show")
	historyPruneCmd.Flags().IntVar(&historyPruneDays, "older-than", 0, "age in days (default: history_retention_days)")
	historyCmd.AddCommand(historyPruneCmd)
	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if len(args) == 1 {
		rows, err := e.store.HistoryForPackage(args[0])
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		fmt.Print(output.RenderHistoryTable(rows))
		return nil
	}

	rows, err := e.store.RecentHistory(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	fmt.Print(output.RenderHistoryTable(rows))
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	days := historyPruneDays
	if days <= 0 {
		days = e.cfg.HistoryRetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("no retention window: pass --older-than or set history_retention_days")
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	purged, err := e.store.PurgeHistoryBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	fmt.Printf("Pruned %d history row(s) older than %d days.\n", purged, days)
	return nil
}
