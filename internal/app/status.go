package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/daemon"
	"github.com/blackwell-systems/ghstore/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show login, tracking, and daemon state",
	Example: `  # Check status
  ghstore status`,
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	apps, err := e.store.ListApps()
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}
	updateCount, err := e.store.UpdateCount()
	if err != nil {
		return fmt.Errorf("failed to count updates: %w", err)
	}

	pidFile, err := pidFilePath()
	if err != nil {
		return err
	}
	daemonRunning, err := daemon.IsRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	fmt.Println(output.RenderStatusSummary(len(apps), updateCount, daemonRunning))
	fmt.Println()

	if e.creds.Current() != "" {
		fmt.Println("GitHub:   logged in")
	} else {
		fmt.Println("GitHub:   not logged in (run 'ghstore login')")
	}
	fmt.Printf("Database: %s\n", e.cfg.DBPath)
	fmt.Printf("Apps dir: %s\n", e.cfg.AppsDir)
	fmt.Printf("Interval: %s\n", e.cfg.CheckInterval)

	return nil
}
