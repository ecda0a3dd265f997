package app

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/daemon"
	"github.com/blackwell-systems/ghstore/internal/monitor"
)

var (
	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background update daemon",
		Long: `The daemon reconciles the store against the apps directory, checks for
updates on the configured interval, and prunes old history.

'start' launches it in the background; 'run' runs it in the foreground
(Ctrl+C to stop).`,
	}

	daemonStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE:  runDaemonStart,
	}

	daemonStopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE:  runDaemonStop,
	}

	daemonRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE:  runDaemonForeground,
	}
)

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRunCmd)
	RootCmd.AddCommand(daemonCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	pidFile, err := pidFilePath()
	if err != nil {
		return err
	}
	logFile, err := logFilePath()
	if err != nil {
		return err
	}

	if err := daemon.StartBackground(pidFile, logFile); err != nil {
		return err
	}
	fmt.Printf("Daemon started (PID file: %s, log: %s)\n", pidFile, logFile)
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	pidFile, err := pidFilePath()
	if err != nil {
		return err
	}
	if err := daemon.Stop(pidFile); err != nil {
		return err
	}
	fmt.Println("Daemon stopped.")
	return nil
}

func runDaemonForeground(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	mon, err := monitor.New(e.locations, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create package monitor: %w", err)
	}

	d := daemon.New(e.store, e.engine(), mon, daemon.Config{
		CheckInterval: e.cfg.CheckInterval,
		RetentionDays: e.cfg.HistoryRetentionDays,
	}, e.logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e.logger.Info("daemon running", "interval", e.cfg.CheckInterval)
	if err := d.Run(ctx); err != nil {
		return err
	}

	pidFile, err := pidFilePath()
	if err != nil {
		return err
	}
	return daemon.RemovePIDFile(pidFile)
}
