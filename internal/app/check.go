package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/output"
)

var checkCmd = &cobra.Command{
	Use:   "check [package]",
	Short: "Check for new releases",
	Long: `Check GitHub for new releases of installed apps.

With a package argument only that app is checked; otherwise every app
with update checks enabled is swept. Results are persisted, so a later
'ghstore list' or 'ghstore update' sees them.`,
	Example: `  # Sweep all apps
  ghstore check

  # Check one app
  ghstore check lazygit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	RootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	engine := e.engine()

	if len(args) == 1 {
		pkg := args[0]
		app, err := e.store.GetApp(pkg)
		if err != nil {
			return fmt.Errorf("failed to load app: %w", err)
		}
		if app == nil {
			return fmt.Errorf("no app named %q is tracked", pkg)
		}
		if engine.Check(cmd.Context(), pkg) {
			updated, _ := e.store.GetApp(pkg)
			fmt.Printf("%s: update available, %s -> %s\n", pkg, updated.InstalledVersion, updated.LatestVersion)
		} else {
			fmt.Printf("%s: up to date\n", pkg)
		}
		return nil
	}

	spinner := output.NewSpinner("Checking for updates")
	spinner.Start()
	count, err := engine.CheckAll(cmd.Context())
	spinner.Stop()
	if err != nil {
		return err
	}

	if count == 0 {
		fmt.Println("All apps are up to date.")
		return nil
	}
	fmt.Printf("%d update(s) available:\n\n", count)

	apps, err := e.store.ListAppsWithUpdates()
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}
	fmt.Print(output.RenderAppTable(apps))
	return nil
}
