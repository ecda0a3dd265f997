package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/pipeline"
	"github.com/blackwell-systems/ghstore/internal/store"
)

var (
	updateAll bool

	updateCmd = &cobra.Command{
		Use:   "update [package]",
		Short: "Install pending updates",
		Long: `Install the latest known release for apps with an update available.

Run 'ghstore check' first (or let the daemon do it) so the store knows
what is new. With a package argument only that app is updated; with
--all every app with a pending update is processed in turn.`,
		Example: `  # Update one app
  ghstore update lazygit

  # Update everything with a pending update
  ghstore update --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: runUpdate,
	}
)

func init() {
	updateCmd.Flags().BoolVar(&updateAll, "all", false, "update every app with a pending update")
	RootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !updateAll {
		return fmt.Errorf("name a package or pass --all")
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var targets []*store.InstalledApp
	if len(args) == 1 {
		app, err := e.store.GetApp(args[0])
		if err != nil {
			return fmt.Errorf("failed to load app: %w", err)
		}
		if app == nil {
			return fmt.Errorf("no app named %q is tracked", args[0])
		}
		if !app.UpdateAvailable {
			fmt.Printf("%s is already up to date.\n", app.PackageID)
			return nil
		}
		targets = append(targets, app)
	} else {
		targets, err = e.store.ListAppsWithUpdates()
		if err != nil {
			return fmt.Errorf("failed to list apps: %w", err)
		}
		if len(targets) == 0 {
			fmt.Println("All apps are up to date.")
			return nil
		}
	}

	var failed int
	for _, app := range targets {
		if app.LatestAssetURL == "" {
			fmt.Printf("%s: update %s has no installable asset, skipping\n", app.PackageID, app.LatestVersion)
			continue
		}
		req := pipeline.Request{
			PackageID: app.PackageID,
			AppName:   app.AppName,
			Version:   app.LatestVersion,
			AssetName: app.LatestAssetName,
			AssetURL:  app.LatestAssetURL,
			RepoID:    app.RepoID,
			RepoOwner: app.RepoOwner,
			RepoName:  app.RepoName,
		}

		fmt.Printf("Updating %s %s -> %s\n", app.PackageID, app.InstalledVersion, app.LatestVersion)
		if err := runPipeline(cmd.Context(), e, req); err != nil {
			if errors.Is(err, pipeline.ErrAlreadyInProgress) {
				fmt.Printf("%s: an install is already in progress, skipping\n", app.PackageID)
				continue
			}
			if cmd.Context().Err() != nil {
				return err
			}
			e.logger.Error("update failed", "package", app.PackageID, "error", err)
			failed++
			continue
		}
		fmt.Printf("Updated %s to %s\n", app.PackageID, app.LatestVersion)
	}

	if failed > 0 {
		return fmt.Errorf("%d update(s) failed", failed)
	}
	return nil
}
