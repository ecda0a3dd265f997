package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/output"
	"github.com/blackwell-systems/ghstore/internal/pipeline"
	"github.com/blackwell-systems/ghstore/internal/platform"
	"github.com/blackwell-systems/ghstore/internal/updates"
)

var installCmd = &cobra.Command{
	Use:   "install owner/repo",
	Short: "Install an app from its latest GitHub release",
	Long: `Install an app from the newest stable release of a repository.

The release's assets are filtered to those installable on this platform
and the best match for the current OS and architecture is downloaded,
verified, and installed. The app is then tracked for updates.

Aliases from ~/.config/ghstore/aliases can be used in place of
owner/repo.`,
	Example: `  # Install by repository
  ghstore install jesseduffield/lazygit

  # Install via a configured alias
  ghstore install lazygit`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	RootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	owner, repoName, err := e.resolveRepo(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	repo, err := e.client.GetRepository(ctx, owner, repoName)
	if err != nil {
		return fmt.Errorf("failed to look up %s/%s: %w", owner, repoName, err)
	}

	releases, err := e.client.ListReleases(ctx, owner, repoName)
	if err != nil {
		return fmt.Errorf("failed to list releases: %w", err)
	}
	release := updates.NewestStable(releases)
	if release == nil {
		return fmt.Errorf("%s/%s has no stable release", owner, repoName)
	}

	installer := e.installer()
	asset := updates.PrimaryAsset(installer, release.Assets)
	if asset == nil {
		return fmt.Errorf("release %s has no asset installable on this platform", release.TagName)
	}

	packageID, _ := platform.IdentityFromAssetName(asset.Name)
	if packageID == "" {
		packageID = repo.Name
	}

	if existing, err := e.store.GetApp(packageID); err != nil {
		return fmt.Errorf("failed to load app: %w", err)
	} else if existing != nil && existing.InstalledVersion == release.TagName {
		fmt.Printf("%s %s is already installed.\n", packageID, release.TagName)
		return nil
	}

	req := pipeline.Request{
		PackageID:   packageID,
		AppName:     repo.Name,
		Version:     release.TagName,
		AssetName:   asset.Name,
		AssetURL:    asset.DownloadURL,
		RepoID:      repo.ID,
		RepoOwner:   owner,
		RepoName:    repoName,
		RepoURL:     repo.HTMLURL,
		Description: repo.Description,
		Language:    repo.Language,
	}

	fmt.Printf("Installing %s %s\n", packageID, release.TagName)
	if err := runPipeline(ctx, e, req); err != nil {
		return err
	}
	fmt.Printf("Installed %s %s\n", packageID, release.TagName)
	return nil
}

// runPipeline executes an install request with a download progress bar.
func runPipeline(ctx context.Context, e *env, req pipeline.Request) error {
	orch := e.orchestrator()

	bar := output.NewDownloadBar(req.AssetName)
	orch.OnStatus(func(s pipeline.Status) {
		switch s.Stage {
		case pipeline.StageDownloading:
			bar.SetCurrent(s.Percent)
		case pipeline.StageVerifying:
			bar.Finish()
		}
	})

	return orch.Run(ctx, req)
}
