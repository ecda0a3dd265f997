package app

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/github"
)

var infoCmd = &cobra.Command{
	Use:   "info <package|owner/repo>",
	Short: "Show details about an app or repository",
	Long: `Show repository details and the start of the readme.

A tracked package name resolves through its stored repository id, so
info keeps working after upstream renames. An owner/repo argument (or
alias) queries GitHub directly.`,
	Example: `  # A tracked app
  ghstore info lazygit

  # Any repository
  ghstore info cli/cli`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	RootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()

	var repo *github.Repository
	app, err := e.store.GetApp(args[0])
	if err != nil {
		return fmt.Errorf("failed to load app: %w", err)
	}
	if app != nil && app.RepoID != 0 {
		repo, err = e.client.GetRepositoryByID(ctx, app.RepoID)
		if err != nil {
			return fmt.Errorf("failed to look up repository: %w", err)
		}
	} else {
		owner, name, err := e.resolveRepo(args[0])
		if err != nil {
			return err
		}
		repo, err = e.client.GetRepository(ctx, owner, name)
		if err != nil {
			return fmt.Errorf("failed to look up %s/%s: %w", owner, name, err)
		}
	}

	fmt.Println(repo.FullName)
	if repo.Description != "" {
		fmt.Println(repo.Description)
	}
	fmt.Println()
	if repo.Language != "" {
		fmt.Printf("Language: %s\n", repo.Language)
	}
	fmt.Printf("URL:      %s\n", repo.HTMLURL)

	if app != nil {
		fmt.Printf("Installed: %s", app.InstalledVersion)
		if app.UpdateAvailable {
			fmt.Printf(" (update %s available)", app.LatestVersion)
		}
		fmt.Println()
		if app.UpdateAvailable && app.LatestAssetSize > 0 {
			fmt.Printf("Download:  %s\n", humanize.IBytes(uint64(app.LatestAssetSize)))
		}
	}

	parts := strings.SplitN(repo.FullName, "/", 2)
	if len(parts) != 2 {
		return nil
	}
	readme, err := e.client.GetReadme(ctx, parts[0], parts[1])
	if err != nil {
		e.logger.Warn("failed to fetch readme", "repo", repo.FullName, "error", err)
		return nil
	}
	if readme == "" {
		return nil
	}

	fmt.Println()
	fmt.Println(readmeExcerpt(readme, 20))
	return nil
}

// readmeExcerpt returns the first n lines of the readme.
func readmeExcerpt(readme string, n int) string {
	lines := strings.Split(readme, "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
