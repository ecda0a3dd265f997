// Package app wires the ghstore CLI: every subcommand builds its
// collaborators from the shared environment in common.go.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string

	// RootCmd is the root command for ghstore
	RootCmd = &cobra.Command{
		Use:   "ghstore",
		Short: "Install and update desktop apps straight from GitHub releases",
		Long: `ghstore turns GitHub repositories into an app store: it installs apps
from release assets, tracks what is installed, and keeps everything
up to date in the background.

Quick Start:
  1. ghstore login                    # authorize with GitHub
  2. ghstore install owner/repo      # install an app from its releases
  3. ghstore daemon start            # keep apps updated in the background

Features:
  • OAuth device flow login (no tokens to copy around)
  • Release sync with draft/prerelease filtering
  • Download, verify, and install pipeline with progress
  • Update history with retention
  • Background update daemon`,
		Example: `  # Authorize with GitHub
  ghstore login

  # Install the latest release of an app
  ghstore install jesseduffield/lazygit

  # See installed apps and pending updates
  ghstore list

  # Check for updates now
  ghstore check

  # Apply all pending updates
  ghstore update --all`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("ghstore: install and update desktop apps from GitHub releases")
			fmt.Println()
			fmt.Println("Run 'ghstore login' to get started.")
			fmt.Println("Run 'ghstore --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.ghstore/ghstore.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/ghstore/config.yaml)")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
