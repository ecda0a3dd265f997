package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/output"
)

var (
	listUpdatesOnly bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Show installed apps and their update status",
		Example: `  # All tracked apps
  ghstore list

  # Only apps with an update available
  ghstore list --updates`,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().BoolVar(&listUpdatesOnly, "updates", false, "only show apps with updates available")
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	apps, err := e.store.ListApps()
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}
	if listUpdatesOnly {
		apps, err = e.store.ListAppsWithUpdates()
		if err != nil {
			return fmt.Errorf("failed to list apps: %w", err)
		}
	}

	fmt.Print(output.RenderAppTable(apps))
	return nil
}
