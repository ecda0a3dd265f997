package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ghstore/internal/output"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize ghstore with GitHub",
	Long: `Authorize ghstore using the GitHub device flow.

You will be shown a one-time code to enter at github.com/login/device.
ghstore polls until you approve, then stores the resulting token locally
for API requests and downloads.

Requires github.client_id to be configured (config file or
GHSTORE_GITHUB_CLIENT_ID).`,
	Example: `  # Authorize with GitHub
  ghstore login`,
	RunE: runLogin,
}

func init() {
	RootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if e.creds.Current() != "" {
		fmt.Println("Already logged in. Run 'ghstore logout' first to switch accounts.")
		return nil
	}

	session := e.sessionManager()
	deviceAuth, err := session.StartDeviceFlow(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("First, copy your one-time code: %s\n", deviceAuth.UserCode)
	if deviceAuth.VerificationURIComplete != "" {
		fmt.Printf("Then open: %s\n", deviceAuth.VerificationURIComplete)
	} else {
		fmt.Printf("Then open: %s\n", deviceAuth.VerificationURI)
	}
	fmt.Println()

	spinner := output.NewSpinner("Waiting for authorization")
	spinner.Start()
	err = session.AwaitDeviceToken(cmd.Context(), deviceAuth)
	spinner.Stop()
	if err != nil {
		return err
	}

	fmt.Println("Logged in.")
	return nil
}
