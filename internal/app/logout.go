package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored GitHub credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if e.creds.Current() == "" {
			fmt.Println("Not logged in.")
			return nil
		}
		if err := e.sessionManager().Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(logoutCmd)
}
