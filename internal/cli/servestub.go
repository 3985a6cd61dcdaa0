package cli

import (
	"github.com/spf13/cobra"
)

var serveStubCmd = &cobra.Command{
	Use:   "serve-stub",
	Short: "Run the development evaluation API stub",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ServeStub(cmd.Context())
	},
}
