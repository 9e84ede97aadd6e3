package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"Melodex/server"
)

var rootCmd = &cobra.Command{
	Use:   "melodex",
	Short: "Melodex is a personal music library manager.",
	Run: func(cmd *cobra.Command, args []string) {
		// Running without a subcommand starts the server, same as `melodex server`.
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
