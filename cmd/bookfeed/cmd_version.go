package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/bookfeed/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "bookfeed", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
