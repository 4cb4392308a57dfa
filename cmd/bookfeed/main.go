package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the base command for the bookfeed CLI.
var rootCmd = &cobra.Command{
	Use:   "bookfeed",
	Short: "Live order book feed for crypto venues",
	Long: `bookfeed streams order books from OKX, Bybit and Deribit, reconciles
them into a bounded ladder and delivers throttled updates per subscription.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (built-in defaults when empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
