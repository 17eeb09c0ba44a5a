// Package cmd defines and implements the CLI commands for the
// shopscout executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopscout",
		Short: "Webhook service that turns shared products into purchase links.",
		Long: `shopscout receives social-messaging webhook events, extracts
candidate commerce links or downloads the shared media, runs a staged
enrichment pipeline (acquire, extract, search), and messages purchase
links back to the sender.`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(loadDotenv)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml if present)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadDotenv pulls a local .env into the process environment when one
// exists. Missing files are fine.
func loadDotenv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: load .env: %v\n", err)
	}
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
