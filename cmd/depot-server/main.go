package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "depot-server",
	Short: "Depot server - post-quantum secure file transfer endpoint",
	Long: `depot-server accepts authenticated, post-quantum secure connections
from depot clients and serves uploads, downloads, and directory
listings against a configured share root.`,
}

var configDirFlag string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "config", "directory containing environment config files")

	// Subcommands register themselves in their own files:
	// - serve.go: serveCmd
	// - keygen.go: keygenCmd
	// - trust.go: trustCmd
}
