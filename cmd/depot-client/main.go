package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "depot-client",
	Short: "Depot client - push, pull, and list files over a post-quantum secure channel",
}

var (
	remoteAddrFlag string
	remoteIDFlag   string
	clientAuthFlag bool
	overwriteFlag  bool
	skipFlag       bool
	configDirFlag  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&remoteAddrFlag, "remote", "", "server address (host:port)")
	rootCmd.PersistentFlags().StringVar(&remoteIDFlag, "remote-id", "", "identity under which the server's key is pinned (default: --remote)")
	rootCmd.PersistentFlags().BoolVar(&clientAuthFlag, "client-auth", false, "present the client's own identity during the handshake")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "config", "directory containing environment config files")

	// Subcommands register themselves in their own files:
	// - push.go: pushCmd
	// - pull.go: pullCmd
	// - ls.go: lsCmd
	// - keygen.go: keygenCmd
	// - trust.go: trustCmd
}
