package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vercingetorx/depot/config"
	"github.com/vercingetorx/depot/internal/identity"
)

var trustIdentityDir string

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage the server's client public-key allowlist for CLIENT_AUTH",
}

var trustAddCmd = &cobra.Command{
	Use:   "add <fingerprint> <pubkey-file>",
	Short: "Add a client's public key to the allowlist under the given fingerprint name",
	Args:  cobra.ExactArgs(2),
	RunE:  runTrustAdd,
}

var trustListCmd = &cobra.Command{
	Use:   "list",
	Short: "Report how many client public keys are in the allowlist (the keys themselves are not printed)",
	RunE:  runTrustList,
}

func init() {
	trustCmd.PersistentFlags().StringVar(&trustIdentityDir, "identity-dir", "", "identity directory (default: config's identity.directory)")
	trustCmd.AddCommand(trustAddCmd, trustListCmd)
	rootCmd.AddCommand(trustCmd)
}

func resolveIdentityDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDirFlag, Environment: config.GetEnvironment(), SkipValidation: true})
	if err != nil {
		return "", err
	}
	if cfg.Identity != nil && cfg.Identity.Directory != "" {
		return cfg.Identity.Directory, nil
	}
	return ".depot", nil
}

func runTrustAdd(cmd *cobra.Command, args []string) error {
	dir, err := resolveIdentityDir(trustIdentityDir)
	if err != nil {
		return err
	}
	fingerprint, pubkeyPath := args[0], args[1]

	pub, err := os.ReadFile(pubkeyPath)
	if err != nil {
		return fmt.Errorf("trust: reading public key file: %w", err)
	}

	store, err := identity.NewStore(dir)
	if err != nil {
		return err
	}
	if err := store.TrustClient(fingerprint, pub); err != nil {
		return err
	}
	fmt.Printf("trusted client %q (%d bytes)\n", fingerprint, len(pub))
	return nil
}

func runTrustList(cmd *cobra.Command, args []string) error {
	dir, err := resolveIdentityDir(trustIdentityDir)
	if err != nil {
		return err
	}
	store, err := identity.NewStore(dir)
	if err != nil {
		return err
	}
	keys, err := store.AllowedClientKeys()
	if err != nil {
		return err
	}
	fmt.Printf("%d trusted client key(s) under %s\n", len(keys), dir)
	return nil
}
