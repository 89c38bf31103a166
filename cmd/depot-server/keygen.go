package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vercingetorx/depot/config"
	"github.com/vercingetorx/depot/internal/identity"
)

var keygenIdentityDir string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the server's Dilithium identity key pair, if one doesn't exist",
	RunE:  runKeygen,
}

func init() {
	keygenCmd.Flags().StringVar(&keygenIdentityDir, "identity-dir", "", "identity directory (default: config's identity.directory)")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	dir := keygenIdentityDir
	if dir == "" {
		cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDirFlag, Environment: config.GetEnvironment(), SkipValidation: true})
		if err != nil {
			return err
		}
		if cfg.Identity != nil && cfg.Identity.Directory != "" {
			dir = cfg.Identity.Directory
		} else {
			dir = ".depot"
		}
	}

	passphrase := os.Getenv("DEPOT_SERVER_PASSPHRASE")
	if passphrase == "" {
		return fmt.Errorf("keygen: DEPOT_SERVER_PASSPHRASE must be set to encrypt the generated secret key")
	}

	store, err := identity.NewStore(dir)
	if err != nil {
		return err
	}
	kp, err := store.LoadOrInitServerIdentity(passphrase)
	if err != nil {
		return err
	}

	fmt.Printf("server identity ready under %s (public key %d bytes)\n", dir, len(kp.Public))
	return nil
}
