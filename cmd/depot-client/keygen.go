package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vercingetorx/depot/config"
	"github.com/vercingetorx/depot/internal/identity"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the client's Dilithium identity key pair, if one doesn't exist",
	RunE:  runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDirFlag, Environment: config.GetEnvironment(), SkipValidation: true})
	if err != nil {
		return err
	}
	if cfg.Identity == nil {
		cfg.Identity = &config.IdentityConfig{}
	}
	config.ApplyDefaults(cfg)

	store, err := identity.NewStore(cfg.Identity.Directory)
	if err != nil {
		return err
	}
	kp, err := store.LoadOrCreateClientIdentity()
	if err != nil {
		return err
	}
	fmt.Printf("client identity ready under %s (public key %d bytes)\n", cfg.Identity.Directory, len(kp.Public))
	return nil
}
