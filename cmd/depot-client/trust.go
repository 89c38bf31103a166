package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vercingetorx/depot/config"
	"github.com/vercingetorx/depot/internal/identity"
)

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage pinned server identities (TOFU)",
}

var trustForgetCmd = &cobra.Command{
	Use:   "forget <remote-id>",
	Short: "Remove a pinned server key, so the next connection re-pins it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrustForget,
}

var trustShowCmd = &cobra.Command{
	Use:   "show <remote-id>",
	Short: "Report whether a server key is currently pinned for a remote-id",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrustShow,
}

func init() {
	trustCmd.AddCommand(trustForgetCmd, trustShowCmd)
	rootCmd.AddCommand(trustCmd)
}

func openIdentityStore() (*identity.Store, error) {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDirFlag, Environment: config.GetEnvironment(), SkipValidation: true})
	if err != nil {
		return nil, err
	}
	if cfg.Identity == nil {
		cfg.Identity = &config.IdentityConfig{}
	}
	config.ApplyDefaults(cfg)
	return identity.NewStore(cfg.Identity.Directory)
}

func runTrustForget(cmd *cobra.Command, args []string) error {
	store, err := openIdentityStore()
	if err != nil {
		return err
	}
	if err := store.ForgetPin(args[0]); err != nil {
		return err
	}
	fmt.Printf("forgot pinned server key for %q\n", args[0])
	return nil
}

func runTrustShow(cmd *cobra.Command, args []string) error {
	store, err := openIdentityStore()
	if err != nil {
		return err
	}
	pub, ok := store.PinnedServerKey(args[0])
	if !ok {
		fmt.Printf("no pinned key for %q\n", args[0])
		return nil
	}
	fmt.Printf("pinned key for %q: %d bytes\n", args[0], len(pub))
	return nil
}
