package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/vercingetorx/depot/config"
	"github.com/vercingetorx/depot/internal/handshake"
	"github.com/vercingetorx/depot/internal/identity"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/record"
)

// dial loads config, resolves the remote address and identity, and
// runs the client handshake, returning a ready-to-use session.
func dial() (*record.Session, error) {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDirFlag, Environment: config.GetEnvironment(), SkipValidation: true})
	if err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		cfg.Client = &config.ClientConfig{}
	}
	if cfg.Identity == nil {
		cfg.Identity = &config.IdentityConfig{}
	}
	config.ApplyDefaults(cfg)

	addr := remoteAddrFlag
	if addr == "" {
		addr = cfg.Client.RemoteAddr
	}
	if addr == "" {
		return nil, fmt.Errorf("depot-client: no remote address given (pass --remote or set client.remote_addr)")
	}

	remoteID := remoteIDFlag
	if remoteID == "" {
		remoteID = cfg.Client.RemoteID
	}
	if remoteID == "" {
		remoteID = addr
	}

	store, err := identity.NewStore(cfg.Identity.Directory)
	if err != nil {
		return nil, err
	}

	useClientAuth := clientAuthFlag || cfg.Client.ClientAuth

	conn, err := net.DialTimeout("tcp", addr, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("depot-client: dialing %s: %w", addr, err)
	}

	log := logger.NewDefaultLogger()

	sess, err := handshake.RunClient(conn, handshake.ClientConfig{
		RemoteID:      remoteID,
		PSK:           pskFromEnv(cfg.Client.PSKEnv),
		ClientAuth:    useClientAuth,
		RekeyInterval: cfg.Client.RekeyInterval,
		Identity:      store,
		Log:           log,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sess, nil
}

func pskFromEnv(envVar string) []byte {
	if envVar == "" {
		envVar = "DEPOT_PSK"
	}
	v := os.Getenv(envVar)
	if v == "" {
		return nil
	}
	return []byte(v)
}
