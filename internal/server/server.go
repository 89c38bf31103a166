// Package server implements depot-server's accept loop: it binds the
// configured listen address, hands every inbound connection its own
// goroutine, and drives that connection through the handshake and
// then a request/response dispatch loop until it closes.
package server

import (
	"context"
	"net"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vercingetorx/depot/config"
	"github.com/vercingetorx/depot/internal/events"
	"github.com/vercingetorx/depot/internal/identity"
	"github.com/vercingetorx/depot/internal/ledger"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/sandbox"
)

// Deps collects everything a connection handler needs beyond the
// connection itself.
type Deps struct {
	Config   *config.ServerConfig
	Identity *identity.Store
	Log      logger.Logger
	Ledger   ledger.Ledger
	Events   *events.Hub
}

// Serve binds cfg.ListenAddr and accepts connections until ctx is
// canceled or the listener fails. Each connection is handled in its
// own goroutine under an errgroup; a connection's failure is logged
// and never returned to the group, so it does not cancel the others.
// Panics are not recovered. The accept loop itself only returns on a
// listener-level error or context cancellation, and on cancellation
// it first waits for every connection goroutine to finish.
func Serve(ctx context.Context, deps Deps) error {
	sb, err := sandbox.New(deps.Config.ShareRoot, deps.Config.Sandbox)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", deps.Config.ListenAddr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	deps.Log.Info("server: listening", logger.String("addr", deps.Config.ListenAddr))

	g, gctx := errgroup.WithContext(ctx)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return g.Wait()
			default:
				return err
			}
		}

		connID := uuid.NewString()
		connLog := deps.Log.WithFields(logger.String("conn_id", connID), logger.String("remote_addr", conn.RemoteAddr().String()))

		g.Go(func() error {
			handleConnection(gctx, conn, sb, deps, connID, connLog)
			return nil
		})
	}
}

// psk resolves the configured PSK environment variable, if any.
func psk(envVar string) []byte {
	if envVar == "" {
		return nil
	}
	if v := os.Getenv(envVar); v != "" {
		return []byte(v)
	}
	return nil
}

// passphrase resolves the configured server-key passphrase environment
// variable, if any.
func passphrase(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
