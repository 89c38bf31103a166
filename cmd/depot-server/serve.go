package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vercingetorx/depot/config"
	"github.com/vercingetorx/depot/internal/events"
	"github.com/vercingetorx/depot/internal/identity"
	"github.com/vercingetorx/depot/internal/ledger"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/metrics"
	"github.com/vercingetorx/depot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the depot server, accepting connections until interrupted",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{
		ConfigDir:   configDirFlag,
		Environment: config.GetEnvironment(),
	})
	if err != nil {
		return err
	}
	if cfg.Server == nil {
		cfg.Server = &config.ServerConfig{}
	}
	if cfg.Identity == nil {
		cfg.Identity = &config.IdentityConfig{}
	}
	config.ApplyDefaults(cfg)

	log := logger.NewDefaultLogger()
	log.SetLevel(parseLevel(cfg.Logging))

	store, err := identity.NewStore(cfg.Identity.Directory)
	if err != nil {
		return err
	}

	var led ledger.Ledger = ledger.NullLedger{}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Server.AuditDSN != "" {
		pg, err := ledger.NewPGLedger(ctx, cfg.Server.AuditDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		led = pg
	}

	hub := events.NewHub()

	if cfg.Server.MetricsAddr != "" {
		go serveAdminHTTP(cfg.Server.MetricsAddr, cfg.Server.MetricsAuthSecret, hub, log)
	}

	log.Info("depot-server starting", logger.String("environment", cfg.Environment))

	return server.Serve(ctx, server.Deps{
		Config:   cfg.Server,
		Identity: store,
		Log:      log,
		Ledger:   led,
		Events:   hub,
	})
}

// serveAdminHTTP runs the /metrics and /events endpoints on their own
// listener, separate from the data-plane listener so a metrics scrape
// or a dashboard websocket can never block a file transfer.
func serveAdminHTTP(addr, authSecret string, hub *events.Hub, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.SecureHandler(authSecret))

	eventsHandler := http.Handler(events.ServeWS(hub, log))
	if authSecret != "" {
		eventsHandler = metrics.RequireBearerToken(authSecret, eventsHandler)
	}
	mux.Handle("/events", eventsHandler)

	log.Info("depot-server: admin endpoints listening", logger.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("depot-server: admin listener stopped", logger.Error(err))
	}
}

func parseLevel(lc *config.LoggingConfig) logger.Level {
	if lc == nil {
		return logger.InfoLevel
	}
	switch lc.Level {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
