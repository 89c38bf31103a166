package server

import (
	"context"
	"net"
	"time"

	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/events"
	"github.com/vercingetorx/depot/internal/handshake"
	"github.com/vercingetorx/depot/internal/ledger"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/metrics"
	"github.com/vercingetorx/depot/internal/record"
	"github.com/vercingetorx/depot/internal/sandbox"
	"github.com/vercingetorx/depot/internal/transfer"
	"github.com/vercingetorx/depot/internal/wire"
)

// handleConnection drives one accepted connection end to end: the
// handshake, then a loop dispatching each top-level request record to
// its transfer handler until the peer disconnects or a session-fatal
// error occurs.
func handleConnection(ctx context.Context, conn net.Conn, sb *sandbox.Sandbox, deps Deps, connID string, log logger.Logger) {
	defer conn.Close()

	start := time.Now()
	sess, err := handshake.RunServer(conn, handshake.ServerConfig{
		PSK:               psk(deps.Config.PSKEnv),
		RequireClientAuth: deps.Config.RequireClientAuth,
		Sandbox:           deps.Config.Sandbox,
		RekeyInterval:     deps.Config.RekeyInterval,
		Identity:          deps.Identity,
		ServerPassphrase:  passphrase(deps.Config.PassphraseEnv),
		Log:               log,
	})
	if err != nil {
		code, _ := errs.As(err)
		metrics.HandshakesFailed.WithLabelValues(code.String()).Inc()
		log.Warn("server: handshake failed", logger.Error(err), logger.Duration("elapsed", time.Since(start)))
		return
	}
	metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	metrics.HandshakeDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	remoteID := conn.RemoteAddr().String()
	deps.Events.Publish(events.Event{
		Kind:      events.KindHandshakeEstablished,
		RemoteID:  remoteID,
		Timestamp: time.Now(),
	})
	log.Info("server: handshake established", logger.String("remote_id", remoteID))

	sessionStart := time.Now()
	for {
		typ, payload, err := sess.Receive()
		if err != nil {
			break
		}

		switch typ {
		case wire.UploadOpen:
			dispatchUpload(ctx, sess, sb, payload, deps, remoteID, log)
		case wire.DownloadOpen:
			dispatchDownload(ctx, sess, sb, payload, deps, remoteID, log)
		case wire.ListOpen:
			dispatchListing(sess, sb, payload, log)
		default:
			_ = sess.Send(wire.ErrorRec, []byte{byte(errs.Protocol)})
			log.Warn("server: unexpected top-level record", logger.String("type", typ.String()))
			metrics.SessionsClosed.Inc()
			return
		}
	}

	metrics.SessionDuration.WithLabelValues("connection").Observe(time.Since(sessionStart).Seconds())
	metrics.SessionsClosed.Inc()
	deps.Events.Publish(events.Event{
		Kind:      events.KindConnectionClosed,
		RemoteID:  remoteID,
		Timestamp: time.Now(),
	})
	log.Info("server: connection closed", logger.String("remote_id", remoteID))
}

func dispatchUpload(ctx context.Context, sess *record.Session, sb *sandbox.Sandbox, payload []byte, deps Deps, remoteID string, log logger.Logger) {
	item, decodeErr := wire.DecodeUploadOpen(payload)
	wirePath := item.Path

	err := transfer.ServeUpload(sess, sb, payload, deps.Config.OverwriteExisting)

	outcome := ledger.OutcomeCommitted
	errCode := ""
	if decodeErr == nil {
		metrics.ItemsTransferred.WithLabelValues("upload", "file", statusLabel(err)).Inc()
		metrics.TransferBytes.WithLabelValues("upload").Observe(float64(item.Size))
	}
	if err != nil {
		code, _ := errs.As(err)
		metrics.TransferErrors.WithLabelValues(code.String()).Inc()
		outcome = ledger.OutcomeFailed
		errCode = code.String()
		log.Warn("server: upload failed", logger.String("path", wirePath), logger.Error(err))
	} else {
		deps.Events.Publish(events.Event{
			Kind:      events.KindFileClosed,
			RemoteID:  remoteID,
			Path:      wirePath,
			Bytes:     item.Size,
			Timestamp: time.Now(),
		})
	}

	if rerr := deps.Ledger.Record(ctx, ledger.Entry{
		RemoteID:  remoteID,
		WirePath:  wirePath,
		Direction: ledger.DirectionUpload,
		Size:      item.Size,
		Outcome:   outcome,
		ErrorCode: errCode,
		Timestamp: time.Now(),
	}); rerr != nil {
		log.Warn("server: ledger write failed", logger.Error(rerr))
	}
}

func dispatchDownload(ctx context.Context, sess *record.Session, sb *sandbox.Sandbox, payload []byte, deps Deps, remoteID string, log logger.Logger) {
	wirePath, decodeErr := wire.DecodeWirePath(payload)
	if decodeErr != nil {
		_ = sess.Send(wire.ErrorRec, []byte{byte(errs.BadPayload)})
		return
	}

	deps.Events.Publish(events.Event{
		Kind:      events.KindDownloadOpen,
		RemoteID:  remoteID,
		Path:      wirePath,
		Timestamp: time.Now(),
	})

	err := transfer.ServeDownload(sess, sb, wirePath)
	status := statusLabel(err)
	metrics.ItemsTransferred.WithLabelValues("download", "tree", status).Inc()

	outcome := ledger.OutcomeCommitted
	errCode := ""
	if err != nil {
		code, _ := errs.As(err)
		metrics.TransferErrors.WithLabelValues(code.String()).Inc()
		outcome = ledger.OutcomeFailed
		errCode = code.String()
		log.Warn("server: download failed", logger.String("path", wirePath), logger.Error(err))
	}

	if rerr := deps.Ledger.Record(ctx, ledger.Entry{
		RemoteID:  remoteID,
		WirePath:  wirePath,
		Direction: ledger.DirectionDownload,
		Outcome:   outcome,
		ErrorCode: errCode,
		Timestamp: time.Now(),
	}); rerr != nil {
		log.Warn("server: ledger write failed", logger.Error(rerr))
	}
}

func dispatchListing(sess *record.Session, sb *sandbox.Sandbox, payload []byte, log logger.Logger) {
	wirePath, decodeErr := wire.DecodeWirePath(payload)
	if decodeErr != nil {
		_ = sess.Send(wire.ErrorRec, []byte{byte(errs.BadPayload)})
		return
	}
	if err := transfer.ServeListing(sess, sb, wirePath); err != nil {
		code, _ := errs.As(err)
		metrics.TransferErrors.WithLabelValues(code.String()).Inc()
		log.Warn("server: listing failed", logger.String("path", wirePath), logger.Error(err))
	}
}

func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}
