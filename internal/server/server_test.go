package server

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vercingetorx/depot/config"
	"github.com/vercingetorx/depot/internal/events"
	"github.com/vercingetorx/depot/internal/handshake"
	"github.com/vercingetorx/depot/internal/identity"
	"github.com/vercingetorx/depot/internal/ledger"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/sandbox"
	"github.com/vercingetorx/depot/internal/transfer"
	"github.com/vercingetorx/depot/internal/wire"
)

func quietLogger() logger.Logger {
	return logger.NewLogger(io.Discard, logger.ErrorLevel)
}

// recordingLedger captures every entry Record is called with, so tests
// can assert on audit-trail content without a real database.
type recordingLedger struct {
	entries []ledger.Entry
}

func (r *recordingLedger) Record(ctx context.Context, e ledger.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}
func (r *recordingLedger) Close() error { return nil }

func TestHandleConnectionServesUploadAndListing(t *testing.T) {
	shareRoot := t.TempDir()
	sb, err := sandbox.New(shareRoot, true)
	require.NoError(t, err)

	clientStore, err := identity.NewStore(t.TempDir())
	require.NoError(t, err)

	t.Setenv("TEST_DEPOT_SERVER_PASSPHRASE", "server-passphrase")

	led := &recordingLedger{}
	deps := Deps{
		Config: &config.ServerConfig{
			Sandbox:           true,
			OverwriteExisting: true,
			PassphraseEnv:     "TEST_DEPOT_SERVER_PASSPHRASE",
		},
		Log:      quietLogger(),
		Identity: mustServerStore(t),
		Ledger:   led,
		Events:   events.NewHub(),
	}

	cConn, sConn := net.Pipe()
	clientDone := make(chan error, 1)

	go func() {
		clientSess, err := handshake.RunClient(cConn, handshake.ClientConfig{
			RemoteID: "test-server",
			Identity: clientStore,
		})
		if err != nil {
			clientDone <- err
			return
		}
		defer clientSess.Close()

		srcDir := t.TempDir()
		srcFile := filepath.Join(srcDir, "report.txt")
		if err := os.WriteFile(srcFile, []byte("quarterly numbers"), 0o644); err != nil {
			clientDone <- err
			return
		}

		res := transfer.SendFile(clientSess, srcFile, wire.Item{
			Path:  "report.txt",
			Mtime: time.Now().Unix(),
		}, transfer.UploadOptions{})
		if res.Err != nil {
			clientDone <- res.Err
			return
		}

		entries, err := transfer.RunListing(clientSess, "")
		if err != nil {
			clientDone <- err
			return
		}
		if len(entries) != 1 || entries[0].Path != "report.txt" {
			clientDone <- assertErr("unexpected listing result")
			return
		}
		clientDone <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	connDone := make(chan struct{})
	go func() {
		handleConnection(ctx, sConn, sb, deps, "test-conn", quietLogger())
		close(connDone)
	}()

	require.NoError(t, <-clientDone)

	select {
	case <-connDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server connection handler never returned")
	}

	got, err := os.ReadFile(filepath.Join(shareRoot, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(got))

	require.Len(t, led.entries, 1)
	assert.Equal(t, ledger.DirectionUpload, led.entries[0].Direction)
	assert.Equal(t, ledger.OutcomeCommitted, led.entries[0].Outcome)
	assert.Equal(t, "report.txt", led.entries[0].WirePath)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "success", statusLabel(nil))
	assert.Equal(t, "failure", statusLabel(assertErr("boom")))
}

func mustServerStore(t *testing.T) *identity.Store {
	t.Helper()
	store, err := identity.NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.LoadOrInitServerIdentity("server-passphrase")
	require.NoError(t, err)
	return store
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
