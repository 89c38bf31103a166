package handshake

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/identity"
	"github.com/vercingetorx/depot/internal/wire"
)

func newStores(t *testing.T) (client, server *identity.Store) {
	t.Helper()
	client, err := identity.NewStore(t.TempDir())
	require.NoError(t, err)
	server, err = identity.NewStore(t.TempDir())
	require.NoError(t, err)
	return client, server
}

func TestHandshakeSucceedsAndPinsServerIdentity(t *testing.T) {
	clientStore, serverStore := newStores(t)
	cConn, sConn := net.Pipe()

	type clientOut struct {
		epoch uint32
		err   error
	}
	clientCh := make(chan clientOut, 1)
	go func() {
		sess, err := RunClient(cConn, ClientConfig{
			RemoteID: "test-server",
			Identity: clientStore,
		})
		if err != nil {
			clientCh <- clientOut{0, err}
			return
		}
		clientCh <- clientOut{sess.Epoch(), nil}
	}()

	sess, err := RunServer(sConn, ServerConfig{
		Sandbox:          true,
		Identity:         serverStore,
		ServerPassphrase: "server-passphrase",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), sess.Epoch())

	out := <-clientCh
	require.NoError(t, out.err)
	assert.Equal(t, uint32(0), out.epoch)

	pinned, ok := clientStore.PinnedServerKey("test-server")
	require.True(t, ok)
	assert.NotEmpty(t, pinned)
}

func TestHandshakeRejectsPinMismatch(t *testing.T) {
	clientStore, serverStore1 := newStores(t)
	_, serverStore2 := newStores(t)

	// First contact pins serverStore1's identity.
	cConn, sConn := net.Pipe()
	clientCh := make(chan error, 1)
	go func() {
		_, err := RunClient(cConn, ClientConfig{RemoteID: "test-server", Identity: clientStore})
		clientCh <- err
	}()
	_, err := RunServer(sConn, ServerConfig{Identity: serverStore1, ServerPassphrase: "pass"})
	require.NoError(t, err)
	require.NoError(t, <-clientCh)

	// Second contact, different server identity under the same remote-id.
	cConn2, sConn2 := net.Pipe()
	clientCh2 := make(chan error, 1)
	go func() {
		_, err := RunClient(cConn2, ClientConfig{RemoteID: "test-server", Identity: clientStore})
		clientCh2 <- err
	}()
	go func() {
		_, _ = RunServer(sConn2, ServerConfig{Identity: serverStore2, ServerPassphrase: "pass"})
	}()

	err = <-clientCh2
	require.Error(t, err)
	code, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.Auth, code)
}

func TestHandshakeRequiresClientAuthWhenConfigured(t *testing.T) {
	clientStore, serverStore := newStores(t)

	cConn, sConn := net.Pipe()
	clientCh := make(chan error, 1)
	go func() {
		_, err := RunClient(cConn, ClientConfig{
			RemoteID:   "test-server",
			ClientAuth: true,
			Identity:   clientStore,
		})
		// net.Pipe is unbuffered: close so the server's ERROR write returns.
		cConn.Close()
		clientCh <- err
	}()

	serverCh := make(chan error, 1)
	go func() {
		_, err := RunServer(sConn, ServerConfig{
			RequireClientAuth: true,
			Identity:          serverStore,
			ServerPassphrase:  "pass",
		})
		serverCh <- err
	}()

	// Client is not in the server's allowlist, so the server must reject.
	serverErr := <-serverCh
	require.Error(t, serverErr)
	code, ok := errs.As(serverErr)
	require.True(t, ok)
	assert.Equal(t, errs.Auth, code)
	<-clientCh
}

func TestHandshakeFeatureMismatchFailsCompat(t *testing.T) {
	reader, writer := net.Pipe()
	defer reader.Close()
	defer writer.Close()

	done := make(chan error, 1)
	go func() {
		_, err := readExpected(bufio.NewReader(reader), wire.ServerHello)
		done <- err
	}()

	// Simulate a peer sending an ERROR record for an unsupported feature.
	require.NoError(t, wire.WriteFrame(writer, wire.HandshakeErr, []byte{byte(errs.Compat)}))
	err := <-done
	require.Error(t, err)
	code, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.Compat, code)
}
