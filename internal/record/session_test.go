package record

import (
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vercingetorx/depot/internal/wire"
)

func pairedSessions(t *testing.T, rekeyInterval time.Duration) (client, server *Session) {
	t.Helper()
	cConn, sConn := net.Pipe()

	km := make([]byte, 64)
	_, err := rand.Read(km)
	require.NoError(t, err)
	var c2sPrefix, s2cPrefix [16]byte
	_, err = rand.Read(c2sPrefix[:])
	require.NoError(t, err)
	_, err = rand.Read(s2cPrefix[:])
	require.NoError(t, err)

	clientSched := DeriveSchedule(RoleClient, km, c2sPrefix, s2cPrefix)
	serverSched := DeriveSchedule(RoleServer, km, c2sPrefix, s2cPrefix)

	client, err = New(cConn, RoleClient, clientSched, rekeyInterval, nil)
	require.NoError(t, err)
	server, err = New(sConn, RoleServer, serverSched, rekeyInterval, nil)
	require.NoError(t, err)

	client.IOTimeout = 2 * time.Second
	server.IOTimeout = 2 * time.Second
	return client, server
}

func TestSendReceiveRoundTrip(t *testing.T) {
	client, server := pairedSessions(t, 0)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		done <- client.Send(wire.FileData, []byte("chunk-of-bytes"))
	}()

	typ, payload, err := server.Receive()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, wire.FileData, typ)
	assert.Equal(t, []byte("chunk-of-bytes"), payload)
	assert.Equal(t, uint64(1), server.rxSeq)
	assert.Equal(t, uint64(1), client.txSeq)
}

func TestSequenceAdvancesPerRecord(t *testing.T) {
	client, server := pairedSessions(t, 0)
	defer client.Close()
	defer server.Close()

	for i := 0; i < 3; i++ {
		go func() { _ = client.Send(wire.FileData, []byte("x")) }()
		_, _, err := server.Receive()
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), client.txSeq)
	assert.Equal(t, uint64(3), server.rxSeq)
}

type recvResult struct {
	typ     wire.RecordType
	payload []byte
	err     error
}

func TestRekeyActivatesAndResetsSequence(t *testing.T) {
	client, server := pairedSessions(t, 0)
	defer client.Close()
	defer server.Close()

	proposeDone := make(chan error, 1)
	go func() { proposeDone <- client.ProposeRekey() }()

	serverCh := make(chan recvResult, 1)
	go func() {
		typ, payload, err := server.Receive()
		serverCh <- recvResult{typ, payload, err}
	}()

	clientCh := make(chan recvResult, 1)
	go func() {
		typ, payload, err := client.Receive()
		clientCh <- recvResult{typ, payload, err}
	}()

	require.NoError(t, <-proposeDone)
	assert.Equal(t, uint32(1), client.Epoch())
	assert.Equal(t, uint64(0), client.txSeq)

	// server's Receive loop has consumed RekeyReq and sent RekeyAck
	// internally, then blocked waiting for the next frame; feed it one.
	require.NoError(t, client.Send(wire.FileData, []byte("after-rekey")))
	serverResult := <-serverCh
	require.NoError(t, serverResult.err)
	assert.Equal(t, wire.FileData, serverResult.typ)
	assert.Equal(t, []byte("after-rekey"), serverResult.payload)
	assert.Equal(t, uint32(1), server.Epoch())
	assert.Equal(t, uint32(0), server.pendingEpoch)

	// client's Receive loop consumed RekeyAck and is now blocked on the
	// next frame; feed it one too so both goroutines terminate cleanly.
	require.NoError(t, server.Send(wire.FileData, []byte("reply")))
	clientResult := <-clientCh
	require.NoError(t, clientResult.err)
	assert.Equal(t, wire.FileData, clientResult.typ)
	assert.Equal(t, []byte("reply"), clientResult.payload)
}

func TestDueForRekeyRespectsInterval(t *testing.T) {
	client, server := pairedSessions(t, 50*time.Millisecond)
	defer client.Close()
	defer server.Close()

	assert.False(t, client.DueForRekey())

	original := timeNow
	defer func() { timeNow = original }()
	future := time.Now().Add(time.Hour)
	timeNow = func() time.Time { return future }

	assert.True(t, client.DueForRekey())
}

func TestDueForRekeyDisabledWhenIntervalZero(t *testing.T) {
	client, server := pairedSessions(t, 0)
	defer client.Close()
	defer server.Close()
	assert.False(t, client.DueForRekey())
}
