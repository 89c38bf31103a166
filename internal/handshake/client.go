package handshake

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vercingetorx/depot/internal/cryptoengine"
	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/identity"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/record"
	"github.com/vercingetorx/depot/internal/wire"
)

// ClientConfig carries everything the client side of the handshake
// needs beyond the transport connection itself.
type ClientConfig struct {
	RemoteID      string // key under which the server identity is pinned
	PSK           []byte // nil if no PSK is configured
	ClientAuth    bool   // whether to send CLIENT_AUTH
	RekeyInterval time.Duration
	Identity      *identity.Store
	Log           logger.Logger
}

// RunClient drives the client side of the handshake over conn and, on
// success, returns a ready-to-use record.Session.
func RunClient(conn net.Conn, cfg ClientConfig) (*record.Session, error) {
	reader := bufio.NewReader(conn)

	clientHello := ClientHelloMsg{
		Version:    Version,
		Ciphers:    []string{CipherSuite},
		PSK:        len(cfg.PSK) > 0,
		ClientAuth: cfg.ClientAuth,
		Features:   []string{FeatureDlAckV1},
	}
	clientHelloBytes, err := json.Marshal(clientHello)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(conn, wire.ClientHello, clientHelloBytes); err != nil {
		return nil, errs.New(errs.Closed, err)
	}

	serverHelloBytes, err := readExpected(reader, wire.ServerHello)
	if err != nil {
		return nil, err
	}
	var serverHello ServerHelloMsg
	if err := json.Unmarshal(serverHelloBytes, &serverHello); err != nil {
		return nil, failHandshake(conn, errs.Protocol, err)
	}
	if serverHello.Version != Version || serverHello.Cipher != CipherSuite {
		return nil, failHandshake(conn, errs.Compat, fmt.Errorf("handshake: incompatible version/cipher"))
	}
	if !hasFeature(serverHello.Features, FeatureDlAckV1) || !hasFeature(clientHello.Features, FeatureDlAckV1) {
		return nil, failHandshake(conn, errs.Compat, fmt.Errorf("handshake: missing required feature %s", FeatureDlAckV1))
	}
	if serverHello.RequirePSK && len(cfg.PSK) == 0 {
		return nil, failHandshake(conn, errs.Auth, fmt.Errorf("handshake: server requires a PSK"))
	}

	serverSignPK, err := readExpected(reader, wire.ServerID)
	if err != nil {
		return nil, err
	}
	if pinned, ok := cfg.Identity.PinnedServerKey(cfg.RemoteID); ok {
		if !bytes.Equal(pinned, serverSignPK) {
			// A pin mismatch fails locally; nothing is sent to the peer.
			return nil, errs.New(errs.Auth, fmt.Errorf("handshake: server identity for %q does not match pinned key", cfg.RemoteID))
		}
	} else if err := cfg.Identity.PinServerKey(cfg.RemoteID, serverSignPK); err != nil {
		return nil, err
	}

	kemPKAndSig, err := readExpected(reader, wire.KemPK)
	if err != nil {
		return nil, err
	}
	kyberPK := kemPKAndSig[:cryptoengine.KEMPublicKeySize]
	sig := kemPKAndSig[cryptoengine.KEMPublicKeySize:]
	ok, err := cryptoengine.Verify(serverSignPK, kyberPK, sig)
	if err != nil || !ok {
		return nil, failHandshake(conn, errs.Auth, fmt.Errorf("handshake: KEM_PK signature verification failed"))
	}

	envelope, sharedSecret, err := cryptoengine.Encapsulate(kyberPK)
	if err != nil {
		return nil, failHandshake(conn, errs.Protocol, err)
	}
	var c2sPrefix, s2cPrefix [16]byte
	if _, err := io.ReadFull(rand.Reader, c2sPrefix[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, s2cPrefix[:]); err != nil {
		return nil, err
	}
	kemEnvPayload := append(append(append([]byte{}, envelope...), c2sPrefix[:]...), s2cPrefix[:]...)
	if err := wire.WriteFrame(conn, wire.KemEnv, kemEnvPayload); err != nil {
		return nil, errs.New(errs.Closed, err)
	}

	transcript := transcriptInputs{
		version:      Version,
		serverHello:  serverHelloBytes,
		clientHello:  clientHelloBytes,
		serverSignPK: serverSignPK,
		kyberPK:      kyberPK,
		envelope:     envelope,
		c2sPrefix:    c2sPrefix[:],
		s2cPrefix:    s2cPrefix[:],
		psk:          cfg.PSK,
	}.digest()

	if cfg.ClientAuth {
		clientID, err := cfg.Identity.LoadOrCreateClientIdentity()
		if err != nil {
			return nil, err
		}
		clientSig, err := cryptoengine.Sign(clientID.Private, transcript)
		if err != nil {
			return nil, err
		}
		authPayload := append(append([]byte{}, clientID.Public...), clientSig...)
		if err := wire.WriteFrame(conn, wire.ClientAuth, authPayload); err != nil {
			return nil, errs.New(errs.Closed, err)
		}
	}

	salt := append(append([]byte{}, c2sPrefix[:]...), s2cPrefix[:]...)
	km := cryptoengine.DeriveKM(sharedSecret, salt, transcript)
	sched := record.DeriveSchedule(record.RoleClient, km, c2sPrefix, s2cPrefix)

	sess, err := record.New(conn, record.RoleClient, sched, cfg.RekeyInterval, cfg.Log)
	if err != nil {
		return nil, err
	}
	sess.ServerSandboxed = serverHello.Sandbox
	for _, f := range serverHello.Features {
		sess.FeatureFlags[f] = true
	}
	return sess, nil
}

func readExpected(r *bufio.Reader, want wire.RecordType) ([]byte, error) {
	typ, body, err := wire.ReadFrame(r)
	if err != nil {
		return nil, errs.New(errs.Closed, err)
	}
	if typ == wire.HandshakeErr {
		if len(body) != 1 || !errs.Valid(body[0]) {
			return nil, errs.New(errs.Protocol, fmt.Errorf("handshake: malformed ERROR payload"))
		}
		return nil, errs.New(errs.Code(body[0]), fmt.Errorf("handshake: peer reported error"))
	}
	if typ != want {
		return nil, errs.New(errs.Protocol, fmt.Errorf("handshake: expected record type %s, got %s", want, typ))
	}
	return body, nil
}

// failHandshake sends a 0x06 ERROR with code's byte before returning a
// local CodedError, per §4.1's "Failure: any deviation ... triggers an
// ERROR(0x06)" rule.
func failHandshake(conn net.Conn, code errs.Code, cause error) error {
	_ = wire.WriteFrame(conn, wire.HandshakeErr, []byte{byte(code)})
	return errs.New(code, cause)
}
