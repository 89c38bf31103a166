package handshake

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/vercingetorx/depot/internal/cryptoengine"
	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/identity"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/record"
	"github.com/vercingetorx/depot/internal/wire"
)

// ServerConfig carries the server's policy knobs and key material for
// the handshake.
type ServerConfig struct {
	PSK               []byte
	RequireClientAuth bool
	Sandbox           bool
	RekeyInterval     time.Duration
	Identity          *identity.Store
	ServerPassphrase  string
	Log               logger.Logger
}

// RunServer drives the server side of the handshake over conn and, on
// success, returns a ready-to-use record.Session.
func RunServer(conn net.Conn, cfg ServerConfig) (*record.Session, error) {
	reader := bufio.NewReader(conn)

	clientHelloBytes, err := readExpected(reader, wire.ClientHello)
	if err != nil {
		return nil, err
	}
	var clientHello ClientHelloMsg
	if err := json.Unmarshal(clientHelloBytes, &clientHello); err != nil {
		return nil, failHandshake(conn, errs.Protocol, err)
	}
	if clientHello.Version != Version || !hasFeature(clientHello.Ciphers, CipherSuite) {
		return nil, failHandshake(conn, errs.Compat, fmt.Errorf("handshake: incompatible version/cipher"))
	}
	if !hasFeature(clientHello.Features, FeatureDlAckV1) {
		return nil, failHandshake(conn, errs.Compat, fmt.Errorf("handshake: missing required feature %s", FeatureDlAckV1))
	}
	if len(cfg.PSK) > 0 && !clientHello.PSK {
		return nil, failHandshake(conn, errs.Auth, fmt.Errorf("handshake: client did not configure the required PSK"))
	}

	serverHello := ServerHelloMsg{
		Version:           Version,
		Cipher:            CipherSuite,
		RequirePSK:        len(cfg.PSK) > 0,
		RequireClientAuth: cfg.RequireClientAuth,
		Features:          []string{FeatureDlAckV1},
		Sandbox:           cfg.Sandbox,
	}
	serverHelloBytes, err := json.Marshal(serverHello)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(conn, wire.ServerHello, serverHelloBytes); err != nil {
		return nil, errs.New(errs.Closed, err)
	}

	serverID, err := cfg.Identity.LoadOrInitServerIdentity(cfg.ServerPassphrase)
	if err != nil {
		return nil, failHandshake(conn, errs.Config, err)
	}
	if err := wire.WriteFrame(conn, wire.ServerID, serverID.Public); err != nil {
		return nil, errs.New(errs.Closed, err)
	}

	kyberPub, kyberPriv, err := cryptoengine.GenerateKEMKeyPair()
	if err != nil {
		return nil, err
	}
	sig, err := cryptoengine.Sign(serverID.Private, kyberPub)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(conn, wire.KemPK, append(append([]byte{}, kyberPub...), sig...)); err != nil {
		return nil, errs.New(errs.Closed, err)
	}

	kemEnvPayload, err := readExpected(reader, wire.KemEnv)
	if err != nil {
		return nil, err
	}
	if len(kemEnvPayload) != cryptoengine.KEMCiphertextSize+32 {
		return nil, failHandshake(conn, errs.Protocol, fmt.Errorf("handshake: malformed KEM_ENV payload"))
	}
	envelope := kemEnvPayload[:cryptoengine.KEMCiphertextSize]
	var c2sPrefix, s2cPrefix [16]byte
	copy(c2sPrefix[:], kemEnvPayload[cryptoengine.KEMCiphertextSize:cryptoengine.KEMCiphertextSize+16])
	copy(s2cPrefix[:], kemEnvPayload[cryptoengine.KEMCiphertextSize+16:cryptoengine.KEMCiphertextSize+32])

	sharedSecret, err := cryptoengine.Decapsulate(kyberPriv, envelope)
	if err != nil {
		return nil, failHandshake(conn, errs.Protocol, err)
	}

	transcript := transcriptInputs{
		version:      Version,
		serverHello:  serverHelloBytes,
		clientHello:  clientHelloBytes,
		serverSignPK: serverID.Public,
		kyberPK:      kyberPub,
		envelope:     envelope,
		c2sPrefix:    c2sPrefix[:],
		s2cPrefix:    s2cPrefix[:],
		psk:          cfg.PSK,
	}.digest()

	if cfg.RequireClientAuth {
		authPayload, err := readExpected(reader, wire.ClientAuth)
		if err != nil {
			return nil, err
		}
		if len(authPayload) < cryptoengine.SigPublicKeySize {
			return nil, failHandshake(conn, errs.Protocol, fmt.Errorf("handshake: malformed CLIENT_AUTH payload"))
		}
		clientPub := authPayload[:cryptoengine.SigPublicKeySize]
		clientSig := authPayload[cryptoengine.SigPublicKeySize:]

		allowed, err := cfg.Identity.IsAllowedClient(clientPub)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, failHandshake(conn, errs.Auth, fmt.Errorf("handshake: client key is not in the allowlist"))
		}
		ok, err := cryptoengine.Verify(clientPub, transcript, clientSig)
		if err != nil || !ok {
			return nil, failHandshake(conn, errs.Auth, fmt.Errorf("handshake: CLIENT_AUTH signature verification failed"))
		}
	}

	salt := append(append([]byte{}, c2sPrefix[:]...), s2cPrefix[:]...)
	km := cryptoengine.DeriveKM(sharedSecret, salt, transcript)
	sched := record.DeriveSchedule(record.RoleServer, km, c2sPrefix, s2cPrefix)

	sess, err := record.New(conn, record.RoleServer, sched, cfg.RekeyInterval, cfg.Log)
	if err != nil {
		return nil, err
	}
	sess.ServerSandboxed = cfg.Sandbox
	for _, f := range clientHello.Features {
		if hasFeature(serverHello.Features, f) {
			sess.FeatureFlags[f] = true
		}
	}
	return sess, nil
}
