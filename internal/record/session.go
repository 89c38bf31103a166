// Package record implements the framed, authenticated, rekey-capable
// record channel that sits between the handshake engine and the
// transfer state machines. A Session owns the connection's socket and
// all traffic key material exclusively; nothing outside the owning
// goroutine may read or write its fields.
package record

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/vercingetorx/depot/internal/cryptoengine"
	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/wire"
)

// Role distinguishes the two mirrored halves of a Session, since key
// and prefix assignment after both the initial schedule and every
// rekey is role-based rather than proposer/responder-based.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Stats tracks lightweight per-session counters, surfaced to
// operators via the metrics package.
type Stats struct {
	RecordsSent     uint64
	RecordsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	Rekeys          uint32
}

// Schedule is the output of the handshake's key derivation (§4.1):
// the mirrored starting key material a Session is built from.
type Schedule struct {
	TxKey         [32]byte
	RxKey         [32]byte
	TxPrefix      [16]byte
	RxPrefix      [16]byte
	TrafficSecret [32]byte
}

// Session is the record channel: it frames, encrypts, sequences and
// rekeys typed records over a byte-stream transport. Created by the
// handshake engine; destroyed when the socket closes.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader
	role   Role
	log    logger.Logger

	txKey    [32]byte
	rxKey    [32]byte
	txPrefix [16]byte
	rxPrefix [16]byte
	txSeq    uint64
	rxSeq    uint64
	epoch    uint32

	trafficSecret [32]byte
	lastRekey     time.Time
	rekeyInterval time.Duration

	pendingEpoch    uint32
	pendingTxKey    [32]byte
	pendingRxKey    [32]byte
	pendingTxPrefix [16]byte
	pendingRxPrefix [16]byte

	txAEAD *cryptoengine.AEAD
	rxAEAD *cryptoengine.AEAD

	FeatureFlags   map[string]bool
	ServerSandboxed bool
	IOTimeout      time.Duration

	Stats Stats
}

// DefaultIOTimeout matches the protocol design's default receive bound.
const DefaultIOTimeout = 120 * time.Second

// timeNow is a var so tests can simulate the passage of time across a
// rekey interval without an actual sleep.
var timeNow = time.Now

// New builds a Session from a completed handshake schedule. rekeyInterval
// of 0 disables proactive rekeying (a peer may still respond to one).
func New(conn net.Conn, role Role, sched Schedule, rekeyInterval time.Duration, log logger.Logger) (*Session, error) {
	s := &Session{
		conn:          conn,
		reader:        bufio.NewReader(conn),
		role:          role,
		log:           log,
		txKey:         sched.TxKey,
		rxKey:         sched.RxKey,
		txPrefix:      sched.TxPrefix,
		rxPrefix:      sched.RxPrefix,
		trafficSecret: sched.TrafficSecret,
		lastRekey:     timeNow(),
		rekeyInterval: rekeyInterval,
		IOTimeout:     DefaultIOTimeout,
		FeatureFlags:  make(map[string]bool),
	}
	var err error
	s.txAEAD, err = cryptoengine.NewAEAD(s.txKey[:])
	if err != nil {
		return nil, err
	}
	s.rxAEAD, err = cryptoengine.NewAEAD(s.rxKey[:])
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Epoch returns the session's current key generation, for tests and
// diagnostics.
func (s *Session) Epoch() uint32 { return s.epoch }

func nonceFor(prefix [16]byte, seq uint64) []byte {
	nonce := make([]byte, cryptoengine.NonceSize)
	copy(nonce, prefix[:])
	binary.LittleEndian.PutUint64(nonce[16:], seq)
	return nonce
}

func associatedData(typ wire.RecordType, seq uint64, epoch uint32) []byte {
	ad := make([]byte, 0, 1+10+10)
	ad = append(ad, byte(typ))
	ad = wire.PutUvarint(ad, seq)
	ad = wire.PutUvarint(ad, uint64(epoch))
	return ad
}

// Send encrypts payload under the current transmit key/epoch and
// writes it as a single frame. tx_seq advances by exactly one on
// success; on any transport failure the session is no longer usable.
func (s *Session) Send(typ wire.RecordType, payload []byte) error {
	nonce := nonceFor(s.txPrefix, s.txSeq)
	ad := associatedData(typ, s.txSeq, s.epoch)
	ciphertext := s.txAEAD.Seal(nonce, ad, payload)

	if err := wire.WriteFrame(s.conn, typ, ciphertext); err != nil {
		return errs.New(errs.Closed, fmt.Errorf("record: write failed: %w", err))
	}
	s.txSeq++
	s.Stats.RecordsSent++
	s.Stats.BytesSent += uint64(len(ciphertext))
	return nil
}

// receiveRaw reads one frame and authenticates it under the current
// receive key/epoch, without any rekey handling. rx_seq advances by
// exactly one on success.
func (s *Session) receiveRaw() (wire.RecordType, []byte, error) {
	if s.IOTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.IOTimeout)); err != nil {
			return 0, nil, errs.New(errs.Closed, err)
		}
	}

	typ, ciphertext, err := wire.ReadFrame(s.reader)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil, errs.New(errs.Timeout, err)
		}
		return 0, nil, errs.New(errs.Closed, err)
	}

	ad := associatedData(typ, s.rxSeq, s.epoch)
	nonce := nonceFor(s.rxPrefix, s.rxSeq)
	plaintext, err := s.rxAEAD.Open(nonce, ad, ciphertext)
	if err != nil {
		return 0, nil, errs.New(errs.Auth, fmt.Errorf("record: frame authentication failed: %w", err))
	}
	s.rxSeq++
	s.Stats.RecordsReceived++
	s.Stats.BytesReceived += uint64(len(ciphertext))
	return typ, plaintext, nil
}

// Receive reads the next application record, transparently servicing
// any RekeyReq/RekeyAck control records that arrive first. Callers in
// the OPEN_WAIT/COMMIT_WAIT loops never see rekey traffic directly;
// they simply keep waiting for the record type they expect.
func (s *Session) Receive() (wire.RecordType, []byte, error) {
	for {
		typ, payload, err := s.receiveRaw()
		if err != nil {
			return 0, nil, err
		}
		switch typ {
		case wire.RekeyReq:
			if err := s.handleRekeyReq(payload); err != nil {
				return 0, nil, err
			}
			continue
		case wire.RekeyAck:
			if err := s.handleRekeyAck(payload); err != nil {
				return 0, nil, err
			}
			continue
		default:
			return typ, payload, nil
		}
	}
}

// Close releases the underlying transport. It does not send an ERROR
// record; callers that need to report a failure reason do so first via
// Send, then Close.
func (s *Session) Close() error {
	return s.conn.Close()
}
