package record

import (
	"encoding/binary"
	"fmt"

	"github.com/vercingetorx/depot/internal/cryptoengine"
	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/logger"
	"github.com/vercingetorx/depot/internal/wire"
)

// deriveRekeyKeys computes the mirrored key/prefix pair for a proposed
// epoch. K1 is the client-to-server key, K2 is server-to-client; which
// one lands on tx vs rx depends on role, not on who proposed the rekey
// (§4.2).
func deriveRekeyKeys(trafficSecret [32]byte, epochBytes [4]byte) (k1, k2 []byte) {
	k1 = cryptoengine.Blake2b384(trafficSecret[:], []byte("c2s"), epochBytes[:])
	k2 = cryptoengine.Blake2b384(trafficSecret[:], []byte("s2c"), epochBytes[:])
	return k1, k2
}

func splitKeyPrefix(km []byte) (key [32]byte, prefix [16]byte) {
	copy(key[:], km[:32])
	copy(prefix[:], km[32:48])
	return key, prefix
}

// stagePending derives and stashes the pending key pair for newEpoch,
// assigning tx/rx by role exactly as the initial key schedule does.
func (s *Session) stagePending(newEpoch uint32) [4]byte {
	var epochBytes [4]byte
	binary.LittleEndian.PutUint32(epochBytes[:], newEpoch)

	k1, k2 := deriveRekeyKeys(s.trafficSecret, epochBytes)
	c2sKey, c2sPrefix := splitKeyPrefix(k1)
	s2cKey, s2cPrefix := splitKeyPrefix(k2)

	if s.role == RoleClient {
		s.pendingTxKey, s.pendingTxPrefix = c2sKey, c2sPrefix
		s.pendingRxKey, s.pendingRxPrefix = s2cKey, s2cPrefix
	} else {
		s.pendingRxKey, s.pendingRxPrefix = c2sKey, c2sPrefix
		s.pendingTxKey, s.pendingTxPrefix = s2cKey, s2cPrefix
	}
	s.pendingEpoch = newEpoch
	return epochBytes
}

// activate overwrites the active key material with whatever is
// currently staged, resets both sequence counters, and bumps the
// epoch. It rebuilds the cached AEAD ciphers since the keys changed.
func (s *Session) activate(newEpoch uint32) error {
	s.txKey, s.txPrefix = s.pendingTxKey, s.pendingTxPrefix
	s.rxKey, s.rxPrefix = s.pendingRxKey, s.pendingRxPrefix
	s.epoch = newEpoch
	s.txSeq = 0
	s.rxSeq = 0
	s.pendingEpoch = 0
	s.lastRekey = timeNow()
	s.Stats.Rekeys++

	var err error
	s.txAEAD, err = cryptoengine.NewAEAD(s.txKey[:])
	if err != nil {
		return err
	}
	s.rxAEAD, err = cryptoengine.NewAEAD(s.rxKey[:])
	if err != nil {
		return err
	}
	return nil
}

// DueForRekey reports whether this session should propose a rekey now,
// per the file-boundary gate in §4.2. Callers (the transfer state
// machines) check this only at a file boundary on their send
// direction, per the "sender of the current stream proposes" rule.
func (s *Session) DueForRekey() bool {
	return s.pendingEpoch == 0 && s.rekeyInterval > 0 && timeNow().Sub(s.lastRekey) > s.rekeyInterval
}

// ProposeRekey sends RekeyReq for epoch+1 and activates immediately
// after the write succeeds, per the deterministic-boundary contract:
// the proposer switches the instant its RekeyReq hits the wire. The
// caller MUST NOT issue any other Send between ProposeRekey and the
// next successful Receive (which transparently consumes the matching
// RekeyAck).
func (s *Session) ProposeRekey() error {
	if s.pendingEpoch != 0 {
		return fmt.Errorf("record: rekey already in flight")
	}
	newEpoch := s.epoch + 1
	epochBytes := s.stagePending(newEpoch)

	if err := s.Send(wire.RekeyReq, epochBytes[:]); err != nil {
		return err
	}
	if err := s.activate(newEpoch); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Debug("rekey proposed", logger.Int("new_epoch", int(newEpoch)))
	}
	return nil
}

// handleRekeyReq implements the responder side: it derives the same
// pending pair the proposer did, activates before composing the ack so
// that RekeyAck is itself authenticated under the new epoch (matching
// the proposer, which already switched its receive key by the time
// this ack arrives), then sends RekeyAck.
func (s *Session) handleRekeyReq(payload []byte) error {
	if len(payload) != 4 {
		return errs.New(errs.Protocol, fmt.Errorf("record: malformed RekeyReq payload"))
	}
	newEpoch := binary.LittleEndian.Uint32(payload)
	if newEpoch != s.epoch+1 {
		return errs.New(errs.Protocol, fmt.Errorf("record: unexpected rekey epoch %d (have %d)", newEpoch, s.epoch))
	}

	epochBytes := s.stagePending(newEpoch)
	if err := s.activate(newEpoch); err != nil {
		return err
	}
	if err := s.Send(wire.RekeyAck, epochBytes[:]); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Debug("rekey acknowledged", logger.Int("new_epoch", int(newEpoch)))
	}
	return nil
}

// handleRekeyAck is only reached by a proposer that already activated
// upon sending RekeyReq; it validates the epoch matches and is
// otherwise a no-op.
func (s *Session) handleRekeyAck(payload []byte) error {
	if len(payload) != 4 {
		return errs.New(errs.Protocol, fmt.Errorf("record: malformed RekeyAck payload"))
	}
	acked := binary.LittleEndian.Uint32(payload)
	if acked != s.epoch {
		return errs.New(errs.Protocol, fmt.Errorf("record: RekeyAck epoch %d does not match active epoch %d", acked, s.epoch))
	}
	return nil
}
