package record

import "github.com/vercingetorx/depot/internal/cryptoengine"

// DeriveSchedule turns the handshake's 64-byte key material into the
// mirrored per-role Schedule a Session is built from (§4.1). Client and
// server call this with the same km/c2sPrefix/s2cPrefix and get
// correctly mirrored, never identical, tx/rx assignments.
func DeriveSchedule(role Role, km []byte, c2sPrefix, s2cPrefix [16]byte) Schedule {
	var sched Schedule
	if role == RoleClient {
		copy(sched.TxKey[:], km[0:32])
		copy(sched.RxKey[:], km[32:64])
		sched.TxPrefix = c2sPrefix
		sched.RxPrefix = s2cPrefix
	} else {
		copy(sched.TxKey[:], km[32:64])
		copy(sched.RxKey[:], km[0:32])
		sched.TxPrefix = s2cPrefix
		sched.RxPrefix = c2sPrefix
	}
	copy(sched.TrafficSecret[:], cryptoengine.Blake2b256(km))
	return sched
}
