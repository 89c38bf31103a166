package handshake

import (
	"encoding/binary"

	"github.com/vercingetorx/depot/internal/cryptoengine"
)

// transcriptInputs collects every byte string the transcript digest
// binds, in the fixed order the spec requires (§4.1). psk is nil when
// no PSK was configured.
type transcriptInputs struct {
	version        int
	serverHello    []byte
	clientHello    []byte
	serverSignPK   []byte
	kyberPK        []byte
	envelope       []byte
	c2sPrefix      []byte
	s2cPrefix      []byte
	psk            []byte
}

// digest computes T = BLAKE2b(version‖server_hello‖client_hello‖
// server_sign_pk‖kyber_pk‖envelope‖c2s_prefix‖s2c_prefix‖[psk]).
func (t transcriptInputs) digest() []byte {
	var versionBytes [4]byte
	binary.LittleEndian.PutUint32(versionBytes[:], uint32(t.version))

	parts := [][]byte{
		versionBytes[:],
		t.serverHello,
		t.clientHello,
		t.serverSignPK,
		t.kyberPK,
		t.envelope,
		t.c2sPrefix,
		t.s2cPrefix,
	}
	if len(t.psk) > 0 {
		parts = append(parts, t.psk)
	}
	return cryptoengine.Blake2b256(parts...)
}
