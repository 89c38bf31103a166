package identity

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vercingetorx/depot/internal/cryptoengine"
)

// dpk1Magic is the 4-byte tag identifying the on-disk envelope format
// for an encrypted server secret key (spec §6).
var dpk1Magic = [4]byte{'D', 'P', 'K', '1'}

const (
	dpk1SaltLen  = 16
	dpk1NonceLen = cryptoengine.NonceSize // 24
	dpk1TagLen   = 16
)

var dpk1AD = []byte("DPK1")

// EncodeDPK1 seals plaintext (the Dilithium private key bytes) under a
// key derived from passphrase, producing the binary envelope:
// magic(4) | plaintext_len_u32_le(4) | salt(16) | nonce(24) | ciphertext | tag(16).
func EncodeDPK1(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, dpk1SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, dpk1NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	key := cryptoengine.DPK1PassphraseKey(passphrase, salt)
	aead, err := cryptoengine.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	sealed := aead.Seal(nonce, dpk1AD, plaintext) // ciphertext || tag

	out := make([]byte, 0, 4+4+dpk1SaltLen+dpk1NonceLen+len(sealed))
	out = append(out, dpk1Magic[:]...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(plaintext)))
	out = append(out, lenBuf[:]...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// DecodeDPK1 opens an envelope produced by EncodeDPK1. It rejects
// anything not carrying the DPK1 magic, refusing to silently treat an
// unencrypted secret key as valid (spec §4.5: "unencrypted server
// secret keys MUST be rejected on load").
func DecodeDPK1(data []byte, passphrase string) ([]byte, error) {
	const headerLen = 4 + 4 + dpk1SaltLen + dpk1NonceLen
	if len(data) < headerLen+dpk1TagLen {
		return nil, fmt.Errorf("identity: DPK1 envelope too short")
	}
	if !bytes.Equal(data[:4], dpk1Magic[:]) {
		return nil, fmt.Errorf("identity: not a DPK1 envelope (missing magic)")
	}
	plaintextLen := binary.LittleEndian.Uint32(data[4:8])
	salt := data[8 : 8+dpk1SaltLen]
	nonce := data[8+dpk1SaltLen : 8+dpk1SaltLen+dpk1NonceLen]
	sealed := data[headerLen:]

	key := cryptoengine.DPK1PassphraseKey(passphrase, salt)
	aead, err := cryptoengine.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nonce, dpk1AD, sealed)
	if err != nil {
		return nil, fmt.Errorf("identity: DPK1 decryption failed (wrong passphrase?): %w", err)
	}
	if uint32(len(plaintext)) != plaintextLen {
		return nil, fmt.Errorf("identity: DPK1 plaintext length mismatch")
	}
	return plaintext, nil
}
