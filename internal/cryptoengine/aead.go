package cryptoengine

import (
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the 24-byte extended nonce used by XChaCha20-Poly1305:
// a 16-byte per-direction prefix concatenated with an 8-byte
// little-endian sequence number (spec §3, §4.2).
const NonceSize = chacha20poly1305.NonceSizeX

// KeySize is the AEAD key size in bytes.
const KeySize = chacha20poly1305.KeySize

// AEAD wraps an XChaCha20-Poly1305 instance bound to one key, the way
// session.SecureSession in the teacher holds a cipher.AEAD on the
// struct rather than re-deriving it per call.
type AEAD struct {
	key   []byte
	cipher interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewAEAD constructs an AEAD from a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	c, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEAD{key: key, cipher: c}, nil
}

// Seal encrypts plaintext in place of record channel's per-frame
// ciphertext, appending the 16-byte Poly1305 tag.
func (a *AEAD) Seal(nonce, ad, plaintext []byte) []byte {
	return a.cipher.Seal(nil, nonce, plaintext, ad)
}

// Open authenticates and decrypts a frame body (ciphertext || tag)
// produced by Seal with the same nonce and ad.
func (a *AEAD) Open(nonce, ad, ciphertext []byte) ([]byte, error) {
	return a.cipher.Open(nil, nonce, ciphertext, ad)
}
