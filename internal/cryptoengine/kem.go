// Package cryptoengine wraps the post-quantum and symmetric primitives
// Depot's handshake and record channel are built on. spec.md §1 treats
// these as "contracts consumed from libraries": this package is that
// contract boundary. Callers never import circl or golang.org/x/crypto
// directly - they call KEM, Sign/Verify, digests, the KDF, and the AEAD
// through the plain package functions, mirroring how the teacher's
// crypto/keys package hides concrete algorithms behind sagecrypto.KeyPair.
package cryptoengine

import (
	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/kyber/kyber768"
)

// kemScheme is the single negotiated KEM for cipher suite "kyber-xchacha20".
var kemScheme = kyber768.Scheme()

// KEMPublicKeySize, KEMCiphertextSize, KEMSharedSecretSize describe the
// fixed-size wire quantities produced by GenerateKEMKeyPair/Encapsulate.
var (
	KEMPublicKeySize   = kemScheme.PublicKeySize()
	KEMCiphertextSize  = kemScheme.CiphertextSize()
	KEMSharedSecretSize = kemScheme.SharedKeySize()
)

// GenerateKEMKeyPair creates a fresh Kyber768 key pair. The returned
// public key bytes are sent as KEM_PK; the private key is retained by
// the server for the lifetime of one handshake only (it is never
// persisted, unlike the Dilithium identity keys).
func GenerateKEMKeyPair() (pub, priv []byte, err error) {
	pk, sk, err := kemScheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	pub, err = pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	priv, err = sk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// Encapsulate runs the client side of the KEM: given the server's
// KEM_PK bytes, it produces the KEM_ENV envelope to send back and the
// shared secret k used in the key schedule.
func Encapsulate(pubKeyBytes []byte) (envelope, sharedSecret []byte, err error) {
	pk, err := kemScheme.UnmarshalBinaryPublicKey(pubKeyBytes)
	if err != nil {
		return nil, nil, err
	}
	ct, ss, err := kemScheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, err
	}
	return ct, ss, nil
}

// Decapsulate runs the server side of the KEM: given its own private
// key bytes and the client's KEM_ENV envelope, it recovers the same
// shared secret k.
func Decapsulate(privKeyBytes, envelope []byte) (sharedSecret []byte, err error) {
	sk, err := kemScheme.UnmarshalBinaryPrivateKey(privKeyBytes)
	if err != nil {
		return nil, err
	}
	return kemScheme.Decapsulate(sk, envelope)
}

var _ kem.Scheme = kemScheme
