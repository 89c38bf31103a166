package cryptoengine

import (
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// sigScheme is the single negotiated identity signature scheme
// (Dilithium3), used for both the server's long-lived identity and, when
// client authentication is required, the client's identity.
var sigScheme sign.Scheme = mode3.Scheme()

// SigPublicKeySize, SigPrivateKeySize, SigSize describe the fixed-size
// wire quantities produced by GenerateSigningKeyPair/Sign.
var (
	SigPublicKeySize  = sigScheme.PublicKeySize()
	SigPrivateKeySize = sigScheme.PrivateKeySize()
	SigSize           = sigScheme.SignatureSize()
)

// GenerateSigningKeyPair creates a fresh Dilithium3 identity key pair.
func GenerateSigningKeyPair() (pub, priv []byte, err error) {
	pk, sk, err := sigScheme.GenerateKey()
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

// Sign produces a detached Dilithium3 signature over message using the
// private key bytes produced by GenerateSigningKeyPair.
func Sign(privKeyBytes, message []byte) ([]byte, error) {
	sk, err := sigScheme.UnmarshalBinaryPrivateKey(privKeyBytes)
	if err != nil {
		return nil, err
	}
	return sigScheme.Sign(sk, message, nil), nil
}

// Verify checks a detached Dilithium3 signature over message against
// the public key bytes exchanged as SERVER_ID / CLIENT_AUTH.
func Verify(pubKeyBytes, message, signature []byte) (bool, error) {
	pk, err := sigScheme.UnmarshalBinaryPublicKey(pubKeyBytes)
	if err != nil {
		return false, err
	}
	return sigScheme.Verify(pk, message, signature), nil
}
