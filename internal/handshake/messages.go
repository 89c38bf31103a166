// Package handshake drives the post-quantum authenticated handshake
// (spec §4.1): feature negotiation, Kyber key exchange authenticated
// by a Dilithium signature over the transcript, optional PSK and
// client authentication, and TOFU pinning of the server's identity.
// A successful run hands back a *record.Session ready for transfer
// traffic.
package handshake

// Version is the only protocol version this engine speaks; a peer
// advertising a different version fails the handshake with ecCompat.
const Version = 1

// CipherSuite is the only negotiated cipher suite name.
const CipherSuite = "kyber-xchacha20"

// FeatureDlAckV1 must be present on both hellos or the handshake fails
// with ecCompat (spec §4.1).
const FeatureDlAckV1 = "dlAckV1"

// ClientHelloMsg is the JSON body of record type 0x00.
type ClientHelloMsg struct {
	Version    int      `json:"version"`
	Ciphers    []string `json:"ciphers"`
	PSK        bool     `json:"psk"`
	ClientAuth bool     `json:"clientAuth"`
	Features   []string `json:"features"`
}

// ServerHelloMsg is the JSON body of record type 0x04.
type ServerHelloMsg struct {
	Version           int      `json:"version"`
	Cipher            string   `json:"cipher"`
	RequirePSK        bool     `json:"requirePsk"`
	RequireClientAuth bool     `json:"requireClientAuth"`
	Features          []string `json:"features"`
	Sandbox           bool     `json:"sandbox"`
}

func hasFeature(features []string, want string) bool {
	for _, f := range features {
		if f == want {
			return true
		}
	}
	return false
}
