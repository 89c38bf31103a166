// Package identity manages Depot's on-disk key and trust material: the
// server and client Dilithium identity key pairs, the DPK1-encrypted
// server secret key, and the TOFU pin store mapping remote-id to a
// previously observed server public key (spec §4.5).
//
// Layout, grounded on the teacher's FileVault directory conventions
// (pkg/agent/crypto/vault):
//
//	<config>/id/server_dilithium.pk
//	<config>/id/server_dilithium.sk   (DPK1 envelope)
//	<config>/id/client_dilithium.pk
//	<config>/id/client_dilithium.sk
//	<config>/trust/<remote-id>.pk
//	<config>/trust/clients/<fingerprint>.pk
package identity

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vercingetorx/depot/internal/cryptoengine"
	"github.com/vercingetorx/depot/internal/errs"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Store reads and writes identity/trust material under a single
// configuration directory.
type Store struct {
	configDir string
}

// NewStore returns a Store rooted at configDir, creating the id/ and
// trust/ subdirectories if they don't already exist.
func NewStore(configDir string) (*Store, error) {
	s := &Store{configDir: configDir}
	for _, d := range []string{s.idDir(), s.trustDir(), s.trustClientsDir()} {
		if err := os.MkdirAll(d, dirPerm); err != nil {
			return nil, fmt.Errorf("identity: creating %s: %w", d, err)
		}
	}
	return s, nil
}

func (s *Store) idDir() string            { return filepath.Join(s.configDir, "id") }
func (s *Store) trustDir() string         { return filepath.Join(s.configDir, "trust") }
func (s *Store) trustClientsDir() string  { return filepath.Join(s.configDir, "trust", "clients") }

// KeyPair is a Dilithium identity key pair as it exists on disk.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// LoadOrInitServerIdentity loads the server's identity from
// id/server_dilithium.{pk,sk}, generating and persisting a fresh pair on
// first run. Lazy init per spec §4.5 requires a configured passphrase;
// without one, generation fails with ecConfig rather than silently
// running unprotected.
func (s *Store) LoadOrInitServerIdentity(passphrase string) (*KeyPair, error) {
	pkPath := filepath.Join(s.idDir(), "server_dilithium.pk")
	skPath := filepath.Join(s.idDir(), "server_dilithium.sk")

	_, pkErr := os.Stat(pkPath)
	_, skErr := os.Stat(skPath)
	exists := pkErr == nil && skErr == nil

	if exists {
		return s.loadServerIdentity(passphrase)
	}

	if passphrase == "" {
		return nil, errs.New(errs.Config, fmt.Errorf("identity: no passphrase configured for server key generation"))
	}

	pub, priv, err := cryptoengine.GenerateSigningKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(pkPath, pub, filePerm); err != nil {
		return nil, fmt.Errorf("identity: writing server public key: %w", err)
	}
	envelope, err := EncodeDPK1(priv, passphrase)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(skPath, envelope, filePerm); err != nil {
		return nil, fmt.Errorf("identity: writing server secret key: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

func (s *Store) loadServerIdentity(passphrase string) (*KeyPair, error) {
	pkPath := filepath.Join(s.idDir(), "server_dilithium.pk")
	skPath := filepath.Join(s.idDir(), "server_dilithium.sk")

	pub, err := os.ReadFile(pkPath)
	if err != nil {
		return nil, fmt.Errorf("identity: reading server public key: %w", err)
	}
	envelope, err := os.ReadFile(skPath)
	if err != nil {
		return nil, fmt.Errorf("identity: reading server secret key: %w", err)
	}
	priv, err := DecodeDPK1(envelope, passphrase)
	if err != nil {
		return nil, errs.New(errs.Config, err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// LoadOrCreateClientIdentity loads, or generates and persists, the
// client's own Dilithium identity used for CLIENT_AUTH. Unlike the
// server secret key, the client secret key is not passphrase-protected
// on disk: client auth is optional and the threat model treats the
// client's local filesystem as already trusted by the user running it.
func (s *Store) LoadOrCreateClientIdentity() (*KeyPair, error) {
	pkPath := filepath.Join(s.idDir(), "client_dilithium.pk")
	skPath := filepath.Join(s.idDir(), "client_dilithium.sk")

	if pub, perr := os.ReadFile(pkPath); perr == nil {
		if priv, serr := os.ReadFile(skPath); serr == nil {
			return &KeyPair{Public: pub, Private: priv}, nil
		}
	}

	pub, priv, err := cryptoengine.GenerateSigningKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(pkPath, pub, filePerm); err != nil {
		return nil, err
	}
	if err := os.WriteFile(skPath, priv, filePerm); err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// PinnedServerKey returns the pinned public key for remoteID, or
// (nil, false) if this is the first connection to that remote.
func (s *Store) PinnedServerKey(remoteID string) ([]byte, bool) {
	data, err := os.ReadFile(s.pinPath(remoteID))
	if err != nil {
		return nil, false
	}
	return data, true
}

// PinServerKey atomically records pub as the trusted key for remoteID.
// Called only on first observation (TOFU); subsequent mismatches are
// the caller's responsibility to detect via PinnedServerKey first.
func (s *Store) PinServerKey(remoteID string, pub []byte) error {
	return writeFileAtomic(s.pinPath(remoteID), pub, filePerm)
}

// VerifyOrPin implements the TOFU rule of spec §4.1/§4.5 in one call:
// if no pin exists for remoteID, pub is pinned and VerifyOrPin returns
// true. If a pin exists, pub must be byte-equal to it.
func (s *Store) VerifyOrPin(remoteID string, pub []byte) (bool, error) {
	pinned, ok := s.PinnedServerKey(remoteID)
	if !ok {
		return true, s.PinServerKey(remoteID, pub)
	}
	return bytes.Equal(pinned, pub), nil
}

func (s *Store) pinPath(remoteID string) string {
	return filepath.Join(s.trustDir(), sanitizeID(remoteID)+".pk")
}

// ForgetPin removes a pinned server key, letting the next connection to
// remoteID re-pin (an operator "trust reset" action, used by the `trust`
// CLI subcommand).
func (s *Store) ForgetPin(remoteID string) error {
	err := os.Remove(s.pinPath(remoteID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// AllowedClientKeys loads every public key file under trust/clients/,
// the server's allowlist for CLIENT_AUTH (spec §4.1).
func (s *Store) AllowedClientKeys() ([][]byte, error) {
	entries, err := os.ReadDir(s.trustClientsDir())
	if err != nil {
		return nil, err
	}
	var keys [][]byte
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".pk" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.trustClientsDir(), e.Name()))
		if err != nil {
			return nil, err
		}
		keys = append(keys, data)
	}
	return keys, nil
}

// IsAllowedClient reports whether pub byte-equals one of the allowed
// client public keys.
func (s *Store) IsAllowedClient(pub []byte) (bool, error) {
	keys, err := s.AllowedClientKeys()
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if bytes.Equal(k, pub) {
			return true, nil
		}
	}
	return false, nil
}

// TrustClient adds pub to the client allowlist under the given
// fingerprint name (used by the `trust` CLI subcommand).
func (s *Store) TrustClient(fingerprint string, pub []byte) error {
	path := filepath.Join(s.trustClientsDir(), sanitizeID(fingerprint)+".pk")
	return writeFileAtomic(path, pub, filePerm)
}

func sanitizeID(id string) string {
	return filepath.Base(id)
}

// writeFileAtomic writes data to a temp file in the same directory as
// path and renames it into place, so a pin write or key write can never
// be observed half-written.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
