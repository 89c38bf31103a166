package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vercingetorx/depot/internal/errs"
)

func TestDPK1RoundTrip(t *testing.T) {
	plaintext := []byte("super secret dilithium key material")
	envelope, err := EncodeDPK1(plaintext, "correct horse battery staple")
	require.NoError(t, err)

	got, err := DecodeDPK1(envelope, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDPK1WrongPassphrase(t *testing.T) {
	envelope, err := EncodeDPK1([]byte("secret"), "right")
	require.NoError(t, err)

	_, err = DecodeDPK1(envelope, "wrong")
	assert.Error(t, err)
}

func TestDPK1RejectsMissingMagic(t *testing.T) {
	envelope, err := EncodeDPK1([]byte("secret"), "pass")
	require.NoError(t, err)
	envelope[0] = 'X'

	_, err = DecodeDPK1(envelope, "pass")
	assert.Error(t, err)
}

func TestDPK1RejectsTamperedCiphertext(t *testing.T) {
	envelope, err := EncodeDPK1([]byte("secret"), "pass")
	require.NoError(t, err)
	envelope[len(envelope)-1] ^= 0xFF

	_, err = DecodeDPK1(envelope, "pass")
	assert.Error(t, err)
}

func TestDPK1RejectsTruncated(t *testing.T) {
	envelope, err := EncodeDPK1([]byte("secret"), "pass")
	require.NoError(t, err)

	_, err = DecodeDPK1(envelope[:10], "pass")
	assert.Error(t, err)
}

func TestLoadOrInitServerIdentityRequiresPassphrase(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.LoadOrInitServerIdentity("")
	code, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.Config, code)
}

func TestLoadOrInitServerIdentityGeneratesAndReloads(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	kp1, err := s.LoadOrInitServerIdentity("passphrase")
	require.NoError(t, err)
	assert.NotEmpty(t, kp1.Public)
	assert.NotEmpty(t, kp1.Private)

	s2, err := NewStore(dir)
	require.NoError(t, err)
	kp2, err := s2.LoadOrInitServerIdentity("passphrase")
	require.NoError(t, err)
	assert.Equal(t, kp1.Public, kp2.Public)
	assert.Equal(t, kp1.Private, kp2.Private)
}

func TestLoadOrInitServerIdentityWrongPassphraseOnReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.LoadOrInitServerIdentity("right")
	require.NoError(t, err)

	s2, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s2.LoadOrInitServerIdentity("wrong")
	code, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.Config, code)
}

func TestLoadOrCreateClientIdentityPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	kp1, err := s.LoadOrCreateClientIdentity()
	require.NoError(t, err)

	s2, err := NewStore(dir)
	require.NoError(t, err)
	kp2, err := s2.LoadOrCreateClientIdentity()
	require.NoError(t, err)

	assert.Equal(t, kp1.Public, kp2.Public)
	assert.Equal(t, kp1.Private, kp2.Private)
}

func TestVerifyOrPinFirstContactPins(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	pub := []byte("remote-server-pubkey")
	ok, err := s.VerifyOrPin("remote-1", pub)
	require.NoError(t, err)
	assert.True(t, ok)

	pinned, found := s.PinnedServerKey("remote-1")
	require.True(t, found)
	assert.Equal(t, pub, pinned)
}

func TestVerifyOrPinMatchOnSubsequentContact(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	pub := []byte("remote-server-pubkey")
	_, err = s.VerifyOrPin("remote-1", pub)
	require.NoError(t, err)

	ok, err := s.VerifyOrPin("remote-1", pub)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyOrPinMismatchRejected(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.VerifyOrPin("remote-1", []byte("original-key"))
	require.NoError(t, err)

	ok, err := s.VerifyOrPin("remote-1", []byte("different-key"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestForgetPinAllowsRepin(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.VerifyOrPin("remote-1", []byte("key-a"))
	require.NoError(t, err)

	require.NoError(t, s.ForgetPin("remote-1"))

	ok, err := s.VerifyOrPin("remote-1", []byte("key-b"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowedClientKeysEmpty(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	keys, err := s.AllowedClientKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	ok, err := s.IsAllowedClient([]byte("anything"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrustClientThenIsAllowed(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	pub := []byte("client-public-key-bytes")
	require.NoError(t, s.TrustClient("alice", pub))

	ok, err := s.IsAllowedClient(pub)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsAllowedClient([]byte("not-trusted"))
	require.NoError(t, err)
	assert.False(t, ok)
}
