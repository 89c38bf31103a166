package cryptoengine

import (
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 hashes data with an unkeyed BLAKE2b-256, used for both the
// per-file content digest (FileClose payload) and as a building block of
// the transcript digest.
func Blake2b256(parts ...[]byte) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on an oversized key, and we never pass one.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// Blake2b384 hashes data with an unkeyed BLAKE2b-384, used to derive the
// per-direction rekey material (K1/K2) from the traffic secret.
func Blake2b384(parts ...[]byte) []byte {
	h, err := blake2b.New384(nil)
	if err != nil {
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// NewFileHasher returns a fresh streaming BLAKE2b-256 hasher for a single
// file transfer. Per spec §5, hashers are per-file and must never be
// reset between files by mutation - callers create a new one per item.
func NewFileHasher() *FileHasher {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	return &FileHasher{h: h}
}

// FileHasher streams file bytes through BLAKE2b-256 as they cross the
// wire, used by both the upload sender and the download receiver to
// verify FileClose's digest against what was actually transferred.
type FileHasher struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

// Write feeds another chunk of file content into the running digest.
func (f *FileHasher) Write(p []byte) (int, error) { return f.h.Write(p) }

// Sum returns the final 32-byte BLAKE2b-256 digest of everything written.
func (f *FileHasher) Sum() []byte { return f.h.Sum(nil) }
