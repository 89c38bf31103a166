package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allPerms = []FilePermission{
	OwnerRead, OwnerWrite, OwnerExec,
	GroupRead, GroupWrite, GroupExec,
	OtherRead, OtherWrite, OtherExec,
}

func TestUploadOpenRoundTrip(t *testing.T) {
	cases := []Item{
		{Path: "alpha.bin", Mtime: 1700000000, Perms: nil},
		{Path: "dir/beta.bin", Mtime: 42, Perms: []FilePermission{OwnerRead, OwnerWrite}},
		{Path: "gamma.bin", Mtime: 0, Perms: allPerms},
	}
	for _, c := range cases {
		buf := EncodeUploadOpen(c)
		got, err := DecodeUploadOpen(buf)
		require.NoError(t, err)
		assert.Equal(t, c.Path, got.Path)
		assert.Equal(t, c.Mtime, got.Mtime)
		assert.Equal(t, c.Perms, got.Perms)
	}
}

func TestPathOpenRoundTrip(t *testing.T) {
	cases := []Item{
		{Path: "mixdir/child/a.bin", Size: 65537, Mtime: 101, Perms: nil},
		{Path: "gamma.bin", Size: 131075, Mtime: 777, Perms: allPerms},
	}
	for _, c := range cases {
		buf := EncodePathOpen(c)
		got, err := DecodePathOpen(buf)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestDecodeUploadOpenRejectsBadPermission(t *testing.T) {
	buf := AppendString(nil, "x")
	buf = PutUvarint(buf, 0)
	buf = PutUvarint(buf, 1)
	buf = append(buf, 200)
	_, err := DecodeUploadOpen(buf)
	assert.Error(t, err)
}

func TestListChunkRoundTrip(t *testing.T) {
	entries := []ListEntry{
		{Path: "a.bin", Size: 10, Kind: EntryFile},
		{Path: "child", Size: 0, Kind: EntryDir},
	}
	var buf []byte
	for _, e := range entries {
		buf = AppendListEntry(buf, e)
	}
	got, err := DecodeListChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestListChunkEmpty(t *testing.T) {
	got, err := DecodeListChunk(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
