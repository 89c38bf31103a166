package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 16383, 16384, 1<<32 - 1, 1<<63 - 1}
	for _, x := range cases {
		buf := PutUvarint(nil, x)
		require.LessOrEqual(t, len(buf), 10)

		got, n, err := Uvarint(buf)
		require.NoError(t, err)
		assert.Equal(t, x, got)
		assert.Equal(t, len(buf), n)

		r := bufio.NewReader(bytes.NewReader(buf))
		got2, err := ReadUvarint(r)
		require.NoError(t, err)
		assert.Equal(t, x, got2)
	}
}

func TestVarintRejectsOverlongEncoding(t *testing.T) {
	overlong := bytes.Repeat([]byte{0x80}, 11)
	_, _, err := Uvarint(overlong)
	assert.Error(t, err)

	r := bufio.NewReader(bytes.NewReader(overlong))
	_, err = ReadUvarint(r)
	assert.Error(t, err)
}

func TestVarintTruncated(t *testing.T) {
	buf := PutUvarint(nil, 16384)
	_, _, err := Uvarint(buf[:1])
	assert.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	var buf []byte
	buf = AppendString(buf, "alpha/beta.bin")
	s, n, err := ReadString(buf)
	require.NoError(t, err)
	assert.Equal(t, "alpha/beta.bin", s)
	assert.Equal(t, len(buf), n)
}

func TestStringTruncated(t *testing.T) {
	buf := AppendString(nil, "hello")
	_, _, err := ReadString(buf[:2])
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStringEmpty(t *testing.T) {
	buf := AppendString(nil, "")
	s, n, err := ReadString(buf)
	require.NoError(t, err)
	assert.Equal(t, "", s)
	assert.Equal(t, 1, n)
}
