package wire

import (
	"bufio"
	"bytes"
	"testing"
)

// FuzzReadFrame throws arbitrary byte streams at the frame decoder. It
// must never panic, and any frame it does accept must not yield a body
// longer than the input it was decoded from.
func FuzzReadFrame(f *testing.F) {
	var seedBuf bytes.Buffer
	_ = WriteFrame(&seedBuf, UploadOpen, []byte("hello"))
	f.Add(seedBuf.Bytes())

	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 0x0f})

	var oversize []byte
	oversize = PutUvarint(oversize, MaxFrameBody+1)
	f.Add(oversize)

	f.Fuzz(func(t *testing.T, data []byte) {
		typ, body, err := ReadFrame(bufio.NewReader(bytes.NewReader(data)))
		if err != nil {
			return
		}
		if len(body) > len(data) {
			t.Fatalf("decoded body (%d bytes) longer than input (%d bytes)", len(body), len(data))
		}
		_ = typ
	})
}

// FuzzWriteThenReadFrame checks that any body WriteFrame accepts comes
// back unchanged through ReadFrame, for arbitrary type bytes and bodies.
func FuzzWriteThenReadFrame(f *testing.F) {
	f.Add(uint8(UploadOpen), []byte("payload"))
	f.Add(uint8(0), []byte{})
	f.Add(uint8(255), make([]byte, 256))

	f.Fuzz(func(t *testing.T, typByte uint8, body []byte) {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, RecordType(typByte), body); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}

		gotTyp, gotBody, err := ReadFrame(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("ReadFrame failed on just-written frame: %v", err)
		}
		if gotTyp != RecordType(typByte) {
			t.Fatalf("type mismatch: wrote %d, read %d", typByte, gotTyp)
		}
		if !bytes.Equal(gotBody, body) {
			t.Fatalf("body mismatch: wrote %q, read %q", body, gotBody)
		}
	})
}
