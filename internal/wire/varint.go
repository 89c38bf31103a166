// Package wire implements Depot's on-the-wire encoding: the unsigned
// LEB128 varint used throughout record payloads and frame headers, the
// stable record-type constants, and the record entry encodings (upload
// open, path open, listing entries) shared by the handshake, record
// channel, and transfer packages.
package wire

import (
	"bufio"
	"fmt"
	"io"
)

// maxVarintBytes is the wire-mandated cap: a 64-bit value never needs
// more than 10 continuation-encoded bytes, and a longer sequence is
// always a malformed payload.
const maxVarintBytes = 10

// PutUvarint appends x to dst in unsigned LEB128 form and returns the
// extended slice.
func PutUvarint(dst []byte, x uint64) []byte {
	for x >= 0x80 {
		dst = append(dst, byte(x)|0x80)
		x >>= 7
	}
	return append(dst, byte(x))
}

// AppendString appends a varint length prefix followed by the raw bytes
// of s.
func AppendString(dst []byte, s string) []byte {
	dst = PutUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// Uvarint decodes an unsigned LEB128 varint from the front of buf,
// returning the value and the number of bytes consumed. It rejects
// encodings longer than 10 bytes as malformed (ecBadPayload territory).
func Uvarint(buf []byte) (x uint64, n int, err error) {
	for i := 0; i < maxVarintBytes && i < len(buf); i++ {
		b := buf[i]
		if b < 0x80 {
			x |= uint64(b) << (7 * uint(i))
			return x, i + 1, nil
		}
		x |= uint64(b&0x7f) << (7 * uint(i))
	}
	if len(buf) >= maxVarintBytes {
		return 0, 0, fmt.Errorf("wire: varint exceeds %d bytes", maxVarintBytes)
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// ReadUvarint decodes a single unsigned LEB128 varint from r, reading at
// most 10 bytes. It is the streaming counterpart of Uvarint used when
// framing a socket read.
func ReadUvarint(r *bufio.Reader) (uint64, error) {
	var x uint64
	for i := 0; i < maxVarintBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if b < 0x80 {
			x |= uint64(b) << (7 * uint(i))
			return x, nil
		}
		x |= uint64(b&0x7f) << (7 * uint(i))
	}
	return 0, fmt.Errorf("wire: varint exceeds %d bytes", maxVarintBytes)
}

// ReadString decodes a varint length prefix followed by that many bytes
// of UTF-8 text from buf, returning the string and bytes consumed.
func ReadString(buf []byte) (s string, n int, err error) {
	l, ln, err := Uvarint(buf)
	if err != nil {
		return "", 0, err
	}
	total := ln + int(l)
	if total > len(buf) || total < ln {
		return "", 0, io.ErrUnexpectedEOF
	}
	return string(buf[ln:total]), total, nil
}
