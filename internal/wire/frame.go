package wire

import (
	"bufio"
	"fmt"
	"io"
)

// MaxFrameBody caps a single frame's body (type + ciphertext + tag) to
// guard against a peer claiming an unreasonable varint length before any
// authentication has taken place.
const MaxFrameBody = 64 << 20

// WriteFrame writes varint(body_len) | type(u8) | body as a single
// transport write, matching the send contract in the protocol design:
// frames must not be split across multiple writes or another goroutine
// could interleave with them on a shared socket.
func WriteFrame(w io.Writer, typ RecordType, body []byte) error {
	head := make([]byte, 0, maxVarintBytes+1)
	head = PutUvarint(head, uint64(len(body)+1))
	buf := make([]byte, 0, len(head)+1+len(body))
	buf = append(buf, head...)
	buf = append(buf, byte(typ))
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one varint(body_len) followed by exactly body_len
// bytes, then splits off the leading type byte. It returns io.EOF only
// when the peer closed cleanly before sending any byte of a new frame;
// any other truncation surfaces as io.ErrUnexpectedEOF.
func ReadFrame(r *bufio.Reader) (typ RecordType, body []byte, err error) {
	bodyLen, err := ReadUvarint(r)
	if err != nil {
		return 0, nil, err
	}
	if bodyLen == 0 {
		return 0, nil, fmt.Errorf("wire: empty frame body")
	}
	if bodyLen > MaxFrameBody {
		return 0, nil, fmt.Errorf("wire: frame body %d exceeds limit", bodyLen)
	}
	raw := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	return RecordType(raw[0]), raw[1:], nil
}
