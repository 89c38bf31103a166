package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/vercingetorx/depot/internal/cryptoengine"
	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/record"
	"github.com/vercingetorx/depot/internal/sandbox"
	"github.com/vercingetorx/depot/internal/wire"
)

// ChunkSize is the typical FileData chunk the sender streams; the wire
// format allows any non-zero size (spec §4.3.1).
const ChunkSize = 1 << 20

// UploadOptions configures client-side upload behavior.
type UploadOptions struct {
	Overwrite    bool
	SkipExisting bool
}

// UploadResult summarizes one completed or skipped upload.
type UploadResult struct {
	Path    string
	Skipped bool
	Err     error
}

// SendFile drives one client→server upload (OPEN_WAIT → STREAM →
// COMMIT_WAIT → DONE|FAILED) for a single local file.
func SendFile(sess *record.Session, localPath string, item wire.Item, opts UploadOptions) UploadResult {
	res := UploadResult{Path: item.Path}

	if err := sess.Send(wire.UploadOpen, wire.EncodeUploadOpen(item)); err != nil {
		res.Err = err
		return res
	}

	typ, payload, err := sess.Receive()
	if err != nil {
		res.Err = err
		return res
	}
	switch typ {
	case wire.UploadFail:
		code := decodeErrorPayload(payload)
		if code == errs.Exists && opts.SkipExisting {
			res.Skipped = true
			return res
		}
		res.Err = errs.New(code, nil)
		return res
	case wire.UploadOk:
		// proceed to stream
	default:
		res.Err = errs.New(errs.Protocol, fmt.Errorf("upload: unexpected reply %s", typ))
		return res
	}

	f, err := os.Open(localPath)
	if err != nil {
		res.Err = errs.New(errs.TranslateOSError(err, errs.ReadFail), err)
		return res
	}
	defer f.Close()

	hasher := cryptoengine.NewFileHasher()
	buf := make([]byte, ChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if err := sess.Send(wire.FileData, buf[:n]); err != nil {
				res.Err = err
				return res
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			res.Err = errs.New(errs.TranslateOSError(readErr, errs.ReadFail), readErr)
			return res
		}
	}
	if err := sess.Send(wire.FileClose, hasher.Sum()); err != nil {
		res.Err = err
		return res
	}

	typ, payload, err = sess.Receive()
	if err != nil {
		res.Err = err
		return res
	}
	switch typ {
	case wire.UploadDone:
		return res
	case wire.ErrorRec:
		res.Err = errs.New(decodeErrorPayload(payload), nil)
		return res
	default:
		res.Err = errs.New(errs.Protocol, fmt.Errorf("upload: unexpected commit reply %s", typ))
		return res
	}
}

// ServeUpload drives the server side of one upload: it reads
// UploadOpen, resolves the destination under sb, stages a `.part`
// file, streams FileData into it, and verifies FileClose against a
// rolling hash before an atomic commit.
func ServeUpload(sess *record.Session, sb *sandbox.Sandbox, payload []byte, overwrite bool) error {
	item, err := wire.DecodeUploadOpen(payload)
	if err != nil {
		return sendUploadFail(sess, errs.BadPayload)
	}

	dest, err := sb.Resolve(item.Path)
	if err != nil {
		code, _ := errs.As(err)
		return sendUploadFail(sess, code)
	}

	f, err := createPart(dest, overwrite)
	if err != nil {
		code, _ := errs.As(err)
		return sendUploadFail(sess, code)
	}

	if err := sess.Send(wire.UploadOk, nil); err != nil {
		f.Close()
		abortPart(dest)
		return err
	}

	hasher := cryptoengine.NewFileHasher()
	for {
		typ, body, err := sess.Receive()
		if err != nil {
			f.Close()
			abortPart(dest)
			return err
		}
		if typ == wire.FileData {
			if _, werr := f.Write(body); werr != nil {
				f.Close()
				abortPart(dest)
				return sendErrorRec(sess, errs.TranslateOSError(werr, errs.WriteFail))
			}
			hasher.Write(body)
			continue
		}
		if typ != wire.FileClose {
			f.Close()
			abortPart(dest)
			return errs.New(errs.Protocol, fmt.Errorf("upload: unexpected record %s mid-stream", typ))
		}
		f.Close()
		if len(body) != 32 {
			abortPart(dest)
			return sendErrorRec(sess, errs.BadPayload)
		}
		if !bytes.Equal(hasher.Sum(), body) {
			abortPart(dest)
			return sendErrorRec(sess, errs.Checksum)
		}
		if err := commitPart(dest, overwrite); err != nil {
			code, _ := errs.As(err)
			return sendErrorRec(sess, code)
		}
		ApplyBestEffort(dest, item.Mtime, item.Perms)
		return sess.Send(wire.UploadDone, nil)
	}
}

func sendUploadFail(sess *record.Session, code errs.Code) error {
	return sess.Send(wire.UploadFail, []byte{byte(code)})
}

func sendErrorRec(sess *record.Session, code errs.Code) error {
	if err := sess.Send(wire.ErrorRec, []byte{byte(code)}); err != nil {
		return err
	}
	return errs.New(code, nil)
}

func decodeErrorPayload(payload []byte) errs.Code {
	if len(payload) != 1 || !errs.Valid(payload[0]) {
		return errs.Unknown
	}
	return errs.Code(payload[0])
}
