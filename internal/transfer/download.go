package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/vercingetorx/depot/internal/cryptoengine"
	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/record"
	"github.com/vercingetorx/depot/internal/sandbox"
	"github.com/vercingetorx/depot/internal/wire"
)

// DownloadOptions configures client-side download behavior.
type DownloadOptions struct {
	Overwrite    bool
	SkipExisting bool
}

// RunDownload drives the client side of a download: it sends
// DownloadOpen, then answers every PathOpen with PathAccept or
// PathSkip until DownloadDone, re-creating the remote subtree under
// localDestDir.
func RunDownload(sess *record.Session, wirePath, localDestDir string, opts DownloadOptions) ([]UploadResult, error) {
	if err := sess.Send(wire.DownloadOpen, wire.EncodeWirePath(wirePath)); err != nil {
		return nil, err
	}

	var results []UploadResult
	var pendingErr error
	for {
		typ, payload, err := sess.Receive()
		if err != nil {
			return results, err
		}
		switch typ {
		case wire.DownloadDone:
			return results, pendingErr
		case wire.ErrorRec:
			return results, errs.New(decodeErrorPayload(payload), nil)
		case wire.PathOpen:
			item, err := wire.DecodePathOpen(payload)
			if err != nil {
				return results, errs.New(errs.BadPayload, err)
			}
			res, err := receiveOneFile(sess, item, localDestDir, opts)
			if err != nil {
				return results, err
			}
			if res.Err != nil && !res.Skipped {
				pendingErr = res.Err
			}
			results = append(results, res)
		default:
			return results, errs.New(errs.Protocol, fmt.Errorf("download: unexpected record %s", typ))
		}
	}
}

func receiveOneFile(sess *record.Session, item wire.Item, localDestDir string, opts DownloadOptions) (UploadResult, error) {
	res := UploadResult{Path: item.Path}
	localPath := filepath.Join(localDestDir, filepath.FromSlash(item.Path))

	if _, err := os.Lstat(localPath); err == nil && !opts.Overwrite {
		if err := sess.Send(wire.PathSkip, nil); err != nil {
			return res, err
		}
		if opts.SkipExisting {
			res.Skipped = true
			return res, nil
		}
		res.Err = errs.New(errs.Exists, nil)
		return res, nil
	}

	if err := sess.Send(wire.PathAccept, nil); err != nil {
		return res, err
	}

	f, err := createPart(localPath, opts.Overwrite)
	if err != nil {
		code, _ := errs.As(err)
		_ = sess.Send(wire.ErrorRec, []byte{byte(code)})
		res.Err = err
		return res, nil
	}

	hasher := cryptoengine.NewFileHasher()
	for {
		typ, body, err := sess.Receive()
		if err != nil {
			f.Close()
			abortPart(localPath)
			return res, err
		}
		if typ == wire.FileData {
			if _, werr := f.Write(body); werr != nil {
				f.Close()
				abortPart(localPath)
				code := errs.TranslateOSError(werr, errs.WriteFail)
				_ = sess.Send(wire.ErrorRec, []byte{byte(code)})
				res.Err = errs.New(code, werr)
				return res, nil
			}
			hasher.Write(body)
			continue
		}
		if typ == wire.ErrorRec {
			f.Close()
			abortPart(localPath)
			res.Err = errs.New(decodeErrorPayload(body), nil)
			return res, nil
		}
		if typ != wire.FileClose {
			f.Close()
			abortPart(localPath)
			return res, errs.New(errs.Protocol, fmt.Errorf("download: unexpected record %s mid-stream", typ))
		}
		f.Close()
		if len(body) != 32 || !bytes.Equal(hasher.Sum(), body) {
			abortPart(localPath)
			_ = sess.Send(wire.ErrorRec, []byte{byte(errs.Checksum)})
			res.Err = errs.New(errs.Checksum, nil)
			return res, nil
		}
		if err := commitPart(localPath, opts.Overwrite); err != nil {
			code, _ := errs.As(err)
			_ = sess.Send(wire.ErrorRec, []byte{byte(code)})
			res.Err = err
			return res, nil
		}
		ApplyBestEffort(localPath, item.Mtime, item.Perms)
		return res, nil
	}
}

// ServeDownload drives the server side: it resolves wirePath under sb,
// walks it (recursively for a directory, per the directory semantics
// in spec §6), and streams one PathOpen/FileData.../FileClose sequence
// per regular file before DownloadDone.
func ServeDownload(sess *record.Session, sb *sandbox.Sandbox, wirePath string) error {
	resolved, err := sb.Resolve(wirePath)
	if err != nil {
		code, _ := errs.As(err)
		return sendErrorRec(sess, code)
	}

	info, err := os.Lstat(resolved)
	if err != nil {
		return sendErrorRec(sess, errs.TranslateOSError(err, errs.NotFound))
	}

	if info.Mode().IsRegular() {
		if err := serveOneDownloadItem(sess, resolved, wirePath, info); err != nil {
			return err
		}
		return sess.Send(wire.DownloadDone, nil)
	}
	if !info.IsDir() {
		return sendErrorRec(sess, errs.UnsafePath)
	}

	top := path.Base(wirePath)
	walkErr := filepath.Walk(resolved, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(resolved, p)
		if err != nil {
			return err
		}
		remotePath := path.Join(top, filepath.ToSlash(rel))
		return serveOneDownloadItem(sess, p, remotePath, fi)
	})
	if walkErr != nil {
		return sendErrorRec(sess, errs.TranslateOSError(walkErr, errs.ReadFail))
	}
	return sess.Send(wire.DownloadDone, nil)
}

func serveOneDownloadItem(sess *record.Session, localPath, remotePath string, info os.FileInfo) error {
	// The server drives the download stream, so it owns the rekey proposal
	// at this file boundary; the ack rides in transparently on the Receive
	// below that waits for PathAccept/PathSkip.
	if sess.DueForRekey() {
		if err := sess.ProposeRekey(); err != nil {
			return err
		}
	}

	item := wire.Item{
		Path:  remotePath,
		Size:  info.Size(),
		Mtime: info.ModTime().Unix(),
		Perms: EncodePerms(info.Mode()),
	}
	if err := sess.Send(wire.PathOpen, wire.EncodePathOpen(item)); err != nil {
		return err
	}

	typ, _, err := sess.Receive()
	if err != nil {
		return err
	}
	if typ == wire.PathSkip {
		return nil
	}
	if typ != wire.PathAccept {
		return errs.New(errs.Protocol, fmt.Errorf("download: unexpected reply %s to PathOpen", typ))
	}

	f, _, err := sandbox.VerifyRegularFile(localPath)
	if err != nil {
		code, _ := errs.As(err)
		return sendErrorRec(sess, code)
	}
	defer f.Close()

	hasher := cryptoengine.NewFileHasher()
	buf := make([]byte, ChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if err := sess.Send(wire.FileData, buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return sendErrorRec(sess, errs.TranslateOSError(readErr, errs.ReadFail))
		}
	}
	return sess.Send(wire.FileClose, hasher.Sum())
}
