package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vercingetorx/depot/internal/errs"
	"github.com/vercingetorx/depot/internal/record"
	"github.com/vercingetorx/depot/internal/sandbox"
	"github.com/vercingetorx/depot/internal/wire"
)

// RunListing drives the client side of a non-recursive directory
// listing: send ListOpen, accumulate ListChunk entries until ListDone.
func RunListing(sess *record.Session, wirePath string) ([]wire.ListEntry, error) {
	if err := sess.Send(wire.ListOpen, wire.EncodeWirePath(wirePath)); err != nil {
		return nil, err
	}

	var entries []wire.ListEntry
	for {
		typ, payload, err := sess.Receive()
		if err != nil {
			return entries, err
		}
		switch typ {
		case wire.ListDone:
			return entries, nil
		case wire.ErrorRec:
			return entries, errs.New(decodeErrorPayload(payload), nil)
		case wire.ListChunk:
			chunk, err := wire.DecodeListChunk(payload)
			if err != nil {
				return entries, errs.New(errs.BadPayload, err)
			}
			entries = append(entries, chunk...)
		default:
			return entries, errs.New(errs.Protocol, fmt.Errorf("listing: unexpected record %s", typ))
		}
	}
}

// ServeListing drives the server side: resolve wirePath under sb, then
// either describe the single file or stream its immediate children in
// ~64 KiB batches.
func ServeListing(sess *record.Session, sb *sandbox.Sandbox, wirePath string) error {
	resolved, err := sb.Resolve(wirePath)
	if err != nil {
		code, _ := errs.As(err)
		return sendErrorRec(sess, code)
	}

	info, err := os.Lstat(resolved)
	if err != nil {
		return sendErrorRec(sess, errs.TranslateOSError(err, errs.NotFound))
	}

	if !info.IsDir() {
		entry := wire.ListEntry{Path: wirePath, Size: info.Size(), Kind: wire.EntryFile}
		if err := sess.Send(wire.ListChunk, wire.AppendListEntry(nil, entry)); err != nil {
			return err
		}
		return sess.Send(wire.ListDone, nil)
	}

	children, err := os.ReadDir(resolved)
	if err != nil {
		return sendErrorRec(sess, errs.TranslateOSError(err, errs.ReadFail))
	}

	var chunk []byte
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := sess.Send(wire.ListChunk, chunk); err != nil {
			return err
		}
		chunk = chunk[:0]
		return nil
	}

	for _, c := range children {
		childInfo, err := c.Info()
		if err != nil {
			continue // entry vanished between ReadDir and Info; skip it
		}
		kind := wire.EntryFile
		if childInfo.IsDir() {
			kind = wire.EntryDir
		}
		entry := wire.ListEntry{
			Path: filepath.ToSlash(filepath.Join(wirePath, c.Name())),
			Size: childInfo.Size(),
			Kind: kind,
		}
		next := wire.AppendListEntry(chunk, entry)
		if len(next) > wire.ListChunkTargetBytes {
			if err := flush(); err != nil {
				return err
			}
			next = wire.AppendListEntry(nil, entry)
		}
		chunk = next
	}
	if err := flush(); err != nil {
		return err
	}
	return sess.Send(wire.ListDone, nil)
}
