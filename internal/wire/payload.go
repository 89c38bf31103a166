package wire

import "io"

// Item describes the metadata attached to UploadOpen and PathOpen
// records: the remote path (forward-slash, relative), size (PathOpen
// only), modification time, and the permission set.
type Item struct {
	Path    string
	Size    int64
	Mtime   int64
	Perms   []FilePermission
}

// EncodeUploadOpen builds the UploadOpen payload: varint(path_len) |
// path | varint(mtime) | varint(perm_count) | perm_ordinals.
func EncodeUploadOpen(it Item) []byte {
	buf := AppendString(nil, it.Path)
	buf = PutUvarint(buf, uint64(it.Mtime))
	buf = PutUvarint(buf, uint64(len(it.Perms)))
	for _, p := range it.Perms {
		buf = append(buf, byte(p))
	}
	return buf
}

// DecodeUploadOpen parses an UploadOpen payload produced by EncodeUploadOpen.
func DecodeUploadOpen(buf []byte) (Item, error) {
	var it Item
	path, n, err := ReadString(buf)
	if err != nil {
		return it, err
	}
	buf = buf[n:]
	mtime, n, err := Uvarint(buf)
	if err != nil {
		return it, err
	}
	buf = buf[n:]
	perms, _, err := decodePerms(buf)
	if err != nil {
		return it, err
	}
	it.Path = path
	it.Mtime = int64(mtime)
	it.Perms = perms
	return it, nil
}

// EncodePathOpen builds the PathOpen payload: varint(path_len) | path |
// varint(size) | varint(mtime) | varint(perm_count) | perm_ordinals.
func EncodePathOpen(it Item) []byte {
	buf := AppendString(nil, it.Path)
	buf = PutUvarint(buf, uint64(it.Size))
	buf = PutUvarint(buf, uint64(it.Mtime))
	buf = PutUvarint(buf, uint64(len(it.Perms)))
	for _, p := range it.Perms {
		buf = append(buf, byte(p))
	}
	return buf
}

// DecodePathOpen parses a PathOpen payload produced by EncodePathOpen.
func DecodePathOpen(buf []byte) (Item, error) {
	var it Item
	path, n, err := ReadString(buf)
	if err != nil {
		return it, err
	}
	buf = buf[n:]
	size, n, err := Uvarint(buf)
	if err != nil {
		return it, err
	}
	buf = buf[n:]
	mtime, n, err := Uvarint(buf)
	if err != nil {
		return it, err
	}
	buf = buf[n:]
	perms, _, err := decodePerms(buf)
	if err != nil {
		return it, err
	}
	it.Path = path
	it.Size = int64(size)
	it.Mtime = int64(mtime)
	it.Perms = perms
	return it, nil
}

func decodePerms(buf []byte) ([]FilePermission, int, error) {
	count, n, err := Uvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	total := n + int(count)
	if total > len(buf) {
		return nil, 0, io.ErrUnexpectedEOF
	}
	var perms []FilePermission
	for i := 0; i < int(count); i++ {
		b := buf[n+i]
		if !ValidPermission(b) {
			return nil, 0, errBadPermission
		}
		perms = append(perms, FilePermission(b))
	}
	return perms, total, nil
}

var errBadPermission = &wireError{"wire: invalid permission ordinal"}

type wireError struct{ msg string }

func (e *wireError) Error() string { return e.msg }

// ListEntry is one record inside a ListChunk payload.
type ListEntry struct {
	Path string
	Size int64
	Kind EntryKind
}

// AppendListEntry appends varint(path_len) | path | varint(size) | kind
// to dst.
func AppendListEntry(dst []byte, e ListEntry) []byte {
	dst = AppendString(dst, e.Path)
	dst = PutUvarint(dst, uint64(e.Size))
	return append(dst, byte(e.Kind))
}

// DecodeListEntry parses a single listing entry from the front of buf.
func DecodeListEntry(buf []byte) (ListEntry, int, error) {
	var e ListEntry
	path, n, err := ReadString(buf)
	if err != nil {
		return e, 0, err
	}
	buf = buf[n:]
	size, sn, err := Uvarint(buf)
	if err != nil {
		return e, 0, err
	}
	buf = buf[sn:]
	if len(buf) < 1 {
		return e, 0, io.ErrUnexpectedEOF
	}
	e.Path = path
	e.Size = int64(size)
	e.Kind = EntryKind(buf[0])
	return e, n + sn + 1, nil
}

// DecodeListChunk decodes every entry packed into a ListChunk payload.
func DecodeListChunk(buf []byte) ([]ListEntry, error) {
	var entries []ListEntry
	for len(buf) > 0 {
		e, n, err := DecodeListEntry(buf)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		buf = buf[n:]
	}
	return entries, nil
}

// ListChunkTargetBytes is the soft maximum a sender should accumulate
// into one ListChunk frame before flushing, per spec §4.3.3.
const ListChunkTargetBytes = 64 << 10

// EncodeWirePath builds the single-field payload shared by DownloadOpen
// and ListOpen: varint(path_len) | utf8_path.
func EncodeWirePath(path string) []byte {
	return AppendString(nil, path)
}

// DecodeWirePath parses a DownloadOpen/ListOpen payload produced by
// EncodeWirePath.
func DecodeWirePath(buf []byte) (string, error) {
	path, _, err := ReadString(buf)
	return path, err
}
