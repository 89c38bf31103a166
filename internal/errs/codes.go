// Package errs defines Depot's wire error taxonomy: a small set of
// single-byte codes that cross the wire in ErrorRec/UploadFail/ERROR
// records, plus the behavioral categories and audience-specific
// rendering tables described in the protocol design.
package errs

// Code is a single-byte error code that may appear on the wire.
type Code byte

const (
	Unknown Code = iota
	Exists
	Filter
	NoSpace
	Perms
	Absolute
	UnsafePath
	BadPath
	BadPayload
	OpenFail
	WriteFail
	ReadFail
	NotFound
	Timeout
	Checksum
	Config
	Compat
	Auth
	Closed
	Connect
	Protocol
	CommitFail
	Conflict
	BadRemote

	maxCode
)

// category groups codes by how a peer must react to them.
type category int

const (
	catSessionFatal category = iota
	catLocalFatal
	catPerItem
)

var categories = map[Code]category{
	Closed:   catSessionFatal,
	Timeout:  catSessionFatal,
	Protocol: catSessionFatal,
	Compat:   catSessionFatal,
	Auth:     catSessionFatal,
	Config:   catSessionFatal,
	Connect:  catSessionFatal,

	NoSpace:   catLocalFatal,
	Perms:     catLocalFatal,
	OpenFail:  catLocalFatal,
	WriteFail: catLocalFatal,
	ReadFail:  catLocalFatal,

	Exists:     catPerItem,
	NotFound:   catPerItem,
	BadPath:    catPerItem,
	UnsafePath: catPerItem,
	Absolute:   catPerItem,
	Checksum:   catPerItem,
	Filter:     catPerItem,
	Conflict:   catPerItem,
	BadRemote:  catPerItem,
	CommitFail: catPerItem,
	Unknown:    catPerItem,
	BadPayload: catPerItem,
}

// IsSessionFatal reports whether c terminates the session with no further
// records exchanged.
func IsSessionFatal(c Code) bool { return categories[c] == catSessionFatal }

// IsLocalFatal reports whether c aborts the current batch on the peer that
// raised it.
func IsLocalFatal(c Code) bool { return categories[c] == catLocalFatal }

// IsPerItem reports whether c aborts only the current file/entry, letting
// the batch continue.
func IsPerItem(c Code) bool { return categories[c] == catPerItem }

// Valid reports whether b decodes to a known Code.
func Valid(b byte) bool { return Code(b) < maxCode }

var codeNames = map[Code]string{
	Unknown:    "unknown",
	Exists:     "exists",
	Filter:     "filter",
	NoSpace:    "no_space",
	Perms:      "perms",
	Absolute:   "absolute",
	UnsafePath: "unsafe_path",
	BadPath:    "bad_path",
	BadPayload: "bad_payload",
	OpenFail:   "open_fail",
	WriteFail:  "write_fail",
	ReadFail:   "read_fail",
	NotFound:   "not_found",
	Timeout:    "timeout",
	Checksum:   "checksum",
	Config:     "config",
	Compat:     "compat",
	Auth:       "auth",
	Closed:     "closed",
	Connect:    "connect",
	Protocol:   "protocol",
	CommitFail: "commit_fail",
	Conflict:   "conflict",
	BadRemote:  "bad_remote",
}

// String renders c as a short snake_case identifier, suitable for a
// metrics label value or a log field.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return codeNames[Unknown]
}

// clientMessages renders codes the way a client-side log line should,
// i.e. from the perspective of someone pushing/pulling files.
var clientMessages = map[Code]string{
	Unknown:    "the server reported an unspecified error",
	Exists:     "destination already exists",
	Filter:     "item excluded by filter",
	NoSpace:    "server ran out of disk space",
	Perms:      "server denied permission",
	Absolute:   "remote path must be relative",
	UnsafePath: "remote path escapes the share root",
	BadPath:    "remote path is malformed",
	BadPayload: "received a malformed record",
	OpenFail:   "server could not open the destination file",
	WriteFail:  "server failed to write the destination file",
	ReadFail:   "server failed to read the source file",
	NotFound:   "remote path not found",
	Timeout:    "connection timed out",
	Checksum:   "checksum mismatch; transfer rejected",
	Config:     "server is not configured to accept this connection",
	Compat:     "incompatible protocol features",
	Auth:       "authentication failed",
	Closed:     "connection closed",
	Connect:    "could not connect to server",
	Protocol:   "protocol violation",
	CommitFail: "server could not commit the file",
	Conflict:   "conflicting concurrent write",
	BadRemote:  "remote identity rejected",
}

// serverMessages renders codes for the server's own logs, describing the
// local condition that produced the code rather than its effect on a peer.
var serverMessages = map[Code]string{
	Unknown:    "unclassified internal error",
	Exists:     "destination exists and overwrite is disabled",
	Filter:     "item excluded by server-side filter",
	NoSpace:    "ENOSPC writing to share root",
	Perms:      "permission denied accessing share root",
	Absolute:   "client sent an absolute remote path",
	UnsafePath: "client attempted a sandbox escape",
	BadPath:    "client sent a malformed remote path",
	BadPayload: "received a malformed record from client",
	OpenFail:   "open() failed for requested destination",
	WriteFail:  "write() failed writing staged file",
	ReadFail:   "read() failed reading source file",
	NotFound:   "requested remote path does not exist",
	Timeout:    "client exceeded the read timeout",
	Checksum:   "received content does not match FileClose digest",
	Config:     "server identity or passphrase is not configured",
	Compat:     "client/server feature negotiation failed",
	Auth:       "client failed handshake authentication",
	Closed:     "peer closed the connection",
	Connect:    "accept/dial failure",
	Protocol:   "client violated the wire protocol",
	CommitFail: "atomic rename of staged file failed",
	Conflict:   "destination modified concurrently",
	BadRemote:  "remote identity does not match pinned key",
}

// ClientMessage renders c for client-facing logs.
func ClientMessage(c Code) string {
	if m, ok := clientMessages[c]; ok {
		return m
	}
	return clientMessages[Unknown]
}

// ServerMessage renders c for server-facing logs.
func ServerMessage(c Code) string {
	if m, ok := serverMessages[c]; ok {
		return m
	}
	return serverMessages[Unknown]
}
