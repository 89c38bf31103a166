// Package transfer implements the upload, download, and listing state
// machines that run on top of a *record.Session: per-file checksums,
// metadata preservation, and atomic commit via the `.part` staging
// convention (spec §4.3).
package transfer

import (
	"os"

	"github.com/vercingetorx/depot/internal/wire"
)

// permBits maps each portable FilePermission ordinal to its POSIX mode
// bit, so a received perm set can be applied with os.Chmod.
var permBits = map[wire.FilePermission]os.FileMode{
	wire.OwnerRead:  0o400,
	wire.OwnerWrite: 0o200,
	wire.OwnerExec:  0o100,
	wire.GroupRead:  0o040,
	wire.GroupWrite: 0o020,
	wire.GroupExec:  0o010,
	wire.OtherRead:  0o004,
	wire.OtherWrite: 0o002,
	wire.OtherExec:  0o001,
}

// EncodePerms converts a POSIX file mode into the ordered set of
// FilePermission ordinals present in it.
func EncodePerms(mode os.FileMode) []wire.FilePermission {
	var perms []wire.FilePermission
	for _, p := range []wire.FilePermission{
		wire.OwnerRead, wire.OwnerWrite, wire.OwnerExec,
		wire.GroupRead, wire.GroupWrite, wire.GroupExec,
		wire.OtherRead, wire.OtherWrite, wire.OtherExec,
	} {
		if mode&permBits[p] != 0 {
			perms = append(perms, p)
		}
	}
	return perms
}

// DecodePerms folds a permission-ordinal set back into a POSIX mode.
// Absent permissions are simply omitted, per spec §9.
func DecodePerms(perms []wire.FilePermission) os.FileMode {
	var mode os.FileMode
	for _, p := range perms {
		mode |= permBits[p]
	}
	return mode
}

// ApplyBestEffort sets mtime and mode on path, ignoring failures: per
// spec §9 this never aborts a transfer.
func ApplyBestEffort(path string, mtimeUnix int64, perms []wire.FilePermission) {
	if len(perms) > 0 {
		_ = os.Chmod(path, DecodePerms(perms))
	}
	if mtimeUnix > 0 {
		t := unixTime(mtimeUnix)
		_ = os.Chtimes(path, t, t)
	}
}
