package transfer

import (
	"os"
	"path/filepath"

	"github.com/vercingetorx/depot/internal/errs"
)

// partSuffix names the staging file that exclusively owns a
// destination path during an in-progress transfer (spec §3).
const partSuffix = ".part"

// partPath returns dest's staging path.
func partPath(dest string) string { return dest + partSuffix }

// createPart opens dest's `.part` staging file for writing, failing if
// dest itself already exists and overwrite is disabled.
func createPart(dest string, overwrite bool) (*os.File, error) {
	if !overwrite {
		if _, err := os.Lstat(dest); err == nil {
			return nil, errs.New(errs.Exists, nil)
		} else if !os.IsNotExist(err) {
			return nil, errs.New(errs.OpenFail, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, errs.New(errs.TranslateOSError(err, errs.OpenFail), err)
	}
	f, err := os.OpenFile(partPath(dest), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.New(errs.TranslateOSError(err, errs.OpenFail), err)
	}
	return f, nil
}

// commitPart verifies dest does not already exist (when overwrite is
// disabled) and atomically renames the `.part` file into place. On any
// failure it removes the `.part` residue, per spec's "a destination
// file is visible only after checksum verification" invariant.
func commitPart(dest string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Lstat(dest); err == nil {
			_ = os.Remove(partPath(dest))
			return errs.New(errs.Exists, nil)
		}
	}
	if err := os.Rename(partPath(dest), dest); err != nil {
		_ = os.Remove(partPath(dest))
		return errs.New(errs.CommitFail, err)
	}
	return nil
}

// abortPart removes a `.part` staging file, ignoring a missing file.
func abortPart(dest string) {
	_ = os.Remove(partPath(dest))
}
