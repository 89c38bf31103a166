// Package sandbox constrains remote wire paths to a share root
// directory, per spec §4.4. Every upload and download resolves its
// wire_path through Resolve before touching the filesystem.
package sandbox

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vercingetorx/depot/internal/errs"
)

// Sandbox resolves forward-slash wire paths against a fixed share root,
// rejecting traversal and symlink escapes before any I/O happens.
type Sandbox struct {
	root    string // absolute, cleaned
	enabled bool
}

// New resolves root to an absolute, cleaned path and returns a Sandbox
// rooted there. enabled=false (the non-default, non-sandboxed mode)
// still rejects absolute/`..` wire paths, but skips the symlink-escape
// and canonical-descendant checks - useful for a server explicitly
// configured to serve an entire filesystem.
func New(root string, enabled bool) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Sandbox{root: filepath.Clean(abs), enabled: enabled}, nil
}

// Root returns the sandbox's absolute share root.
func (s *Sandbox) Root() string { return s.root }

// Resolve validates a forward-slash wire path and returns the absolute
// local filesystem path it maps to. It never touches the filesystem for
// the traversal/absolute checks; the symlink-prefix check does stat the
// path's ancestors.
func (s *Sandbox) Resolve(wirePath string) (string, error) {
	if strings.HasPrefix(wirePath, "/") {
		return "", errs.New(errs.Absolute, nil)
	}
	for _, seg := range strings.Split(wirePath, "/") {
		if seg == ".." {
			return "", errs.New(errs.UnsafePath, nil)
		}
	}

	native := filepath.FromSlash(wirePath)
	joined := filepath.Join(s.root, native)
	resolved := filepath.Clean(joined)

	if !s.enabled {
		return resolved, nil
	}

	if !isDescendant(s.root, resolved) {
		return "", errs.New(errs.UnsafePath, nil)
	}

	if err := s.rejectSymlinkPrefix(resolved); err != nil {
		return "", err
	}

	return resolved, nil
}

// isDescendant reports whether resolved is root itself or nested under
// it, using filepath.Rel so "/share/../share-evil" style near-misses
// are rejected rather than accepted by string prefix matching.
func isDescendant(root, resolved string) bool {
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// rejectSymlinkPrefix walks resolved's ancestors up to the share root
// and fails if any intermediate directory component is a symlink,
// closing the classic "a symlinked subdirectory” escape.
func (s *Sandbox) rejectSymlinkPrefix(resolved string) error {
	dir := filepath.Dir(resolved)
	for {
		if dir == s.root || len(dir) <= len(s.root) {
			return nil
		}
		info, err := os.Lstat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil // parent doesn't exist yet; nothing to escape through
			}
			return errs.New(errs.BadPath, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return errs.New(errs.UnsafePath, nil)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// VerifyRegularFile opens path and confirms it is a regular file (not a
// symlink, device, or directory), per spec §4.4's "files served MUST be
// regular files" rule. It returns the *os.File positioned at offset 0,
// already stat-verified, or a coded error.
func VerifyRegularFile(path string) (*os.File, os.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errs.New(errs.NotFound, err)
		}
		return nil, nil, errs.New(errs.ReadFail, err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, errs.New(errs.UnsafePath, nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errs.New(errs.ReadFail, err)
	}
	return f, info, nil
}
