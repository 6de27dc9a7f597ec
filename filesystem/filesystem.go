package filesystem

import (
	"io"
	"os"
	"path/filepath"

	"emperror.dev/errors"
	ignore "github.com/sabhiram/go-gitignore"
)

// The maximum number of symlinks that will be followed when checking a dangling
// link chain before giving up and treating the path as unsafe.
const maxSymlinkHops = 40

type Filesystem struct {
	// The root directory path for this Filesystem instance. Nothing is ever
	// written outside of it.
	root string

	denylist   *ignore.GitIgnore
	checkLinks bool
}

type Option func(fs *Filesystem)

// WithDenylist prevents any path matching one of the gitignore style patterns
// from being written to.
func WithDenylist(patterns []string) Option {
	return func(fs *Filesystem) {
		if len(patterns) > 0 {
			fs.denylist = ignore.CompileIgnoreLines(patterns...)
		}
	}
}

// WithSymlinkCheck controls whether writes evaluate symlinks on the disk to make
// sure the final target does not leave the root directory.
func WithSymlinkCheck(enabled bool) Option {
	return func(fs *Filesystem) {
		fs.checkLinks = enabled
	}
}

// New creates a new Filesystem instance rooted at the given absolute directory.
func New(root string, opts ...Option) *Filesystem {
	fs := &Filesystem{root: filepath.Clean(root), checkLinks: true}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Path returns the root path for the Filesystem instance.
func (fs *Filesystem) Path() string {
	return fs.root
}

// Writefile writes a file to the root directory, creating any missing parent
// directories first. If the file already exists its contents are replaced in
// full.
func (fs *Filesystem) Writefile(p string, r io.Reader) (*Stat, error) {
	cleaned, err := fs.prepare(p)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(cleaned)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, newFilesystemError(ErrCodeUnknownError, errors.Wrap(err, "filesystem: writefile: failed to stat file"))
	} else if err == nil && st.IsDir() {
		return nil, errors.WithStack(&Error{code: ErrCodeIsDirectory, path: p, resolved: cleaned})
	}
	return fs.write(cleaned, os.O_RDWR|os.O_CREATE|os.O_TRUNC, r)
}

// Create writes a new file to the root directory, failing with an ErrCodeExists
// error if anything is already present at the path.
//
// The existence check and the open are done in one step using O_EXCL, so two
// callers racing on the same path cannot both succeed.
func (fs *Filesystem) Create(p string, r io.Reader) (*Stat, error) {
	cleaned, err := fs.prepare(p)
	if err != nil {
		return nil, err
	}
	if _, err := os.Lstat(cleaned); err == nil {
		return nil, errors.WithStack(&Error{code: ErrCodeExists, path: p, resolved: cleaned})
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, newFilesystemError(ErrCodeUnknownError, errors.Wrap(err, "filesystem: create: failed to stat file"))
	}
	st, err := fs.write(cleaned, os.O_RDWR|os.O_CREATE|os.O_EXCL, r)
	if err != nil && errors.Is(err, os.ErrExist) {
		return nil, errors.WithStack(&Error{code: ErrCodeExists, path: p, resolved: cleaned})
	}
	return st, err
}

// Resolves the path and runs every check that must pass before anything on the
// disk is modified.
func (fs *Filesystem) prepare(p string) (string, error) {
	cleaned, err := fs.SafePath(p)
	if err != nil {
		return "", err
	}
	// Both write operations need a file to target, the root itself can never be one.
	if cleaned == fs.root {
		return "", errors.WithStack(&Error{code: ErrCodeIsDirectory, path: p, resolved: cleaned})
	}
	if err := fs.isIgnored(p, cleaned); err != nil {
		return "", err
	}
	if err := fs.checkSymlinks(p, cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}

// Creates the directory tree leading up to the file and then copies the reader
// into it. Directories created before a failure are left in place.
func (fs *Filesystem) write(cleaned string, flag int, r io.Reader) (*Stat, error) {
	if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
		return nil, newFilesystemError(ErrCodeUnknownError, errors.Wrap(err, "filesystem: write: failed to create directory tree"))
	}
	f, err := os.OpenFile(cleaned, flag, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, err
		}
		return nil, newFilesystemError(ErrCodeUnknownError, errors.Wrap(err, "filesystem: write: failed to open file handle"))
	}
	defer f.Close()

	buf := make([]byte, 1024*4)
	if _, err := io.CopyBuffer(f, r, buf); err != nil {
		fs.error(err).WithField("path", cleaned).Warn("failed to copy contents into file")
		return nil, newFilesystemError(ErrCodeUnknownError, errors.Wrap(err, "filesystem: write: failed to copy contents"))
	}
	return fs.unsafeStat(cleaned)
}
