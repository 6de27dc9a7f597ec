package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
)

// SafePath normalizes the candidate path against the root directory and returns
// the absolute path it resolves to. If the result is not the root itself or a
// descendant of it, a path resolution error is returned.
//
// This is a purely lexical operation. It never touches the disk, so a symlink
// inside the root that points elsewhere is not caught here; see checkSymlinks.
func (fs *Filesystem) SafePath(p string) (string, error) {
	r := fs.unsafeFilePath(p)
	if !fs.unsafeIsInRootDirectory(r) {
		return "", NewBadPathResolution(p, r)
	}
	return r, nil
}

// Generate a path to the file by cleaning it up and resolving it against the root
// path. An absolute path replaces the root entirely, so "/etc/passwd" resolves to
// itself and is then rejected by the containment check. This DOES NOT guarantee
// that the file resolves within the root directory.
func (fs *Filesystem) unsafeFilePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(fs.root, p))
}

// Check that the path is the root directory, or that it starts with the root
// directory followed by a separator. Requiring the separator stops "/data-evil"
// from being accepted for a root of "/data".
func (fs *Filesystem) unsafeIsInRootDirectory(p string) bool {
	return isWithin(fs.root, p)
}

func isWithin(root string, p string) bool {
	if p == root {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}

// Checks if the given file or path is in the configured denylist. If so, an error
// is returned, otherwise nil is returned. The path passed must already be resolved.
func (fs *Filesystem) isIgnored(p string, resolved string) error {
	if fs.denylist == nil {
		return nil
	}
	rel, err := filepath.Rel(fs.root, resolved)
	if err != nil {
		return errors.WithStack(err)
	}
	if fs.denylist.MatchesPath(filepath.ToSlash(rel)) {
		return errors.WithStack(&Error{code: ErrCodeDenylistFile, path: p, resolved: resolved})
	}
	return nil
}

// Walks up the resolved path until it finds a component that exists on the disk,
// then confirms that component really lives inside the root once any symlinks are
// evaluated. A missing path is fine as long as its nearest existing parent is
// inside the root.
func (fs *Filesystem) checkSymlinks(p string, resolved string) error {
	if !fs.checkLinks {
		return nil
	}
	root, err := filepath.EvalSymlinks(fs.root)
	if err != nil {
		return newFilesystemError(ErrCodeUnknownError, errors.Wrap(err, "filesystem: failed to evaluate root directory"))
	}
	try := resolved
	for {
		ep, err := filepath.EvalSymlinks(try)
		if err == nil {
			if !isWithin(root, ep) {
				return NewBadPathResolution(p, ep)
			}
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return newFilesystemError(ErrCodeUnknownError, errors.Wrap(err, "filesystem: failed to evaluate symlink"))
		}
		// A dangling symlink at this position still points somewhere, so make sure
		// nothing along its chain lands outside of the root before writing through it.
		if err := fs.checkDanglingLink(p, try, root); err != nil {
			return err
		}
		if try == fs.root {
			return nil
		}
		try = filepath.Dir(try)
	}
}

// Follows a chain of symlinks that does not resolve to anything on the disk and
// returns an error if any hop in that chain points outside of the root. A hop may
// be expressed against either the configured root or its evaluated location.
func (fs *Filesystem) checkDanglingLink(p string, link string, root string) error {
	for i := 0; i < maxSymlinkHops; i++ {
		target, err := os.Readlink(link)
		if err != nil {
			return nil
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(link), target)
		}
		target = filepath.Clean(target)
		if !fs.unsafeIsInRootDirectory(target) && !isWithin(root, target) {
			return NewBadPathResolution(p, target)
		}
		link = target
	}
	return NewBadPathResolution(p, link)
}
