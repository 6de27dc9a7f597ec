package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/franela/goblin"
)

func TestFilesystem_Path(t *testing.T) {
	g := Goblin(t)
	fs, rfs := NewFs()

	g.Describe("Path", func() {
		g.It("returns the root path for the instance", func() {
			g.Assert(fs.Path()).Equal(filepath.Join(rfs.root, "/root"))
		})

		g.It("cleans the root path passed in", func() {
			g.Assert(New("/data/").Path()).Equal("/data")
			g.Assert(New("/data/./x/..").Path()).Equal("/data")
		})
	})
}

func TestFilesystem_SafePath(t *testing.T) {
	g := Goblin(t)
	fs, rfs := NewFs()
	prefix := filepath.Join(rfs.root, "/root")

	g.Describe("SafePath", func() {
		g.It("returns a cleaned path to a given file", func() {
			p, err := fs.SafePath("test.txt")
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix + "/test.txt")

			p, err = fs.SafePath("./test.txt")
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix + "/test.txt")

			p, err = fs.SafePath("foo/../test.txt")
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix + "/test.txt")

			p, err = fs.SafePath("notes/todo.txt")
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix + "/notes/todo.txt")
		})

		g.It("handles root directory access", func() {
			p, err := fs.SafePath("")
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix)

			p, err = fs.SafePath(".")
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix)

			p, err = fs.SafePath(prefix)
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix)
		})

		g.It("removes trailing slashes from paths", func() {
			p, err := fs.SafePath("foo/bar/")
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix + "/foo/bar")
		})

		g.It("handles deeply nested directories that do not exist", func() {
			p, err := fs.SafePath("foo/bar/baz/quaz/../../ducks/testing.txt")
			g.Assert(err).IsNil()
			g.Assert(p).Equal(prefix + "/foo/bar/ducks/testing.txt")
		})

		g.It("returns the same result when resolving an already resolved path", func() {
			for _, c := range []string{"a.txt", "a/b/c.txt", "./x/./y", "deep/../er/file"} {
				first, err := fs.SafePath(c)
				g.Assert(err).IsNil()
				g.Assert(first).Equal(filepath.Join(prefix, c))

				second, err := fs.SafePath(first)
				g.Assert(err).IsNil()
				g.Assert(second).Equal(first)
			}
		})

		g.It("blocks access to files outside the root directory", func() {
			for _, c := range []string{"../test.txt", "./foo/../../test.txt", "..", "../../etc/passwd", "a/b/../../../c", strings.Repeat("../", 20) + "tmp"} {
				p, err := fs.SafePath(c)
				g.Assert(err).IsNotNil()
				g.Assert(IsErrorCode(err, ErrCodePathResolution)).IsTrue()
				g.Assert(p).Equal("")
			}
		})

		g.It("blocks absolute paths that are not inside the root", func() {
			p, err := fs.SafePath("/etc/passwd")
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
			g.Assert(p).Equal("")

			p, err = fs.SafePath("/")
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
		})

		g.It("does not accept sibling directories sharing the root as a prefix", func() {
			p, err := fs.SafePath("../root-evil/x")
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
			g.Assert(p).Equal("")

			p, err = fs.SafePath(prefix + "-evil/x")
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()

			d := New("/data")
			_, err = d.SafePath("/data-evil/x")
			g.Assert(IsPathError(err)).IsTrue()
			_, err = d.SafePath("../data-evil/x")
			g.Assert(IsPathError(err)).IsTrue()

			p, err = d.SafePath("/data/x")
			g.Assert(err).IsNil()
			g.Assert(p).Equal("/data/x")
		})
	})
}

// SafePath only performs lexical checks, so these confirm that the write
// operations catch symlinks that lead out of the root directory.
func TestFilesystem_Blocks_Symlinks(t *testing.T) {
	g := Goblin(t)
	fs, rfs := NewFs()

	if err := os.WriteFile(filepath.Join(rfs.root, "malicious.txt"), []byte("external content"), 0o644); err != nil {
		panic(err)
	}
	if err := os.Mkdir(filepath.Join(rfs.root, "/malicious_dir"), 0o777); err != nil {
		panic(err)
	}

	link := func(target string, name string) {
		if err := os.Symlink(target, filepath.Join(rfs.root, name)); err != nil {
			panic(err)
		}
	}
	setup := func() {
		link(filepath.Join(rfs.root, "malicious.txt"), "/root/symlinked.txt")
		link(filepath.Join(rfs.root, "malicious_does_not_exist.txt"), "/root/symlinked_does_not_exist.txt")
		link(filepath.Join(rfs.root, "/root/symlinked_does_not_exist.txt"), "/root/symlinked_does_not_exist2.txt")
		link(filepath.Join(rfs.root, "/malicious_dir"), "/root/external_dir")
		link(filepath.Join(rfs.root, "/root/inside.txt"), "/root/internal_link.txt")
	}

	g.Describe("Writefile", func() {
		g.BeforeEach(func() {
			rfs.reset()
			setup()
		})

		g.It("cannot write to a file symlinked outside the root", func() {
			_, err := fs.Writefile("symlinked.txt", strings.NewReader("testing"))
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
			g.Assert(rfs.ReadFile("malicious.txt")).Equal("external content")
		})

		g.It("cannot write to a non-existent file symlinked outside the root", func() {
			_, err := fs.Writefile("symlinked_does_not_exist.txt", strings.NewReader("testing"))
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
			g.Assert(rfs.Exists("malicious_does_not_exist.txt")).IsFalse()
		})

		g.It("cannot write to chained symlinks with target that does not exist outside the root", func() {
			_, err := fs.Writefile("symlinked_does_not_exist2.txt", strings.NewReader("testing"))
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
			g.Assert(rfs.Exists("malicious_does_not_exist.txt")).IsFalse()
		})

		g.It("cannot write a file inside a directory symlinked outside the root", func() {
			_, err := fs.Writefile("external_dir/foo.txt", strings.NewReader("testing"))
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
			g.Assert(rfs.Exists("malicious_dir/foo.txt")).IsFalse()
		})

		g.It("can write through a symlink that stays inside the root", func() {
			_, err := fs.Writefile("internal_link.txt", strings.NewReader("testing"))
			g.Assert(err).IsNil()
			g.Assert(rfs.ReadFile("root/inside.txt")).Equal("testing")
		})
	})

	g.Describe("Create", func() {
		g.BeforeEach(func() {
			rfs.reset()
			setup()
		})

		g.It("cannot create a file inside a directory symlinked outside the root", func() {
			_, err := fs.Create("external_dir/foo.txt", strings.NewReader("testing"))
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
			g.Assert(rfs.Exists("malicious_dir/foo.txt")).IsFalse()
		})

		g.It("treats an existing symlink as an existing entry", func() {
			_, err := fs.Create("internal_link.txt", strings.NewReader("testing"))
			g.Assert(err).IsNotNil()
			g.Assert(IsErrorCode(err, ErrCodeExists)).IsTrue()
		})
	})

	g.Describe("Disabled symlink checks", func() {
		g.It("follows symlinks when the check is turned off", func() {
			rfs.reset()
			setup()

			unsafe := New(fs.Path(), WithSymlinkCheck(false))
			_, err := unsafe.Writefile("external_dir/foo.txt", strings.NewReader("testing"))
			g.Assert(err).IsNil()
			g.Assert(rfs.ReadFile("malicious_dir/foo.txt")).Equal("testing")
		})
	})
}

func TestFilesystem_SymlinkedRoot(t *testing.T) {
	g := Goblin(t)
	_, rfs := NewFs()

	alias := filepath.Join(rfs.root, "alias")
	if err := os.Symlink(filepath.Join(rfs.root, "root"), alias); err != nil {
		panic(err)
	}
	fs := New(alias)

	g.Describe("Root behind a symlink", func() {
		g.It("writes through a dangling link targeting the evaluated root", func() {
			evaluated, err := filepath.EvalSymlinks(filepath.Join(rfs.root, "root"))
			g.Assert(err).IsNil()
			if err := os.Symlink(filepath.Join(evaluated, "missing.txt"), filepath.Join(alias, "dangling.txt")); err != nil {
				panic(err)
			}

			_, err = fs.Writefile("dangling.txt", strings.NewReader("testing"))
			g.Assert(err).IsNil()
			g.Assert(rfs.ReadFile("root/missing.txt")).Equal("testing")
		})

		g.It("still rejects a dangling link leaving the root", func() {
			if err := os.Symlink(filepath.Join(rfs.root, "outside.txt"), filepath.Join(alias, "escape.txt")); err != nil {
				panic(err)
			}

			_, err := fs.Writefile("escape.txt", strings.NewReader("testing"))
			g.Assert(err).IsNotNil()
			g.Assert(IsPathError(err)).IsTrue()
			g.Assert(rfs.Exists("outside.txt")).IsFalse()
		})
	})
}
