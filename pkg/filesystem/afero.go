package filesystem

import (
	"io/fs"
	"strings"

	"github.com/spf13/afero"
	"github.com/trailstrap/trailstrap/pkg/types"
)

// aferoFS implements types.FS using afero. MemMapFs has no symlink
// support, so links are tracked in a side table: Symlink writes a
// placeholder file and records the target, Readlink answers from the
// table and fails for anything not created through Symlink.
type aferoFS struct {
	fs    afero.Fs
	links map[string]string
}

// NewAferoFS creates a new afero filesystem implementation
func NewAferoFS(fs afero.Fs) types.FS {
	return &aferoFS{fs: fs, links: make(map[string]string)}
}

// NewMemory returns a types.FS backed by an in-memory afero filesystem,
// for use in tests.
func NewMemory() types.FS {
	return NewAferoFS(afero.NewMemMapFs())
}

func (a *aferoFS) Stat(name string) (fs.FileInfo, error) {
	return a.fs.Stat(name)
}

func (a *aferoFS) ReadFile(name string) ([]byte, error) {
	info, err := a.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return afero.ReadFile(a.fs, name)
}

func (a *aferoFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	// Writing a regular file over a link name turns it into a plain file.
	delete(a.links, name)
	return afero.WriteFile(a.fs, name, data, perm)
}

func (a *aferoFS) MkdirAll(path string, perm fs.FileMode) error {
	return a.fs.MkdirAll(path, perm)
}

func (a *aferoFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := afero.ReadDir(a.fs, name)
	if err != nil {
		return nil, err
	}
	dirEntries := make([]fs.DirEntry, len(entries))
	for i, entry := range entries {
		dirEntries[i] = fs.FileInfoToDirEntry(entry)
	}
	return dirEntries, nil
}

func (a *aferoFS) Symlink(oldname, newname string) error {
	if err := afero.WriteFile(a.fs, newname, []byte(oldname), 0777); err != nil {
		return err
	}
	a.links[newname] = oldname
	return nil
}

func (a *aferoFS) Readlink(name string) (string, error) {
	if target, ok := a.links[name]; ok {
		return target, nil
	}
	return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrInvalid}
}

func (a *aferoFS) Remove(name string) error {
	delete(a.links, name)
	return a.fs.Remove(name)
}

func (a *aferoFS) RemoveAll(path string) error {
	for name := range a.links {
		if name == path || strings.HasPrefix(name, path+"/") {
			delete(a.links, name)
		}
	}
	return a.fs.RemoveAll(path)
}

func (a *aferoFS) Rename(oldpath, newpath string) error {
	if err := a.fs.Rename(oldpath, newpath); err != nil {
		return err
	}
	if target, ok := a.links[oldpath]; ok {
		delete(a.links, oldpath)
		a.links[newpath] = target
	}
	return nil
}

func (a *aferoFS) Lstat(name string) (fs.FileInfo, error) {
	// The placeholder file stands in for the link entry itself.
	return a.fs.Stat(name)
}
