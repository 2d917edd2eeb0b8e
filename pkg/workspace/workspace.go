// Package workspace models the managed directory tree: the base directory
// trailstrap owns, its hidden library directory (checkouts, source trees,
// install prefixes) and its hidden bin directory (the symlink farm). All
// paths are absolute and handed around explicitly; nothing reads the
// process working directory.
package workspace

import (
	"path/filepath"

	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/types"
)

// Workspace resolves every location inside the managed tree.
type Workspace struct {
	base string
	lib  string
	bin  string
}

// New resolves the tree configuration against the given home directory.
func New(cfg config.TreeConfig, home string) *Workspace {
	base := ExpandHome(cfg.Base, home)
	return &Workspace{
		base: base,
		lib:  filepath.Join(base, cfg.Lib),
		bin:  filepath.Join(base, cfg.Bin),
	}
}

// ExpandHome expands a leading ~ against home. Paths without a leading ~
// are returned unchanged.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Ensure creates the base, lib and bin directories if absent. It never
// removes anything: the tree belongs to the operator once created.
func (w *Workspace) Ensure(fs types.FS) error {
	for _, dir := range []string{w.base, w.lib, w.bin} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", dir)
		}
	}
	return nil
}

// Base returns the managed base directory.
func (w *Workspace) Base() string { return w.base }

// LibDir returns the hidden library directory.
func (w *Workspace) LibDir() string { return w.lib }

// BinDir returns the hidden bin directory (the symlink farm).
func (w *Workspace) BinDir() string { return w.bin }

// RbenvDir is the rbenv checkout location.
func (w *Workspace) RbenvDir() string { return filepath.Join(w.lib, "rbenv") }

// RubyBuildDir is the ruby-build plugin checkout, nested where rbenv
// discovers plugins.
func (w *Workspace) RubyBuildDir() string {
	return filepath.Join(w.RbenvDir(), "plugins", "ruby-build")
}

// ToolsDir is the companion tool repository checkout.
func (w *Workspace) ToolsDir() string { return filepath.Join(w.lib, "tracktools") }

// GPXLibDir holds the gpxlib tarball cache, source tree and build output.
func (w *Workspace) GPXLibDir() string { return filepath.Join(w.lib, "gpxlib") }

// GPXLibBuildDir is the scratch directory cleared before every rebuild.
func (w *Workspace) GPXLibBuildDir() string { return filepath.Join(w.GPXLibDir(), "build") }

// GPXLibPrefix is the isolated install prefix for gpxlib, distinct from
// the bin farm; the farm only ever links into it.
func (w *Workspace) GPXLibPrefix() string { return filepath.Join(w.GPXLibDir(), "dist") }

// GPXLibTarball is the cached source tarball location for the given
// file name.
func (w *Workspace) GPXLibTarball(filename string) string {
	return filepath.Join(w.GPXLibDir(), filename)
}
