// Package farm maintains the bin directory: a flat farm of symlinks that
// is the stable command-lookup surface over artifacts living elsewhere in
// the managed tree. The farm never holds copies; republishing always means
// remove-then-relink so stale links cannot accumulate.
package farm

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/types"
)

// Farm publishes tools into a single directory of symlinks.
type Farm struct {
	dir    string
	logger zerolog.Logger
}

// New returns a farm over the given directory. The directory is expected
// to exist (workspace.Ensure creates it).
func New(dir string) *Farm {
	return &Farm{
		dir:    dir,
		logger: logging.GetLogger("farm"),
	}
}

// Dir returns the farm directory.
func (f *Farm) Dir() string { return f.dir }

// LinkPath returns where the link for name lives.
func (f *Farm) LinkPath(name string) string {
	return filepath.Join(f.dir, name)
}

// HasLink reports whether a farm entry for name exists (link or not).
func (f *Farm) HasLink(fs types.FS, name string) bool {
	_, err := fs.Lstat(f.LinkPath(name))
	return err == nil
}

// LinksTo reports whether the farm entry for name is a symlink pointing
// exactly at target.
func (f *Farm) LinksTo(fs types.FS, name, target string) bool {
	dest, err := fs.Readlink(f.LinkPath(name))
	if err != nil {
		return false
	}
	return dest == target
}

// Publish links name to target, replacing any existing entry. Replacing
// rather than merging keeps the farm a pure reflection of the latest
// build or checkout.
func (f *Farm) Publish(fs types.FS, name, target string) error {
	linkPath := f.LinkPath(name)

	if _, err := fs.Lstat(linkPath); err == nil {
		if err := fs.Remove(linkPath); err != nil {
			return errors.Wrapf(err, errors.ErrSymlinkCreate, "cannot remove existing %s", linkPath)
		}
	}

	if err := fs.Symlink(target, linkPath); err != nil {
		return errors.Wrapf(err, errors.ErrSymlinkCreate, "cannot link %s to %s", linkPath, target)
	}

	f.logger.Debug().
		Str("name", name).
		Str("target", target).
		Msg("Published tool into farm")

	return nil
}
