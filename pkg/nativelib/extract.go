package nativelib

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/trailstrap/trailstrap/pkg/errors"
)

// extract unpacks the verified tarball into a freshly cleared build
// directory and returns the unpacked source root. Clearing first keeps a
// half-extracted tree from a previous interrupted run out of the build.
func (b *Builder) extract(tarball string) (string, error) {
	buildDir := b.ws.GPXLibBuildDir()
	if err := b.fs.RemoveAll(buildDir); err != nil {
		return "", errors.Wrapf(err, errors.ErrExtract, "cannot clear %s", buildDir)
	}
	if err := b.fs.MkdirAll(buildDir, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", buildDir)
	}

	data, err := b.fs.ReadFile(tarball)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrExtract, "cannot read %s", tarball)
	}

	xzReader, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrExtract, "%s is not a valid xz stream", tarball)
	}

	tarReader := tar.NewReader(xzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrExtract, "corrupt tar stream in %s", tarball)
		}

		target, err := safeJoin(buildDir, header.Name)
		if err != nil {
			return "", err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := b.fs.MkdirAll(target, fs.FileMode(header.Mode)); err != nil {
				return "", errors.Wrapf(err, errors.ErrExtract, "cannot create %s", target)
			}
		case tar.TypeReg:
			content, err := io.ReadAll(tarReader)
			if err != nil {
				return "", errors.Wrapf(err, errors.ErrExtract, "cannot read %s from archive", header.Name)
			}
			if err := b.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", errors.Wrapf(err, errors.ErrExtract, "cannot create parent of %s", target)
			}
			if err := b.fs.WriteFile(target, content, fs.FileMode(header.Mode)); err != nil {
				return "", errors.Wrapf(err, errors.ErrExtract, "cannot write %s", target)
			}
		case tar.TypeSymlink:
			if err := b.fs.Symlink(header.Linkname, target); err != nil {
				return "", errors.Wrapf(err, errors.ErrExtract, "cannot link %s", target)
			}
		}
	}

	return b.sourceDir(), nil
}

// safeJoin rejects archive entries that would escape the build directory.
func safeJoin(base, name string) (string, error) {
	target := filepath.Join(base, name)
	if !strings.HasPrefix(target, filepath.Clean(base)+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrExtract, "archive entry %q escapes build directory", name)
	}
	return target, nil
}
