package nativelib

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/trailstrap/trailstrap/pkg/checks"
	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/errors"
)

// FetchFunc downloads url and returns the body.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// httpFetch is the production fetcher.
func httpFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ensureTarball returns the path of a checksum-verified source tarball.
// A cached file with the wrong digest is always deleted and re-fetched;
// extraction never sees an unverified file. A second mismatch after a
// fresh download gives up for this run.
func (b *Builder) ensureTarball(ctx context.Context) (string, error) {
	tarball := b.ws.GPXLibTarball(b.tarballName())

	if checks.PathExists(b.fs, tarball) {
		if b.verify(tarball) {
			b.logger.Debug().Str("tarball", tarball).Msg("Cached tarball verified")
			return tarball, nil
		}
		b.logger.Warn().Str("tarball", tarball).Msg("Cached tarball failed checksum, re-downloading")
		if err := b.fs.Remove(tarball); err != nil {
			return "", errors.Wrapf(err, errors.ErrChecksum, "cannot remove corrupt %s", tarball)
		}
	}

	if err := b.download(ctx, tarball); err != nil {
		return "", err
	}

	if !b.verify(tarball) {
		// A fresh download with a wrong digest means the pinned hash and
		// the published tarball disagree; retrying won't help this run.
		_ = b.fs.Remove(tarball)
		return "", errors.Newf(errors.ErrChecksum,
			"downloaded tarball does not match pinned SHA-256 %s", b.cfg.SHA256)
	}
	return tarball, nil
}

func (b *Builder) download(ctx context.Context, dest string) error {
	b.logger.Info().Str("url", b.cfg.TarballURL).Msg("Downloading gpxlib source")

	data, err := b.fetch(ctx, b.cfg.TarballURL)
	if err != nil {
		b.pingDiagnostic(ctx)
		return errors.Wrapf(err, errors.ErrDownload, "download of %s failed", b.cfg.TarballURL)
	}

	if err := b.fs.MkdirAll(b.ws.GPXLibDir(), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", b.ws.GPXLibDir())
	}
	if err := b.fs.WriteFile(dest, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", dest)
	}
	return nil
}

// verify compares the file's SHA-256 against the pinned digest.
func (b *Builder) verify(path string) bool {
	data, err := b.fs.ReadFile(path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) == b.cfg.SHA256
}

// pingDiagnostic probes the download host once so the end-of-run summary
// can tell "host unreachable" from "file gone".
func (b *Builder) pingDiagnostic(ctx context.Context) {
	result := b.runner.Run(ctx, command.Command{
		Name: "ping",
		Args: []string{"-c", "1", b.cfg.PingHost},
	})
	b.logger.Warn().
		Str("host", b.cfg.PingHost).
		Bool("reachable", result.Success()).
		Msg("Download failed; connectivity probe")
}
