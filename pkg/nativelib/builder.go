// Package nativelib reconciles gpxlib, the native track-file library: the
// library counts as installed only when its CLI reports exactly the
// declared version. Anything else triggers the full rebuild path:
// checksum-verified tarball, source build into an isolated prefix, and
// republication of every produced binary into the farm.
package nativelib

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/farm"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/report"
	"github.com/trailstrap/trailstrap/pkg/types"
	"github.com/trailstrap/trailstrap/pkg/workspace"
)

// Builder drives the gpxlib build reconciliation.
type Builder struct {
	fs     types.FS
	runner command.Runner
	ws     *workspace.Workspace
	farm   *farm.Farm
	cfg    config.GPXLibConfig
	family types.Family
	fetch  FetchFunc
	logger zerolog.Logger
}

// New returns a builder. The default fetcher downloads over HTTP; tests
// replace it.
func New(fs types.FS, runner command.Runner, ws *workspace.Workspace, f *farm.Farm,
	cfg config.GPXLibConfig, family types.Family) *Builder {
	return &Builder{
		fs:     fs,
		runner: runner,
		ws:     ws,
		farm:   f,
		cfg:    cfg,
		family: family,
		fetch:  httpFetch,
		logger: logging.GetLogger("nativelib"),
	}
}

// WithFetcher overrides the tarball fetcher.
func (b *Builder) WithFetcher(fetch FetchFunc) *Builder {
	b.fetch = fetch
	return b
}

// cliPath is where the installed companion CLI lives inside the prefix.
func (b *Builder) cliPath() string {
	return filepath.Join(b.ws.GPXLibPrefix(), "bin", "gpxinfo")
}

// Reconcile checks the installed version and rebuilds when it does not
// match exactly. All failures on this path are recorded, never fatal: a
// missing gpxlib does not block the remaining steps.
func (b *Builder) Reconcile(ctx context.Context, rep *report.Report) {
	if b.installedVersionMatches(ctx) {
		b.logger.Info().Str("version", b.cfg.Version).Msg("gpxlib already at target version")
		return
	}

	b.logger.Info().Str("version", b.cfg.Version).Msg("Rebuilding gpxlib")

	tarball, err := b.ensureTarball(ctx)
	if err != nil {
		rep.Record("gpxlib", err)
		return
	}

	srcDir, err := b.extract(tarball)
	if err != nil {
		rep.Record("gpxlib", err)
		return
	}

	if err := b.build(ctx, srcDir); err != nil {
		rep.Record("gpxlib", err)
		return
	}

	if err := b.publish(); err != nil {
		rep.Record("gpxlib", err)
		return
	}

	if err := b.smokeCheck(ctx); err != nil {
		rep.Record("gpxlib", err)
	}
}

// installedVersionMatches runs the companion CLI and compares its reported
// version against the target. A missing CLI, a failing run or any version
// drift all mean "rebuild".
func (b *Builder) installedVersionMatches(ctx context.Context) bool {
	result := b.runner.Run(ctx, command.Command{Name: b.cliPath(), Args: []string{"-version"}})
	if !result.Success() {
		return false
	}

	reported := parseVersionOutput(result.Stdout)
	if reported == "" {
		return false
	}

	installed, err := goversion.NewVersion(reported)
	if err != nil {
		return false
	}
	target, err := goversion.NewVersion(b.cfg.Version)
	if err != nil {
		return false
	}
	if !installed.Equal(target) {
		b.logger.Info().
			Str("installed", reported).
			Str("target", b.cfg.Version).
			Msg("gpxlib version drift detected")
		return false
	}
	return true
}

// parseVersionOutput pulls the version token out of output like
// "gpxinfo 2.10.31".
func parseVersionOutput(output string) string {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// build configures, compiles and installs the source tree into the
// isolated prefix.
func (b *Builder) build(ctx context.Context, srcDir string) error {
	configure := command.Command{
		Name: "./configure",
		Args: []string{"--prefix=" + b.ws.GPXLibPrefix()},
		Dir:  srcDir,
		Env:  b.buildEnv(),
	}
	if result := b.runner.Run(ctx, configure); !result.Success() {
		return errors.Wrapf(result.Failure(), errors.ErrBuild, "configure failed: %s", result.Stderr)
	}

	compile := command.Command{Name: "make", Dir: srcDir, Stream: true}
	if result := b.runner.Run(ctx, compile); !result.Success() {
		return errors.Wrapf(result.Failure(), errors.ErrBuild, "make failed: %s", result.Stderr)
	}

	install := command.Command{Name: "make", Args: []string{"install"}, Dir: srcDir}
	if result := b.runner.Run(ctx, install); !result.Success() {
		return errors.Wrapf(result.Failure(), errors.ErrBuild, "make install failed: %s", result.Stderr)
	}

	return nil
}

// buildEnv returns the distribution-specific build flags. The RPM
// families need the USB library linked explicitly; newer GCCs need the
// common-symbol compat flag everywhere.
func (b *Builder) buildEnv() map[string]string {
	env := map[string]string{"CFLAGS": "-fcommon"}
	switch b.family {
	case types.FamilyDebian:
		env["LDFLAGS"] = "-Wl,--as-needed"
	default:
		env["LIBS"] = "-lusb"
	}
	return env
}

// publish enumerates every binary the build produced and republishes each
// into the farm, replacing whatever link was there.
func (b *Builder) publish() error {
	prefixBin := filepath.Join(b.ws.GPXLibPrefix(), "bin")
	entries, err := b.fs.ReadDir(prefixBin)
	if err != nil {
		return errors.Wrapf(err, errors.ErrBuild, "cannot enumerate %s", prefixBin)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if err := b.farm.Publish(b.fs, name, filepath.Join(prefixBin, name)); err != nil {
			return err
		}
	}

	b.logger.Info().Int("binaries", len(entries)).Msg("Republished gpxlib binaries into farm")
	return nil
}

// tarballName derives the cached file name from the download URL.
func (b *Builder) tarballName() string {
	return path.Base(b.cfg.TarballURL)
}

// sourceDir is the directory the tarball unpacks to inside the build dir.
func (b *Builder) sourceDir() string {
	return filepath.Join(b.ws.GPXLibBuildDir(), fmt.Sprintf("gpxlib-%s", b.cfg.Version))
}
