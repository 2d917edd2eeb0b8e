// Package rubyenv reconciles the Ruby toolchain: the rbenv version
// manager, its ruby-build plugin, the target interpreter version and the
// gems layered on top. rbenv is exercised through its checkout bin path so
// the run works before the operator restarts their shell.
package rubyenv

import (
	"context"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/checks"
	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/gitrepo"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/report"
	"github.com/trailstrap/trailstrap/pkg/types"
	"github.com/trailstrap/trailstrap/pkg/workspace"
)

// conflictingManager is mutually incompatible with rbenv: both hijack the
// shell's command lookup and cannot coexist.
const conflictingManager = "rvm"

// Manager reconciles the Ruby runtime.
type Manager struct {
	fs     types.FS
	runner command.Runner
	repos  *gitrepo.Reconciler
	ws     *workspace.Workspace
	cfg    config.RubyConfig
	logger zerolog.Logger
}

// New returns a runtime manager.
func New(fs types.FS, runner command.Runner, ws *workspace.Workspace, cfg config.RubyConfig) *Manager {
	return &Manager{
		fs:     fs,
		runner: runner,
		repos:  gitrepo.New(fs, runner),
		ws:     ws,
		cfg:    cfg,
		logger: logging.GetLogger("rubyenv"),
	}
}

// rbenvBin is the rbenv executable inside the managed checkout.
func (m *Manager) rbenvBin() string {
	return filepath.Join(m.ws.RbenvDir(), "bin", "rbenv")
}

// rbenv builds a typed invocation of rbenv with the managed root.
func (m *Manager) rbenv(args ...string) command.Command {
	return command.Command{
		Name: m.rbenvBin(),
		Args: args,
		Env:  map[string]string{"RBENV_ROOT": m.ws.RbenvDir()},
	}
}

// Reconcile brings the version manager and interpreter to target state.
// The returned error is fatal (conflicting manager, rbenv unusable after
// install); build and update failures are recorded on rep.
func (m *Manager) Reconcile(ctx context.Context, rep *report.Report) error {
	if checks.CommandExists(m.runner, conflictingManager) {
		return errors.Newf(errors.ErrManagerConflict,
			"%s is active on this system; it cannot coexist with rbenv", conflictingManager)
	}

	if _, err := m.repos.Reconcile(ctx, types.RepoTarget{
		Name:   "rbenv",
		Path:   m.ws.RbenvDir(),
		Remote: m.cfg.RbenvRemote,
	}); err != nil {
		rep.Record("rubyenv", err)
	}

	if _, err := m.repos.Reconcile(ctx, types.RepoTarget{
		Name:   "ruby-build",
		Path:   m.ws.RubyBuildDir(),
		Remote: m.cfg.RubyBuildRemote,
	}); err != nil {
		rep.Record("rubyenv", err)
	}

	// Everything after this point needs a working rbenv; without one the
	// rest of the pipeline would fail step by step.
	if !checks.PathExists(m.fs, m.rbenvBin()) {
		return errors.New(errors.ErrManagerUnavailable,
			"rbenv is unavailable after install attempt")
	}

	if err := m.ensureInterpreter(ctx); err != nil {
		rep.Record("rubyenv", err)
	}
	return nil
}

// ensureInterpreter installs and selects the target Ruby when the active
// version differs and the target build is absent.
func (m *Manager) ensureInterpreter(ctx context.Context) error {
	target, err := goversion.NewVersion(m.cfg.Version)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInvalidInput, "invalid ruby version %q", m.cfg.Version)
	}

	if active := m.activeVersion(ctx); active != nil && active.Equal(target) {
		m.logger.Debug().Str("version", m.cfg.Version).Msg("Target Ruby already active")
		return nil
	}

	if !m.versionInstalled(ctx, m.cfg.Version) {
		m.logger.Info().Str("version", m.cfg.Version).
			Msg("Building Ruby from source, this can take several minutes")

		build := m.rbenv("install", m.cfg.Version)
		build.Stream = true
		if result := m.runner.Run(ctx, build); !result.Success() {
			return errors.Wrapf(result.Failure(), errors.ErrRuntimeBuild,
				"ruby %s build failed: %s", m.cfg.Version, result.Stderr)
		}
	}

	if result := m.runner.Run(ctx, m.rbenv("global", m.cfg.Version)); !result.Success() {
		return errors.Wrapf(result.Failure(), errors.ErrRuntimeBuild,
			"selecting ruby %s failed: %s", m.cfg.Version, result.Stderr)
	}
	if result := m.runner.Run(ctx, m.rbenv("rehash")); !result.Success() {
		return errors.Wrapf(result.Failure(), errors.ErrRuntimeBuild,
			"rbenv rehash failed: %s", result.Stderr)
	}

	m.logger.Info().Str("version", m.cfg.Version).Msg("Ruby selected as global default")
	return nil
}

func (m *Manager) activeVersion(ctx context.Context) *goversion.Version {
	result := m.runner.Run(ctx, m.rbenv("version-name"))
	if !result.Success() {
		return nil
	}
	v, err := goversion.NewVersion(strings.TrimSpace(result.Stdout))
	if err != nil {
		return nil
	}
	return v
}

func (m *Manager) versionInstalled(ctx context.Context, version string) bool {
	result := m.runner.Run(ctx, m.rbenv("versions", "--bare"))
	if !result.Success() {
		return false
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		if strings.TrimSpace(line) == version {
			return true
		}
	}
	return false
}
