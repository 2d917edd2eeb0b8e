// Package gitrepo implements the uniform clone-or-update state machine
// used for every git-managed reconciliation target: rbenv, the ruby-build
// plugin and the companion tool repository.
package gitrepo

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/checks"
	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/types"
)

// Outcome describes what Reconcile did for a target.
type Outcome string

const (
	// OutcomeCloned means the target was absent and has been cloned.
	OutcomeCloned Outcome = "cloned"

	// OutcomeReplaced means a same-named directory without version-control
	// metadata was removed and the target cloned fresh.
	OutcomeReplaced Outcome = "replaced"

	// OutcomeUpdated means the target was a working copy and was pulled.
	OutcomeUpdated Outcome = "updated"

	// OutcomeFailed means the target is still not usable.
	OutcomeFailed Outcome = "failed"
)

// Reconciler drives targets to their declared state.
type Reconciler struct {
	fs     types.FS
	runner command.Runner
	logger zerolog.Logger
}

// New returns a reconciler over the given filesystem and runner.
func New(fs types.FS, runner command.Runner) *Reconciler {
	return &Reconciler{
		fs:     fs,
		runner: runner,
		logger: logging.GetLogger("gitrepo"),
	}
}

// Reconcile brings target to its declared state. Acquisition runs only
// when the existence predicate is false; a directory that exists but is
// not a working copy is treated as absent after destructive removal. Pull
// failures leave the target installed. The returned error is always
// recorded-nonfatal; callers decide whether a still-missing target blocks
// their own step.
func (r *Reconciler) Reconcile(ctx context.Context, target types.RepoTarget) (Outcome, error) {
	log := r.logger.With().Str("target", target.Name).Str("path", target.Path).Logger()

	if checks.IsGitWorkingCopy(r.fs, target.Path) {
		log.Debug().Msg("Working copy present, pulling")
		if err := r.pull(ctx, target); err != nil {
			return OutcomeUpdated, err
		}
		return OutcomeUpdated, nil
	}

	outcome := OutcomeCloned
	if checks.PathExists(r.fs, target.Path) {
		// Same-named directory without .git: a foreign or half-finished
		// install. Remove it and acquire from scratch.
		log.Warn().Msg("Directory exists but is not a working copy, replacing")
		if err := r.fs.RemoveAll(target.Path); err != nil {
			return OutcomeFailed, errors.Wrapf(err, errors.ErrClone,
				"cannot remove foreign directory %s", target.Path)
		}
		outcome = OutcomeReplaced
	}

	if err := r.clone(ctx, target); err != nil {
		return OutcomeFailed, err
	}

	log.Info().Str("outcome", string(outcome)).Msg("Target acquired")
	return outcome, nil
}

func (r *Reconciler) clone(ctx context.Context, target types.RepoTarget) error {
	if err := r.fs.MkdirAll(filepath.Dir(target.Path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate,
			"cannot create parent of %s", target.Path)
	}

	result := r.runner.Run(ctx, command.Command{
		Name: "git",
		Args: []string{"clone", target.Remote, target.Path},
	})
	if !result.Success() {
		// Leave no partial checkout behind; the next run must see a clean
		// "absent" state.
		_ = r.fs.RemoveAll(target.Path)
		return errors.Wrapf(result.Failure(), errors.ErrClone,
			"git clone %s failed: %s", target.Remote, result.Stderr)
	}
	return nil
}

func (r *Reconciler) pull(ctx context.Context, target types.RepoTarget) error {
	result := r.runner.Run(ctx, command.Command{
		Name: "git",
		Args: []string{"-C", target.Path, "pull", "--ff-only"},
	})
	if !result.Success() {
		return errors.Wrapf(result.Failure(), errors.ErrPull,
			"git pull in %s failed: %s", target.Path, result.Stderr)
	}
	return nil
}
