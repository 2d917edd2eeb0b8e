// Package packages reconciles the declared native package set against what
// the machine already has: query per package, install the missing subset in
// one invocation, and give up elevated privileges straight afterwards.
package packages

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/report"
	"github.com/trailstrap/trailstrap/pkg/types"
)

// Reconciler installs the missing subset of the declared package set.
type Reconciler struct {
	fs     types.FS
	runner command.Runner
	logger zerolog.Logger
}

// New returns a package reconciler.
func New(fs types.FS, runner command.Runner) *Reconciler {
	return &Reconciler{
		fs:     fs,
		runner: runner,
		logger: logging.GetLogger("packages"),
	}
}

// Missing partitions the profile's required packages into present and
// missing by querying each one, preserving declared order.
func (r *Reconciler) Missing(ctx context.Context, profile *types.MachineProfile) []string {
	var missing []string
	for _, pkg := range profile.RequiredPackages {
		result := r.runner.Run(ctx, command.Command{
			Name: profile.QueryCmd[0],
			Args: append(append([]string{}, profile.QueryCmd[1:]...), pkg),
		})
		if !result.Success() {
			missing = append(missing, pkg)
		}
	}
	return missing
}

// Reconcile installs whatever is missing. The returned error is fatal
// (failed base install, unknown RedHat sub-release); everything else is
// recorded on rep. Cached sudo credentials are dropped before returning,
// whatever happened.
func (r *Reconciler) Reconcile(ctx context.Context, profile *types.MachineProfile, rep *report.Report) error {
	defer r.dropPrivileges(ctx)

	missing := r.Missing(ctx, profile)
	if len(missing) == 0 {
		r.logger.Info().Msg("All required packages already installed")
		return nil
	}
	r.logger.Info().Strs("missing", missing).Msg("Installing missing packages")

	// Index refresh failure is recorded but does not gate the install
	// attempt; the install may still succeed against a stale index.
	if len(profile.PrepCmd) > 0 {
		result := r.runner.Run(ctx, command.Command{
			Name:   profile.PrepCmd[0],
			Args:   profile.PrepCmd[1:],
			Stream: true,
		})
		if !result.Success() {
			rep.Record("packages", errors.Wrapf(result.Failure(), errors.ErrPackagePrep,
				"package index refresh failed: %s", result.Stderr))
		}
	}

	if profile.Family == types.FamilyRedHat {
		if err := r.ensureThirdPartyRepo(ctx, rep); err != nil {
			return err
		}
	}

	result := r.runner.Run(ctx, command.Command{
		Name:   profile.InstallCmd[0],
		Args:   append(append([]string{}, profile.InstallCmd[1:]...), missing...),
		Stream: true,
	})
	if !result.Success() {
		// Everything downstream assumes the base toolchain exists, so a
		// failed install aborts the whole run.
		return errors.Wrapf(result.Failure(), errors.ErrPackageInstall,
			"installing %d packages failed: %s", len(missing), result.Stderr)
	}

	r.logger.Info().Int("count", len(missing)).Msg("Packages installed")
	return nil
}

func (r *Reconciler) dropPrivileges(ctx context.Context) {
	// Invalidate the cached sudo timestamp so the elevated window ends
	// with the package phase.
	r.runner.Run(ctx, command.Command{Name: "sudo", Args: []string{"-k"}})
	r.logger.Debug().Msg("Dropped cached sudo credentials")
}
