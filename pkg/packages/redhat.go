package packages

import (
	"context"
	"fmt"
	"strings"

	"github.com/trailstrap/trailstrap/pkg/checks"
	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/report"
)

const (
	redhatReleaseFile = "/etc/redhat-release"
	repoMarkerFile    = "/etc/yum.repos.d/trailtools.repo"
	repoURLTemplate   = "https://pkgs.trailtools.org/el/%s/trailtools-release.rpm"
)

// supportedELReleases are the enterprise releases the third-party package
// repository publishes for. Anything else cannot get the extra native
// packages and aborts the run for this family.
var supportedELReleases = []string{"8", "9"}

// ensureThirdPartyRepo registers the trailtools RPM repository when it is
// not configured yet. Release detection parses the free-text
// /etc/redhat-release blob; an unrecognized release is fatal, a failed
// registration is recorded.
func (r *Reconciler) ensureThirdPartyRepo(ctx context.Context, rep *report.Report) error {
	if checks.PathExists(r.fs, repoMarkerFile) {
		r.logger.Debug().Msg("Third-party repository already registered")
		return nil
	}

	data, err := r.fs.ReadFile(redhatReleaseFile)
	if err != nil {
		return errors.Wrapf(err, errors.ErrUnknownOSRelease,
			"cannot read %s", redhatReleaseFile)
	}

	release, err := detectELRelease(string(data))
	if err != nil {
		return err
	}

	url := fmt.Sprintf(repoURLTemplate, release)
	r.logger.Info().Str("release", release).Str("url", url).Msg("Registering third-party repository")

	result := r.runner.Run(ctx, command.Command{
		Name:   "sudo",
		Args:   []string{"dnf", "install", "-y", url},
		Stream: true,
	})
	if !result.Success() {
		rep.Record("packages", errors.Wrapf(result.Failure(), errors.ErrRepoSetup,
			"registering third-party repository failed: %s", result.Stderr))
	}
	return nil
}

// detectELRelease matches the release description against the supported
// major releases, e.g. "Rocky Linux release 9.4 (Blue Onyx)" -> "9".
func detectELRelease(description string) (string, error) {
	for _, release := range supportedELReleases {
		if checks.StringContains(description, "release "+release) {
			return release, nil
		}
	}
	return "", errors.Newf(errors.ErrUnknownOSRelease,
		"unsupported RedHat-family release: %q", strings.TrimSpace(description))
}
