// Package shellprofile edits the user's shell startup files idempotently:
// chain .bashrc from .bash_profile where the distribution doesn't, put the
// managed bin directory on PATH, and set the readline completion behavior.
// Every edit is guarded by a pattern check so re-runs never duplicate
// lines.
package shellprofile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/checks"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/report"
	"github.com/trailstrap/trailstrap/pkg/types"
)

const (
	bashrcChainMarker = "[ -f ~/.bashrc ] && . ~/.bashrc"
	completionSetting = "set show-all-if-ambiguous on"
	completionKey     = "show-all-if-ambiguous"
)

// Reconciler applies the three startup-file conditions.
type Reconciler struct {
	fs      types.FS
	home    string
	binDir  string
	pathEnv string
	logger  zerolog.Logger
}

// New returns a reconciler for the given home directory and farm bin dir.
// pathEnv is the live $PATH value, the cheapest true source for the PATH
// check.
func New(fs types.FS, home, binDir, pathEnv string) *Reconciler {
	return &Reconciler{
		fs:      fs,
		home:    home,
		binDir:  binDir,
		pathEnv: pathEnv,
		logger:  logging.GetLogger("shellprofile"),
	}
}

// Reconcile ensures all conditions hold. Failures are recorded on rep;
// none of them aborts the run.
func (r *Reconciler) Reconcile(family types.Family, rep *report.Report) {
	if family != types.FamilyDebian {
		// Debian's skeleton .profile already chains .bashrc; the RPM
		// families leave login shells without it.
		if err := r.ensureBashrcChained(rep); err != nil {
			rep.Record("shellprofile", err)
		}
	}

	if err := r.ensurePath(rep); err != nil {
		rep.Record("shellprofile", err)
	}

	if err := r.ensureCompletionSetting(rep); err != nil {
		rep.Record("shellprofile", err)
	}
}

func (r *Reconciler) bashrc() string      { return filepath.Join(r.home, ".bashrc") }
func (r *Reconciler) bashProfile() string { return filepath.Join(r.home, ".bash_profile") }
func (r *Reconciler) inputrc() string     { return filepath.Join(r.home, ".inputrc") }

// ensureBashrcChained makes login shells read ~/.bashrc.
func (r *Reconciler) ensureBashrcChained(rep *report.Report) error {
	content, err := r.readOrEmpty(r.bashProfile())
	if err != nil {
		return err
	}
	if checks.StringContains(content, ".bashrc") {
		r.logger.Debug().Msg(".bash_profile already chains .bashrc")
		return nil
	}

	line := fmt.Sprintf("\n# trailstrap: load .bashrc in login shells\n%s\n", bashrcChainMarker)
	if err := r.appendLine(r.bashProfile(), content, line); err != nil {
		return err
	}

	r.logger.Info().Msg("Chained .bashrc from .bash_profile")
	rep.RestartShell()
	return nil
}

// ensurePath makes the farm bin dir resolvable. The live PATH is checked
// first; only when both startup files also lack the entry is a write
// needed.
func (r *Reconciler) ensurePath(rep *report.Report) error {
	if pathContains(r.pathEnv, r.binDir) {
		r.logger.Debug().Msg("Farm bin dir already on live PATH")
		return nil
	}

	for _, file := range []string{r.bashrc(), r.bashProfile()} {
		content, err := r.readOrEmpty(file)
		if err != nil {
			return err
		}
		if checks.StringContains(content, r.binDir) {
			r.logger.Debug().Str("file", file).Msg("PATH entry already present in startup file")
			// Present in the file but not live: the user just hasn't
			// restarted yet.
			rep.RestartShell()
			return nil
		}
	}

	content, err := r.readOrEmpty(r.bashrc())
	if err != nil {
		return err
	}
	line := fmt.Sprintf("\n# trailstrap: trailtools command farm\nexport PATH=\"%s:$PATH\"\n", r.binDir)
	if err := r.appendLine(r.bashrc(), content, line); err != nil {
		return err
	}

	r.logger.Info().Str("binDir", r.binDir).Msg("Added farm bin dir to PATH")
	rep.RestartShell()
	return nil
}

// ensureCompletionSetting writes the readline completion behavior only on
// true absence; an explicit setting of either polarity is the operator's
// choice and is left alone.
func (r *Reconciler) ensureCompletionSetting(rep *report.Report) error {
	content, err := r.readOrEmpty(r.inputrc())
	if err != nil {
		return err
	}
	if checks.StringContains(content, completionKey) {
		r.logger.Debug().Msg("Completion behavior already configured")
		return nil
	}

	if err := r.appendLine(r.inputrc(), content, completionSetting+"\n"); err != nil {
		return err
	}

	r.logger.Info().Msg("Enabled ambiguous-completion listing in .inputrc")
	rep.RestartShell()
	return nil
}

func (r *Reconciler) readOrEmpty(path string) (string, error) {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, errors.ErrProfileRead, "cannot read %s", path)
	}
	return string(data), nil
}

func (r *Reconciler) appendLine(path, existing, line string) error {
	if err := r.fs.WriteFile(path, []byte(existing+line), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrProfileWrite, "cannot write %s", path)
	}
	return nil
}

func pathContains(pathEnv, dir string) bool {
	for _, entry := range strings.Split(pathEnv, ":") {
		if entry == dir {
			return true
		}
	}
	return false
}
