// Package toolrepo reconciles the companion tool repository: keep the
// checkout current, publish every manifest-listed tool into the farm, and
// apply the self-replacement rule so an ad-hoc downloaded trailstrap is
// superseded by the repository-tracked copy.
package toolrepo

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/trailstrap/trailstrap/pkg/checks"
	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/farm"
	"github.com/trailstrap/trailstrap/pkg/gitrepo"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/report"
	"github.com/trailstrap/trailstrap/pkg/types"
	"github.com/trailstrap/trailstrap/pkg/workspace"
)

// GemEnsurer is the slice of the runtime manager this component needs:
// the companion tools are Ruby scripts that want the XML and terminal-UI
// gems available.
type GemEnsurer interface {
	EnsureGem(ctx context.Context, name string, rep *report.Report)
	ProbeTUIFeature(ctx context.Context, rep *report.Report)
}

// Manifest is the tool list the companion repository ships.
type Manifest struct {
	Tools []string `yaml:"tools"`
}

// Reconciler keeps the companion repository and its farm links current.
type Reconciler struct {
	fs     types.FS
	runner command.Runner
	repos  *gitrepo.Reconciler
	ws     *workspace.Workspace
	farm   *farm.Farm
	cfg    config.ToolsConfig
	gems   config.GemsConfig
	logger zerolog.Logger
}

// New returns a companion-repository reconciler.
func New(fs types.FS, runner command.Runner, ws *workspace.Workspace, f *farm.Farm,
	cfg config.ToolsConfig, gems config.GemsConfig) *Reconciler {
	return &Reconciler{
		fs:     fs,
		runner: runner,
		repos:  gitrepo.New(fs, runner),
		ws:     ws,
		farm:   f,
		cfg:    cfg,
		gems:   gems,
		logger: logging.GetLogger("toolrepo"),
	}
}

// Reconcile updates the checkout, publishes tools and requests the two
// runtime gems. selfName/selfPath identify the currently running
// bootstrapper for the self-replacement rule. Failures are recorded.
func (r *Reconciler) Reconcile(ctx context.Context, selfName, selfPath string,
	gemEnsurer GemEnsurer, rep *report.Report) {

	if _, err := r.repos.Reconcile(ctx, types.RepoTarget{
		Name:   "tracktools",
		Path:   r.ws.ToolsDir(),
		Remote: r.cfg.Remote,
	}); err != nil {
		rep.Record("toolrepo", err)
	}

	if !checks.IsGitWorkingCopy(r.fs, r.ws.ToolsDir()) {
		// Nothing to publish without a checkout; the clone failure above
		// is already on the report.
		return
	}

	manifest, err := r.readManifest()
	if err != nil {
		rep.Record("toolrepo", err)
		return
	}

	for _, tool := range manifest.Tools {
		if err := r.publishTool(tool, selfName, selfPath); err != nil {
			rep.Record("toolrepo", err)
		}
	}

	gemEnsurer.EnsureGem(ctx, r.gems.XML, rep)
	gemEnsurer.EnsureGem(ctx, r.gems.TUI, rep)
	gemEnsurer.ProbeTUIFeature(ctx, rep)
}

func (r *Reconciler) readManifest() (*Manifest, error) {
	path := filepath.Join(r.ws.ToolsDir(), r.cfg.Manifest)
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput,
			"companion repository has no %s manifest", r.cfg.Manifest)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "cannot parse %s", path)
	}
	return &manifest, nil
}

// publishTool links one manifest entry into the farm. A tool that is both
// resolvable and linked is left alone, except the bootstrapper itself
// when the running copy is not the repository-tracked one.
func (r *Reconciler) publishTool(tool, selfName, selfPath string) error {
	repoCopy := filepath.Join(r.ws.ToolsDir(), tool)

	resolvable := checks.CommandExists(r.runner, tool)
	linked := r.farm.HasLink(r.fs, tool)

	if resolvable && linked {
		if tool != selfName || r.isRepoLink(selfPath, repoCopy) {
			r.logger.Debug().Str("tool", tool).Msg("Tool already resolvable and linked")
			return nil
		}
		// Self-replacement: the running bootstrapper is an ad-hoc copy.
		// The repository-tracked script supersedes it.
		r.logger.Info().Str("tool", tool).Msg("Replacing ad-hoc bootstrapper with repository copy")
	}

	return r.farm.Publish(r.fs, tool, repoCopy)
}

// isRepoLink reports whether path is the repository copy itself or a
// symlink pointing at it. os.Executable resolves symlinks, so a
// bootstrapper invoked through its farm link arrives here as the
// resolved repository path, not as the link.
func (r *Reconciler) isRepoLink(path, repoCopy string) bool {
	if path == repoCopy {
		return true
	}
	dest, err := r.fs.Readlink(path)
	if err != nil {
		return false
	}
	return dest == repoCopy
}
