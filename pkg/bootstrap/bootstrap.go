// Package bootstrap runs the full reconciliation sequence in its fixed
// order: probe, workspace, packages, shell profile, Ruby runtime, gpxlib
// and the companion tool repository. Fatal errors abort the run; recorded
// failures ride the report to the end-of-run summary.
package bootstrap

import (
	"context"
	"io"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/farm"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/nativelib"
	"github.com/trailstrap/trailstrap/pkg/packages"
	"github.com/trailstrap/trailstrap/pkg/probe"
	"github.com/trailstrap/trailstrap/pkg/report"
	"github.com/trailstrap/trailstrap/pkg/rubyenv"
	"github.com/trailstrap/trailstrap/pkg/shellprofile"
	"github.com/trailstrap/trailstrap/pkg/toolrepo"
	"github.com/trailstrap/trailstrap/pkg/types"
	"github.com/trailstrap/trailstrap/pkg/workspace"
)

// Options carries everything a run needs. FS, Runner, Config, Home,
// PathEnv, SelfName and SelfPath are required; Prober and Fetcher default
// to the real implementations and exist for tests.
type Options struct {
	FS     types.FS
	Runner command.Runner
	Config *config.Config

	// Home is the invoking user's home directory, PathEnv the live $PATH.
	Home    string
	PathEnv string

	// SelfName and SelfPath identify the running executable for the
	// bootstrapper self-replacement rule.
	SelfName string
	SelfPath string

	// Out receives step narration and the end-of-run summary.
	Out io.Writer

	Prober  *probe.Prober
	Fetcher nativelib.FetchFunc
}

// Bootstrapper executes one reconciliation run.
type Bootstrapper struct {
	opts   Options
	logger zerolog.Logger
}

// New returns a bootstrapper, filling in the default prober.
func New(opts Options) *Bootstrapper {
	if opts.Prober == nil {
		opts.Prober = probe.New(opts.FS, opts.Runner)
	}
	return &Bootstrapper{
		opts:   opts,
		logger: logging.GetLogger("bootstrap"),
	}
}

// Run executes the sequence. The returned report always carries whatever
// was recorded before a fatal error; a non-nil error means the run
// aborted and the process should exit non-zero.
func (b *Bootstrapper) Run(ctx context.Context) (*report.Report, error) {
	rep := report.New()
	opts := b.opts

	b.step("Checking run preconditions")
	if err := opts.Prober.Preconditions(ctx); err != nil {
		return rep, err
	}

	b.step("Classifying this machine")
	profile, err := opts.Prober.Detect(ctx, opts.Config)
	if err != nil {
		return rep, err
	}

	b.step("Preparing the managed tree")
	ws := workspace.New(opts.Config.Tree, opts.Home)
	if err := ws.Ensure(opts.FS); err != nil {
		return rep, err
	}
	binFarm := farm.New(ws.BinDir())

	b.step("Reconciling native packages")
	if err := packages.New(opts.FS, opts.Runner).Reconcile(ctx, profile, rep); err != nil {
		return rep, err
	}

	b.step("Reconciling shell startup files")
	shellprofile.New(opts.FS, opts.Home, ws.BinDir(), opts.PathEnv).
		Reconcile(profile.Family, rep)

	b.step("Reconciling the Ruby runtime")
	rubyManager := rubyenv.New(opts.FS, opts.Runner, ws, opts.Config.Ruby)
	if err := rubyManager.Reconcile(ctx, rep); err != nil {
		return rep, err
	}

	b.step("Reconciling gpxlib")
	builder := nativelib.New(opts.FS, opts.Runner, ws, binFarm, opts.Config.GPXLib, profile.Family)
	if opts.Fetcher != nil {
		builder = builder.WithFetcher(opts.Fetcher)
	}
	builder.Reconcile(ctx, rep)

	b.step("Reconciling the tool repository")
	toolrepo.New(opts.FS, opts.Runner, ws, binFarm, opts.Config.Tools, opts.Config.Gems).
		Reconcile(ctx, opts.SelfName, opts.SelfPath, rubyManager, rep)

	rep.Summarize(opts.Out)
	b.logger.Info().
		Int("recorded", len(rep.Entries())).
		Bool("restartShell", rep.NeedsShellRestart()).
		Msg("Run complete")
	return rep, nil
}

func (b *Bootstrapper) step(msg string) {
	pterm.Info.WithWriter(b.opts.Out).Println(msg)
	b.logger.Info().Msg(msg)
}
