package probe

import (
	"context"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/checks"
	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/types"
)

// hostTools are the commands every later step shells out to. Their absence
// is a fatal precondition; the package reconciler cannot bootstrap the
// bootstrap.
var hostTools = []string{"sudo", "git", "curl", "tar"}

// adminGroups are the elevated-access groups, one of which must contain
// the invoking user.
var adminGroups = []string{"sudo", "wheel"}

// Prober gathers evidence and validates run preconditions.
type Prober struct {
	fs     types.FS
	runner command.Runner
	logger zerolog.Logger

	// euid and confirm are injectable for tests. confirm asks the operator
	// whether to continue as root and defaults to a pterm prompt.
	euid    func() int
	confirm func(message string) bool
}

// New returns a prober using the real effective UID and an interactive
// root confirmation.
func New(fs types.FS, runner command.Runner) *Prober {
	return &Prober{
		fs:      fs,
		runner:  runner,
		logger:  logging.GetLogger("probe"),
		euid:    os.Geteuid,
		confirm: confirmInteractive,
	}
}

// WithIdentity overrides the effective UID source and confirmation prompt.
func (p *Prober) WithIdentity(euid func() int, confirm func(string) bool) *Prober {
	p.euid = euid
	p.confirm = confirm
	return p
}

// Detect gathers evidence, classifies the machine and returns its
// immutable profile. An unsupported kernel or distribution is fatal.
func (p *Prober) Detect(ctx context.Context, cfg *config.Config) (*types.MachineProfile, error) {
	ev := p.gather(ctx)
	p.logger.Debug().
		Str("kernel", ev.Kernel).
		Bool("debianVersion", ev.HasDebianVersion).
		Bool("redhatRelease", ev.HasRedHatRelease).
		Bool("suseRelease", ev.HasSuSERelease).
		Msg("Gathered OS evidence")

	if !strings.EqualFold(strings.TrimSpace(ev.Kernel), "Linux") {
		return nil, errors.Newf(errors.ErrUnsupportedKernel,
			"trailstrap only supports Linux, got %q", strings.TrimSpace(ev.Kernel))
	}

	family := Classify(ev)
	if family == types.FamilyUnsupported {
		return nil, errors.New(errors.ErrUnsupportedOS,
			"cannot classify this distribution; no supported package manager found")
	}

	profile := profileFor(family, cfg)

	// The install command is ["sudo", <manager>, ...]; a classified family
	// whose manager binary is absent cannot be reconciled.
	if manager := profile.InstallCmd[1]; !checks.CommandExists(p.runner, manager) {
		return nil, errors.Newf(errors.ErrMissingHostTool,
			"classified as %s but its package manager %q is not installed", family, manager)
	}

	p.logger.Info().Str("family", string(family)).Msg("Machine classified")
	return profile, nil
}

// Preconditions validates the invoking identity and host tooling. Every
// failure here is fatal.
func (p *Prober) Preconditions(ctx context.Context) error {
	if p.euid() == 0 {
		if !p.confirm("You are running trailstrap as root; it is meant for a regular user. Continue anyway?") {
			return errors.New(errors.ErrRootRefused, "refusing to run as root")
		}
		p.logger.Warn().Msg("Continuing as root on operator confirmation")
	} else if err := p.checkAdminGroup(ctx); err != nil {
		return err
	}

	for _, tool := range hostTools {
		if !checks.CommandExists(p.runner, tool) {
			return errors.Newf(errors.ErrMissingHostTool,
				"required command %q is not installed", tool)
		}
	}
	return nil
}

func (p *Prober) checkAdminGroup(ctx context.Context) error {
	result := p.runner.Run(ctx, command.Command{Name: "id", Args: []string{"-Gn"}})
	if !result.Success() {
		return errors.Wrap(result.Failure(), errors.ErrNotInAdminGroup, "cannot list group membership")
	}

	groups := strings.Fields(result.Stdout)
	for _, group := range groups {
		for _, admin := range adminGroups {
			if group == admin {
				return nil
			}
		}
	}
	return errors.Newf(errors.ErrNotInAdminGroup,
		"user is in none of the elevated-access groups %v", adminGroups)
}

func (p *Prober) gather(ctx context.Context) Evidence {
	ev := Evidence{
		HasDebianVersion: checks.PathExists(p.fs, "/etc/debian_version"),
		HasRedHatRelease: checks.PathExists(p.fs, "/etc/redhat-release"),
		HasSuSERelease:   checks.PathExists(p.fs, "/etc/SuSE-release"),
	}

	if result := p.runner.Run(ctx, command.Command{Name: "uname", Args: []string{"-s"}}); result.Success() {
		ev.Kernel = strings.TrimSpace(result.Stdout)
	}

	if data, err := p.fs.ReadFile("/etc/os-release"); err == nil {
		ev.OSRelease = string(data)
	}

	return ev
}

func profileFor(family types.Family, cfg *config.Config) *types.MachineProfile {
	switch family {
	case types.FamilyDebian:
		return &types.MachineProfile{
			Family:           family,
			QueryCmd:         []string{"dpkg", "-s"},
			InstallCmd:       []string{"sudo", "apt-get", "install", "-y"},
			PrepCmd:          []string{"sudo", "apt-get", "update"},
			RequiredPackages: cfg.Packages.Debian,
		}
	case types.FamilyRedHat:
		return &types.MachineProfile{
			Family:           family,
			QueryCmd:         []string{"rpm", "-q"},
			InstallCmd:       []string{"sudo", "dnf", "install", "-y"},
			PrepCmd:          []string{"sudo", "dnf", "makecache"},
			RequiredPackages: cfg.Packages.RedHat,
		}
	case types.FamilyOpenSUSE:
		return &types.MachineProfile{
			Family:           family,
			QueryCmd:         []string{"rpm", "-q"},
			InstallCmd:       []string{"sudo", "zypper", "--non-interactive", "install"},
			PrepCmd:          []string{"sudo", "zypper", "--non-interactive", "refresh"},
			RequiredPackages: cfg.Packages.OpenSUSE,
		}
	default:
		return &types.MachineProfile{Family: types.FamilyUnsupported}
	}
}

func confirmInteractive(message string) bool {
	// Without a terminal there is nobody to confirm; refuse.
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return false
	}
	ok, _ := pterm.DefaultInteractiveConfirm.Show(message)
	return ok
}
