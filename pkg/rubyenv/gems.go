package rubyenv

import (
	"context"

	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/report"
)

// EnsureGem installs name unless it is already present. Install failures
// are recorded, never fatal.
func (m *Manager) EnsureGem(ctx context.Context, name string, rep *report.Report) {
	if result := m.runner.Run(ctx, m.rbenv("exec", "gem", "list", "-i", name)); result.Success() {
		m.logger.Debug().Str("gem", name).Msg("Gem already installed")
		return
	}

	m.logger.Info().Str("gem", name).Msg("Installing gem")
	install := m.rbenv("exec", "gem", "install", name)
	install.Stream = true
	if result := m.runner.Run(ctx, install); !result.Success() {
		rep.Record("rubyenv", errors.Wrapf(result.Failure(), errors.ErrGemInstall,
			"gem install %s failed: %s", name, result.Stderr))
		return
	}

	if result := m.runner.Run(ctx, m.rbenv("rehash")); !result.Success() {
		rep.Record("rubyenv", errors.Wrapf(result.Failure(), errors.ErrGemInstall,
			"rbenv rehash after %s failed: %s", name, result.Stderr))
	}
}

// ProbeTUIFeature launches the interpreter and asks the terminal-UI gem
// for single-character input support: exit 0 means present, exit 2 means
// the gem loaded without the capability, anything else means the probe
// itself failed. Absence degrades the gem state but does not abort.
func (m *Manager) ProbeTUIFeature(ctx context.Context, rep *report.Report) {
	probe := m.rbenv("exec", "ruby", "-rcurses",
		"-e", "exit(Curses.respond_to?(:get_char) ? 0 : 2)")

	result := m.runner.Run(ctx, probe)
	switch result.ExitCode {
	case 0:
		m.logger.Debug().Msg("Terminal UI gem feature probe passed")
	case 2:
		rep.Record("rubyenv", errors.New(errors.ErrFeatureProbe,
			"curses gem is installed but lacks single-character input; terminal UI degraded"))
	default:
		rep.Record("rubyenv", errors.Wrapf(result.Failure(), errors.ErrFeatureProbe,
			"curses feature probe did not run: %s", result.Stderr))
	}
}
