// Package report implements the run report: an ordered accumulator of
// non-fatal failures plus the shell-restart flag, threaded explicitly
// through every reconciler. Nothing in trailstrap keeps error state in a
// global.
package report

import (
	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/logging"
)

// Entry is one recorded non-fatal failure.
type Entry struct {
	Step string
	Err  error
}

// Report accumulates failures and end-of-run signals across the whole
// bootstrap sequence. It is not safe for concurrent use; the run is
// strictly sequential.
type Report struct {
	entries      []Entry
	restartShell bool
	logger       zerolog.Logger
}

// New returns an empty report.
func New() *Report {
	return &Report{
		logger: logging.GetLogger("report"),
	}
}

// Record appends a failure for the named step. A nil error is ignored so
// callers can record unconditionally.
func (r *Report) Record(step string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn().Str("step", step).Err(err).Msg("Recorded non-fatal failure")
	r.entries = append(r.entries, Entry{Step: step, Err: err})
}

// Entries returns the recorded failures in occurrence order.
func (r *Report) Entries() []Entry {
	return r.entries
}

// HasErrors reports whether any failure was recorded.
func (r *Report) HasErrors() bool {
	return len(r.entries) > 0
}

// RestartShell marks that a shell startup file or PATH was mutated and the
// operator needs a fresh shell session.
func (r *Report) RestartShell() {
	r.restartShell = true
}

// NeedsShellRestart reports whether any step requested a shell restart.
func (r *Report) NeedsShellRestart() bool {
	return r.restartShell
}
