package report_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trailstrap/trailstrap/pkg/report"
)

func TestRecordKeepsOrder(t *testing.T) {
	r := report.New()
	r.Record("packages", errors.New("index refresh failed"))
	r.Record("gpxlib", errors.New("checksum mismatch"))

	entries := r.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "packages", entries[0].Step)
	assert.Equal(t, "gpxlib", entries[1].Step)
	assert.True(t, r.HasErrors())
}

func TestRecordIgnoresNil(t *testing.T) {
	r := report.New()
	r.Record("packages", nil)

	assert.False(t, r.HasErrors())
	assert.Empty(t, r.Entries())
}

func TestRestartShellFlag(t *testing.T) {
	r := report.New()
	assert.False(t, r.NeedsShellRestart())

	r.RestartShell()
	assert.True(t, r.NeedsShellRestart())
}

func TestSummarizeCleanRunIsSilent(t *testing.T) {
	r := report.New()

	var buf bytes.Buffer
	r.Summarize(&buf)

	assert.Empty(t, buf.String())
}

func TestSummarizeListsFailures(t *testing.T) {
	r := report.New()
	r.Record("gpxlib", errors.New("download failed"))

	var buf bytes.Buffer
	r.Summarize(&buf)

	assert.Contains(t, buf.String(), "gpxlib")
	assert.Contains(t, buf.String(), "download failed")
}

func TestSummarizeRestartNotice(t *testing.T) {
	r := report.New()
	r.RestartShell()

	var buf bytes.Buffer
	r.Summarize(&buf)

	assert.Contains(t, buf.String(), "fresh shell")
}

func TestSummarizeToBufferRendersPlainText(t *testing.T) {
	r := report.New()
	r.RestartShell()

	// A plain buffer is not a terminal, so the notice must come out
	// without escape sequences.
	var buf bytes.Buffer
	r.Summarize(&buf)

	assert.Contains(t, buf.String(), "fresh shell")
	assert.NotContains(t, buf.String(), "\x1b[")
}
