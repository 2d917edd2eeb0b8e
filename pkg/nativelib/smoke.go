package nativelib

import (
	"context"
	_ "embed"
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/errors"
)

//go:embed testdata/smoke.gpx
var smokeFixture []byte

// smokeCheck runs the freshly linked CLI against a one-track GPX fixture
// and parses what it prints back. It catches builds that link, install and
// version-report fine but cannot actually process a track file.
func (b *Builder) smokeCheck(ctx context.Context) error {
	fixture := filepath.Join(b.ws.GPXLibDir(), "smoke.gpx")
	if err := b.fs.WriteFile(fixture, smokeFixture, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrSmoke, "cannot write smoke fixture")
	}

	result := b.runner.Run(ctx, command.Command{
		Name: b.cliPath(),
		Args: []string{"-echo", fixture},
	})
	if !result.Success() {
		return errors.Wrapf(result.Failure(), errors.ErrSmoke,
			"gpxinfo could not process the smoke fixture: %s", result.Stderr)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(result.Stdout); err != nil {
		return errors.Wrap(err, errors.ErrSmoke, "gpxinfo emitted unparseable XML")
	}

	root := doc.Root()
	if root == nil || root.Tag != "gpx" {
		return errors.New(errors.ErrSmoke, "gpxinfo output is not a GPX document")
	}
	if root.FindElement("//trk") == nil {
		return errors.New(errors.ErrSmoke, "gpxinfo dropped the track from the fixture")
	}

	b.logger.Debug().Msg("gpxlib smoke check passed")
	return nil
}
