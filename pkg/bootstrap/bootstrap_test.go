package bootstrap_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailstrap/trailstrap/pkg/bootstrap"
	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/farm"
	"github.com/trailstrap/trailstrap/pkg/filesystem"
	"github.com/trailstrap/trailstrap/pkg/probe"
	"github.com/trailstrap/trailstrap/pkg/types"
)

const (
	home    = "/home/user"
	libDir  = home + "/trailtools/.lib"
	binDir  = home + "/trailtools/.bin"
	gpxinfo = libDir + "/gpxlib/dist/bin/gpxinfo"
)

func testConfig() *config.Config {
	return &config.Config{
		Tree: config.TreeConfig{Base: "~/trailtools", Lib: ".lib", Bin: ".bin"},
		Ruby: config.RubyConfig{
			Version:         "3.3.4",
			RbenvRemote:     "https://github.com/rbenv/rbenv.git",
			RubyBuildRemote: "https://github.com/rbenv/ruby-build.git",
		},
		GPXLib: config.GPXLibConfig{
			Version:    "2.10.31",
			TarballURL: "https://downloads.trailtools.org/gpxlib/gpxlib-2.10.31.tar.xz",
			SHA256:     "unused",
			PingHost:   "downloads.trailtools.org",
		},
		Tools: config.ToolsConfig{
			Remote:   "https://github.com/trailstrap/tracktools.git",
			Manifest: "tools.yaml",
		},
		Packages: config.PackagesConfig{Debian: []string{"build-essential", "libxml2-dev"}},
		Gems:     config.GemsConfig{XML: "nokogiri", TUI: "curses"},
	}
}

type env struct {
	fs     types.FS
	runner *command.FakeRunner
	out    bytes.Buffer
}

// newEnv sets up a supported Debian machine owned by a regular admin user
// with all host tools present.
func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		fs:     filesystem.NewMemory(),
		runner: command.NewFakeRunner(),
	}

	require.NoError(t, e.fs.WriteFile("/etc/debian_version", []byte("12.6\n"), 0644))
	require.NoError(t, e.fs.WriteFile("/etc/os-release", []byte("ID=debian\n"), 0644))
	e.runner.Script("uname -s", command.Result{Stdout: "Linux\n"})
	e.runner.Script("id -Gn", command.Result{Stdout: "users sudo\n"})
	for _, tool := range []string{"sudo", "git", "curl", "tar", "apt-get"} {
		e.runner.Install(tool, "/usr/bin/"+tool)
	}
	return e
}

// installRubyCheckouts lays down working copies for rbenv and ruby-build so
// the runtime step takes the update path.
func (e *env) installRubyCheckouts(t *testing.T) {
	t.Helper()
	require.NoError(t, e.fs.MkdirAll(libDir+"/rbenv/.git", 0755))
	require.NoError(t, e.fs.WriteFile(libDir+"/rbenv/bin/rbenv", []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, e.fs.MkdirAll(libDir+"/rbenv/plugins/ruby-build/.git", 0755))
}

func (e *env) installToolCheckout(t *testing.T, tools ...string) {
	t.Helper()
	require.NoError(t, e.fs.MkdirAll(libDir+"/tracktools/.git", 0755))
	manifest := "tools:\n"
	for _, tool := range tools {
		manifest += "  - " + tool + "\n"
		require.NoError(t, e.fs.WriteFile(libDir+"/tracktools/"+tool, []byte("#!/usr/bin/env ruby\n"), 0755))
	}
	require.NoError(t, e.fs.WriteFile(libDir+"/tracktools/tools.yaml", []byte(manifest), 0644))
}

func (e *env) options() bootstrap.Options {
	return bootstrap.Options{
		FS:       e.fs,
		Runner:   e.runner,
		Config:   testConfig(),
		Home:     home,
		PathEnv:  "/usr/local/bin:/usr/bin:/bin",
		SelfName: "trailstrap",
		SelfPath: "/tmp/trailstrap",
		Out:      &e.out,
		Prober: probe.New(e.fs, e.runner).
			WithIdentity(func() int { return 1000 }, func(string) bool { return false }),
	}
}

func TestRunOnConvergedMachineRecordsNothing(t *testing.T) {
	e := newEnv(t)
	e.installRubyCheckouts(t)
	e.installToolCheckout(t, "gpxplot", "trailsync")
	e.runner.Script(gpxinfo+" -version", command.Result{Stdout: "gpxinfo 2.10.31\n"})

	rep, err := bootstrap.New(e.options()).Run(context.Background())

	require.NoError(t, err)
	assert.False(t, rep.HasErrors(), "%v", rep.Entries())

	// The tree exists and every manifest tool is linked.
	_, statErr := e.fs.Stat(binDir)
	assert.NoError(t, statErr)
	f := farm.New(binDir)
	assert.True(t, f.LinksTo(e.fs, "gpxplot", libDir+"/tracktools/gpxplot"))
	assert.True(t, f.LinksTo(e.fs, "trailsync", libDir+"/tracktools/trailsync"))

	// PATH was appended, so the operator owes us a shell restart.
	assert.True(t, rep.NeedsShellRestart())
	bashrc, readErr := e.fs.ReadFile(home + "/.bashrc")
	require.NoError(t, readErr)
	assert.Contains(t, string(bashrc), binDir)
}

func TestRunAbortsOnForeignKernel(t *testing.T) {
	e := newEnv(t)
	e.runner.Script("uname -s", command.Result{Stdout: "Darwin\n"})

	_, err := bootstrap.New(e.options()).Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnsupportedKernel))
	assert.True(t, errors.IsFatal(err))
	// Nothing was created before the abort.
	_, statErr := e.fs.Stat(home + "/trailtools")
	assert.Error(t, statErr)
}

func TestRunAbortsWhenHostToolMissing(t *testing.T) {
	e := newEnv(t)
	e.runner.Uninstall("curl")

	_, err := bootstrap.New(e.options()).Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMissingHostTool))
}

func TestRunAbortsOnConflictingVersionManager(t *testing.T) {
	e := newEnv(t)
	e.installRubyCheckouts(t)
	e.runner.Install("rvm", "/usr/local/rvm/bin/rvm")

	_, err := bootstrap.New(e.options()).Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrManagerConflict))
	// The run never reached the tool repository step.
	assert.Equal(t, 0, e.runner.CallCount("git clone https://github.com/trailstrap/tracktools.git"))
}

func TestRunRecordsDownstreamFailuresAndFinishes(t *testing.T) {
	e := newEnv(t)
	e.installRubyCheckouts(t)
	e.installToolCheckout(t, "gpxplot")
	e.runner.Script(gpxinfo+" -version", command.Result{Stdout: "gpxinfo 2.10.31\n"})
	// The tool repository pull fails; the run must still complete.
	e.runner.Fail("git -C "+libDir+"/tracktools pull --ff-only", "fatal: could not resolve host")

	rep, err := bootstrap.New(e.options()).Run(context.Background())

	require.NoError(t, err)
	require.True(t, rep.HasErrors())
	assert.True(t, errors.IsErrorCode(rep.Entries()[0].Err, errors.ErrPull))
	// Publishing still happened from the existing checkout.
	assert.True(t, farm.New(binDir).LinksTo(e.fs, "gpxplot", libDir+"/tracktools/gpxplot"))
}
