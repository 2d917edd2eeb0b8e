package nativelib_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/farm"
	"github.com/trailstrap/trailstrap/pkg/filesystem"
	"github.com/trailstrap/trailstrap/pkg/nativelib"
	"github.com/trailstrap/trailstrap/pkg/report"
	"github.com/trailstrap/trailstrap/pkg/types"
	"github.com/trailstrap/trailstrap/pkg/workspace"
)

const (
	gpxinfo     = "/home/user/trailtools/.lib/gpxlib/dist/bin/gpxinfo"
	tarballPath = "/home/user/trailtools/.lib/gpxlib/gpxlib-2.10.31.tar.xz"
	smokeArgv   = gpxinfo + " -echo /home/user/trailtools/.lib/gpxlib/smoke.gpx"
)

// fixture loads the real tar.xz test tarball and returns its bytes and
// hex digest.
func fixture(t *testing.T) ([]byte, string) {
	t.Helper()
	data, err := os.ReadFile("testdata/gpxlib-2.10.31.tar.xz")
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:])
}

func smokeGPX(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/smoke.gpx")
	require.NoError(t, err)
	return string(data)
}

func newWorkspace() *workspace.Workspace {
	return workspace.New(config.TreeConfig{Base: "~/trailtools", Lib: ".lib", Bin: ".bin"}, "/home/user")
}

type env struct {
	fs     types.FS
	runner *command.FakeRunner
	rep    *report.Report
	ws     *workspace.Workspace
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fs := filesystem.NewMemory()
	ws := newWorkspace()
	require.NoError(t, fs.MkdirAll(ws.BinDir(), 0755))
	require.NoError(t, fs.MkdirAll(ws.GPXLibDir(), 0755))
	return &env{
		fs:     fs,
		runner: command.NewFakeRunner(),
		rep:    report.New(),
		ws:     ws,
	}
}

func (e *env) builder(t *testing.T, digest string, fetch nativelib.FetchFunc) *nativelib.Builder {
	t.Helper()
	cfg := config.GPXLibConfig{
		Version:    "2.10.31",
		TarballURL: "https://downloads.trailtools.org/gpxlib/gpxlib-2.10.31.tar.xz",
		SHA256:     digest,
		PingHost:   "downloads.trailtools.org",
	}
	b := nativelib.New(e.fs, e.runner, e.ws, farm.New(e.ws.BinDir()), cfg, types.FamilyDebian)
	if fetch != nil {
		b = b.WithFetcher(fetch)
	}
	return b
}

// scriptHappyBuild makes the version check miss and the built CLI behave.
func (e *env) scriptHappyBuild(t *testing.T) {
	t.Helper()
	e.runner.Fail(gpxinfo+" -version", "no such file or directory")
	e.runner.Script(smokeArgv, command.Result{Stdout: smokeGPX(t)})
	// The fake runner cannot create files, so pretend make install did.
	require.NoError(t, e.fs.MkdirAll(e.ws.GPXLibPrefix()+"/bin", 0755))
	require.NoError(t, e.fs.WriteFile(gpxinfo, []byte("\x7fELF"), 0755))
	require.NoError(t, e.fs.WriteFile(e.ws.GPXLibPrefix()+"/bin/gpxconvert", []byte("\x7fELF"), 0755))
}

func TestMatchingVersionSkipsRebuild(t *testing.T) {
	e := newEnv(t)
	e.runner.Script(gpxinfo+" -version", command.Result{Stdout: "gpxinfo 2.10.31\n"})

	b := e.builder(t, "unused", func(context.Context, string) ([]byte, error) {
		t.Fatal("fetch must not run when the version matches")
		return nil, nil
	})
	b.Reconcile(context.Background(), e.rep)

	assert.False(t, e.rep.HasErrors())
	assert.Equal(t, 0, e.runner.CallCount("./configure"))
}

func TestVersionDriftTriggersFullRebuild(t *testing.T) {
	e := newEnv(t)
	data, digest := fixture(t)
	// CLI present and runs, but one patch release behind.
	e.runner.Script(gpxinfo+" -version", command.Result{Stdout: "gpxinfo 2.10.30\n"})
	e.runner.Script(smokeArgv, command.Result{Stdout: smokeGPX(t)})
	require.NoError(t, e.fs.MkdirAll(e.ws.GPXLibPrefix()+"/bin", 0755))
	require.NoError(t, e.fs.WriteFile(gpxinfo, []byte("\x7fELF"), 0755))

	fetched := 0
	b := e.builder(t, digest, func(context.Context, string) ([]byte, error) {
		fetched++
		return data, nil
	})
	b.Reconcile(context.Background(), e.rep)

	assert.False(t, e.rep.HasErrors())
	assert.Equal(t, 1, fetched)
	assert.Equal(t, 1, e.runner.CallCount("./configure --prefix=/home/user/trailtools/.lib/gpxlib/dist"))
	assert.Equal(t, 1, e.runner.CallCount("make install"))
}

func TestRebuildExtractsSourceTree(t *testing.T) {
	e := newEnv(t)
	data, digest := fixture(t)
	e.scriptHappyBuild(t)

	b := e.builder(t, digest, func(context.Context, string) ([]byte, error) {
		return data, nil
	})
	b.Reconcile(context.Background(), e.rep)

	require.False(t, e.rep.HasErrors(), "%v", e.rep.Entries())
	srcDir := e.ws.GPXLibBuildDir() + "/gpxlib-2.10.31"
	for _, file := range []string{"/configure", "/src/gpxinfo.c", "/Makefile.in"} {
		_, err := e.fs.Stat(srcDir + file)
		assert.NoError(t, err, "expected %s to be extracted", file)
	}
}

func TestRebuildPublishesEveryBinary(t *testing.T) {
	e := newEnv(t)
	data, digest := fixture(t)
	e.scriptHappyBuild(t)

	b := e.builder(t, digest, func(context.Context, string) ([]byte, error) {
		return data, nil
	})
	b.Reconcile(context.Background(), e.rep)

	f := farm.New(e.ws.BinDir())
	assert.True(t, f.LinksTo(e.fs, "gpxinfo", gpxinfo))
	assert.True(t, f.LinksTo(e.fs, "gpxconvert", e.ws.GPXLibPrefix()+"/bin/gpxconvert"))
}

func TestCachedTarballIsNotRefetched(t *testing.T) {
	e := newEnv(t)
	data, digest := fixture(t)
	require.NoError(t, e.fs.WriteFile(tarballPath, data, 0644))
	e.scriptHappyBuild(t)

	b := e.builder(t, digest, func(context.Context, string) ([]byte, error) {
		t.Fatal("fetch must not run for a verified cached tarball")
		return nil, nil
	})
	b.Reconcile(context.Background(), e.rep)

	assert.False(t, e.rep.HasErrors())
}

func TestCorruptCacheIsDeletedAndRefetched(t *testing.T) {
	e := newEnv(t)
	data, digest := fixture(t)
	require.NoError(t, e.fs.WriteFile(tarballPath, []byte("truncated garbage"), 0644))
	e.scriptHappyBuild(t)

	fetched := 0
	b := e.builder(t, digest, func(context.Context, string) ([]byte, error) {
		fetched++
		return data, nil
	})
	b.Reconcile(context.Background(), e.rep)

	assert.Equal(t, 1, fetched)
	assert.False(t, e.rep.HasErrors())

	cached, err := e.fs.ReadFile(tarballPath)
	require.NoError(t, err)
	assert.Equal(t, data, cached)
}

func TestSecondChecksumFailureAbortsWithoutExtraction(t *testing.T) {
	e := newEnv(t)
	_, digest := fixture(t)
	e.runner.Fail(gpxinfo+" -version", "missing")

	b := e.builder(t, digest, func(context.Context, string) ([]byte, error) {
		return []byte("still the wrong bytes"), nil
	})
	b.Reconcile(context.Background(), e.rep)

	require.True(t, e.rep.HasErrors())
	assert.True(t, errors.IsErrorCode(e.rep.Entries()[0].Err, errors.ErrChecksum))
	// The unverified file is gone and extraction never ran.
	_, statErr := e.fs.Stat(tarballPath)
	assert.Error(t, statErr)
	assert.Equal(t, 0, e.runner.CallCount("./configure"))
}

func TestDownloadFailureRunsConnectivityProbe(t *testing.T) {
	e := newEnv(t)
	e.runner.Fail(gpxinfo+" -version", "missing")

	b := e.builder(t, "deadbeef", func(context.Context, string) ([]byte, error) {
		return nil, fmt.Errorf("connection reset by peer")
	})
	b.Reconcile(context.Background(), e.rep)

	require.True(t, e.rep.HasErrors())
	assert.True(t, errors.IsErrorCode(e.rep.Entries()[0].Err, errors.ErrDownload))
	assert.Equal(t, 1, e.runner.CallCount("ping -c 1 downloads.trailtools.org"))
}

func TestBuildFailureIsRecordedAndNothingPublished(t *testing.T) {
	e := newEnv(t)
	data, digest := fixture(t)
	e.runner.Fail(gpxinfo+" -version", "missing")
	e.runner.Fail("make", "gpxinfo.c:42: undefined reference")

	b := e.builder(t, digest, func(context.Context, string) ([]byte, error) {
		return data, nil
	})
	b.Reconcile(context.Background(), e.rep)

	require.True(t, e.rep.HasErrors())
	assert.True(t, errors.IsErrorCode(e.rep.Entries()[0].Err, errors.ErrBuild))
	f := farm.New(e.ws.BinDir())
	assert.False(t, f.HasLink(e.fs, "gpxinfo"))
}

func TestSmokeCheckFailureIsRecorded(t *testing.T) {
	e := newEnv(t)
	data, digest := fixture(t)
	e.scriptHappyBuild(t)
	e.runner.Script(smokeArgv, command.Result{Stdout: "not xml at all"})

	b := e.builder(t, digest, func(context.Context, string) ([]byte, error) {
		return data, nil
	})
	b.Reconcile(context.Background(), e.rep)

	require.True(t, e.rep.HasErrors())
	assert.True(t, errors.IsErrorCode(e.rep.Entries()[0].Err, errors.ErrSmoke))
}
