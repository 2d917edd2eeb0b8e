package workspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailstrap/trailstrap/pkg/checks"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/filesystem"
	"github.com/trailstrap/trailstrap/pkg/workspace"
)

func testTree() config.TreeConfig {
	return config.TreeConfig{Base: "~/trailtools", Lib: ".lib", Bin: ".bin"}
}

func TestExpandHome(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"tilde_only", "~", "/home/user"},
		{"tilde_slash", "~/trailtools", "/home/user/trailtools"},
		{"absolute", "/opt/trailtools", "/opt/trailtools"},
		{"tilde_in_middle", "/data/~/x", "/data/~/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, workspace.ExpandHome(tt.path, "/home/user"))
		})
	}
}

func TestPaths(t *testing.T) {
	w := workspace.New(testTree(), "/home/user")

	assert.Equal(t, "/home/user/trailtools", w.Base())
	assert.Equal(t, "/home/user/trailtools/.lib", w.LibDir())
	assert.Equal(t, "/home/user/trailtools/.bin", w.BinDir())
	assert.Equal(t, "/home/user/trailtools/.lib/rbenv", w.RbenvDir())
	assert.Equal(t, "/home/user/trailtools/.lib/rbenv/plugins/ruby-build", w.RubyBuildDir())
	assert.Equal(t, "/home/user/trailtools/.lib/tracktools", w.ToolsDir())
	assert.Equal(t, "/home/user/trailtools/.lib/gpxlib/build", w.GPXLibBuildDir())
	assert.Equal(t, "/home/user/trailtools/.lib/gpxlib/dist", w.GPXLibPrefix())
	assert.Equal(t, "/home/user/trailtools/.lib/gpxlib/gpxlib-2.10.31.tar.xz",
		w.GPXLibTarball("gpxlib-2.10.31.tar.xz"))
}

func TestEnsureCreatesTree(t *testing.T) {
	fs := filesystem.NewMemory()
	w := workspace.New(testTree(), "/home/user")

	require.NoError(t, w.Ensure(fs))

	assert.True(t, checks.PathExists(fs, "/home/user/trailtools"))
	assert.True(t, checks.PathExists(fs, "/home/user/trailtools/.lib"))
	assert.True(t, checks.PathExists(fs, "/home/user/trailtools/.bin"))

	// Second run is a no-op, not an error.
	require.NoError(t, w.Ensure(fs))
}
