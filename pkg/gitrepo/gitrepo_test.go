package gitrepo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/filesystem"
	"github.com/trailstrap/trailstrap/pkg/gitrepo"
	"github.com/trailstrap/trailstrap/pkg/types"
)

var rbenvTarget = types.RepoTarget{
	Name:   "rbenv",
	Path:   "/home/user/trailtools/.lib/rbenv",
	Remote: "https://github.com/rbenv/rbenv.git",
}

func TestAbsentTargetIsCloned(t *testing.T) {
	fs := filesystem.NewMemory()
	runner := command.NewFakeRunner()

	outcome, err := gitrepo.New(fs, runner).Reconcile(context.Background(), rbenvTarget)
	require.NoError(t, err)

	assert.Equal(t, gitrepo.OutcomeCloned, outcome)
	assert.Equal(t, 1, runner.CallCount("git clone https://github.com/rbenv/rbenv.git"))
	assert.Equal(t, 0, runner.CallCount("git -C"))
}

func TestWorkingCopyIsPulledNotRecloned(t *testing.T) {
	fs := filesystem.NewMemory()
	require.NoError(t, fs.MkdirAll(rbenvTarget.Path+"/.git", 0755))
	runner := command.NewFakeRunner()

	outcome, err := gitrepo.New(fs, runner).Reconcile(context.Background(), rbenvTarget)
	require.NoError(t, err)

	assert.Equal(t, gitrepo.OutcomeUpdated, outcome)
	assert.Equal(t, 0, runner.CallCount("git clone"))
	assert.Equal(t, 1, runner.CallCount("git -C /home/user/trailtools/.lib/rbenv pull"))
}

func TestForeignDirectoryIsReplaced(t *testing.T) {
	fs := filesystem.NewMemory()
	// Same-named directory, no version-control metadata.
	require.NoError(t, fs.MkdirAll(rbenvTarget.Path+"/bin", 0755))
	runner := command.NewFakeRunner()

	outcome, err := gitrepo.New(fs, runner).Reconcile(context.Background(), rbenvTarget)
	require.NoError(t, err)

	assert.Equal(t, gitrepo.OutcomeReplaced, outcome)
	assert.Equal(t, 1, runner.CallCount("git clone"))
	// The foreign contents are gone.
	_, statErr := fs.Stat(rbenvTarget.Path + "/bin")
	assert.Error(t, statErr)
}

func TestCloneFailureLeavesTargetAbsent(t *testing.T) {
	fs := filesystem.NewMemory()
	runner := command.NewFakeRunner()
	runner.Fail("git clone https://github.com/rbenv/rbenv.git /home/user/trailtools/.lib/rbenv",
		"fatal: unable to access remote")

	outcome, err := gitrepo.New(fs, runner).Reconcile(context.Background(), rbenvTarget)

	assert.Equal(t, gitrepo.OutcomeFailed, outcome)
	assert.True(t, errors.IsErrorCode(err, errors.ErrClone))
	assert.False(t, errors.IsFatal(err))
}

func TestPullFailureKeepsInstalledState(t *testing.T) {
	fs := filesystem.NewMemory()
	require.NoError(t, fs.MkdirAll(rbenvTarget.Path+"/.git", 0755))
	runner := command.NewFakeRunner()
	runner.Fail("git -C /home/user/trailtools/.lib/rbenv pull --ff-only",
		"fatal: could not resolve host")

	outcome, err := gitrepo.New(fs, runner).Reconcile(context.Background(), rbenvTarget)

	// The update failed but the target remains installed and usable.
	assert.Equal(t, gitrepo.OutcomeUpdated, outcome)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPull))
}
