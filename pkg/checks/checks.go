// Package checks holds the read-only capability predicates every
// reconciler composes to decide whether an action is needed. None of them
// has side effects.
package checks

import (
	"path/filepath"
	"strings"

	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/types"
)

// CommandExists reports whether name resolves on PATH.
func CommandExists(runner command.Runner, name string) bool {
	_, err := runner.LookPath(name)
	return err == nil
}

// PathExists reports whether path exists (file, directory or symlink).
func PathExists(fs types.FS, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// StringContains reports whether haystack contains needle.
func StringContains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

// IsGitWorkingCopy reports whether path is a genuine git checkout: the
// path exists and holds a .git directory. A same-named plain directory is
// not a working copy; callers treat that as a foreign install that needs
// removal and re-acquisition.
func IsGitWorkingCopy(fs types.FS, path string) bool {
	if !PathExists(fs, path) {
		return false
	}
	info, err := fs.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}
