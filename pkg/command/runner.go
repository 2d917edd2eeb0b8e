// Package command provides typed external command execution: argument
// vectors in, structured exit-status plus captured output back. Every
// shell-out in trailstrap goes through the Runner interface so reconcilers
// can be tested against a scripted fake.
package command

import (
	"context"
	"fmt"
)

// Command describes a single external invocation. Args is a plain argv
// vector; nothing is ever passed through a shell.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory. Empty means the process default; no
	// reconciler relies on the process CWD, so it is almost always set.
	Dir string

	// Env entries are appended to the current environment as KEY=VALUE.
	Env map[string]string

	// Stream mirrors stdout/stderr to the user while the command runs, for
	// long operations like interpreter builds and native compiles. Output
	// is still captured in the Result.
	Stream bool
}

// Result is the structured outcome of a command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string

	// Err is non-nil when the command could not be started or exited
	// non-zero. ExitCode is -1 when the process never ran.
	Err error
}

// Success reports whether the command ran and exited zero.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Failure returns the error behind an unsuccessful result, synthesizing
// one from the exit code when the runner reported none. Nil for a
// successful result.
func (r Result) Failure() error {
	if r.Err != nil {
		return r.Err
	}
	if r.ExitCode != 0 {
		return fmt.Errorf("exit status %d", r.ExitCode)
	}
	return nil
}

// Runner executes commands and resolves names on PATH.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result

	// LookPath resolves name on PATH, returning the absolute path of the
	// executable or an error when it is not resolvable.
	LookPath(name string) (string, error)
}
