package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/trailstrap/trailstrap/pkg/logging"
)

// execRunner runs commands with os/exec.
type execRunner struct {
	logger zerolog.Logger
}

// NewExecRunner returns the Runner used in production.
func NewExecRunner() Runner {
	return &execRunner{
		logger: logging.GetLogger("command"),
	}
}

func (r *execRunner) Run(ctx context.Context, c Command) Result {
	r.logger.Debug().
		Str("command", c.Name).
		Strs("args", c.Args).
		Str("workingDir", c.Dir).
		Msg("Executing command")

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}

	cmd.Env = os.Environ()
	for key, value := range c.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	var stdout, stderr bytes.Buffer
	if c.Stream {
		cmd.Stdout = io.MultiWriter(os.Stdout, &stdout)
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)
		// Interactive tools (sudo password prompts) need the terminal.
		cmd.Stdin = os.Stdin
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()

	result := Result{
		ExitCode: exitCode(cmd, err),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Err:      err,
	}

	if err != nil {
		r.logger.Debug().
			Err(err).
			Str("command", c.Name).
			Strs("args", c.Args).
			Int("exitCode", result.ExitCode).
			Str("stderr", result.Stderr).
			Msg("Command failed")
	}

	return result
}

func (r *execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
