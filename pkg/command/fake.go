package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner is a scripted Runner for tests. Responses are registered
// against the space-joined argv ("git clone <url> <path>"); unscripted
// commands succeed with empty output so tests only script what they assert.
type FakeRunner struct {
	mu sync.Mutex

	responses map[string]Result
	commands  map[string]string // LookPath results

	// Calls records every invocation in order, space-joined.
	Calls []string
}

// NewFakeRunner returns an empty fake: every command succeeds, no command
// resolves on PATH until registered with Install.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses: make(map[string]Result),
		commands:  make(map[string]string),
	}
}

// Script registers the result returned for the exact argv.
func (f *FakeRunner) Script(argv string, result Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[argv] = result
}

// Fail is shorthand for scripting a non-zero exit with the given stderr.
func (f *FakeRunner) Fail(argv string, stderr string) {
	f.Script(argv, Result{
		ExitCode: 1,
		Stderr:   stderr,
		Err:      fmt.Errorf("exit status 1"),
	})
}

// Install makes name resolvable through LookPath at the given path.
func (f *FakeRunner) Install(name, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands[name] = path
}

// Uninstall removes name from the fake PATH.
func (f *FakeRunner) Uninstall(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.commands, name)
}

func (f *FakeRunner) Run(_ context.Context, c Command) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	argv := strings.Join(append([]string{c.Name}, c.Args...), " ")
	f.Calls = append(f.Calls, argv)

	if result, ok := f.responses[argv]; ok {
		return result
	}
	return Result{ExitCode: 0}
}

func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if path, ok := f.commands[name]; ok {
		return path, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}

// CallCount returns how many recorded calls start with the given prefix.
func (f *FakeRunner) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, call := range f.Calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}
