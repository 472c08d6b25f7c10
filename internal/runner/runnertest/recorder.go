// Package runnertest provides a recording runner.Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/example/stackup/internal/runner"
)

// Handler answers a recorded command. Returning a non-zero exit code makes
// Run fail with a *runner.CommandError.
type Handler func(cmd runner.Command) (output string, exitCode int)

// Recorder records every command it is asked to run.
type Recorder struct {
	mu       sync.Mutex
	Handler  Handler
	Commands []runner.Command
}

func (r *Recorder) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	r.mu.Lock()
	r.Commands = append(r.Commands, cmd)
	h := r.Handler
	r.mu.Unlock()

	if h == nil {
		return runner.Result{}, nil
	}
	out, code := h(cmd)
	res := runner.Result{Output: out, ExitCode: code}
	if code != 0 {
		return res, &runner.CommandError{Command: cmd, ExitCode: code, Output: out, Err: fmt.Errorf("exit status %d", code)}
	}
	return res, nil
}

// Lines returns recorded commands rendered as strings, with a "sudo " marker
// on privileged ones.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		line := c.String()
		if c.Privileged {
			line = "sudo " + line
		}
		out = append(out, line)
	}
	return out
}

// Count returns how many recorded commands start with prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// Reset drops recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.Commands = nil
	r.mu.Unlock()
}
