// File: internal/runner/runner.go
// Brief: Narrow command-runner seam for privileged and orchestration commands.

// Package runner executes external commands for the provisioning and launch
// pipeline. Everything that shells out goes through Runner so tests can swap
// in a recording fake.
package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
)

// Command is one external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string

	// Privileged commands run behind the elevation prefix.
	Privileged bool
	// Stream attaches the command to the console instead of capturing output.
	Stream bool
}

// Argv returns the command line without elevation.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return Join(c.Argv())
}

// Result carries captured output (empty for streamed commands).
type Result struct {
	Output   string
	ExitCode int
}

type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// CommandError reports a command that could not start or exited non-zero.
type CommandError struct {
	Command  Command
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Exited reports whether the command ran and returned a non-zero status, as
// opposed to failing to start.
func (e *CommandError) Exited() bool {
	return e.ExitCode > 0
}

// IsExit reports whether err is a CommandError for a command that ran and
// exited non-zero.
func IsExit(err error) bool {
	var ce *CommandError
	return stderrors.As(err, &ce) && ce.Exited()
}

// Exec runs commands on the local host.
type Exec struct {
	// Elevate is prepended to privileged commands, e.g. ["sudo"].
	Elevate []string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Log     logr.Logger
}

func (e *Exec) Run(ctx context.Context, c Command) (Result, error) {
	argv := c.Argv()
	if c.Privileged && len(e.Elevate) > 0 {
		argv = append(append([]string(nil), e.Elevate...), argv...)
	}
	e.Log.V(1).Info("exec", "cmd", Join(argv), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	var buf bytes.Buffer
	if c.Stream {
		cmd.Stdin = orDefault(e.Stdin, os.Stdin)
		cmd.Stdout = orDefaultWriter(e.Stdout, os.Stdout)
		cmd.Stderr = orDefaultWriter(e.Stderr, os.Stderr)
	} else {
		// Keep the terminal on stdin so an elevation prompt can still read a password.
		cmd.Stdin = orDefault(e.Stdin, os.Stdin)
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}
	err := cmd.Run()
	res := Result{Output: buf.String()}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &CommandError{Command: c, ExitCode: res.ExitCode, Output: res.Output, Err: err}
	}
	return res, &CommandError{Command: c, ExitCode: -1, Output: res.Output, Err: errors.Wrap(err, "start")}
}

// ElevationPrefix parses the elevation command line. No prefix is used when
// raw is blank or the process already runs as root.
func ElevationPrefix(raw string, euid int) ([]string, error) {
	if strings.TrimSpace(raw) == "" || euid == 0 {
		return nil, nil
	}
	return SplitCommand(raw)
}

// SplitCommand splits a shell-style command line such as "docker compose".
func SplitCommand(raw string) ([]string, error) {
	args, err := shellwords.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse command %q", raw)
	}
	if len(args) == 0 {
		return nil, errors.Errorf("empty command %q", raw)
	}
	return args, nil
}

// LookPath reports whether name resolves to an executable on PATH.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(err, "%s not found in PATH", name)
	}
	return path, nil
}

// Join renders argv for logs and error messages.
func Join(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\"'$\\") {
			parts[i] = fmt.Sprintf("%q", a)
			continue
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func orDefault(r io.Reader, def io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return def
}

func orDefaultWriter(w io.Writer, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}
