// File: internal/launch/launch.go
// Brief: Compose teardown, build and start of the selected services.

package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/example/stackup/internal/engine"
	"github.com/example/stackup/internal/graph"
	"github.com/example/stackup/internal/manifest"
	"github.com/example/stackup/internal/runner"
	"github.com/example/stackup/internal/ui"
	"github.com/example/stackup/pkg/compose"
)

// DefaultCompose is the orchestration CLI used when none is configured.
var DefaultCompose = []string{"docker-compose"}

var ErrNothingToLaunch = errors.New("no services to launch")

// StatusSource reports container state for a compose project.
type StatusSource interface {
	Containers(ctx context.Context, project string) ([]engine.Container, error)
}

type Launcher struct {
	Runner runner.Runner
	// Compose is the CLI prefix, e.g. ["docker", "compose"].
	Compose     []string
	ProjectDir  string
	ComposeFile string
	ProjectName string
	// RemoveVolumes adds -v to the teardown.
	RemoveVolumes bool
	// Engine is optional.
	Engine StatusSource
	Out    io.Writer
	Log    logr.Logger
}

// Launch tears the stack down, then builds and starts selected. Teardown and
// status failures are logged; build and start failures are returned.
func (l *Launcher) Launch(ctx context.Context, g *graph.Graph, selected []string) error {
	if len(selected) == 0 {
		return ErrNothingToLaunch
	}
	out := l.out()
	project := l.checkProject(out, selected)

	fmt.Fprintf(out, "Services to build: %v\n", selected)

	down := []string{"down"}
	if l.RemoveVolumes {
		down = append(down, "-v")
	}
	if _, err := l.Runner.Run(ctx, l.compose(down...)); err != nil {
		l.Log.Info("teardown failed, continuing", "err", err.Error())
	}

	ui.Section(out, "Building images")
	if _, err := l.Runner.Run(ctx, l.compose(append([]string{"build"}, selected...)...)); err != nil {
		return fmt.Errorf("build: %w", err)
	}

	ui.Section(out, "Starting services")
	if _, err := l.Runner.Run(ctx, l.compose(append([]string{"up", "-d"}, selected...)...)); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	ui.Section(out, "Container status")
	if _, err := l.Runner.Run(ctx, l.compose("ps")); err != nil {
		l.Log.Info("status query failed", "err", err.Error())
	}
	l.engineStatus(ctx, out, project)

	ui.Section(out, "Started services")
	for _, name := range selected {
		var description string
		var ports []string
		if d, ok := g.Descriptor(name); ok {
			description = d.Description
			ports = d.Ports
		}
		if len(ports) == 0 {
			if svc, ok := g.ManifestService(name); ok {
				ports = svc.Ports
			}
		}
		ui.ServiceSummary(out, name, description, ports)
	}
	fmt.Fprintln(out)
	ui.Success(out, "Stack is up.")
	fmt.Fprintf(out, "Follow logs with: %s [service]\n", l.compose("logs", "-f"))
	return nil
}

// checkProject loads the compose project and warns about selected services
// it does not define. It returns the project name used for status queries.
func (l *Launcher) checkProject(out io.Writer, selected []string) string {
	name := l.ProjectName
	p, err := compose.LoadProject([]string{l.composeFile()}, l.ProjectName)
	if err != nil {
		l.Log.V(1).Info("compose project check skipped", "err", err.Error())
		if name == "" {
			name = compose.ProjectName(l.projectDir())
		}
		return name
	}
	if missing := compose.MissingServices(p, selected); len(missing) > 0 {
		ui.Warn(out, "Selected services not defined in the compose project:", missing...)
	}
	buildable := map[string]struct{}{}
	for _, name := range compose.BuildableServices(p) {
		buildable[name] = struct{}{}
	}
	for _, name := range selected {
		if _, ok := buildable[name]; !ok {
			l.Log.V(1).Info("service has no build section, compose will use its image", "service", name)
		}
	}
	return p.Name
}

func (l *Launcher) engineStatus(ctx context.Context, out io.Writer, project string) {
	if l.Engine == nil {
		return
	}
	containers, err := l.Engine.Containers(ctx, project)
	if err != nil {
		l.Log.Info("engine status unavailable", "err", err.Error())
		return
	}
	if len(containers) == 0 {
		return
	}
	fmt.Fprintln(out)
	ui.PrintTable(out, []string{"service", "container", "state", "status"}, engine.Rows(containers))
}

func (l *Launcher) compose(args ...string) runner.Command {
	prefix := l.Compose
	if len(prefix) == 0 {
		prefix = DefaultCompose
	}
	var full []string
	full = append(full, prefix[1:]...)
	if l.ComposeFile != "" {
		full = append(full, "-f", l.ComposeFile)
	}
	full = append(full, args...)
	return runner.Command{Name: prefix[0], Args: full, Dir: l.ProjectDir, Stream: true}
}

func (l *Launcher) composeFile() string {
	if l.ComposeFile == "" {
		return filepath.Join(l.projectDir(), manifest.DefaultFile)
	}
	if filepath.IsAbs(l.ComposeFile) {
		return l.ComposeFile
	}
	return filepath.Join(l.projectDir(), l.ComposeFile)
}

func (l *Launcher) projectDir() string {
	if l.ProjectDir != "" {
		return l.ProjectDir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func (l *Launcher) out() io.Writer {
	if l.Out == nil {
		return io.Discard
	}
	return l.Out
}
