// File: internal/pipeline/pipeline.go
// Brief: End-to-end run: preflight, discovery, provisioning, verification,
// selection and launch.

// Package pipeline sequences the stackup stages over a single service graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/stackup/internal/config"
	"github.com/example/stackup/internal/descriptor"
	"github.com/example/stackup/internal/graph"
	"github.com/example/stackup/internal/launch"
	"github.com/example/stackup/internal/manifest"
	"github.com/example/stackup/internal/provision"
	"github.com/example/stackup/internal/runner"
	"github.com/example/stackup/internal/selection"
	"github.com/example/stackup/internal/ui"
	"github.com/example/stackup/internal/verify"
)

// ErrComposeMissing is returned when the compose CLI is not on PATH.
var ErrComposeMissing = errors.New("compose CLI not found")

// EngineDialer opens the optional container status source.
type EngineDialer func(ctx context.Context) (launch.StatusSource, error)

type Pipeline struct {
	Options  *config.Options
	Runner   runner.Runner
	Prompter selection.Prompter
	// DialEngine is optional; when it fails the run continues without the
	// engine container table.
	DialEngine EngineDialer
	// LookPath defaults to runner.LookPath.
	LookPath func(string) (string, error)
	Out      io.Writer
	Log      logr.Logger

	engine launch.StatusSource
}

// Run executes every stage in order and stops at the first fatal error.
func (p *Pipeline) Run(ctx context.Context) error {
	p.Log = p.Log.WithValues("run", uuid.NewString())
	if err := p.Preflight(ctx); err != nil {
		return err
	}
	defer p.closeEngine()

	g, err := p.Load(ctx)
	if err != nil {
		return err
	}
	if _, err := p.Provision(ctx, g); err != nil {
		return err
	}
	p.Verify(g)

	selected, err := p.Select(ctx, g)
	if err != nil {
		return err
	}
	return p.Launch(ctx, g, selected)
}

// Preflight checks the required compose CLI and, concurrently, dials the
// optional engine. An engine failure is only reported as a warning.
// Interactive selection without a prompter fails here, before any host
// changes are made.
func (p *Pipeline) Preflight(ctx context.Context) error {
	argv, err := p.Options.ComposeArgv()
	if err != nil {
		return err
	}
	mode, err := selection.ParseMode(p.Options.Mode)
	if err != nil {
		return err
	}
	if mode == selection.ModeInteractive && p.Prompter == nil {
		return fmt.Errorf("%w: pass --mode auto or --services", selection.ErrNoPrompter)
	}
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = runner.LookPath
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := lookPath(argv[0]); err != nil {
			return fmt.Errorf("%w: %s (install it or set --compose-cmd)", ErrComposeMissing, argv[0])
		}
		return nil
	})
	var eng launch.StatusSource
	if p.DialEngine != nil {
		g.Go(func() error {
			var err error
			if eng, err = p.DialEngine(gctx); err != nil {
				p.Log.Info("docker engine unavailable, container details will be limited", "err", err.Error())
				ui.Warn(p.out(), "Docker engine unavailable; container details will be limited:", err.Error())
				eng = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if c, ok := eng.(io.Closer); ok {
			_ = c.Close()
		}
		return err
	}
	p.engine = eng
	return nil
}

// Load reads the manifest and descriptors and joins them into a graph.
func (p *Pipeline) Load(ctx context.Context) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := manifest.Load(p.Options.ComposePath())
	if err != nil {
		return nil, err
	}
	p.Log.V(1).Info("manifest loaded", "path", m.Path, "services", len(m.Services))

	descs, err := descriptor.Load(p.Options.Root, p.Log)
	if err != nil {
		return nil, err
	}
	p.Log.Info("services discovered", "count", descs.Len())
	if problems := descs.Problems(); len(problems) > 0 {
		ui.Warn(p.out(), "Skipped or incomplete service descriptors:", problems...)
	}

	g := graph.New(descs, m)
	unknown := g.UnknownDependencies()
	services := make([]string, 0, len(unknown))
	for svc := range unknown {
		services = append(services, svc)
	}
	sort.Strings(services)
	for _, svc := range services {
		p.Log.V(1).Info("dependencies without descriptor", "service", svc, "deps", strings.Join(unknown[svc], ","))
	}
	var cycles []string
	for _, cycle := range g.Cycles() {
		p.Log.Info("dependency cycle", "services", strings.Join(cycle, " -> "))
		cycles = append(cycles, strings.Join(cycle, " -> "))
	}
	if len(cycles) > 0 {
		ui.Warn(p.out(), "Dependency cycles detected:", cycles...)
	}
	return g, nil
}

func (p *Pipeline) Provision(ctx context.Context, g *graph.Graph) (*provision.Report, error) {
	out := p.out()
	ui.Section(out, "Provisioning host resources")
	prov := provision.New(p.Runner, p.Log, provision.Options{
		SourceRoot: p.Options.Root,
		BaseDir:    p.Options.DataDir,
		Shell:      p.Options.Shell,
	})
	rep, err := prov.Run(ctx, g)
	if rep != nil {
		ui.PrintTable(out, []string{"resource", "count"}, [][]string{
			{"services provisioned", fmt.Sprint(len(rep.Provisioned))},
			{"groups created", fmt.Sprint(len(rep.GroupsCreated))},
			{"users created", fmt.Sprint(len(rep.UsersCreated))},
			{"data directories", fmt.Sprint(len(rep.DataDirs))},
			{"config files copied", fmt.Sprint(len(rep.FilesCopied))},
			{"config files missing", fmt.Sprint(len(rep.FilesMissing))},
		})
		if len(rep.FilesMissing) > 0 {
			ui.Warn(out, "Config file sources not found (skipped):", rep.FilesMissing...)
		}
	}
	return rep, err
}

// Verify reports missing build recipes and binaries. It never fails.
func (p *Pipeline) Verify(g *graph.Graph) verify.Report {
	out := p.out()
	ui.Section(out, "Verifying build inputs")
	rep := verify.Verify(g, p.Options.Root)
	_ = verify.WriteReport(out, rep, verify.OutputTable)
	return rep
}

func (p *Pipeline) Select(ctx context.Context, g *graph.Graph) ([]string, error) {
	mode, err := selection.ParseMode(p.Options.Mode)
	if err != nil {
		return nil, err
	}
	s := &selection.Strategy{
		Graph:       g,
		SourceRoot:  p.Options.Root,
		Prompter:    p.Prompter,
		IncludeDeps: p.Options.IncludeDeps,
	}
	return s.Select(ctx, selection.Request{Mode: mode, Services: p.Options.Services})
}

func (p *Pipeline) Launch(ctx context.Context, g *graph.Graph, selected []string) error {
	argv, err := p.Options.ComposeArgv()
	if err != nil {
		return err
	}
	l := &launch.Launcher{
		Runner:        p.Runner,
		Compose:       argv,
		ProjectDir:    p.Options.Root,
		ComposeFile:   p.Options.ComposeFile,
		RemoveVolumes: !p.Options.KeepVolumes,
		Engine:        p.engine,
		Out:           p.out(),
		Log:           p.Log,
	}
	return l.Launch(ctx, g, selected)
}

func (p *Pipeline) closeEngine() {
	if c, ok := p.engine.(io.Closer); ok {
		_ = c.Close()
	}
	p.engine = nil
}

func (p *Pipeline) out() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}
