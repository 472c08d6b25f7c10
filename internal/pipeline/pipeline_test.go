package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/go-logr/logr"

	"github.com/example/stackup/internal/config"
	"github.com/example/stackup/internal/descriptor"
	"github.com/example/stackup/internal/engine"
	"github.com/example/stackup/internal/launch"
	"github.com/example/stackup/internal/manifest"
	"github.com/example/stackup/internal/provision"
	"github.com/example/stackup/internal/runner"
	"github.com/example/stackup/internal/runner/runnertest"
	"github.com/example/stackup/internal/selection"
)

const composeDoc = `services:
  web:
    build: ./web
    ports: ["8080:80"]
  api:
    image: busybox
    depends_on: [web]
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func stackDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, manifest.DefaultFile), composeDoc)
	writeFile(t, filepath.Join(root, "web", descriptor.FileName), `{
  "username": "web",
  "uid": 1201,
  "groupname": "web",
  "gid": 1201,
  "description": "Frontend",
  "data_dir": "/srv/web",
  "dockerfile": "Dockerfile",
  "config_files": ["app.conf.example"]
}`)
	writeFile(t, filepath.Join(root, "web", "Dockerfile"), "FROM nginx:alpine\n")
	writeFile(t, filepath.Join(root, "web", "app.conf.example"), "listen 80\n")
	writeFile(t, filepath.Join(root, "api", descriptor.FileName), `{"description": "API", "dockerfile": "Dockerfile"}`)
	return root
}

// host answers lookups as absent and everything else as success.
func host(cmd runner.Command) (string, int) {
	switch cmd.Name {
	case "getent", "id":
		return "", 2
	}
	return "", 0
}

func newPipeline(t *testing.T, root string, mutate func(o *config.Options)) (*Pipeline, *runnertest.Recorder, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	opts := config.NewOptions()
	opts.Root = root
	opts.DataDir = "/srv"
	if mutate != nil {
		mutate(opts)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	rec := &runnertest.Recorder{Handler: host}
	var out bytes.Buffer
	p := &Pipeline{
		Options:  opts,
		Runner:   rec,
		LookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		Out:      &out,
		Log:      logr.Discard(),
	}
	return p, rec, &out
}

func indexOf(lines []string, prefix string) int {
	for i, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return i
		}
	}
	return -1
}

func run(t *testing.T, p *Pipeline) {
	t.Helper()
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunExplicitWithDependencies(t *testing.T) {
	root := stackDir(t)
	p, rec, out := newPipeline(t, root, func(o *config.Options) {
		o.Services = []string{"api"}
		o.IncludeDeps = true
	})
	run(t, p)

	lines := rec.Lines()
	for _, want := range []string{
		"sudo mkdir -p /srv",
		"sudo groupadd -g 1201 web",
		"sudo useradd -r -u 1201 -g web -c Frontend -s /bin/false web",
		"sudo cp " + filepath.Join(root, "web", "app.conf.example") + " /srv/web/app.conf",
		"docker-compose down -v",
		"docker-compose build web api",
		"docker-compose up -d web api",
		"docker-compose ps",
	} {
		if indexOf(lines, want) < 0 {
			t.Fatalf("expected %q in commands: %q", want, lines)
		}
	}
	if indexOf(lines, "sudo useradd") > indexOf(lines, "docker-compose down") {
		t.Fatalf("provisioning must precede compose: %q", lines)
	}
	if !strings.Contains(out.String(), "api: API") {
		t.Fatalf("expected service summary in output:\n%s", out.String())
	}
}

func TestRunServicesOverrideAutoMode(t *testing.T) {
	p, rec, _ := newPipeline(t, stackDir(t), func(o *config.Options) {
		o.Mode = "auto"
		o.Services = []string{"web"}
	})
	run(t, p)
	if indexOf(rec.Lines(), "docker-compose up -d web") < 0 || rec.Count("docker-compose up -d web api") != 0 {
		t.Fatalf("expected only web to start: %q", rec.Lines())
	}
}

func TestRunAutoMode(t *testing.T) {
	root := stackDir(t)
	p, rec, _ := newPipeline(t, root, func(o *config.Options) { o.Mode = "auto"; o.KeepVolumes = true })
	run(t, p)
	lines := rec.Lines()
	for _, want := range []string{"docker-compose build web", "docker-compose down"} {
		found := false
		for _, l := range lines {
			found = found || l == want
		}
		if !found {
			t.Fatalf("expected %q in commands: %q", want, lines)
		}
	}
}

func TestRunInteractiveUsesPrompter(t *testing.T) {
	root := stackDir(t)
	p, rec, _ := newPipeline(t, root, nil)
	p.Prompter = scripted{pick: 2}
	run(t, p)
	if indexOf(rec.Lines(), "docker-compose up -d api web") < 0 {
		t.Fatalf("expected all services to start: %q", rec.Lines())
	}
}

type scripted struct{ pick int }

// Items are api, web, then the meta options; pick 2 is "all services".
func (s scripted) Select(string, []string) (int, error) { return s.pick, nil }
func (scripted) Confirm(string, bool) (bool, error)     { return true, nil }

func TestRunInteractiveWithoutTerminalFailsBeforeProvisioning(t *testing.T) {
	p, rec, _ := newPipeline(t, stackDir(t), nil)
	err := p.Run(context.Background())
	if !errors.Is(err, selection.ErrNoPrompter) {
		t.Fatalf("expected ErrNoPrompter, got %v", err)
	}
	if got := rec.Lines(); len(got) != 0 {
		t.Fatalf("no commands may run before the prompter check: %q", got)
	}
}

func TestRunFailsWithoutComposeCLI(t *testing.T) {
	p, rec, _ := newPipeline(t, stackDir(t), func(o *config.Options) { o.Mode = "auto" })
	p.LookPath = func(string) (string, error) { return "", errors.New("not found") }
	if err := p.Run(context.Background()); !errors.Is(err, ErrComposeMissing) {
		t.Fatalf("expected ErrComposeMissing, got %v", err)
	}
	if got := rec.Lines(); len(got) != 0 {
		t.Fatalf("expected no commands, got %q", got)
	}
}

func TestRunContinuesWithoutEngine(t *testing.T) {
	p, _, out := newPipeline(t, stackDir(t), func(o *config.Options) { o.Mode = "auto" })
	p.DialEngine = func(context.Context) (launch.StatusSource, error) { return nil, errors.New("no daemon") }
	run(t, p)
	if !strings.Contains(out.String(), "Docker engine unavailable") || !strings.Contains(out.String(), "no daemon") {
		t.Fatalf("expected engine warning on the console:\n%s", out.String())
	}
}

func TestRunEchoesSkippedInputsToConsole(t *testing.T) {
	root := stackDir(t)
	writeFile(t, filepath.Join(root, "broken", descriptor.FileName), `{"uid": "nope"`)
	src := filepath.Join(root, "web", "app.conf.example")
	if err := os.Remove(src); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Logging is discarded; the warnings must still reach the operator.
	p, _, out := newPipeline(t, root, func(o *config.Options) { o.Mode = "auto"; o.LogLevel = "warn" })
	run(t, p)
	text := out.String()
	for _, want := range []string{
		"Skipped or incomplete service descriptors:",
		"  - " + filepath.Join(root, "broken", descriptor.FileName) + ": ",
		"Config file sources not found (skipped):",
		"  - " + src,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

type staticEngine struct{ closed bool }

func (s *staticEngine) Containers(context.Context, string) ([]engine.Container, error) {
	return []engine.Container{{Service: "web", Name: "stack-web-1", State: "running"}}, nil
}

func (s *staticEngine) Close() error { s.closed = true; return nil }

func TestRunUsesAndClosesEngine(t *testing.T) {
	eng := &staticEngine{}
	p, _, out := newPipeline(t, stackDir(t), func(o *config.Options) { o.Mode = "auto" })
	p.DialEngine = func(context.Context) (launch.StatusSource, error) { return eng, nil }
	run(t, p)
	if !strings.Contains(out.String(), "stack-web-1") {
		t.Fatalf("expected engine container in output:\n%s", out.String())
	}
	if !eng.closed {
		t.Fatalf("engine was not closed")
	}
}

func TestRunFailsWithoutDescriptors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, manifest.DefaultFile), composeDoc)
	p, _, _ := newPipeline(t, root, func(o *config.Options) { o.Mode = "auto" })
	if err := p.Run(context.Background()); !errors.Is(err, descriptor.ErrNoDescriptors) {
		t.Fatalf("expected ErrNoDescriptors, got %v", err)
	}
}

func TestRunFailsWithoutManifest(t *testing.T) {
	root := t.TempDir()
	p, _, _ := newPipeline(t, root, func(o *config.Options) { o.Mode = "auto" })
	if err := p.Run(context.Background()); !errors.Is(err, manifest.ErrManifestNotFound) {
		t.Fatalf("expected ErrManifestNotFound, got %v", err)
	}
}

func TestRunStopsWhenProvisioningFails(t *testing.T) {
	p, rec, _ := newPipeline(t, stackDir(t), func(o *config.Options) { o.Mode = "auto" })
	rec.Handler = func(cmd runner.Command) (string, int) {
		if cmd.Name == "useradd" {
			return "useradd: permission denied", 1
		}
		return host(cmd)
	}
	err := p.Run(context.Background())
	var stepErr *provision.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Service != "web" {
		t.Fatalf("failed service = %q, want web", stepErr.Service)
	}
	if n := rec.Count("docker-compose"); n != 0 {
		t.Fatalf("compose must not run after a provisioning failure, saw %d", n)
	}
}

func TestRunEmptyAutoSelection(t *testing.T) {
	root := stackDir(t)
	if err := os.Remove(filepath.Join(root, "web", "Dockerfile")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	p, rec, _ := newPipeline(t, root, func(o *config.Options) { o.Mode = "auto" })
	if err := p.Run(context.Background()); !errors.Is(err, selection.ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	if n := rec.Count("docker-compose"); n != 0 {
		t.Fatalf("expected no compose commands, saw %d", n)
	}
}

func TestLoadBuildsGraph(t *testing.T) {
	p, _, _ := newPipeline(t, stackDir(t), nil)
	g, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	names := g.Names()
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"api", "web"}) {
		t.Fatalf("names = %v", names)
	}
	if got := g.Resolve("api"); !reflect.DeepEqual(got, []string{"web", "api"}) {
		t.Fatalf("Resolve(api) = %v", got)
	}
}
