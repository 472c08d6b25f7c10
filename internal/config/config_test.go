// File: internal/config/config_test.go
// Brief: Options defaults, normalization and validation.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts := NewOptions()
	if opts.ComposeCmd != "docker-compose" || opts.Sudo != "sudo" {
		t.Fatalf("unexpected command defaults %+v", opts)
	}
	if opts.DataDir != "/data" || opts.Shell != "/bin/false" {
		t.Fatalf("unexpected provisioning defaults %+v", opts)
	}
	if opts.KeepVolumes {
		t.Fatalf("volumes should be removed by default")
	}
}

func TestBindFlagsParsesShortFlags(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	names := opts.BindFlags(fs)
	if len(names) != 12 {
		t.Fatalf("expected 12 flags, got %d", len(names))
	}
	if err := fs.Parse([]string{"-v", "-m", "auto", "-s", "web,api", "-d"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !opts.Verbose || opts.Mode != "auto" || !opts.IncludeDeps {
		t.Fatalf("flags not applied: %+v", opts)
	}
	if !reflect.DeepEqual(opts.Services, []string{"web", "api"}) {
		t.Fatalf("services = %v", opts.Services)
	}
}

func TestValidateModeDefaults(t *testing.T) {
	opts := NewOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if opts.Mode != "interactive" {
		t.Fatalf("expected interactive mode, got %s", opts.Mode)
	}

	opts = NewOptions()
	opts.Services = []string{" web , ", "api"}
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if opts.Mode != "explicit" {
		t.Fatalf("expected explicit mode, got %s", opts.Mode)
	}
	if !reflect.DeepEqual(opts.Services, []string{"web", "api"}) {
		t.Fatalf("services = %v", opts.Services)
	}
}

func TestValidateServicesOverrideMode(t *testing.T) {
	for _, mode := range []string{"auto", "interactive", "AUTO"} {
		opts := NewOptions()
		opts.Mode = mode
		opts.Services = []string{"web"}
		if err := opts.Validate(); err != nil {
			t.Fatalf("%s: validate: %v", mode, err)
		}
		if opts.Mode != "explicit" {
			t.Fatalf("%s: expected explicit mode, got %s", mode, opts.Mode)
		}
		if !reflect.DeepEqual(opts.Services, []string{"web"}) {
			t.Fatalf("%s: services = %v", mode, opts.Services)
		}
	}

	opts := NewOptions()
	opts.Mode = "batch"
	opts.Services = []string{"web"}
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected unknown mode to be rejected even with services")
	}
}

func TestValidateVerboseForcesDebug(t *testing.T) {
	opts := NewOptions()
	opts.Verbose = true
	opts.LogLevel = "error"
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if opts.LogLevel != "debug" {
		t.Fatalf("expected debug, got %s", opts.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(o *Options){
		"--mode":        func(o *Options) { o.Mode = "batch" },
		"--log-level":   func(o *Options) { o.LogLevel = "trace" },
		"--data-dir":    func(o *Options) { o.DataDir = "data" },
		"--shell":       func(o *Options) { o.Shell = "" },
		"--compose-cmd": func(o *Options) { o.ComposeCmd = "  " },
		"--services":    func(o *Options) { o.Mode = "explicit" },
	}
	for flag, mutate := range cases {
		opts := NewOptions()
		mutate(opts)
		err := opts.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", flag)
		}
		if !strings.Contains(err.Error(), flag) {
			t.Fatalf("%s: error %q does not name the flag", flag, err)
		}
	}
}

func TestValidateResolvesPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	opts := NewOptions()
	opts.Root = "~/stack"
	opts.ComposeFile = "compose.prod.yml"
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if opts.Root != filepath.Join(home, "stack") {
		t.Fatalf("root = %s", opts.Root)
	}
	if got := opts.ComposePath(); got != filepath.Join(home, "stack", "compose.prod.yml") {
		t.Fatalf("compose path = %s", got)
	}

	opts.ComposeFile = ""
	if got := opts.ComposePath(); got != filepath.Join(home, "stack", "docker-compose.yml") {
		t.Fatalf("default compose path = %s", got)
	}
}

func TestComposeArgv(t *testing.T) {
	opts := NewOptions()
	opts.ComposeCmd = `docker compose --ansi "never"`
	argv, err := opts.ComposeArgv()
	if err != nil {
		t.Fatalf("ComposeArgv: %v", err)
	}
	if want := []string{"docker", "compose", "--ansi", "never"}; !reflect.DeepEqual(argv, want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
}
