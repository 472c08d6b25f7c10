// File: cmd/stackup/main_test.go
// Brief: Root command wiring and read-only subcommands.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const composeDoc = `services:
  bitcoin: {}
  lnd:
    depends_on:
      bitcoin:
        condition: service_started
  rtl:
    depends_on: [lnd]
`

func writeStack(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"docker-compose.yml":   composeDoc,
		"bitcoin/service.json": `{"username":"bitcoin","uid":1101,"groupname":"bitcoin","gid":1101,"description":"Bitcoin Core","ports":["8333:8333"]}`,
		"lnd/service.json":     `{"description":"Lightning daemon","dockerfile":"Dockerfile"}`,
		"lnd/Dockerfile":       "FROM scratch\n",
		"rtl/service.yaml":     "description: Web UI\n",
	}
	for rel, body := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STACKUP_CONFIG", cfgPath)

	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDepsPrintsStartOrder(t *testing.T) {
	root := writeStack(t)
	out, err := execute(t, "deps", "rtl", "--root", root)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	if want := "1. bitcoin\n2. lnd\n3. rtl\n"; out != want {
		t.Fatalf("deps output %q, want %q", out, want)
	}
}

func TestDepsDependents(t *testing.T) {
	root := writeStack(t)
	out, err := execute(t, "deps", "--dependents", "bitcoin", "rtl", "--root", root)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	if want := "bitcoin: lnd\nrtl: -\n"; out != want {
		t.Fatalf("deps output %q, want %q", out, want)
	}
}

func TestListShowsServices(t *testing.T) {
	root := writeStack(t)
	out, err := execute(t, "list", "--root", root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"SERVICE", "bitcoin", "Bitcoin Core", "bitcoin:bitcoin", "Lightning daemon", "Web UI"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in list output:\n%s", want, out)
		}
	}
}

func TestVerifyJSON(t *testing.T) {
	root := writeStack(t)
	out, err := execute(t, "verify", "-o", "json", "--root", root)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var rep struct {
		Recipes struct {
			Found int `json:"found"`
			Total int `json:"total"`
		} `json:"recipes"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if rep.Recipes.Found != 1 || rep.Recipes.Total != 1 {
		t.Fatalf("unexpected recipes tally %+v", rep.Recipes)
	}
}

func TestSchemaIsJSON(t *testing.T) {
	out, err := execute(t, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatalf("expected a version string")
	}
}

func TestInvalidModeIsRejected(t *testing.T) {
	root := writeStack(t)
	_, err := execute(t, "list", "--root", root, "--mode", "batch")
	if err == nil || !strings.Contains(err.Error(), "--mode") {
		t.Fatalf("expected --mode validation error, got %v", err)
	}
}

func TestMissingStackRoot(t *testing.T) {
	_, err := execute(t, "list", "--root", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "compose manifest not found") {
		t.Fatalf("expected manifest error, got %v", err)
	}
}

func TestConfigSearchDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dirs := configSearchDirs()
	if len(dirs) < 2 || dirs[0] != ".stackup" || dirs[1] != filepath.Join("/tmp/xdg", "stackup") {
		t.Fatalf("unexpected search dirs %v", dirs)
	}
}

func TestEnvironmentOverlaysFlags(t *testing.T) {
	root := writeStack(t)
	t.Setenv("STACKUP_ROOT", root)
	out, err := execute(t, "deps", "lnd")
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	if want := "1. bitcoin\n2. lnd\n"; out != want {
		t.Fatalf("deps output %q, want %q", out, want)
	}

	t.Setenv("STACKUP_MODE", "batch")
	if _, err := execute(t, "list"); err == nil || !strings.Contains(err.Error(), "--mode") {
		t.Fatalf("expected env-provided mode to be validated, got %v", err)
	}
}

func TestConfigFileOverlaysFlags(t *testing.T) {
	root := writeStack(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("root: "+root+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STACKUP_CONFIG", cfgPath)
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"deps", "rtl"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("deps: %v", err)
	}
	if !strings.HasSuffix(out.String(), "3. rtl\n") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "-o", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info["version"] == "" || info["platform"] == "" {
		t.Fatalf("unexpected version document %v", info)
	}
}
