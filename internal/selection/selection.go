// File: internal/selection/selection.go
// Brief: Explicit, auto-detect and interactive service selection.

// Package selection decides which services a run operates on.
package selection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/stackup/internal/graph"
	"github.com/example/stackup/internal/ui"
)

type Mode string

const (
	ModeExplicit    Mode = "explicit"
	ModeAuto        Mode = "auto"
	ModeInteractive Mode = "interactive"
)

// ParseMode accepts the mode names case-insensitively.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeExplicit, ModeAuto, ModeInteractive:
		return m, nil
	case "":
		return ModeInteractive, nil
	default:
		return "", fmt.Errorf("unknown selection mode %q (want interactive, auto or explicit)", raw)
	}
}

var ErrEmptySelection = errors.New("no services selected")

// ErrNoPrompter is returned for interactive selection without a terminal.
var ErrNoPrompter = errors.New("interactive selection needs a terminal prompter")

// Prompter asks the operator to choose.
type Prompter interface {
	Select(label string, items []string) (int, error)
	Confirm(label string, defaultYes bool) (bool, error)
}

const (
	OptionAll        = "all services"
	OptionAutoDetect = "auto-detect (services with a build recipe)"
	OptionIsolated   = "isolated test of one service"
)

type Request struct {
	Mode Mode
	// Services feeds explicit mode. Entries may themselves be
	// comma-separated.
	Services []string
}

type Strategy struct {
	Graph      *graph.Graph
	SourceRoot string
	Prompter   Prompter
	// IncludeDeps expands explicit and auto selections with their
	// dependency closure.
	IncludeDeps bool

	stat func(string) (os.FileInfo, error)
}

// Select returns the chosen service names, de-duplicated in first-seen
// order.
func (s *Strategy) Select(ctx context.Context, req Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		names []string
		err   error
	)
	switch req.Mode {
	case ModeExplicit:
		names = normalizeStrings(req.Services)
		if s.IncludeDeps {
			names = s.Graph.ResolveAll(names)
		}
	case ModeAuto:
		names = s.AutoDetect()
		if s.IncludeDeps {
			names = s.Graph.ResolveAll(names)
		}
	case ModeInteractive, "":
		names, err = s.interactive()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown selection mode %q", req.Mode)
	}
	names = dedupe(names)
	if len(names) == 0 {
		return nil, ErrEmptySelection
	}
	return names, nil
}

// AutoDetect returns services whose declared build recipe exists under
// SourceRoot/<service>/, in discovery order.
func (s *Strategy) AutoDetect() []string {
	stat := s.stat
	if stat == nil {
		stat = os.Stat
	}
	var out []string
	for _, d := range s.Graph.Descriptors().All() {
		if strings.TrimSpace(d.Dockerfile) == "" {
			continue
		}
		if _, err := stat(filepath.Join(s.SourceRoot, d.Name, d.Dockerfile)); err == nil {
			out = append(out, d.Name)
		}
	}
	return out
}

func (s *Strategy) interactive() ([]string, error) {
	if s.Prompter == nil {
		return nil, ErrNoPrompter
	}
	names := s.Graph.Names()
	items := append(s.menu(names), OptionAll, OptionAutoDetect, OptionIsolated)
	idx, err := s.Prompter.Select("Select services to build", items)
	if err != nil {
		return nil, err
	}
	switch {
	case idx < 0 || idx >= len(items):
		return nil, fmt.Errorf("invalid selection %d", idx)
	case idx < len(names):
		return s.single(names[idx], false)
	case items[idx] == OptionAll:
		return names, nil
	case items[idx] == OptionAutoDetect:
		return s.AutoDetect(), nil
	default:
		return s.isolated(names)
	}
}

func (s *Strategy) isolated(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	idx, err := s.Prompter.Select("Service to test in isolation", s.menu(names))
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(names) {
		return nil, fmt.Errorf("invalid selection %d", idx)
	}
	return s.single(names[idx], true)
}

// single asks whether to pull in the dependency closure of name. With
// onlyIfDeps the question is skipped for services without dependencies.
func (s *Strategy) single(name string, onlyIfDeps bool) ([]string, error) {
	deps := s.Graph.Dependencies(name)
	if onlyIfDeps && len(deps) == 0 {
		return []string{name}, nil
	}
	label := fmt.Sprintf("Include dependencies of %s", name)
	if len(deps) > 0 {
		label += " (" + strings.Join(deps, ", ") + ")"
	}
	ok, err := s.Prompter.Confirm(label, true)
	if err != nil {
		return nil, err
	}
	if ok {
		return s.Graph.Resolve(name), nil
	}
	return []string{name}, nil
}

func (s *Strategy) menu(names []string) []string {
	items := make([]ui.MenuItem, 0, len(names))
	for _, name := range names {
		it := ui.MenuItem{Name: name, Deps: s.Graph.Dependencies(name)}
		if d, ok := s.Graph.Descriptor(name); ok {
			it.Description = d.Description
			it.Ports = d.Ports
		}
		items = append(items, it)
	}
	return ui.FormatMenu(items)
}

func normalizeStrings(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
