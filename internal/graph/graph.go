// File: internal/graph/graph.go
// Brief: Service graph unifying descriptors and manifest dependency edges.

// Package graph joins discovered service descriptors with the manifest's
// dependency edges and resolves dependency closures over them.
package graph

import (
	"sort"
	"strings"

	"github.com/example/stackup/internal/descriptor"
	"github.com/example/stackup/internal/manifest"
)

// Graph is built once per run and is read-only afterwards.
type Graph struct {
	descriptors *descriptor.Set
	manifest    *manifest.Manifest
	deps        manifest.DependencyIndex
	dependents  map[string][]string
}

func New(descs *descriptor.Set, m *manifest.Manifest) *Graph {
	g := &Graph{
		descriptors: descs,
		manifest:    m,
		deps:        manifest.DependencyIndex{},
		dependents:  map[string][]string{},
	}
	if descs == nil {
		g.descriptors = descriptor.NewSet()
	}
	if m != nil {
		for _, svc := range m.Services {
			if len(svc.DependsOn) == 0 {
				continue
			}
			g.deps[svc.Name] = append([]string(nil), svc.DependsOn...)
			for _, dep := range svc.DependsOn {
				g.dependents[dep] = append(g.dependents[dep], svc.Name)
			}
		}
	}
	return g
}

// Names returns descriptor names in discovery order.
func (g *Graph) Names() []string {
	return g.descriptors.Names()
}

func (g *Graph) Descriptor(name string) (*descriptor.Descriptor, bool) {
	return g.descriptors.Get(name)
}

func (g *Graph) Descriptors() *descriptor.Set {
	return g.descriptors
}

func (g *Graph) ManifestService(name string) (manifest.Service, bool) {
	return g.manifest.Service(name)
}

// Dependencies returns the direct dependencies declared for name.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Dependents returns the services declaring a direct dependency on name, in
// manifest order.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}

// Resolve returns name and everything it transitively depends on, with every
// dependency ahead of the services that need it. Each reachable name appears
// exactly once. Cycles are cut at the first revisit, so ordering within a
// cycle is unspecified but the call always terminates.
func (g *Graph) Resolve(name string) []string {
	return g.ResolveAll([]string{name})
}

// ResolveAll is Resolve over several roots, keeping the first occurrence of
// every name.
func (g *Graph) ResolveAll(names []string) []string {
	type frame struct {
		name string
		next int
	}
	visited := map[string]struct{}{}
	var out []string
	for _, root := range names {
		if root == "" {
			continue
		}
		if _, ok := visited[root]; ok {
			continue
		}
		visited[root] = struct{}{}
		stack := []frame{{name: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.deps[top.name]
			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				if _, ok := visited[dep]; ok {
					continue
				}
				visited[dep] = struct{}{}
				stack = append(stack, frame{name: dep})
				continue
			}
			out = append(out, top.name)
			stack = stack[:len(stack)-1]
		}
	}
	return out
}

// UnknownDependencies maps services to dependency names that have no
// descriptor. Such names still resolve; provisioning skips them.
func (g *Graph) UnknownDependencies() map[string][]string {
	out := map[string][]string{}
	for name, deps := range g.deps {
		for _, dep := range deps {
			if _, ok := g.descriptors.Get(dep); !ok {
				out[name] = append(out[name], dep)
			}
		}
	}
	return out
}

// Cycles returns each dependency cycle once, rotated to start at its
// lexically smallest member, sorted.
func (g *Graph) Cycles() [][]string {
	const (
		unvisited = iota
		active
		done
	)
	state := map[string]int{}
	var path []string
	seen := map[string]struct{}{}
	var cycles [][]string

	var visit func(string)
	visit = func(n string) {
		state[n] = active
		path = append(path, n)
		for _, dep := range g.deps[n] {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case active:
				idx := len(path) - 1
				for idx >= 0 && path[idx] != dep {
					idx--
				}
				cycle := canonicalCycle(path[idx:])
				key := joinKey(cycle)
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
			}
		}
		path = path[:len(path)-1]
		state[n] = done
	}

	roots := make([]string, 0, len(g.deps))
	for n := range g.deps {
		roots = append(roots, n)
	}
	sort.Strings(roots)
	for _, n := range roots {
		if state[n] == unvisited {
			visit(n)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return joinKey(cycles[i]) < joinKey(cycles[j]) })
	return cycles
}

func canonicalCycle(in []string) []string {
	lo := 0
	for i := range in {
		if in[i] < in[lo] {
			lo = i
		}
	}
	out := make([]string, 0, len(in))
	out = append(out, in[lo:]...)
	out = append(out, in[:lo]...)
	return out
}

func joinKey(parts []string) string {
	return strings.Join(parts, "\x00")
}
