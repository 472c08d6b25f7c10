// File: internal/manifest/manifest.go
// Brief: Read-only view of the compose manifest (dependencies, ports, volumes, environment).

// Package manifest extracts the parts of a compose document the service graph
// needs. It keeps declaration order so listings stay deterministic.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the manifest looked up in the project directory.
const DefaultFile = "docker-compose.yml"

// ErrManifestNotFound is returned when the manifest file does not exist.
var ErrManifestNotFound = errors.New("compose manifest not found")

// Service is one entry under the top-level "services" key.
type Service struct {
	Name        string
	DependsOn   []string
	Ports       []string
	Volumes     []string
	Environment map[string]string
}

// DependencyIndex maps a service to its declared dependencies. Services
// without dependencies have no entry.
type DependencyIndex map[string][]string

type Manifest struct {
	Path         string
	Services     []Service
	Dependencies DependencyIndex

	byName map[string]int
}

// Service returns the named manifest entry.
func (m *Manifest) Service(name string) (Service, bool) {
	if m == nil {
		return Service{}, false
	}
	i, ok := m.byName[name]
	if !ok {
		return Service{}, false
	}
	return m.Services[i], true
}

// Names returns service names in declaration order.
func (m *Manifest) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Services))
	for _, s := range m.Services {
		out = append(out, s.Name)
	}
	return out
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse decodes manifest content.
func Parse(raw []byte) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	m := &Manifest{
		Dependencies: DependencyIndex{},
		byName:       map[string]int{},
	}
	root := documentRoot(&doc)
	if root == nil {
		return m, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: manifest must be a mapping", root.Line)
	}
	services := mappingValue(root, "services")
	if services == nil || isNull(services) {
		return m, nil
	}
	if services.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: services must be a mapping", services.Line)
	}
	for i := 0; i+1 < len(services.Content); i += 2 {
		key, body := services.Content[i], deref(services.Content[i+1])
		svc, err := parseService(key.Value, body)
		if err != nil {
			return nil, err
		}
		if _, dup := m.byName[svc.Name]; dup {
			return nil, fmt.Errorf("line %d: duplicate service %q", key.Line, svc.Name)
		}
		m.byName[svc.Name] = len(m.Services)
		m.Services = append(m.Services, svc)
		if len(svc.DependsOn) > 0 {
			m.Dependencies[svc.Name] = svc.DependsOn
		}
	}
	return m, nil
}

func parseService(name string, body *yaml.Node) (Service, error) {
	svc := Service{
		Name:        strings.TrimSpace(name),
		DependsOn:   []string{},
		Ports:       []string{},
		Volumes:     []string{},
		Environment: map[string]string{},
	}
	if svc.Name == "" {
		return svc, fmt.Errorf("line %d: service name is empty", body.Line)
	}
	if isNull(body) {
		return svc, nil
	}
	if body.Kind != yaml.MappingNode {
		return svc, fmt.Errorf("line %d: service %q must be a mapping", body.Line, svc.Name)
	}
	svc.DependsOn = dependencyNames(mappingValue(body, "depends_on"))
	svc.Ports = scalarList(mappingValue(body, "ports"))
	svc.Volumes = scalarList(mappingValue(body, "volumes"))
	svc.Environment = environment(mappingValue(body, "environment"))
	return svc, nil
}

// dependencyNames accepts both the short (sequence) and long (mapping keyed
// by service) depends_on forms.
func dependencyNames(n *yaml.Node) []string {
	out := []string{}
	if n == nil {
		return out
	}
	switch n.Kind {
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind == yaml.ScalarNode && !isNull(item) {
				out = appendUnique(out, item.Value)
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			out = appendUnique(out, n.Content[i].Value)
		}
	case yaml.ScalarNode:
		if !isNull(n) {
			out = appendUnique(out, n.Value)
		}
	}
	return out
}

func scalarList(n *yaml.Node) []string {
	out := []string{}
	if n == nil || n.Kind != yaml.SequenceNode {
		return out
	}
	for _, item := range n.Content {
		if item.Kind == yaml.ScalarNode && !isNull(item) {
			out = append(out, item.Value)
		}
	}
	return out
}

func environment(n *yaml.Node) map[string]string {
	out := map[string]string{}
	if n == nil {
		return out
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind != yaml.ScalarNode || isNull(v) {
				out[k.Value] = ""
				continue
			}
			out[k.Value] = v.Value
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				continue
			}
			key, value, _ := strings.Cut(item.Value, "=")
			if key = strings.TrimSpace(key); key != "" {
				out[key] = value
			}
		}
	}
	return out
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	if doc.Kind == 0 {
		return nil
	}
	return doc
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return deref(n.Content[i+1])
		}
	}
	return nil
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func appendUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
