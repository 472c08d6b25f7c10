// File: internal/descriptor/types.go
// Brief: Service descriptor model (core identity + optional provisioning profile).

package descriptor

import "fmt"

// File is the on-disk shape of a service descriptor. Every field is optional;
// the service name comes from the directory holding the file.
type File struct {
	Username    *string  `json:"username,omitempty" validate:"omitempty,account" jsonschema:"description=System user owning the service data"`
	UID         *uint32  `json:"uid,omitempty" jsonschema:"description=Numeric user id"`
	Groupname   *string  `json:"groupname,omitempty" validate:"omitempty,account" jsonschema:"description=System group owning the service data"`
	GID         *uint32  `json:"gid,omitempty" jsonschema:"description=Numeric group id"`
	Description string   `json:"description,omitempty"`
	DataDir     string   `json:"data_dir,omitempty" validate:"omitempty,startswith=/" jsonschema:"description=Absolute data directory path"`
	Dockerfile  string   `json:"dockerfile,omitempty" jsonschema:"description=Build recipe relative to the service directory"`
	ConfigFiles []string `json:"config_files,omitempty" validate:"dive,required,relpath"`
	Binaries    []string `json:"binaries,omitempty" validate:"dive,required"`
	Ports       []string `json:"ports,omitempty"`
	SpecialDirs []string `json:"special_dirs,omitempty" validate:"dive,required,relpath"`
}

// Descriptor is one discovered service. Name is the directory base name and
// is unique within a Set.
type Descriptor struct {
	Name        string
	Dir         string
	Description string
	Dockerfile  string
	Binaries    []string
	Ports       []string

	// Profile is nil when the descriptor does not declare a complete host
	// identity; provisioning skips such services.
	Profile *Profile
}

// Profile is the host-level provisioning data of a service.
type Profile struct {
	Account     Account
	DataDir     string
	ConfigFiles []string
	SpecialDirs []string
}

// Account is the OS identity a service runs as.
type Account struct {
	Username  string
	UID       uint32
	Groupname string
	GID       uint32
}

// Set is an insertion-ordered collection of descriptors keyed by name.
type Set struct {
	order    []string
	byName   map[string]*Descriptor
	problems []string
}

func newSet() *Set {
	return &Set{byName: map[string]*Descriptor{}}
}

// NewSet builds a Set from descriptors in the given order. Later duplicates
// of a name are ignored.
func NewSet(descs ...*Descriptor) *Set {
	s := newSet()
	for _, d := range descs {
		s.add(d)
	}
	return s
}

// Problems lists the descriptors discovery skipped or only partly accepted,
// one human-readable line each.
func (s *Set) Problems() []string {
	return append([]string(nil), s.problems...)
}

func (s *Set) problemf(format string, args ...any) {
	s.problems = append(s.problems, fmt.Sprintf(format, args...))
}

func (s *Set) add(d *Descriptor) bool {
	if d == nil || d.Name == "" {
		return false
	}
	if _, ok := s.byName[d.Name]; ok {
		return false
	}
	s.order = append(s.order, d.Name)
	s.byName[d.Name] = d
	return true
}

// Names returns service names in discovery order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

func (s *Set) Get(name string) (*Descriptor, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.byName[name]
	return d, ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// All returns the descriptors in discovery order.
func (s *Set) All() []*Descriptor {
	if s == nil {
		return nil
	}
	out := make([]*Descriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}
