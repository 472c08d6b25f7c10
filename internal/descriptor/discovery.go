// File: internal/descriptor/discovery.go
// Brief: Filesystem discovery of per-service descriptor files.

package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"sigs.k8s.io/yaml"
)

// FileName is the descriptor looked up in each service directory.
const FileName = "service.json"

// alternates are accepted next to FileName; the first one seen in a
// directory wins.
var alternates = []string{"service.yaml", "service.yml"}

// ErrNoDescriptors is returned when discovery finds no valid descriptor.
var ErrNoDescriptors = errors.New("no service descriptors found")

// Load discovers descriptors in root and its immediate children. Invalid
// descriptors are logged, recorded in Set.Problems and skipped; finding none
// at all is an error.
func Load(root string, log logr.Logger) (*Set, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	set := newSet()
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			log.Info("skipping unreadable path", "path", path, "err", walkErr)
			set.problemf("%s: unreadable: %v", path, walkErr)
			return nil
		}
		if d.IsDir() {
			if path != absRoot && depth(absRoot, path) >= 2 {
				return fs.SkipDir
			}
			return nil
		}
		if !isDescriptorName(d.Name()) {
			return nil
		}
		dir := filepath.Dir(path)
		name := serviceName(dir)
		if name == "" {
			log.V(1).Info("skipping descriptor without a service directory", "path", path)
			return nil
		}
		if _, dup := set.Get(name); dup {
			log.Info("ignoring duplicate descriptor", "service", name, "path", path)
			set.problemf("%s: duplicate descriptor for %s ignored", path, name)
			return nil
		}
		f, err := readFile(path)
		if err != nil {
			log.Info("skipping invalid descriptor", "path", path, "err", err.Error())
			set.problemf("%s: %v", path, err)
			return nil
		}
		if f.PartialAccount() {
			log.Info("descriptor declares an incomplete account (username, uid, groupname, gid); host provisioning skipped", "service", name)
			set.problemf("%s: incomplete account (needs username, uid, groupname and gid); provisioning skipped", path)
		}
		set.add(f.toDescriptor(name, dir))
		log.V(1).Info("discovered service", "service", name, "path", path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w under %s (expected %s in service directories)", ErrNoDescriptors, absRoot, FileName)
	}
	return set, nil
}

// ReadFile parses and validates one descriptor file for the named service.
func ReadFile(path, name string) (*Descriptor, error) {
	f, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return f.toDescriptor(name, filepath.Dir(path)), nil
}

// Parse decodes descriptor content (JSON or YAML) for the named service.
func Parse(raw []byte, name, dir string) (*Descriptor, error) {
	f, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return f.toDescriptor(name, dir), nil
}

func readFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func decode(raw []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if err := validateFile(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) toDescriptor(name, dir string) *Descriptor {
	d := &Descriptor{
		Name:        name,
		Dir:         dir,
		Description: strings.TrimSpace(f.Description),
		Dockerfile:  strings.TrimSpace(f.Dockerfile),
		Binaries:    compact(f.Binaries),
		Ports:       compact(f.Ports),
	}
	if f.Username == nil || f.UID == nil || f.Groupname == nil || f.GID == nil {
		return d
	}
	d.Profile = &Profile{
		Account: Account{
			Username:  *f.Username,
			UID:       *f.UID,
			Groupname: *f.Groupname,
			GID:       *f.GID,
		},
		DataDir:     filepath.Clean(f.DataDir),
		ConfigFiles: compact(f.ConfigFiles),
		SpecialDirs: compact(f.SpecialDirs),
	}
	if f.DataDir == "" {
		d.Profile.DataDir = ""
	}
	return d
}

// PartialAccount reports whether the file declares some, but not all, of the
// four account fields.
func (f *File) PartialAccount() bool {
	n := 0
	for _, set := range []bool{f.Username != nil, f.UID != nil, f.Groupname != nil, f.GID != nil} {
		if set {
			n++
		}
	}
	return n > 0 && n < 4
}

func isDescriptorName(name string) bool {
	if name == FileName {
		return true
	}
	for _, alt := range alternates {
		if name == alt {
			return true
		}
	}
	return false
}

// depth counts path segments of path below root.
func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

func serviceName(dir string) string {
	base := filepath.Base(dir)
	switch base {
	case "", ".", string(filepath.Separator):
		return ""
	}
	return base
}

func compact(in []string) []string {
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
