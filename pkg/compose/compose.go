// Package compose loads compose projects through the compose-spec loader so
// callers can cross-check a service selection against what the orchestration
// backend will actually see.
package compose

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"
)

// LoadProject loads the compose files as the compose CLI would, with the
// process environment available for interpolation. An empty projectName is
// derived from the directory of the first file.
func LoadProject(files []string, projectName string) (*composetypes.Project, error) {
	if len(files) == 0 {
		return nil, errors.New("no compose files specified")
	}
	normalized, err := absolutePaths(files)
	if err != nil {
		return nil, err
	}

	env := make(composetypes.Mapping)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}

	configFiles := make([]composetypes.ConfigFile, 0, len(normalized))
	for _, path := range normalized {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read compose file %s: %w", path, err)
		}
		configFiles = append(configFiles, composetypes.ConfigFile{Filename: path, Content: data})
	}

	workingDir := filepath.Dir(normalized[0])
	if projectName == "" {
		projectName = ProjectName(workingDir)
	}

	details := composetypes.ConfigDetails{
		WorkingDir:  workingDir,
		ConfigFiles: configFiles,
		Environment: env,
	}
	project, err := loader.Load(details, func(o *loader.Options) {
		o.SetProjectName(projectName, true)
		// Missing images/build contexts are reported by the backend itself.
		o.SkipConsistencyCheck = true
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// MissingServices returns the requested names the project does not define,
// sorted.
func MissingServices(project *composetypes.Project, names []string) []string {
	if project == nil {
		return nil
	}
	known := map[string]struct{}{}
	for _, name := range project.ServiceNames() {
		known[name] = struct{}{}
	}
	var missing []string
	seen := map[string]struct{}{}
	for _, name := range names {
		if _, ok := known[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}

// BuildableServices returns the names of services with a build section, sorted.
func BuildableServices(project *composetypes.Project) []string {
	if project == nil {
		return nil
	}
	var out []string
	for name, svc := range project.Services {
		if svc.Build != nil && svc.Build.Context != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ProjectName is the default compose project name for a project directory.
func ProjectName(dir string) string {
	return sanitizeName(filepath.Base(dir))
}

func absolutePaths(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		if p == "" {
			return nil, errors.New("compose file path cannot be empty")
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("abs %s: %w", p, err)
		}
		out[i] = abs
	}
	return out, nil
}

func sanitizeName(name string) string {
	cleaned := strings.ToLower(name)
	cleaned = strings.ReplaceAll(cleaned, " ", "-")
	cleaned = strings.ReplaceAll(cleaned, ".", "-")
	cleaned = strings.Trim(cleaned, "-_")
	if cleaned == "" {
		cleaned = "stack"
	}
	return cleaned
}
