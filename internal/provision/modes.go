package provision

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// TemplateSuffix marks config sources that are installed under the name
// without it.
const TemplateSuffix = ".example"

const (
	SecretMode     = fs.FileMode(0o600)
	ExecutableMode = fs.FileMode(0o755)
	RegularMode    = fs.FileMode(0o644)
)

var (
	secretNames    = []string{"password.txt"}
	secretSuffixes = []string{".key", ".pem"}
	secretMarkers  = []string{"password", "secret"}
	scriptSuffixes = []string{".sh"}
)

// DestinationName strips one trailing TemplateSuffix.
func DestinationName(name string) string {
	if trimmed := strings.TrimSuffix(name, TemplateSuffix); trimmed != "" {
		return trimmed
	}
	return name
}

// ModeFor picks the installed mode of a config file from its name.
func ModeFor(path string) fs.FileMode {
	base := strings.ToLower(filepath.Base(path))
	for _, n := range secretNames {
		if base == n {
			return SecretMode
		}
	}
	for _, s := range secretSuffixes {
		if strings.HasSuffix(base, s) {
			return SecretMode
		}
	}
	for _, m := range secretMarkers {
		if strings.Contains(base, m) {
			return SecretMode
		}
	}
	for _, s := range scriptSuffixes {
		if strings.HasSuffix(base, s) {
			return ExecutableMode
		}
	}
	return RegularMode
}
