// File: internal/config/config.go
// Brief: Runtime options for stackup commands.

// Package config defines the flag plumbing and runtime options shared by
// stackup's commands, translating Cobra/Viper flag values into a strongly
// typed struct that the pipeline consumes.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-shellwords"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	DefaultComposeCmd = "docker-compose"
	DefaultSudo       = "sudo"
	DefaultDataDir    = "/data"
	DefaultShell      = "/bin/false"
)

// Options holds all CLI configuration used by the pipeline.
type Options struct {
	Verbose     bool
	LogLevel    string   `validate:"oneof=debug info warn warning error"`
	Mode        string   `validate:"oneof=interactive auto explicit"`
	Services    []string `validate:"required_if=Mode explicit"`
	IncludeDeps bool
	Root        string `validate:"required"`
	ComposeFile string
	ComposeCmd  string `validate:"required"`
	Sudo        string
	DataDir     string `validate:"required,startswith=/"`
	Shell       string `validate:"required,startswith=/"`
	KeepVolumes bool
}

var validate = validator.New()

// NewOptions returns Options with defaults applied.
func NewOptions() *Options {
	return &Options{
		LogLevel:   "info",
		Root:       ".",
		ComposeCmd: DefaultComposeCmd,
		Sudo:       DefaultSudo,
		DataDir:    DefaultDataDir,
		Shell:      DefaultShell,
	}
}

// AddFlags binds configuration flags to the provided Cobra command.
func (o *Options) AddFlags(cmd *cobra.Command) {
	o.BindFlags(cmd.PersistentFlags())
}

// BindFlags attaches flags to an arbitrary FlagSet and returns the flag names
// for further customization.
func (o *Options) BindFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "Verbose output (same as --log-level debug)")
	names = append(names, "verbose")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level for stackup output (debug, info, warn, error)")
	names = append(names, "log-level")
	fs.StringVarP(&o.Mode, "mode", "m", o.Mode, "Selection mode: interactive, auto or explicit (--services always selects explicit)")
	names = append(names, "mode")
	fs.StringSliceVarP(&o.Services, "services", "s", o.Services, "Services to build and start (comma-separated or repeated)")
	names = append(names, "services")
	fs.BoolVarP(&o.IncludeDeps, "deps", "d", o.IncludeDeps, "Pull in the dependencies of explicitly selected or auto-detected services")
	names = append(names, "deps")
	fs.StringVar(&o.Root, "root", o.Root, "Stack root holding the compose file and one directory per service")
	names = append(names, "root")
	fs.StringVarP(&o.ComposeFile, "compose-file", "f", o.ComposeFile, "Compose file (defaults to docker-compose.yml under --root)")
	names = append(names, "compose-file")
	fs.StringVar(&o.ComposeCmd, "compose-cmd", o.ComposeCmd, "Compose CLI command line, e.g. \"docker compose\"")
	names = append(names, "compose-cmd")
	fs.StringVar(&o.Sudo, "sudo", o.Sudo, "Elevation command for host provisioning (empty to run directly)")
	names = append(names, "sudo")
	fs.StringVar(&o.DataDir, "data-dir", o.DataDir, "Base directory for service data")
	names = append(names, "data-dir")
	fs.StringVar(&o.Shell, "shell", o.Shell, "Login shell for created service accounts")
	names = append(names, "shell")
	fs.BoolVar(&o.KeepVolumes, "keep-volumes", o.KeepVolumes, "Do not remove volumes when tearing the stack down")
	names = append(names, "keep-volumes")
	return names
}

// Validate normalizes the options and checks they are coherent.
func (o *Options) Validate() error {
	o.Services = splitList(o.Services)
	o.Mode = strings.ToLower(strings.TrimSpace(o.Mode))
	// A service list always wins over the selection mode. Unknown modes
	// are left for the validator to reject.
	switch o.Mode {
	case "", "interactive", "auto":
		if len(o.Services) > 0 {
			o.Mode = "explicit"
		} else if o.Mode == "" {
			o.Mode = "interactive"
		}
	}
	o.LogLevel = strings.ToLower(strings.TrimSpace(o.LogLevel))
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	if o.Verbose {
		o.LogLevel = "debug"
	}

	root, err := expandPath(o.Root)
	if err != nil {
		return fmt.Errorf("invalid --root %q: %w", o.Root, err)
	}
	o.Root = root
	if o.ComposeFile != "" {
		if o.ComposeFile, err = homedir.Expand(o.ComposeFile); err != nil {
			return fmt.Errorf("invalid --compose-file: %w", err)
		}
	}
	if o.DataDir, err = homedir.Expand(strings.TrimSpace(o.DataDir)); err != nil {
		return fmt.Errorf("invalid --data-dir: %w", err)
	}
	if o.DataDir != "" {
		o.DataDir = filepath.Clean(o.DataDir)
	}
	if _, err := o.ComposeArgv(); err != nil {
		return err
	}
	return structError(validate.Struct(o))
}

// ComposeArgv splits the compose command line into words.
func (o *Options) ComposeArgv() ([]string, error) {
	argv, err := shellwords.Parse(o.ComposeCmd)
	if err != nil {
		return nil, fmt.Errorf("invalid --compose-cmd %q: %w", o.ComposeCmd, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("--compose-cmd cannot be empty")
	}
	return argv, nil
}

// ComposePath returns the compose file path, resolved against Root.
func (o *Options) ComposePath() string {
	if o.ComposeFile == "" {
		return filepath.Join(o.Root, "docker-compose.yml")
	}
	if filepath.IsAbs(o.ComposeFile) {
		return o.ComposeFile
	}
	return filepath.Join(o.Root, o.ComposeFile)
}

func expandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		p = "."
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("--%s: %s", flagName(fe.Field()), describe(fe)))
	}
	return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%q is not one of %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "required", "required_if":
		return "value required"
	case "startswith":
		return fmt.Sprintf("%q must be an absolute path", fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

var flagNames = map[string]string{
	"LogLevel":    "log-level",
	"ComposeCmd":  "compose-cmd",
	"DataDir":     "data-dir",
	"ComposeFile": "compose-file",
}

func flagName(field string) string {
	if name, ok := flagNames[field]; ok {
		return name
	}
	return strings.ToLower(field)
}
