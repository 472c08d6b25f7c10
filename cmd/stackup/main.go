// main.go bootstraps stackup: it builds the root Cobra command and executes it with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/stackup/internal/config"
	"github.com/example/stackup/internal/descriptor"
	"github.com/example/stackup/internal/manifest"
	"github.com/example/stackup/internal/pipeline"
	"github.com/example/stackup/internal/provision"
	"github.com/example/stackup/internal/selection"
	"github.com/example/stackup/internal/ui"
	"github.com/example/stackup/internal/version"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := config.NewOptions()
	cmd := &cobra.Command{
		Use:           "stackup",
		Short:         "Provision host resources and launch a compose service stack",
		Long:          "stackup discovers service descriptors, prepares the host accounts and directories they need, and builds and starts the selected services with the compose CLI.",
		Args:          cobra.NoArgs,
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, opts)
		},
	}
	opts.AddFlags(cmd)
	cmd.AddCommand(
		newUpCommand(opts),
		newProvisionCommand(opts),
		newVerifyCommand(opts),
		newListCommand(opts),
		newDepsCommand(opts),
		newSchemaCommand(),
		newVersionCommand(),
	)
	cmd.Example = `  # Pick services from a menu
  stackup

  # Build and start every service with a Dockerfile on disk
  stackup --mode auto

  # Start lnd and everything it depends on, using the compose plugin
  stackup -s lnd -d --compose-cmd "docker compose"`
	bindViper(cmd)
	return cmd
}

// bindViper overlays STACKUP_* environment variables and the config file on
// every flag the executing command did not receive explicitly.
func bindViper(root *cobra.Command) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("STACKUP")
	v.AutomaticEnv()
	configFile := os.Getenv("STACKUP_CONFIG")
	configureConfigFile(v, configFile)

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			return err
		}
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed || !v.IsSet(f.Name) {
				return
			}
			val := fmt.Sprintf("%v", v.Get(f.Name))
			if f.Value.Type() == "stringSlice" {
				val = strings.Join(v.GetStringSlice(f.Name), ",")
			}
			if val != "" {
				_ = f.Value.Set(val)
			}
		})
		return nil
	}
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var stepErr *provision.StepError
	switch {
	case errors.Is(err, pipeline.ErrComposeMissing):
		message = fmt.Sprintf("%s\nHint: install docker-compose or point --compose-cmd at \"docker compose\".", err)
	case errors.Is(err, descriptor.ErrNoDescriptors):
		message = fmt.Sprintf("%s\nHint: run stackup from the stack root or pass --root.", err)
	case errors.Is(err, manifest.ErrManifestNotFound):
		message = fmt.Sprintf("%s\nHint: pass --compose-file when the compose file has another name.", err)
	case errors.Is(err, selection.ErrEmptySelection):
		message = fmt.Sprintf("%s\nHint: check service names with 'stackup list'.", err)
	case errors.Is(err, selection.ErrNoPrompter):
		message = fmt.Sprintf("%s\nHint: pass --mode auto or --services when stdin or stdout is not a terminal.", err)
	case errors.Is(err, ui.ErrAborted):
		message = "aborted"
	case errors.As(err, &stepErr):
		message = fmt.Sprintf("%s\nHint: steps already applied were left in place; rerun once the cause is fixed.", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	add(".stackup")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "stackup"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		add(filepath.Join(home, ".config", "stackup"))
	}
	return dirs
}
