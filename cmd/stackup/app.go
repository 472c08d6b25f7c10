// File: cmd/stackup/app.go
// Brief: Shared wiring from options to a ready pipeline.

package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/stackup/internal/config"
	"github.com/example/stackup/internal/engine"
	"github.com/example/stackup/internal/launch"
	"github.com/example/stackup/internal/logging"
	"github.com/example/stackup/internal/pipeline"
	"github.com/example/stackup/internal/runner"
	"github.com/example/stackup/internal/ui"
)

// newPipeline validates opts and wires the host runner, logger, prompter and
// engine dialer for cmd.
func newPipeline(cmd *cobra.Command, opts *config.Options) (*pipeline.Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(opts.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	elevate, err := runner.ElevationPrefix(opts.Sudo, os.Geteuid())
	if err != nil {
		return nil, err
	}
	p := &pipeline.Pipeline{
		Options: opts,
		Runner: &runner.Exec{
			Elevate: elevate,
			Stdin:   cmd.InOrStdin(),
			Stdout:  cmd.OutOrStdout(),
			Stderr:  cmd.ErrOrStderr(),
			Log:     logger.WithName("exec"),
		},
		DialEngine: dialEngine,
		Out:        cmd.OutOrStdout(),
		Log:        logger,
	}
	if ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout) {
		p.Prompter = ui.PromptUI{}
	}
	return p, nil
}

func dialEngine(ctx context.Context) (launch.StatusSource, error) {
	c, err := engine.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func runUp(cmd *cobra.Command, opts *config.Options) error {
	p, err := newPipeline(cmd, opts)
	if err != nil {
		return err
	}
	return p.Run(cmd.Context())
}

func newUpCommand(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Provision, verify, select, build and start services (the default action)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, opts)
		},
	}
}

func newProvisionCommand(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create service accounts, data directories and config files, then verify build inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd, opts)
			if err != nil {
				return err
			}
			g, err := p.Load(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := p.Provision(cmd.Context(), g); err != nil {
				return err
			}
			p.Verify(g)
			return nil
		},
	}
}
