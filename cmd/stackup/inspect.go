// File: cmd/stackup/inspect.go
// Brief: Read-only commands over the service graph.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/stackup/internal/config"
	"github.com/example/stackup/internal/descriptor"
	"github.com/example/stackup/internal/ui"
	"github.com/example/stackup/internal/verify"
)

func newVerifyCommand(opts *config.Options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report missing Dockerfiles and binaries",
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
			rep := verify.Verify(g, opts.Root)
			return verify.WriteReport(cmd.OutOrStdout(), rep, verify.OutputFormat(output))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", string(verify.OutputTable), "Output format (table, json)")
	return cmd
}

func newListCommand(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered services",
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
			rows := make([][]string, 0, len(g.Names()))
			for _, d := range g.Descriptors().All() {
				account := "-"
				if d.Profile != nil {
					account = fmt.Sprintf("%s:%s", d.Profile.Account.Username, d.Profile.Account.Groupname)
				}
				rows = append(rows, []string{
					d.Name,
					orDash(d.Description),
					orDash(strings.Join(d.Ports, ",")),
					orDash(strings.Join(g.Dependencies(d.Name), ",")),
					account,
				})
			}
			ui.PrintTable(cmd.OutOrStdout(), []string{"service", "description", "ports", "depends on", "account"}, rows)
			return nil
		},
	}
}

func newDepsCommand(opts *config.Options) *cobra.Command {
	var dependents bool
	cmd := &cobra.Command{
		Use:   "deps SERVICE...",
		Short: "Print the start order needed for the given services",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd, opts)
			if err != nil {
				return err
			}
			g, err := p.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dependents {
				for _, name := range args {
					fmt.Fprintf(out, "%s: %s\n", name, orDash(strings.Join(g.Dependents(name), ", ")))
				}
				return nil
			}
			for i, name := range g.ResolveAll(args) {
				fmt.Fprintf(out, "%d. %s\n", i+1, name)
			}
			for _, cycle := range g.Cycles() {
				ui.Warn(out, "Dependency cycle: "+strings.Join(cycle, " -> ")+" -> "+cycle[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dependents, "dependents", false, "List services that depend directly on each argument instead")
	return cmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of " + descriptor.FileName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := descriptor.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
