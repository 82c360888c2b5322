// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imamik/converge/cmd/converge/handlers"
)

// Root returns the root command for the converge CLI.
func Root() *cobra.Command {
	g := &handlers.GlobalOptions{}
	var chdir string

	cmd := &cobra.Command{
		Use:           "converge",
		Short:         "Reconcile declared infrastructure with what exists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if chdir == "" {
				return nil
			}
			if err := os.Chdir(chdir); err != nil {
				return fmt.Errorf("failed to change directory: %w", err)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&chdir, "chdir", "", "Switch to this directory before doing anything else")
	pf.StringVar(&g.SettingsPath, "settings", "", "Path to the settings file (default: $HOME/.converge/settings.yaml)")
	pf.String("log-level", "", "Log level: trace, debug, info, warn, error")
	pf.Duration("lock-timeout", 0, "How long to retry acquiring the state lock")
	pf.BoolVar(&g.NoColor, "no-color", false, "Disable colored output")

	// Core workflow
	cmd.AddCommand(Validate(g))
	cmd.AddCommand(Plan(g))
	cmd.AddCommand(Apply(g))
	cmd.AddCommand(Destroy(g))
	cmd.AddCommand(Refresh(g))

	// Inspection
	cmd.AddCommand(Show(g))
	cmd.AddCommand(Output(g))
	cmd.AddCommand(Graph(g))

	// State manipulation
	cmd.AddCommand(State(g))
	cmd.AddCommand(Taint(g))
	cmd.AddCommand(Untaint(g))

	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// globals returns the shared options bound to the running command.
func globals(g *handlers.GlobalOptions, cmd *cobra.Command) handlers.GlobalOptions {
	out := *g
	out.Flags = cmd.Flags()
	out.Version = version
	return out
}

// addStackFlags binds the flags selecting stack files and variables.
func addStackFlags(cmd *cobra.Command, so *handlers.StackOptions) {
	cmd.Flags().StringArrayVarP(&so.Files, "file", "f", nil, "Stack file, repeatable (default: stack.yaml)")
	cmd.Flags().StringArrayVar(&so.Vars, "var", nil, "Set a variable: name=value, repeatable")
	cmd.Flags().StringArrayVar(&so.VarFiles, "var-file", nil, "Load variables from a file, repeatable")
}

func addTargetFlag(cmd *cobra.Command, targets *[]string) {
	cmd.Flags().StringArrayVar(targets, "target", nil, "Limit the operation to this address and its dependencies, repeatable")
}
