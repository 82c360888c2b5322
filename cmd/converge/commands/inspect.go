package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/converge/cmd/converge/handlers"
	"github.com/imamik/converge/internal/ui/render"
)

// Show returns the command printing a saved plan or the state.
func Show(g *handlers.GlobalOptions) *cobra.Command {
	var (
		so     handlers.StackOptions
		format string
	)

	cmd := &cobra.Command{
		Use:   "show [PLANFILE]",
		Short: "Show a saved plan or the current state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case render.FormatText, render.FormatJSON, render.FormatYAML:
			default:
				return fmt.Errorf("invalid output format %q: use text, json or yaml", format)
			}
			planFile := ""
			if len(args) == 1 {
				planFile = args[0]
			}
			return handlers.Show(cmd.Context(), globals(g, cmd), so, planFile, format)
		},
	}
	cmd.Flags().StringArrayVarP(&so.Files, "file", "f", nil, "Stack file declaring the backend (default: stack.yaml)")
	cmd.Flags().StringVarP(&format, "output", "o", render.FormatText, "Output format: text, json or yaml")
	return cmd
}

// Output returns the command printing stored outputs.
func Output(g *handlers.GlobalOptions) *cobra.Command {
	var (
		so     handlers.StackOptions
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "output [NAME]",
		Short: "Print the stack outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return handlers.Output(cmd.Context(), globals(g, cmd), so, name, asJSON)
		},
	}
	cmd.Flags().StringArrayVarP(&so.Files, "file", "f", nil, "Stack file declaring the backend (default: stack.yaml)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print values as JSON, sensitive ones included")
	return cmd
}

// Graph returns the command printing the dependency graph as DOT.
func Graph(g *handlers.GlobalOptions) *cobra.Command {
	var (
		so      handlers.StackOptions
		destroy bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the dependency graph in Graphviz DOT format",
		Long: `Print the dependency graph in Graphviz DOT format.

Examples:
  converge graph | dot -Tsvg > graph.svg

  # Show the order resources would be destroyed in
  converge graph --destroy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Graph(cmd.Context(), globals(g, cmd), so, destroy)
		},
	}
	addStackFlags(cmd, &so)
	cmd.Flags().BoolVar(&destroy, "destroy", false, "Show the destroy order of the recorded instances")
	return cmd
}
