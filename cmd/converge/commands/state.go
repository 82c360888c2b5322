package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/converge/cmd/converge/handlers"
)

// State returns the command group for state inspection and surgery.
func State(g *handlers.GlobalOptions) *cobra.Command {
	var so handlers.StackOptions

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and modify the recorded state",
	}
	cmd.PersistentFlags().StringArrayVarP(&so.Files, "file", "f", nil, "Stack file declaring the backend (default: stack.yaml)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the recorded resource instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.StateList(cmd.Context(), globals(g, cmd), so)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show ADDRESS",
		Short: "Show the attributes of one instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.StateShow(cmd.Context(), globals(g, cmd), so, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm ADDRESS...",
		Short: "Forget instances without destroying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.StateRm(cmd.Context(), globals(g, cmd), so, args)
		},
	})
	return cmd
}

// Taint returns the command marking an instance for replacement.
func Taint(g *handlers.GlobalOptions) *cobra.Command {
	var so handlers.StackOptions
	cmd := &cobra.Command{
		Use:   "taint ADDRESS",
		Short: "Mark an instance to be replaced on the next apply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Taint(cmd.Context(), globals(g, cmd), so, args[0])
		},
	}
	cmd.Flags().StringArrayVarP(&so.Files, "file", "f", nil, "Stack file declaring the backend (default: stack.yaml)")
	return cmd
}

// Untaint returns the command clearing the taint mark.
func Untaint(g *handlers.GlobalOptions) *cobra.Command {
	var so handlers.StackOptions
	cmd := &cobra.Command{
		Use:   "untaint ADDRESS",
		Short: "Clear the taint mark of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Untaint(cmd.Context(), globals(g, cmd), so, args[0])
		},
	}
	cmd.Flags().StringArrayVarP(&so.Files, "file", "f", nil, "Stack file declaring the backend (default: stack.yaml)")
	return cmd
}
