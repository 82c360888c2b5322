package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/converge/cmd/converge/handlers"
)

// Validate returns the command checking a stack without side effects.
func Validate(g *handlers.GlobalOptions) *cobra.Command {
	var so handlers.StackOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the stack files for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Validate(cmd.Context(), globals(g, cmd), so)
		},
	}
	addStackFlags(cmd, &so)
	return cmd
}

// Plan returns the command showing the changes apply would make.
func Plan(g *handlers.GlobalOptions) *cobra.Command {
	var (
		so   handlers.StackOptions
		opts handlers.PlanOptions
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the changes needed to converge",
		Long: `Refresh the recorded state and show the changes needed to make the
infrastructure match the stack. Nothing is changed.

Examples:
  # Plan using stack.yaml in the current directory
  converge plan

  # Save the plan to apply exactly these changes later
  converge plan --out app.plan

  # Exit with status 2 when there are changes (for CI)
  converge plan --detailed-exitcode`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), globals(g, cmd), so, opts)
		},
	}
	addStackFlags(cmd, &so)
	addTargetFlag(cmd, &opts.Targets)
	cmd.Flags().BoolVar(&opts.Destroy, "destroy", false, "Plan the deletion of every managed resource")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", true, "Read the providers before planning")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the plan to this file")
	cmd.Flags().BoolVar(&opts.DetailedExitCode, "detailed-exitcode", false, "Return 2 when the plan has changes")
	return cmd
}

// Apply returns the command executing a plan.
func Apply(g *handlers.GlobalOptions) *cobra.Command {
	var (
		so   handlers.StackOptions
		opts handlers.ApplyOptions
	)

	cmd := &cobra.Command{
		Use:   "apply [PLANFILE]",
		Short: "Create, update or delete resources to match the stack",
		Long: `Plan and apply the changes needed to make the infrastructure match the
stack, after confirmation. Given a plan file saved by 'converge plan --out',
apply exactly that plan without asking.

Examples:
  # Plan, confirm and apply
  converge apply

  # Apply without confirmation and follow progress in a dashboard
  converge apply --auto-approve --tui

  # Apply a saved plan
  converge apply app.plan`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.PlanFile = args[0]
			}
			return handlers.Apply(cmd.Context(), globals(g, cmd), so, opts)
		},
	}
	addApplyFlags(cmd, &so, &opts)
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", true, "Read the providers before planning")
	return cmd
}

// Destroy returns the command deleting every managed resource.
func Destroy(g *handlers.GlobalOptions) *cobra.Command {
	var (
		so   handlers.StackOptions
		opts handlers.ApplyOptions
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete every resource managed by the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Refresh = true
			return handlers.Destroy(cmd.Context(), globals(g, cmd), so, opts)
		},
	}
	addApplyFlags(cmd, &so, &opts)
	return cmd
}

func addApplyFlags(cmd *cobra.Command, so *handlers.StackOptions, opts *handlers.ApplyOptions) {
	addStackFlags(cmd, so)
	addTargetFlag(cmd, &opts.Targets)
	cmd.Flags().BoolVar(&opts.AutoApprove, "auto-approve", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "Show a live dashboard when the output is a terminal")
	cmd.Flags().Int("parallelism", 0, "Maximum concurrent provider operations (default from settings: 10)")
}

// Refresh returns the command updating state from the providers.
func Refresh(g *handlers.GlobalOptions) *cobra.Command {
	var so handlers.StackOptions

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Update the state from the real resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Refresh(cmd.Context(), globals(g, cmd), so)
		},
	}
	addStackFlags(cmd, &so)
	return cmd
}
