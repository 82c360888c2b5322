package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/converge/internal/engine"
	"github.com/imamik/converge/internal/plan"
)

// PlanOptions are the flags of the plan command.
type PlanOptions struct {
	Destroy          bool
	Refresh          bool
	Targets          []string
	Out              string
	DetailedExitCode bool
}

// Plan computes and prints the changes needed to converge. With
// DetailedExitCode a plan with changes returns ExitError{Code: 2}.
func Plan(ctx context.Context, g GlobalOptions, so StackOptions, opts PlanOptions) error {
	ws, err := openWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	defer ws.flushMetrics()

	p, err := ws.engine(ws.observer()).Plan(ctx, engine.PlanOptions{
		Destroy:     opts.Destroy,
		SkipRefresh: !opts.Refresh,
		Targets:     opts.Targets,
	})
	if err != nil {
		return err
	}
	if err := ws.renderer.Plan(stdout, p); err != nil {
		return err
	}

	if opts.Out != "" {
		if err := plan.WriteFile(opts.Out, p); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nSaved the plan to: %s\nTo perform exactly these actions, run: converge apply %s\n", opts.Out, opts.Out)
	}

	if opts.DetailedExitCode && p.HasChanges() {
		return &ExitError{Code: 2}
	}
	return nil
}
