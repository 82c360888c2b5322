package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/converge/internal/engine"
	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/plan"
	"github.com/imamik/converge/internal/ui/tui"
)

// ApplyOptions are the flags of the apply and destroy commands.
type ApplyOptions struct {
	PlanFile    string
	AutoApprove bool
	Refresh     bool
	Targets     []string
	TUI         bool
}

// errNeedsApproval is returned when confirmation is required but stdin
// is not a terminal.
var errNeedsApproval = errors.New("no terminal to confirm on: rerun with --auto-approve")

// Apply plans and applies the stack, or applies a saved plan. A saved plan
// is applied without confirmation.
func Apply(ctx context.Context, g GlobalOptions, so StackOptions, opts ApplyOptions) error {
	if opts.PlanFile != "" {
		p, err := plan.ReadFile(opts.PlanFile)
		if err != nil {
			return err
		}
		ws, err := openPlanWorkspace(ctx, g, p.StackFiles, p.Variables)
		if err != nil {
			return err
		}
		defer ws.flushMetrics()
		return ws.applyPlan(ctx, p, "apply", opts.TUI)
	}
	return planAndApply(ctx, g, so, opts, false)
}

// Destroy plans the deletion of every recorded instance and applies it.
func Destroy(ctx context.Context, g GlobalOptions, so StackOptions, opts ApplyOptions) error {
	return planAndApply(ctx, g, so, opts, true)
}

func planAndApply(ctx context.Context, g GlobalOptions, so StackOptions, opts ApplyOptions, destroy bool) error {
	ws, err := openWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	defer ws.flushMetrics()

	command := "apply"
	if destroy {
		command = "destroy"
	}

	p, err := ws.engine(ws.observer()).Plan(ctx, engine.PlanOptions{
		Destroy:     destroy,
		SkipRefresh: !opts.Refresh,
		Targets:     opts.Targets,
	})
	if err != nil {
		return err
	}
	if err := ws.renderer.Plan(stdout, p); err != nil {
		return err
	}
	if !p.HasChanges() {
		return nil
	}

	if !opts.AutoApprove {
		ok, err := ws.approve(command, p)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(stdout, "\n%s cancelled.\n", capitalize(command))
			return nil
		}
	}
	return ws.applyPlan(ctx, p, command, opts.TUI)
}

func (ws *workspace) approve(command string, p *plan.Plan) (bool, error) {
	if !stdinIsTerminal() {
		return false, errNeedsApproval
	}
	title := "Do you want to perform these actions?"
	if command == "destroy" {
		title = "Do you really want to destroy all resources?"
	}
	return confirm(title, fmt.Sprintf("converge will %s stack %q. %s", command, ws.name, p.SummaryLine()))
}

// applyPlan runs p through the dashboard when requested and possible,
// else with console logging.
func (ws *workspace) applyPlan(ctx context.Context, p *plan.Plan, command string, dashboard bool) error {
	run := func(ctx context.Context, observer observability.Observer) error {
		return ws.engine(observer).Apply(ctx, p)
	}

	var err error
	if dashboard && stdoutIsTerminal() {
		err = tui.Run(ctx, ws.name, command, run)
	} else {
		err = run(ctx, ws.observer())
	}
	if err != nil {
		return err
	}

	c := p.Summary()
	if command == "destroy" {
		fmt.Fprintf(stdout, "\nDestroy complete! Resources: %d destroyed.\n", c.Destroy)
		return nil
	}
	fmt.Fprintf(stdout, "\nApply complete! Resources: %d added, %d changed, %d destroyed.\n", c.Add, c.Change, c.Destroy)

	st, err := ws.states.Read(ctx)
	if err != nil {
		return err
	}
	if len(st.Outputs) > 0 {
		fmt.Fprintln(stdout, "\nOutputs:")
		return ws.renderer.Outputs(stdout, st.Outputs, false)
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
