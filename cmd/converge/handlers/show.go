package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/converge/internal/plan"
	"github.com/imamik/converge/internal/ui/render"
)

// Show prints a saved plan or, without one, the current state. Sensitive
// values are masked in every format.
func Show(ctx context.Context, g GlobalOptions, so StackOptions, planFile, format string) error {
	if planFile != "" {
		p, err := plan.ReadFile(planFile)
		if err != nil {
			return err
		}
		if format == render.FormatText {
			return render.New(g.NoColor).Plan(stdout, p)
		}
		masked, err := render.MaskedPlan(p)
		if err != nil {
			return err
		}
		return writeDocument(masked, format)
	}

	ws, err := openStateWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	st, err := ws.states.Read(ctx)
	if err != nil {
		return err
	}
	if format != render.FormatText {
		return writeDocument(render.MaskedState(st), format)
	}
	if st.Empty() && len(st.Outputs) == 0 {
		_, err := fmt.Fprintln(stdout, "The state is empty. No resources are managed.")
		return err
	}
	for _, addr := range st.Addresses() {
		if err := ws.renderer.Instance(stdout, st.Get(addr)); err != nil {
			return err
		}
		fmt.Fprintln(stdout)
	}
	if len(st.Outputs) > 0 {
		fmt.Fprintln(stdout, "Outputs:")
		return ws.renderer.Outputs(stdout, st.Outputs, false)
	}
	return nil
}

func writeDocument(v any, format string) error {
	out, err := render.Document(v, format)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

// Output prints one output raw, or every output. With asJSON values are
// printed as JSON, sensitive ones included.
func Output(ctx context.Context, g GlobalOptions, so StackOptions, name string, asJSON bool) error {
	ws, err := openStateWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	st, err := ws.states.Read(ctx)
	if err != nil {
		return err
	}

	if name == "" {
		if asJSON {
			return writeDocument(st.Outputs, render.FormatJSON)
		}
		if len(st.Outputs) == 0 {
			_, err := fmt.Fprintln(stdout, "No outputs found.")
			return err
		}
		return ws.renderer.Outputs(stdout, st.Outputs, false)
	}

	o, ok := st.Outputs[name]
	if !ok {
		return fmt.Errorf("output %q not found", name)
	}
	if asJSON {
		return writeDocument(o.Value, render.FormatJSON)
	}
	return render.OutputValue(stdout, o)
}
