package handlers

import (
	"context"
	"fmt"
)

// Refresh updates the state from the providers and prints the outputs.
func Refresh(ctx context.Context, g GlobalOptions, so StackOptions) error {
	ws, err := openWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	defer ws.flushMetrics()

	if err := ws.engine(ws.observer()).Refresh(ctx); err != nil {
		return err
	}
	st, err := ws.states.Read(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Refreshed %d resource instance(s).\n", len(st.Resources))
	if len(st.Outputs) > 0 {
		fmt.Fprintln(stdout, "\nOutputs:")
		return ws.renderer.Outputs(stdout, st.Outputs, false)
	}
	return nil
}
