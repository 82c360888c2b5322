package handlers

import "context"

// Graph writes the dependency graph, or the destroy order, as DOT.
func Graph(ctx context.Context, g GlobalOptions, so StackOptions, destroy bool) error {
	ws, err := openWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	gr, err := ws.engine(ws.observer()).Graph(ctx, destroy)
	if err != nil {
		return err
	}
	return gr.WriteDOT(stdout, ws.name)
}
