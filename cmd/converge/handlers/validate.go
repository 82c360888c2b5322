package handlers

import (
	"context"
	"fmt"
)

// Validate checks the stack without touching providers or state.
func Validate(ctx context.Context, g GlobalOptions, so StackOptions) error {
	ws, err := openWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	if err := ws.engine(ws.observer()).Validate(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, "Success! The configuration is valid.")
	return err
}
