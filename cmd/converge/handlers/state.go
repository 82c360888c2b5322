package handlers

import (
	"context"
	"fmt"
)

// StateList prints every recorded instance.
func StateList(ctx context.Context, g GlobalOptions, so StackOptions) error {
	ws, err := openStateWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	st, err := ws.states.Read(ctx)
	if err != nil {
		return err
	}
	ws.renderer.StateList(stdout, st)
	return nil
}

// StateShow prints the attributes of one instance.
func StateShow(ctx context.Context, g GlobalOptions, so StackOptions, address string) error {
	ws, err := openStateWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	st, err := ws.states.Read(ctx)
	if err != nil {
		return err
	}
	inst := st.Get(address)
	if inst == nil {
		return fmt.Errorf("no instance %s in state", address)
	}
	return ws.renderer.Instance(stdout, inst)
}

// StateRm forgets instances without destroying them.
func StateRm(ctx context.Context, g GlobalOptions, so StackOptions, addresses []string) error {
	ws, err := openStateWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	if err := ws.states.Forget(ctx, addresses...); err != nil {
		return err
	}
	for _, a := range addresses {
		fmt.Fprintf(stdout, "Removed %s\n", a)
	}
	fmt.Fprintf(stdout, "Successfully removed %d resource instance(s).\n", len(addresses))
	return nil
}

// Taint marks an instance for replacement on the next apply.
func Taint(ctx context.Context, g GlobalOptions, so StackOptions, address string) error {
	return setTainted(ctx, g, so, address, true)
}

// Untaint clears the taint mark.
func Untaint(ctx context.Context, g GlobalOptions, so StackOptions, address string) error {
	return setTainted(ctx, g, so, address, false)
}

func setTainted(ctx context.Context, g GlobalOptions, so StackOptions, address string, tainted bool) error {
	ws, err := openStateWorkspace(ctx, g, so)
	if err != nil {
		return err
	}
	if err := ws.states.Taint(ctx, address, tainted); err != nil {
		return err
	}
	verb := "tainted"
	if !tainted {
		verb = "untainted"
	}
	_, err = fmt.Fprintf(stdout, "Resource instance %s has been marked as %s.\n", address, verb)
	return err
}
