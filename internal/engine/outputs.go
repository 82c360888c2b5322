package engine

import (
	"errors"
	"fmt"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/state"
)

// stateScope evaluates expressions against the recorded instances of st.
// The caller must keep st stable while the scope is in use.
func (e *Engine) stateScope(x *expansion, st *state.State) *scope {
	return &scope{
		vars:   e.vars,
		index:  addrs.NoIndex,
		stack:  e.stack,
		counts: x.counts,
		object: func(address string) (map[string]any, bool) {
			inst := st.Get(address)
			if inst == nil {
				return nil, false
			}
			return objectOf(inst), true
		},
	}
}

// outputs evaluates every declared output against st.
func (e *Engine) outputs(x *expansion, st *state.State) (map[string]*state.OutputValue, error) {
	sc := e.stateScope(x, st)
	out := make(map[string]*state.OutputValue, len(e.stack.Outputs))
	var errs []error
	for _, name := range e.stack.OutputNames() {
		o := e.stack.Outputs[name]
		v, err := expr.EvalValue(o.Value, sc)
		if err != nil {
			errs = append(errs, fmt.Errorf("output %s: %w", name, err))
			continue
		}
		if expr.ContainsUnknown(v) {
			errs = append(errs, fmt.Errorf("output %s: refers to a resource that is not in state", name))
			continue
		}
		out[name] = &state.OutputValue{Value: v, Sensitive: o.Sensitive}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
