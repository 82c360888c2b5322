package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/state"
	"github.com/imamik/converge/internal/util/async"
)

const phaseRefresh = "refresh"

// refresh reads every instance of st through its provider, in parallel.
// Instances the provider no longer finds are dropped from st.
func (e *Engine) refresh(ctx context.Context, st *state.State) error {
	if len(st.Resources) == 0 {
		return nil
	}
	start := time.Now()
	observability.LogPhaseStart(e.observer, phaseRefresh)

	var mu sync.Mutex
	refreshed := make(map[string]*provider.Result)
	var gone []string
	done := 0

	tasks := make([]async.Task, 0, len(st.Resources))
	for _, inst := range st.Resources {
		tasks = append(tasks, async.Task{
			Name: inst.Address,
			Func: func(ctx context.Context) error {
				res, err := e.readInstance(ctx, inst)
				mu.Lock()
				defer mu.Unlock()
				done++
				e.observer.Progress(phaseRefresh, done, len(st.Resources))
				switch {
				case errors.Is(err, provider.ErrNotFound):
					gone = append(gone, inst.Address)
					e.observer.Event(observability.Event{
						Type:     observability.EventResourceDrifted,
						Phase:    phaseRefresh,
						Resource: inst.Address,
						Message:  "no longer exists, removed from state",
						Fields:   map[string]string{"id": inst.ID},
					})
					return nil
				case err != nil:
					return err
				}
				refreshed[inst.Address] = res
				e.observer.Event(observability.Event{
					Type:     observability.EventResourceRefreshed,
					Phase:    phaseRefresh,
					Resource: inst.Address,
					Message:  "refreshed",
				})
				return nil
			},
		})
	}

	err := async.RunParallel(ctx, tasks, e.settings.Parallelism)

	for _, addr := range gone {
		st.Remove(addr)
	}
	for addr, res := range refreshed {
		inst := st.Get(addr)
		if res.ID != "" {
			inst.ID = res.ID
		}
		if res.Attributes != nil {
			inst.Attributes = res.Attributes
		}
	}

	if err != nil {
		observability.LogPhaseFailed(e.observer, phaseRefresh, err)
		return fmt.Errorf("refresh failed: %w", err)
	}
	observability.LogPhaseComplete(e.observer, phaseRefresh, time.Since(start))
	return nil
}

func (e *Engine) readInstance(ctx context.Context, inst *state.Instance) (*provider.Result, error) {
	impl, err := e.resource(ctx, inst.Provider, inst.Type)
	if err != nil {
		return nil, err
	}
	var res *provider.Result
	err = e.call(ctx, phaseRefresh, "read", inst.Type, inst.Address, e.settings.Timeouts.Read, func(ctx context.Context) error {
		var err error
		res, err = impl.Read(ctx, &provider.ReadRequest{
			Stack:      e.stackName,
			Address:    inst.Address,
			ID:         inst.ID,
			Attributes: inst.Attributes,
		})
		return err
	})
	return res, err
}

// Refresh updates the stored state from the providers without changing any
// resource, and re-evaluates outputs where possible.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.withLock(ctx, "refresh", func() error {
		st, err := e.states.Read(ctx)
		if err != nil {
			return err
		}
		refreshErr := e.refresh(ctx, st)

		if refreshErr == nil {
			x, err := e.expand()
			if err != nil {
				return err
			}
			outputs, err := e.outputs(x, st)
			if err != nil {
				e.observer.Event(observability.Event{
					Type:    observability.EventValidationWarning,
					Phase:   phaseRefresh,
					Message: fmt.Sprintf("outputs not updated: %v", err),
				})
			} else {
				st.Outputs = outputs
			}
		}

		if err := e.states.Write(ctx, st); err != nil {
			return errors.Join(refreshErr, err)
		}
		e.metrics.SetStateResources(len(st.Resources))
		return refreshErr
	})
}
