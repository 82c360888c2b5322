package state

import (
	"context"
	"errors"
	"fmt"
)

// Mutate locks the state for operation, applies fn to the stored state and
// writes the result. Nothing is written when fn fails.
func (m *Manager) Mutate(ctx context.Context, operation string, fn func(*State) error) (err error) {
	unlock, err := m.Lock(ctx, operation)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release state lock: %w", uerr))
		}
	}()

	s, err := m.Read(ctx)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return m.Write(ctx, s)
}

// Taint marks an instance for replacement on the next apply, or clears the
// mark.
func (m *Manager) Taint(ctx context.Context, address string, tainted bool) error {
	op := "taint"
	if !tainted {
		op = "untaint"
	}
	return m.Mutate(ctx, op, func(s *State) error {
		inst := s.Get(address)
		if inst == nil {
			return fmt.Errorf("no instance %s in state", address)
		}
		if inst.Tainted == tainted {
			if tainted {
				return fmt.Errorf("%s is already tainted", address)
			}
			return fmt.Errorf("%s is not tainted", address)
		}
		inst.Tainted = tainted
		return nil
	})
}

// Forget removes instances from state without touching the real resources.
// Every address must exist.
func (m *Manager) Forget(ctx context.Context, addresses ...string) error {
	return m.Mutate(ctx, "state rm", func(s *State) error {
		var errs []error
		for _, addr := range addresses {
			if s.Get(addr) == nil {
				errs = append(errs, fmt.Errorf("no instance %s in state", addr))
			}
		}
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		for _, addr := range addresses {
			s.Remove(addr)
		}
		return nil
	})
}
