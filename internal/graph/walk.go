package graph

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Walker configures a parallel graph walk.
type Walker struct {
	// Parallelism bounds the number of concurrent Visit calls. Values below
	// one mean one.
	Parallelism int
	// Visit is called for each node once all of its dependencies succeeded.
	Visit func(ctx context.Context, id string) error
	// Skip, if set, is called for each node not visited because cause failed
	// (or because the walk was cancelled, in which case cause is empty).
	Skip func(id, cause string)
}

type visitResult struct {
	id  string
	err error
}

// Walk visits the graph in dependency order. A failed node causes all of its
// descendants to be skipped while independent branches continue. When ctx is
// cancelled no new nodes start; the walk waits for in-flight visits. The
// returned error joins every visit error and the context error.
func (g *Graph) Walk(ctx context.Context, w Walker) error {
	if cycle := g.Cycle(); cycle != nil {
		return &CycleError{Path: cycle}
	}
	limit := w.Parallelism
	if limit < 1 {
		limit = 1
	}

	remaining := make(map[string]int, g.nodes.Len())
	var ready []string
	for _, n := range g.Nodes() {
		remaining[n] = g.deps[n].Len()
		if remaining[n] == 0 {
			ready = append(ready, n)
		}
	}

	skipped := sets.New[string]()
	finished := sets.New[string]()
	results := make(chan visitResult)
	running := 0
	var errs []error

	skip := func(id, cause string) {
		if skipped.Has(id) || finished.Has(id) {
			return
		}
		skipped.Insert(id)
		if w.Skip != nil {
			w.Skip(id, cause)
		}
	}

	for {
		for running < limit && len(ready) > 0 && ctx.Err() == nil {
			id := ready[0]
			ready = ready[1:]
			if skipped.Has(id) {
				continue
			}
			running++
			go func(id string) {
				results <- visitResult{id: id, err: w.Visit(ctx, id)}
			}(id)
		}
		if running == 0 {
			break
		}

		res := <-results
		running--
		finished.Insert(res.id)
		if res.err != nil {
			errs = append(errs, res.err)
			for _, d := range sets.List(g.Descendants(res.id)) {
				skip(d, res.id)
			}
			continue
		}
		for _, d := range g.Dependents(res.id) {
			remaining[d]--
			if remaining[d] == 0 && !skipped.Has(d) {
				ready = insertSorted(ready, d)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		for _, n := range g.Nodes() {
			skip(n, "")
		}
		errs = append(errs, fmt.Errorf("walk interrupted: %w", err))
	}
	return errors.Join(errs...)
}
