// Package graph implements the dependency graph used to order resource
// operations.
//
// Nodes are opaque string IDs. An edge from A to B means A depends on B:
// B is visited before A in topological order.
package graph

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ErrCycle is returned when the graph contains a dependency cycle.
var ErrCycle = errors.New("dependency cycle")

// CycleError reports the nodes forming a cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Graph is a directed graph of dependencies. It is not safe for concurrent
// mutation.
type Graph struct {
	nodes      sets.Set[string]
	deps       map[string]sets.Set[string]
	dependents map[string]sets.Set[string]
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      sets.New[string](),
		deps:       make(map[string]sets.Set[string]),
		dependents: make(map[string]sets.Set[string]),
	}
}

// Add inserts a node. Adding an existing node is a no-op.
func (g *Graph) Add(id string) {
	if g.nodes.Has(id) {
		return
	}
	g.nodes.Insert(id)
	g.deps[id] = sets.New[string]()
	g.dependents[id] = sets.New[string]()
}

// Connect records that from depends on to, adding both nodes if needed.
func (g *Graph) Connect(from, to string) {
	g.Add(from)
	g.Add(to)
	g.deps[from].Insert(to)
	g.dependents[to].Insert(from)
}

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool { return g.nodes.Has(id) }

// Len returns the number of nodes.
func (g *Graph) Len() int { return g.nodes.Len() }

// Nodes returns every node, sorted.
func (g *Graph) Nodes() []string { return sets.List(g.nodes) }

// Dependencies returns the direct dependencies of id, sorted.
func (g *Graph) Dependencies(id string) []string { return sets.List(g.deps[id]) }

// Dependents returns the nodes directly depending on id, sorted.
func (g *Graph) Dependents(id string) []string { return sets.List(g.dependents[id]) }

// Descendants returns every node that transitively depends on id.
func (g *Graph) Descendants(id string) sets.Set[string] {
	return g.closure(id, g.dependents)
}

// Ancestors returns every node id transitively depends on.
func (g *Graph) Ancestors(id string) sets.Set[string] {
	return g.closure(id, g.deps)
}

func (g *Graph) closure(id string, edges map[string]sets.Set[string]) sets.Set[string] {
	seen := sets.New[string]()
	stack := sets.List(edges[id])
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen.Has(n) {
			continue
		}
		seen.Insert(n)
		stack = append(stack, sets.List(edges[n])...)
	}
	return seen
}

// Subgraph returns the graph induced by keep.
func (g *Graph) Subgraph(keep sets.Set[string]) *Graph {
	out := New()
	for _, n := range g.Nodes() {
		if !keep.Has(n) {
			continue
		}
		out.Add(n)
		for _, d := range g.Dependencies(n) {
			if keep.Has(d) {
				out.Connect(n, d)
			}
		}
	}
	return out
}

// TopoOrder returns the nodes with every dependency before its dependents.
// Ties are broken lexically so the order is deterministic.
func (g *Graph) TopoOrder() ([]string, error) {
	if cycle := g.Cycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	remaining := make(map[string]int, g.nodes.Len())
	var ready []string
	for _, n := range g.Nodes() {
		remaining[n] = g.deps[n].Len()
		if remaining[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, g.nodes.Len())
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, d := range g.Dependents(n) {
			remaining[d]--
			if remaining[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}
	return order, nil
}

// ReverseOrder returns the nodes with every dependent before its
// dependencies, the order used for destruction.
func (g *Graph) ReverseOrder() ([]string, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Cycle returns one dependency cycle as a path whose first and last element
// are the same node, or nil if the graph is acyclic.
func (g *Graph) Cycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, g.nodes.Len())
	var stack []string

	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = active
		stack = append(stack, n)
		for _, d := range g.Dependencies(n) {
			switch state[d] {
			case active:
				for i, s := range stack {
					if s == d {
						path := append([]string(nil), stack[i:]...)
						return append(path, d)
					}
				}
			case unvisited:
				if c := visit(d); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	for _, n := range g.Nodes() {
		if state[n] == unvisited {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// WriteDOT renders the graph in Graphviz DOT format. Edges point from a
// node to its dependencies.
func (g *Graph) WriteDOT(w io.Writer, name string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  compound = \"true\"\n  newrank = \"true\"\n")
	for _, n := range g.Nodes() {
		fmt.Fprintf(&b, "  %q\n", n)
	}
	for _, n := range g.Nodes() {
		for _, d := range g.Dependencies(n) {
			fmt.Fprintf(&b, "  %q -> %q\n", n, d)
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
