package plan

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/graph"
)

// Targets resolves -target addresses against the nodes of g. A resource
// address selects all of its instances. For an apply the selection grows by
// every dependency; for a destroy by every dependent, since those must go
// first.
func Targets(g *graph.Graph, targets []string, destroy bool) (sets.Set[string], error) {
	selected := sets.New[string]()
	for _, target := range targets {
		inst, err := addrs.ParseInstance(target)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", target, err)
		}
		matched := false
		for _, node := range g.Nodes() {
			if matchTarget(inst, node) {
				selected.Insert(node)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("target %s matches no resource in configuration or state", target)
		}
	}

	out := selected.Clone()
	for _, node := range sets.List(selected) {
		if destroy {
			out = out.Union(g.Descendants(node))
		} else {
			out = out.Union(g.Ancestors(node))
		}
	}
	return out, nil
}

func matchTarget(target addrs.Instance, node string) bool {
	if target.Index != addrs.NoIndex {
		return node == target.String()
	}
	base := target.Resource.String()
	return node == base || strings.HasPrefix(node, base+"[")
}
