package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/converge/internal/graph"
)

// net <- sub[0], sub[1] <- vm ; other is independent
func targetGraph() *graph.Graph {
	g := graph.New()
	for _, n := range []string{"test_thing.net", "test_thing.sub[0]", "test_thing.sub[1]", "test_thing.vm", "test_thing.other"} {
		g.Add(n)
	}
	g.Connect("test_thing.sub[0]", "test_thing.net")
	g.Connect("test_thing.sub[1]", "test_thing.net")
	g.Connect("test_thing.vm", "test_thing.sub[0]")
	return g
}

func TestTargets_ApplyIncludesDependencies(t *testing.T) {
	got, err := Targets(targetGraph(), []string{"test_thing.vm"}, false)
	require.NoError(t, err)
	assert.Equal(t, sets.New("test_thing.vm", "test_thing.sub[0]", "test_thing.net"), got)
}

func TestTargets_ResourceSelectsAllInstances(t *testing.T) {
	got, err := Targets(targetGraph(), []string{"test_thing.sub"}, false)
	require.NoError(t, err)
	assert.Equal(t, sets.New("test_thing.sub[0]", "test_thing.sub[1]", "test_thing.net"), got)
}

func TestTargets_DestroyIncludesDependents(t *testing.T) {
	got, err := Targets(targetGraph(), []string{"test_thing.net"}, true)
	require.NoError(t, err)
	assert.Equal(t, sets.New("test_thing.net", "test_thing.sub[0]", "test_thing.sub[1]", "test_thing.vm"), got)
}

func TestTargets_Errors(t *testing.T) {
	_, err := Targets(targetGraph(), []string{"test_thing.missing"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches no resource")

	_, err = Targets(targetGraph(), []string{"not an address"}, false)
	require.Error(t, err)
}
