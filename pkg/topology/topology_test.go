package topology

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedHopShortestPathWithinCap(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", 3)
	g.AddEdge("b", "c", 4)
	g.AddEdge("c", "d", 5)
	dist, ok := g.BoundedHopShortestPath("a", "d", 3)
	assert.True(t, ok)
	assert.InDelta(t, 12, dist, 1e-9)
}

func TestBoundedHopShortestPathExceedsCap(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", 1)
	g.AddEdge("b", "c", 1)
	g.AddEdge("c", "d", 1)
	_, ok := g.BoundedHopShortestPath("a", "d", 2)
	assert.False(t, ok)
}

func TestBoundedHopShortestPathSameNode(t *testing.T) {
	g := NewGraph()
	dist, ok := g.BoundedHopShortestPath("a", "a", 3)
	assert.True(t, ok)
	assert.Equal(t, 0.0, dist)
}

func TestThinGridReducesSolidBlockToSkeleton(t *testing.T) {
	cols, rows := 5, 5
	on := make([]bool, cols*rows)
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			on[r*cols+c] = true
		}
	}
	thinned := topologyCount(ThinGrid(cols, rows, on))
	blockCount := topologyCount(on)
	assert.True(t, thinned < blockCount)
	assert.True(t, thinned > 0)
}

func TestThinGridPreservesAlreadyThinLine(t *testing.T) {
	cols, rows := 5, 1
	on := []bool{true, true, true, true, true}
	thinned := ThinGrid(cols, rows, on)
	assert.Equal(t, topologyCount(on), topologyCount(thinned))
}

func topologyCount(cells []bool) int {
	n := 0
	for _, v := range cells {
		if v {
			n++
		}
	}
	return n
}

func TestConnectedComponents(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", 1)
	g.AddEdge("c", "d", 1)
	comps := g.ConnectedComponents()
	assert.Equal(t, 2, len(comps))
	sizes := []int{len(comps[0]), len(comps[1])}
	sort.Ints(sizes)
	assert.Equal(t, []int{2, 2}, sizes)
}
