// Package topology provides bounded-hop shortest path and connectivity
// partitioning over the peer/acoustic-edge graph, used by the calibration
// orchestrator to recover missing acoustic distance pairs (spec.md §4.7)
// and to partition the walled grid into rooms.
//
// Grounded on the teacher's apoc/algo (Dijkstra/BFS over *Node graphs) and
// apoc/graph packages, generalized from the teacher's property-graph Node
// type to a plain string-keyed adjacency map.
package topology

import "container/heap"

// Graph is a weighted undirected graph keyed by node ID.
type Graph struct {
	adjacency map[string]map[string]float64
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{adjacency: make(map[string]map[string]float64)}
}

// AddEdge adds an undirected weighted edge between a and b, overwriting
// any existing weight between that pair.
func (g *Graph) AddEdge(a, b string, weight float64) {
	if g.adjacency[a] == nil {
		g.adjacency[a] = make(map[string]float64)
	}
	if g.adjacency[b] == nil {
		g.adjacency[b] = make(map[string]float64)
	}
	g.adjacency[a][b] = weight
	g.adjacency[b][a] = weight
}

// Neighbors returns a's direct neighbors and edge weights.
func (g *Graph) Neighbors(a string) map[string]float64 { return g.adjacency[a] }

type pqItem struct {
	node string
	dist float64
	hops int
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// BoundedHopShortestPath runs Dijkstra from start to end, rejecting any
// path that exceeds maxHops edges, per spec.md §4.7: "Missing acoustic
// pairs may be recovered by bounded-hop shortest path (hop cap H=3) over
// known direct acoustic edges." Returns ok=false if no path within the hop
// cap exists.
func (g *Graph) BoundedHopShortestPath(start, end string, maxHops int) (dist float64, ok bool) {
	if start == end {
		return 0, true
	}
	type hopState struct {
		node string
		hops int
	}
	visited := make(map[hopState]bool)
	pq := &priorityQueue{{node: start, dist: 0, hops: 0}}
	heap.Init(pq)
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[hopState{cur.node, cur.hops}] {
			continue
		}
		visited[hopState{cur.node, cur.hops}] = true
		if cur.node == end {
			return cur.dist, true
		}
		if cur.hops >= maxHops {
			continue
		}
		for neighbor, w := range g.adjacency[cur.node] {
			if visited[hopState{neighbor, cur.hops + 1}] {
				continue
			}
			heap.Push(pq, pqItem{node: neighbor, dist: cur.dist + w, hops: cur.hops + 1})
		}
	}
	return 0, false
}

// ThinGrid reduces a binary Cols x Rows grid (row-major, on[r*Cols+c] true
// meaning "candidate wall cell") to a 1-cell-wide skeleton via Zhang-Suen
// thinning, so C6's peak-threshold wall candidates (spec.md §4.6: "cells
// exceeding a peak threshold with morphological thinning") collapse to
// thin wall lines instead of solid blobs before the calibration orchestrator
// turns them into rooms.
func ThinGrid(cols, rows int, on []bool) []bool {
	cur := make([]bool, len(on))
	copy(cur, on)
	at := func(r, c int) int {
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return 0
		}
		if cur[r*cols+c] {
			return 1
		}
		return 0
	}
	for {
		changed := false
		for _, step := range [2]int{1, 2} {
			var toRemove []int
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					if !cur[r*cols+c] {
						continue
					}
					p2, p3, p4 := at(r-1, c), at(r-1, c+1), at(r, c+1)
					p5, p6, p7 := at(r+1, c+1), at(r+1, c), at(r+1, c-1)
					p8, p9 := at(r, c-1), at(r-1, c-1)
					neighbors := [8]int{p2, p3, p4, p5, p6, p7, p8, p9}
					b := 0
					for _, n := range neighbors {
						b += n
					}
					if b < 2 || b > 6 {
						continue
					}
					a := 0
					for i := 0; i < 8; i++ {
						if neighbors[i] == 0 && neighbors[(i+1)%8] == 1 {
							a++
						}
					}
					if a != 1 {
						continue
					}
					if step == 1 {
						if p2*p4*p6 != 0 || p4*p6*p8 != 0 {
							continue
						}
					} else {
						if p2*p4*p8 != 0 || p2*p6*p8 != 0 {
							continue
						}
					}
					toRemove = append(toRemove, r*cols+c)
				}
			}
			for _, idx := range toRemove {
				cur[idx] = false
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return cur
}

// ConnectedComponents partitions the graph into connected components via
// BFS, used to derive rooms from the connectivity of the walled grid
// (spec.md §4.7: "Rooms emerge from connectivity partitions of the walled
// grid").
func (g *Graph) ConnectedComponents() [][]string {
	visited := make(map[string]bool)
	var components [][]string
	for node := range g.adjacency {
		if visited[node] {
			continue
		}
		var component []string
		queue := []string{node}
		visited[node] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			component = append(component, cur)
			for neighbor := range g.adjacency[cur] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
		components = append(components, component)
	}
	return components
}
