// Package graph resolves asset upstream references into a validated DAG and
// answers ordering and reachability queries over it.
//
// A Graph is immutable once built and safe for concurrent readers.
package graph

import (
	"container/heap"
	"fmt"
	"sort"

	"sidas/internal/asset"
)

type Graph struct {
	names []string       // sorted; index is the canonical node id
	index map[string]int // name -> id

	upstream   [][]int // sorted ids
	downstream [][]int // sorted ids

	order []int // full topological order
	depth []int
}

// Build validates descriptors and returns the graph. Errors match ErrGraph:
// *DuplicateAssetError, *UnknownUpstreamError, or *CycleError.
func Build(descriptors []asset.Descriptor) (*Graph, error) {
	g := &Graph{index: make(map[string]int, len(descriptors))}

	for _, d := range descriptors {
		if _, dup := g.index[d.Name]; dup {
			return nil, &DuplicateAssetError{Asset: d.Name}
		}
		g.index[d.Name] = -1
		g.names = append(g.names, d.Name)
	}
	sort.Strings(g.names)
	for i, n := range g.names {
		g.index[n] = i
	}

	byName := make(map[string]asset.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name] = d
	}

	g.upstream = make([][]int, len(g.names))
	g.downstream = make([][]int, len(g.names))
	for i, n := range g.names {
		for _, up := range byName[n].SortedUpstreams() {
			j, ok := g.index[up]
			if !ok {
				return nil, &UnknownUpstreamError{Asset: n, Upstream: up}
			}
			g.upstream[i] = append(g.upstream[i], j)
			g.downstream[j] = append(g.downstream[j], i)
		}
	}
	for i := range g.downstream {
		sort.Ints(g.downstream[i])
	}

	if path := g.findCycle(); path != nil {
		return nil, &CycleError{Path: path}
	}
	g.order = g.kahn()
	g.depth = make([]int, len(g.names))
	for _, n := range g.order {
		for _, u := range g.upstream[n] {
			if g.depth[u]+1 > g.depth[n] {
				g.depth[n] = g.depth[u] + 1
			}
		}
	}
	return g, nil
}

// findCycle runs a three-colour DFS from every unvisited node in name order
// and returns the first cycle found, closed on its starting asset.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.names))
	parent := make([]int, len(g.names))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		for _, v := range g.downstream[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if visit(v) {
					return true
				}
			case gray:
				// Back edge u -> v: walk parents from u back to v.
				cycle = []int{v}
				for cur := u; cur != v && cur != -1; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.names {
		if color[i] == white && visit(i) {
			break
		}
	}
	if cycle == nil {
		return nil
	}
	out := make([]string, len(cycle))
	for i, id := range cycle {
		out[len(cycle)-1-i] = g.names[id]
	}
	return out
}

type idHeap []int

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *idHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// kahn orders nodes with ready ties broken by name (ids are name-sorted).
func (g *Graph) kahn() []int {
	indeg := make([]int, len(g.names))
	for i := range g.upstream {
		indeg[i] = len(g.upstream[i])
	}
	ready := &idHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}
	out := make([]int, 0, len(g.names))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.downstream[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

func (g *Graph) id(name string) (int, error) {
	i, ok := g.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAsset, name)
	}
	return i, nil
}

func (g *Graph) Len() int { return len(g.names) }

// Names returns all asset names, sorted.
func (g *Graph) Names() []string {
	return append([]string(nil), g.names...)
}

// Has reports whether name is in the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// TopologicalOrder lists assets so that each follows all of its upstreams.
// An empty target means every asset; otherwise the target and its transitive
// upstreams, in the same relative order as the full listing.
func (g *Graph) TopologicalOrder(target string) ([]string, error) {
	if target == "" {
		return g.namesOf(g.order), nil
	}
	t, err := g.id(target)
	if err != nil {
		return nil, err
	}
	keep := g.walk(t, g.upstream)
	keep[t] = true
	out := make([]string, 0, len(keep))
	for _, n := range g.order {
		if keep[n] {
			out = append(out, g.names[n])
		}
	}
	return out, nil
}

// Ancestors returns every asset name transitively depends on, sorted.
func (g *Graph) Ancestors(name string) ([]string, error) {
	i, err := g.id(name)
	if err != nil {
		return nil, err
	}
	return g.sortedSet(g.walk(i, g.upstream)), nil
}

// Descendants returns every asset that transitively depends on name, sorted.
func (g *Graph) Descendants(name string) ([]string, error) {
	i, err := g.id(name)
	if err != nil {
		return nil, err
	}
	return g.sortedSet(g.walk(i, g.downstream)), nil
}

// Upstreams returns the direct upstreams of name, sorted.
func (g *Graph) Upstreams(name string) ([]string, error) {
	i, err := g.id(name)
	if err != nil {
		return nil, err
	}
	return g.namesOf(g.upstream[i]), nil
}

// Downstreams returns the direct consumers of name, sorted.
func (g *Graph) Downstreams(name string) ([]string, error) {
	i, err := g.id(name)
	if err != nil {
		return nil, err
	}
	return g.namesOf(g.downstream[i]), nil
}

// Depth is the length of the longest upstream chain below name; roots are 0.
func (g *Graph) Depth(name string) (int, error) {
	i, err := g.id(name)
	if err != nil {
		return 0, err
	}
	return g.depth[i], nil
}

func (g *Graph) walk(start int, edges [][]int) map[int]bool {
	seen := make(map[int]bool)
	stack := append([]int(nil), edges[start]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, edges[n]...)
	}
	return seen
}

func (g *Graph) sortedSet(set map[int]bool) []string {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return g.namesOf(ids)
}

func (g *Graph) namesOf(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.names[id]
	}
	return out
}
