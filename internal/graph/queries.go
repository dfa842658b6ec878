package graph

import (
	"fmt"
	"sort"
	"strings"
)

// ReadyTasks returns every node not in completed whose dependencies are
// all present in completed, in canonical (name-sorted) order.
func (g *Graph) ReadyTasks(completed map[string]bool) []string {
	var out []string
	for _, n := range g.nodes {
		if completed[n.Name] {
			continue
		}
		ready := true
		for _, dep := range n.DependsOn {
			if !completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, n.Name)
		}
	}
	return out
}

// ExecutionLevels greedily layers the graph: each level is the ready set
// given every earlier level as completed.
func (g *Graph) ExecutionLevels() [][]string {
	completed := make(map[string]bool, len(g.nodes))
	var levels [][]string
	for len(completed) < len(g.nodes) {
		ready := g.ReadyTasks(completed)
		if len(ready) == 0 {
			// Unreachable for a validated graph; guard against infinite loop.
			break
		}
		levels = append(levels, ready)
		for _, name := range ready {
			completed[name] = true
		}
	}
	return levels
}

// CriticalPath returns the longest dependency chain in the graph, in
// topological order, reconstructed by following the longest-path parent
// pointer from the deepest node.
func (g *Graph) CriticalPath() []string {
	if len(g.nodes) == 0 {
		return nil
	}
	parent := make([]int, len(g.nodes))
	best := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}
	for _, u := range g.topologicalIdx {
		for _, v := range g.outgoing[u] {
			if cand := best[u] + 1; cand > best[v] {
				best[v] = cand
				parent[v] = u
			}
		}
	}
	argmax := g.topologicalIdx[0]
	for _, idx := range g.topologicalIdx {
		if best[idx] > best[argmax] {
			argmax = idx
		}
	}
	var path []int
	for cur := argmax; cur != -1; cur = parent[cur] {
		path = append(path, cur)
	}
	out := make([]string, len(path))
	for i, idx := range path {
		out[len(path)-1-i] = g.nodes[idx].Name
	}
	return out
}

// VisualizeASCII renders execution levels, one line per level, followed
// by the critical path when it is longer than a single node.
func (g *Graph) VisualizeASCII() string {
	var b strings.Builder
	levels := g.ExecutionLevels()
	for i, level := range levels {
		sorted := append([]string(nil), level...)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "level %d: %s\n", i, strings.Join(sorted, ", "))
	}
	if path := g.CriticalPath(); len(path) > 1 {
		fmt.Fprintf(&b, "critical path: %s\n", strings.Join(path, " -> "))
	}
	return b.String()
}
