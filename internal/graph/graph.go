// Package graph builds and validates the dependency DAG over a task
// list, and answers the queries the coordinator and CLI need: ready
// sets, execution levels, critical path, and an ASCII visualisation.
//
// A Graph is immutable once NewGraph returns successfully: nodes
// reference each other only by name (never by pointer), so there is no
// possibility of an ownership cycle, and the structure is safe to share
// across goroutines without locking.
package graph

import (
	"sort"

	"prompter/internal/task"
)

// Node is one task's position in the graph: its spec plus its resolved
// dependency/dependent name sets and degree counts.
type Node struct {
	Name       string
	Spec       task.Spec
	DependsOn  []string // sorted
	Dependents []string // sorted
	InDegree   int
	OutDegree  int

	index int // canonical index, stable for the lifetime of the Graph
}

// Graph is a validated, immutable DAG over a task list.
type Graph struct {
	nodesByName map[string]*Node
	nodes       []*Node // canonical order: sorted by Name

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending

	depth          []int // topological depth by canonical index
	topologicalIdx []int // canonical indices in topological order
}

// NewGraph builds and validates a Graph from specs. Validation runs
// immediately, in this order, and the first failing step aborts:
//
//  1. duplicate task names
//  2. dangling dependency references and self-loops (all found in one
//     pass and reported together)
//  3. cycles (three-colour DFS, single deterministic path reported)
//  4. topological order (Kahn's algorithm; defensive — a failure here
//     after step 3 passed would indicate an internal bug)
func NewGraph(specs []task.Spec) (*Graph, error) {
	if len(specs) == 0 {
		return nil, invalidf("no tasks")
	}

	nodesByName := make(map[string]*Node, len(specs))
	nodes := make([]*Node, 0, len(specs))

	for _, s := range specs {
		if s.Name == "" {
			return nil, invalidf("task name is required")
		}
		if _, exists := nodesByName[s.Name]; exists {
			return nil, invalidf("duplicate task name: %q", s.Name)
		}
		deps := append([]string(nil), s.DependsOn...)
		sort.Strings(deps)
		n := &Node{Name: s.Name, Spec: s, DependsOn: deps}
		nodesByName[s.Name] = n
		nodes = append(nodes, n)
	}

	// Canonical order: stable, independent of input order, so dispatch
	// order and ASCII output are a pure function of the task set.
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for i, n := range nodes {
		n.index = i
	}

	// Dangling references: collect every missing reference before failing.
	var missing []string
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := nodesByName[dep]; !ok {
				missing = append(missing, "task \""+n.Name+"\" depends on unknown task \""+dep+"\"")
			}
			if dep == n.Name {
				missing = append(missing, "task \""+n.Name+"\" depends on itself")
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, invalidMany(missing)
	}

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			from := nodesByName[dep].index
			to := n.index
			outgoing[from] = append(outgoing[from], to)
			incoming[to] = append(incoming[to], from)
		}
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
		sort.Ints(incoming[i])
	}

	g := &Graph{nodesByName: nodesByName, nodes: nodes, outgoing: outgoing, incoming: incoming}

	if path := g.findCycle(); path != nil {
		return nil, cycleError(path)
	}

	order, ok := g.kahnOrder()
	if !ok {
		// Defensive: step 3 (three-colour DFS) should have already caught
		// any cycle. Reaching here indicates the two algorithms disagree.
		return nil, invalidf("topological sort failed after cycle check passed (internal inconsistency)")
	}
	g.topologicalIdx = order
	g.depth = g.computeDepth(order)

	for _, n := range nodes {
		n.InDegree = len(incoming[n.index])
		n.OutDegree = len(outgoing[n.index])
	}
	// Populate Dependents now that indices are stable.
	for _, n := range nodes {
		var dependents []string
		for _, toIdx := range outgoing[n.index] {
			dependents = append(dependents, nodes[toIdx].Name)
		}
		sort.Strings(dependents)
		n.Dependents = dependents
	}

	return g, nil
}

// Node returns a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodesByName[name]
	return n, ok
}

// Nodes returns the nodes in canonical (name-sorted) order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Names returns task names in canonical order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Name
	}
	return out
}

// Depth returns the topological depth of name: the length of the
// longest path from any root to it.
func (g *Graph) Depth(name string) (int, bool) {
	n, ok := g.nodesByName[name]
	if !ok {
		return 0, false
	}
	return g.depth[n.index], true
}

// TopologicalOrder returns a deterministic topological ordering of task names.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, len(g.topologicalIdx))
	for i, idx := range g.topologicalIdx {
		out[i] = g.nodes[idx].Name
	}
	return out
}

func (g *Graph) computeDepth(order []int) []int {
	depth := make([]int, len(g.nodes))
	for _, u := range order {
		maxParent := 0
		for _, p := range g.incoming[u] {
			if cand := depth[p] + 1; cand > maxParent {
				maxParent = cand
			}
		}
		depth[u] = maxParent
	}
	return depth
}

// TransitiveDependents returns every node reachable by following
// dependent edges forward from name, i.e. every task that would need to
// be skipped if name failed.
func (g *Graph) TransitiveDependents(name string) []string {
	start, ok := g.nodesByName[name]
	if !ok {
		return nil
	}
	visited := make(map[int]bool)
	queue := []int{start.index}
	var out []string
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.outgoing[u] {
			if visited[v] {
				continue
			}
			visited[v] = true
			out = append(out, g.nodes[v].Name)
			queue = append(queue, v)
		}
	}
	sort.Strings(out)
	return out
}
