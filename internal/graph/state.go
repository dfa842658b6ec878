package graph

import (
	"container/heap"
	"fmt"
	"time"

	"prompter/internal/task"
)

// TaskState is the coordinator-local execution status of a single node,
// distinct from the StateStore's persisted status: it adds Ready and
// Skipped, which the store never sees directly.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateReady     TaskState = "ready"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
	StateSkipped   TaskState = "skipped"
)

// IsTerminal reports whether s is a final state for the run.
func IsTerminal(s TaskState) bool {
	switch s {
	case StateCompleted, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// Satisfied reports whether s counts as "dependency met" for downstream
// readiness — only a completed dependency does.
func Satisfied(s TaskState) bool { return s == StateCompleted }

// Entry is one node's coordinator-local bookkeeping.
type Entry struct {
	Status    TaskState
	Result    *task.Result
	StartTime time.Time
	EndTime   time.Time
}

// ExecutionState is the coordinator's in-memory table, one Entry per
// task name. It is not persisted directly; the coordinator derives
// StateStore updates from it. Callers must serialise access themselves
// (the coordinator does so with a mutex); ExecutionState itself performs
// no locking.
type ExecutionState map[string]*Entry

// NewExecutionState seeds every node in g as Pending.
func NewExecutionState(g *Graph) ExecutionState {
	st := make(ExecutionState, len(g.nodes))
	for _, n := range g.nodes {
		st[n.Name] = &Entry{Status: StatePending}
	}
	return st
}

var allowedTransition = map[TaskState]map[TaskState]bool{
	StatePending: {StateReady: true, StateSkipped: true},
	StateReady:   {StateRunning: true},
	StateRunning: {StateCompleted: true, StateFailed: true},
}

// Transition performs a validated state change for a single task. It
// fails if from does not match the task's current recorded status, or if
// from -> to is not a legal edge in the state machine (see the data
// model invariants: pending -> ready -> running -> {completed, failed},
// or pending -> skipped, never backwards).
func Transition(state ExecutionState, name string, from, to TaskState) error {
	e, ok := state[name]
	if !ok {
		return fmt.Errorf("unknown task in execution state: %q", name)
	}
	if e.Status != from {
		return fmt.Errorf("invalid transition for %q: expected current state %s, got %s", name, from, e.Status)
	}
	if !allowedTransition[from][to] {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", name, from, to)
	}
	e.Status = to
	return nil
}

// FailAndPropagate transitions name from Running to Failed (a no-op if
// it is already Failed) and walks its transitive dependents in
// deterministic canonical-index order, marking every Pending dependent
// Skipped. A dependent found Running is an invariant violation: it means
// a task started before its failed dependency's failure was observed,
// which should never happen under the coordinator's own scheduling
// discipline.
func FailAndPropagate(g *Graph, state ExecutionState, name string) ([]string, error) {
	node, ok := g.nodesByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown task: %q", name)
	}
	e, ok := state[name]
	if !ok {
		return nil, fmt.Errorf("missing execution state for %q", name)
	}
	if e.Status != StateRunning && e.Status != StateFailed {
		return nil, fmt.Errorf("cannot fail %q from state %s", name, e.Status)
	}
	e.Status = StateFailed

	visited := make([]bool, len(g.nodes))
	visited[node.index] = true

	hq := &intMinHeap{}
	heap.Init(hq)
	for _, d := range g.outgoing[node.index] {
		heap.Push(hq, d)
	}

	var skipped []string
	for hq.Len() > 0 {
		u := heap.Pop(hq).(int)
		if visited[u] {
			continue
		}
		visited[u] = true

		depName := g.nodes[u].Name
		depEntry, ok := state[depName]
		if !ok {
			return nil, fmt.Errorf("missing execution state for %q", depName)
		}

		switch depEntry.Status {
		case StatePending, StateReady:
			depEntry.Status = StateSkipped
			skipped = append(skipped, depName)
		case StateRunning:
			return nil, fmt.Errorf("invariant violation: downstream task %q is running during failure propagation of %q", depName, name)
		default:
			// Terminal already (completed/failed/skipped): leave unchanged.
		}

		for _, v := range g.outgoing[u] {
			if !visited[v] {
				heap.Push(hq, v)
			}
		}
	}
	return skipped, nil
}
