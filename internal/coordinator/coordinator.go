// Package coordinator implements the ParallelCoordinator: it drives a
// validated graph.Graph to completion under bounded concurrency,
// mediates a resourcePool, propagates failure to downstream tasks, and
// surfaces progress events.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"prompter/internal/graph"
	"prompter/internal/observer"
	"prompter/internal/state"
	"prompter/internal/task"
)

// DefaultConcurrency matches the spec's default parallel cap.
const DefaultConcurrency = 4

// DefaultPollInterval matches the spec's ~100ms scheduler poll.
const DefaultPollInterval = 100 * time.Millisecond

// Runner executes a single task to completion. *executor.Executor
// satisfies this; tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, spec task.Spec) task.Result
}

// Result is the outcome of driving the whole graph.
type Result struct {
	Completed []string
	Failed    []string
	Skipped   []string
}

// Coordinator drives graph g to completion.
type Coordinator struct {
	Graph        *graph.Graph
	Runner       Runner
	Store        *state.Store
	Observer     observer.Observer
	Concurrency  int
	PollInterval time.Duration
	Logger       zerolog.Logger

	mu       sync.Mutex
	state    graph.ExecutionState
	sem      *semaphore.Weighted
	shutdown bool
}

// New builds a Coordinator. concurrency <= 0 falls back to DefaultConcurrency.
func New(g *graph.Graph, runner Runner, store *state.Store, obs observer.Observer, concurrency int, logger zerolog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if obs == nil {
		obs = observer.None{}
	}
	return &Coordinator{
		Graph:        g,
		Runner:       runner,
		Store:        store,
		Observer:     observer.Safe(obs),
		Concurrency:  concurrency,
		PollInterval: DefaultPollInterval,
		Logger:       logger,
		state:        graph.NewExecutionState(g),
		sem:          semaphore.NewWeighted(int64(concurrency)),
	}
}

// Shutdown requests a graceful stop: the scheduler loop exits at its next
// iteration once in-flight workers return. It does not preempt anything.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
}

// Run drives the graph to completion and returns the final Result.
func (c *Coordinator) Run(ctx context.Context) Result {
	done := make(chan string, len(c.Graph.Nodes()))
	pool := newResourcePool(c.Concurrency)

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	inFlight := 0
	for {
		c.mu.Lock()
		if c.shutdown {
			c.mu.Unlock()
			break
		}
		c.promoteReady()
		ready := c.readyToRun()
		for _, name := range ready {
			spec := mustNode(c.Graph, name).Spec
			if !pool.canSchedule(spec) {
				continue
			}
			pool.allocate(spec)
			c.transition(name, graph.StateReady, graph.StateRunning)
			inFlight++
			go c.runWorker(ctx, spec, pool, done)
		}
		allDone := inFlight == 0 && len(c.readyOrPending()) == 0
		c.mu.Unlock()

		if allDone {
			break
		}

		select {
		case <-done:
			inFlight--
		case <-ticker.C:
		case <-ctx.Done():
			c.Shutdown()
		}
	}

	// Drain any workers still finishing after a shutdown request.
	for inFlight > 0 {
		<-done
		inFlight--
	}

	return c.finalResult()
}

// promoteReady moves every Pending task whose dependencies are all
// Completed to Ready. Must be called with c.mu held.
func (c *Coordinator) promoteReady() {
	completed := map[string]bool{}
	for name, e := range c.state {
		if e.Status == graph.StateCompleted {
			completed[name] = true
		}
	}
	for _, name := range c.Graph.ReadyTasks(completed) {
		if c.state[name].Status == graph.StatePending {
			_ = graph.Transition(c.state, name, graph.StatePending, graph.StateReady)
		}
	}
}

// readyToRun returns the names currently in the Ready state. Must be
// called with c.mu held.
func (c *Coordinator) readyToRun() []string {
	var out []string
	for _, n := range c.Graph.Nodes() {
		if c.state[n.Name].Status == graph.StateReady {
			out = append(out, n.Name)
		}
	}
	return out
}

// readyOrPending returns every task not yet in a terminal state and not
// currently running. Must be called with c.mu held.
func (c *Coordinator) readyOrPending() []string {
	var out []string
	for _, n := range c.Graph.Nodes() {
		switch c.state[n.Name].Status {
		case graph.StatePending, graph.StateReady:
			out = append(out, n.Name)
		}
	}
	return out
}

func (c *Coordinator) transition(name string, from, to graph.TaskState) {
	if err := graph.Transition(c.state, name, from, to); err != nil {
		c.Logger.Warn().Err(err).Str("task", name).Msg("unexpected state transition rejected")
	}
}

// runWorker executes one task on its own goroutine: it acquires the
// semaphore slot (the full capacity for an exclusive task, one slot
// otherwise — acquiring the whole capacity guarantees sole occupancy
// without a second code path), runs it, persists the result, and
// propagates failure.
func (c *Coordinator) runWorker(ctx context.Context, spec task.Spec, pool *resourcePool, done chan<- string) {
	weight := int64(1)
	if spec.Exclusive {
		weight = int64(c.Concurrency)
	}
	if err := c.sem.Acquire(ctx, weight); err != nil {
		c.mu.Lock()
		pool.release(spec.Name)
		c.mu.Unlock()
		done <- spec.Name
		return
	}
	defer c.sem.Release(weight)

	c.Store.MarkRunning(spec.Name)
	c.Observer.OnEvent(observer.Event{TaskName: spec.Name, Status: "running", Timestamp: time.Now()})

	result := c.Runner.Run(ctx, spec)

	c.Store.Update(result)

	c.mu.Lock()
	pool.release(spec.Name)
	var skipped []string
	if result.Success {
		c.transition(spec.Name, graph.StateRunning, graph.StateCompleted)
	} else {
		var err error
		skipped, err = graph.FailAndPropagate(c.Graph, c.state, spec.Name)
		if err != nil {
			c.Logger.Error().Err(err).Str("task", spec.Name).Msg("failure propagation error")
		}
	}
	c.mu.Unlock()

	status := "completed"
	if !result.Success {
		status = "failed"
	}
	c.Observer.OnEvent(observer.Event{TaskName: spec.Name, Status: status, Attempt: result.Attempts, Err: result.Error, Timestamp: time.Now()})

	for _, name := range skipped {
		c.Store.MarkSkipped(name, "dependency \""+spec.Name+"\" failed")
		c.Observer.OnEvent(observer.Event{TaskName: name, Status: "skipped", Timestamp: time.Now()})
	}

	done <- spec.Name
}

func (c *Coordinator) finalResult() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	var r Result
	for _, n := range c.Graph.Nodes() {
		switch c.state[n.Name].Status {
		case graph.StateCompleted:
			r.Completed = append(r.Completed, n.Name)
		case graph.StateFailed:
			r.Failed = append(r.Failed, n.Name)
		case graph.StateSkipped:
			r.Skipped = append(r.Skipped, n.Name)
		}
	}
	return r
}

func mustNode(g *graph.Graph, name string) *graph.Node {
	n, ok := g.Node(name)
	if !ok {
		panic("coordinator: unknown node " + name) // unreachable: name always comes from the graph itself
	}
	return n
}
