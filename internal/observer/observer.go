// Package observer defines the ProgressObserver interface and its
// concrete renderers. The core engine depends only on the interface;
// everything about terminal capability detection, CI downgrade, and
// color lives here, out of the engine's way.
package observer

import "time"

// Event is a single idempotent state-change notification. Fields beyond
// TaskName and Status are optional context for rendering; observers must
// never infer control-flow meaning from them.
type Event struct {
	TaskName  string
	Status    string // mirrors graph.TaskState / a StateStore status string
	Attempt   int
	Message   string
	Err       string
	Timestamp time.Time
}

// Observer receives state-change events for rendering. Implementations
// must be safe for concurrent calls from the scheduler and every worker,
// must not block the caller for long (no back-pressure on the engine),
// and must never panic.
type Observer interface {
	OnEvent(Event)
}

// Safe wraps an Observer so a misbehaving implementation can never bring
// down a worker: it recovers any panic and swallows it, mirroring the
// "inert sink" contract that the rest of the engine relies on.
func Safe(o Observer) Observer {
	if o == nil {
		return None{}
	}
	return safeObserver{o}
}

type safeObserver struct{ inner Observer }

func (s safeObserver) OnEvent(e Event) {
	defer func() { _ = recover() }()
	s.inner.OnEvent(e)
}

// None discards every event. It is the renderer for --progress=none or
// PROMPTER_PROGRESS_MODE=none; a stdout without a terminal gets the
// simple renderer instead.
type None struct{}

func (None) OnEvent(Event) {}

// Multi fans one event out to several observers, in order.
type Multi []Observer

func (m Multi) OnEvent(e Event) {
	for _, o := range m {
		o.OnEvent(e)
	}
}
