// Package sequential implements the SequentialEngine: walks a linear
// task list with an index cursor, honoring jump/repeat/stop/next
// control-flow directives, under a hard iteration ceiling that contains
// runaway loops.
package sequential

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"prompter/internal/errs"
	"prompter/internal/observer"
	"prompter/internal/state"
	"prompter/internal/task"
)

// DefaultIterationCeiling matches the spec's default of 1000, overridable
// by PROMPTER_MAX_ITERATIONS.
const DefaultIterationCeiling = 1000

// IterationCeilingEnv is the environment variable that overrides the ceiling.
const IterationCeilingEnv = "PROMPTER_MAX_ITERATIONS"

// Runner executes a single task to completion, same contract as
// coordinator.Runner — defined again here so this package has no
// dependency on coordinator.
type Runner interface {
	Run(ctx context.Context, spec task.Spec) task.Result
}

// Engine drives specs in order, honoring each task's on_success/on_failure.
type Engine struct {
	Specs              []task.Spec
	Runner             Runner
	Store              *state.Store
	Observer           observer.Observer
	AllowInfiniteLoops bool
	IterationCeiling   int
	Logger             zerolog.Logger
}

// New builds an Engine. ceiling <= 0 resolves DefaultIterationCeiling,
// then PROMPTER_MAX_ITERATIONS, in that order of increasing priority.
func New(specs []task.Spec, runner Runner, store *state.Store, obs observer.Observer, allowInfiniteLoops bool, ceiling int, logger zerolog.Logger) *Engine {
	if obs == nil {
		obs = observer.None{}
	}
	if ceiling <= 0 {
		ceiling = resolveCeiling()
	}
	return &Engine{
		Specs:              specs,
		Runner:             runner,
		Store:              store,
		Observer:           observer.Safe(obs),
		AllowInfiniteLoops: allowInfiniteLoops,
		IterationCeiling:   ceiling,
		Logger:             logger,
	}
}

func resolveCeiling() int {
	if v := os.Getenv(IterationCeilingEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultIterationCeiling
}

// Result is the outcome of driving the whole task list.
type Result struct {
	Executed []string // in execution order, including repeats/jumps
	Failed   bool
}

// Run walks the task list to completion, or aborts with a LoopSafetyError
// if the iteration ceiling is exceeded.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	taskMap := make(map[string]task.Spec, len(e.Specs))
	order := append([]task.Spec(nil), e.Specs...)
	for _, s := range order {
		taskMap[s.Name] = s
	}

	executedTasks := map[string]bool{}
	var executedOrder []string
	cursor := 0
	iteration := 0
	anyFailed := false

	for cursor < len(order) {
		iteration++
		if iteration > e.IterationCeiling {
			return Result{Executed: executedOrder, Failed: true}, &errs.LoopSafetyError{Ceiling: e.IterationCeiling}
		}

		current := order[cursor]

		if executedTasks[current.Name] && !e.AllowInfiniteLoops {
			cursor++
			continue
		}

		e.Store.MarkRunning(current.Name)
		e.Observer.OnEvent(observer.Event{TaskName: current.Name, Status: "running", Timestamp: time.Now()})

		result := e.Runner.Run(ctx, current)
		e.Store.Update(result)
		executedTasks[current.Name] = true
		executedOrder = append(executedOrder, current.Name)

		status := "completed"
		if !result.Success {
			status = "failed"
			anyFailed = true
		}
		e.Observer.OnEvent(observer.Event{TaskName: current.Name, Status: status, Attempt: result.Attempts, Err: result.Error, Timestamp: time.Now()})

		action := current.OnFailure
		if result.Success {
			action = current.OnSuccess
		}

		switch {
		case action == task.ActionStop:
			return Result{Executed: executedOrder, Failed: !result.Success}, nil

		case result.Success && action == task.ActionRepeat:
			delete(executedTasks, current.Name)
			// cursor stays put: re-enter the same task.

		case result.Success && action == task.ActionNext:
			cursor++

		case !result.Success && (action == task.ActionNext || action == task.ActionRetry):
			cursor++

		default:
			// action names a jump target.
			target, ok := taskMap[action]
			if !ok {
				// Unknown target: nothing to jump to: advance, mirroring
				// "next" rather than silently stalling.
				cursor++
				break
			}
			if executedTasks[action] && !e.AllowInfiniteLoops {
				// repeat is the only legal way to re-enter an
				// already-executed task; a jump back is refused unless
				// infinite loops are explicitly allowed.
				cursor++
				break
			}
			idx := indexOf(order, action)
			if idx == -1 {
				order = append(order, target)
				idx = len(order) - 1
			}
			cursor = idx
		}
	}

	return Result{Executed: executedOrder, Failed: anyFailed}, nil
}

func indexOf(specs []task.Spec, name string) int {
	for i, s := range specs {
		if s.Name == name {
			return i
		}
	}
	return -1
}
