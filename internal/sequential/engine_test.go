package sequential

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompter/internal/observer"
	"prompter/internal/state"
	"prompter/internal/task"
)

// scriptedRunner replays a fixed outcome per task name, counting calls
// so repeat/jump scenarios can assert on re-entry.
type scriptedRunner struct {
	outcomes map[string]bool // task name -> success
	calls    map[string]int
}

func newScriptedRunner(outcomes map[string]bool) *scriptedRunner {
	return &scriptedRunner{outcomes: outcomes, calls: map[string]int{}}
}

func (r *scriptedRunner) Run(_ context.Context, spec task.Spec) task.Result {
	r.calls[spec.Name]++
	success := r.outcomes[spec.Name]
	return task.Result{TaskName: spec.Name, Success: success, Attempts: 1, Timestamp: time.Now()}
}

func newTestStore(t *testing.T, names []string) *state.Store {
	t.Helper()
	path := t.TempDir() + "/state.json"
	st, err := state.Open(path, names)
	require.NoError(t, err)
	return st
}

func TestEngineRunsInOrderByDefault(t *testing.T) {
	specs := []task.Spec{
		{Name: "a", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionNext, OnFailure: task.ActionRetry},
		{Name: "b", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionNext, OnFailure: task.ActionRetry},
	}
	runner := newScriptedRunner(map[string]bool{"a": true, "b": true})
	store := newTestStore(t, []string{"a", "b"})
	eng := New(specs, runner, store, observer.None{}, false, 0, zerolog.Nop())

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Executed)
	assert.False(t, result.Failed)
}

func TestEngineStopsOnExplicitStop(t *testing.T) {
	specs := []task.Spec{
		{Name: "a", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionStop, OnFailure: task.ActionRetry},
		{Name: "b", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionNext, OnFailure: task.ActionRetry},
	}
	runner := newScriptedRunner(map[string]bool{"a": true, "b": true})
	store := newTestStore(t, []string{"a", "b"})
	eng := New(specs, runner, store, observer.None{}, false, 0, zerolog.Nop())

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Executed)
	assert.Equal(t, 0, runner.calls["b"])
}

func TestEngineRepeatReentersSameTask(t *testing.T) {
	specs := []task.Spec{
		{Name: "a", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionRepeat, OnFailure: task.ActionRetry},
	}
	runner := &countingThenStopRunner{limit: 3}
	store := newTestStore(t, []string{"a"})
	eng := New(specs, runner, store, observer.None{}, true, 50, zerolog.Nop())

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, runner.count)
	assert.Len(t, result.Executed, 3)
}

// countingThenStopRunner succeeds (triggering repeat) on each of its first
// limit-1 calls and fails on call number limit; with on_failure = retry
// the engine then advances past the last task, so the run ends after
// exactly limit calls.
type countingThenStopRunner struct {
	limit int
	count int
}

func (r *countingThenStopRunner) Run(_ context.Context, spec task.Spec) task.Result {
	r.count++
	return task.Result{TaskName: spec.Name, Success: r.count < r.limit, Attempts: 1, Timestamp: time.Now()}
}

func TestEngineJumpToNamedTask(t *testing.T) {
	specs := []task.Spec{
		{Name: "a", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: "c", OnFailure: task.ActionRetry},
		{Name: "b", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionNext, OnFailure: task.ActionRetry},
		{Name: "c", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionNext, OnFailure: task.ActionRetry},
	}
	runner := newScriptedRunner(map[string]bool{"a": true, "b": true, "c": true})
	store := newTestStore(t, []string{"a", "b", "c"})
	eng := New(specs, runner, store, observer.None{}, false, 0, zerolog.Nop())

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, result.Executed)
	assert.Equal(t, 0, runner.calls["b"])
}

func TestEngineExceedsIterationCeiling(t *testing.T) {
	specs := []task.Spec{
		{Name: "a", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionRepeat, OnFailure: task.ActionRetry},
	}
	runner := newScriptedRunner(map[string]bool{"a": true})
	store := newTestStore(t, []string{"a"})
	eng := New(specs, runner, store, observer.None{}, true, 5, zerolog.Nop())

	_, err := eng.Run(context.Background())
	require.Error(t, err)
}

func TestEngineRecordsFailureWhenOnFailureNext(t *testing.T) {
	specs := []task.Spec{
		{Name: "a", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionNext, OnFailure: task.ActionNext},
		{Name: "b", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, OnSuccess: task.ActionNext, OnFailure: task.ActionRetry},
	}
	runner := newScriptedRunner(map[string]bool{"a": false, "b": true})
	store := newTestStore(t, []string{"a", "b"})
	eng := New(specs, runner, store, observer.None{}, false, 0, zerolog.Nop())

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, []string{"a", "b"}, result.Executed)
}
