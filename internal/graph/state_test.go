package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompter/internal/task"
)

func TestNewExecutionStateSeedsPending(t *testing.T) {
	g, err := NewGraph([]task.Spec{spec("a"), spec("b", "a")})
	require.NoError(t, err)
	st := NewExecutionState(g)
	assert.Equal(t, StatePending, st["a"].Status)
	assert.Equal(t, StatePending, st["b"].Status)
}

func TestTransitionHonorsAllowedEdges(t *testing.T) {
	g, err := NewGraph([]task.Spec{spec("a")})
	require.NoError(t, err)
	st := NewExecutionState(g)

	require.NoError(t, Transition(st, "a", StatePending, StateReady))
	require.NoError(t, Transition(st, "a", StateReady, StateRunning))
	require.NoError(t, Transition(st, "a", StateRunning, StateCompleted))

	err = Transition(st, "a", StateCompleted, StateRunning)
	assert.Error(t, err)
}

func TestTransitionRejectsMismatchedFrom(t *testing.T) {
	g, err := NewGraph([]task.Spec{spec("a")})
	require.NoError(t, err)
	st := NewExecutionState(g)
	err = Transition(st, "a", StateRunning, StateCompleted)
	assert.Error(t, err)
}

// TestFailAndPropagateDiamond exercises the diamond a -> {b, c} -> d
// shape: when b fails mid-flight, d must be skipped, but the sibling c
// (independent of b) is untouched by propagation.
func TestFailAndPropagateDiamond(t *testing.T) {
	g, err := NewGraph([]task.Spec{
		spec("a"),
		spec("b", "a"),
		spec("c", "a"),
		spec("d", "b", "c"),
	})
	require.NoError(t, err)
	st := NewExecutionState(g)

	require.NoError(t, Transition(st, "a", StatePending, StateReady))
	require.NoError(t, Transition(st, "a", StateReady, StateRunning))
	require.NoError(t, Transition(st, "a", StateRunning, StateCompleted))

	require.NoError(t, Transition(st, "b", StatePending, StateReady))
	require.NoError(t, Transition(st, "b", StateReady, StateRunning))

	skipped, err := FailAndPropagate(g, st, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, skipped)
	assert.Equal(t, StateFailed, st["b"].Status)
	assert.Equal(t, StateSkipped, st["d"].Status)
	assert.Equal(t, StatePending, st["c"].Status)
}

func TestFailAndPropagateRejectsRunningDownstream(t *testing.T) {
	g, err := NewGraph([]task.Spec{spec("a"), spec("b", "a")})
	require.NoError(t, err)
	st := NewExecutionState(g)

	require.NoError(t, Transition(st, "a", StatePending, StateReady))
	require.NoError(t, Transition(st, "a", StateReady, StateRunning))
	// Invariant violation: b is Running even though a (its dependency)
	// hasn't completed yet — this should never happen under the
	// coordinator's own scheduling discipline.
	require.NoError(t, Transition(st, "b", StatePending, StateReady))
	require.NoError(t, Transition(st, "b", StateReady, StateRunning))

	_, err = FailAndPropagate(g, st, "a")
	assert.Error(t, err)
}

func TestIsTerminalAndSatisfied(t *testing.T) {
	assert.True(t, IsTerminal(StateCompleted))
	assert.True(t, IsTerminal(StateFailed))
	assert.True(t, IsTerminal(StateSkipped))
	assert.False(t, IsTerminal(StateRunning))

	assert.True(t, Satisfied(StateCompleted))
	assert.False(t, Satisfied(StateFailed))
}
