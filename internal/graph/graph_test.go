package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompter/internal/task"
)

func spec(name string, deps ...string) task.Spec {
	return task.Spec{
		Name: name, Prompt: "p", VerifyCommand: "v", MaxAttempts: 1,
		OnSuccess: task.ActionNext, OnFailure: task.ActionRetry,
		DependsOn: deps,
	}
}

func TestNewGraphDiamond(t *testing.T) {
	// a -> b, a -> c, b -> d, c -> d
	g, err := NewGraph([]task.Spec{
		spec("a"),
		spec("b", "a"),
		spec("c", "a"),
		spec("d", "b", "c"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.Names())

	depth, ok := g.Depth("d")
	require.True(t, ok)
	assert.Equal(t, 2, depth)

	n, ok := g.Node("d")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"b", "c"}, n.DependsOn)

	a, ok := g.Node("a")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"b", "c"}, a.Dependents)
}

func TestNewGraphRejectsEmptySpecs(t *testing.T) {
	_, err := NewGraph(nil)
	require.Error(t, err)
}

func TestNewGraphRejectsDuplicateNames(t *testing.T) {
	_, err := NewGraph([]task.Spec{spec("a"), spec("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task name")
}

func TestNewGraphReportsAllDanglingReferencesTogether(t *testing.T) {
	_, err := NewGraph([]task.Spec{
		spec("a", "missing1"),
		spec("b", "missing2"),
	})
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Len(t, ve.Messages, 2)
}

func TestNewGraphRejectsSelfLoop(t *testing.T) {
	_, err := NewGraph([]task.Spec{spec("a", "a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on itself")
}

func TestNewGraphDetectsCycle(t *testing.T) {
	_, err := NewGraph([]task.Spec{
		spec("a", "c"),
		spec("b", "a"),
		spec("c", "b"),
	})
	require.Error(t, err)
	ce, ok := err.(*CycleError)
	require.True(t, ok)
	assert.NotEmpty(t, ce.Path)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestTransitiveDependents(t *testing.T) {
	g, err := NewGraph([]task.Spec{
		spec("a"),
		spec("b", "a"),
		spec("c", "a"),
		spec("d", "b", "c"),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c", "d"}, g.TransitiveDependents("a"))
	assert.Empty(t, g.TransitiveDependents("d"))
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	g, err := NewGraph([]task.Spec{
		spec("d", "b", "c"),
		spec("c", "a"),
		spec("b", "a"),
		spec("a"),
	})
	require.NoError(t, err)
	order := g.TopologicalOrder()
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["a"], pos["c"])
	assert.Less(t, pos["b"], pos["d"])
	assert.Less(t, pos["c"], pos["d"])
}
