package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigErrorMessage(t *testing.T) {
	e := &ConfigError{Messages: []string{"duplicate task name: \"a\""}}
	assert.Equal(t, KindConfig, e.Kind())
	assert.Contains(t, e.Error(), "duplicate task name")
}

func TestGraphErrorUnwrap(t *testing.T) {
	cause := errors.New("cycle detected: a -> b -> a")
	e := &GraphError{Message: "cycle", Path: []string{"a", "b", "a"}, Cause: cause}
	assert.Equal(t, KindGraph, e.Kind())
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "a")
}

func TestExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("timed out")
	e := &ExecutionError{TaskName: "build", Message: "invocation failed", Cause: cause}
	assert.Equal(t, KindExecution, e.Kind())
	require.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "build")
}

func TestStateStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("permission denied")
	e := &StateStoreError{Op: "save", Path: "/tmp/state.json", Cause: cause}
	assert.Equal(t, KindStateStore, e.Kind())
	assert.ErrorIs(t, e, cause)
}

func TestLoopSafetyError(t *testing.T) {
	e := &LoopSafetyError{Ceiling: 1000}
	assert.Equal(t, KindLoopSafety, e.Kind())
	assert.Contains(t, e.Error(), "1000")
}

func TestClassifiedCascade(t *testing.T) {
	var errsList = []error{
		&ConfigError{Messages: []string{"x"}},
		&GraphError{Message: "x"},
		&ExecutionError{TaskName: "t", Message: "x"},
		&StateStoreError{Op: "load", Path: "p"},
		&LoopSafetyError{Ceiling: 1},
	}
	for _, err := range errsList {
		var c Classified
		require.True(t, errors.As(err, &c))
		assert.NotEmpty(t, c.Kind())
	}
}
