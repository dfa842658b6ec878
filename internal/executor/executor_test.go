package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompter/internal/assistant"
	"prompter/internal/task"
	"prompter/internal/verify"
)

type fakeInvoker struct {
	out assistant.Output
	err error
}

func (f *fakeInvoker) Invoke(_ context.Context, _, _ string) (assistant.Output, error) {
	return f.out, f.err
}

type fakeVerifier struct {
	exitCodes []int // one per call, repeats last
	calls     int
}

func (f *fakeVerifier) Verify(_ context.Context, _, _ string) (verify.Output, error) {
	idx := f.calls
	if idx >= len(f.exitCodes) {
		idx = len(f.exitCodes) - 1
	}
	f.calls++
	return verify.Output{ExitCode: f.exitCodes[idx]}, nil
}

type noSessions struct{}

func (noSessions) GetPreviousSessionID(string) string { return "" }

func noSleep(time.Duration) {}

func TestExecutorSucceedsFirstAttempt(t *testing.T) {
	inv := &fakeInvoker{out: assistant.Output{Text: "ok", SessionID: "sess-1"}}
	ver := &fakeVerifier{exitCodes: []int{0}}
	exec := New(inv, ver, noSessions{}, "", time.Millisecond, false, zerolog.Nop())
	exec.Sleep = noSleep

	s := task.Spec{Name: "build", Prompt: "p", VerifyCommand: "v", MaxAttempts: 3, VerifySuccessCode: 0, OnFailure: task.ActionRetry}
	result := exec.Run(context.Background(), s)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "sess-1", result.SessionID)
}

func TestExecutorRetriesOnVerificationMismatch(t *testing.T) {
	inv := &fakeInvoker{out: assistant.Output{Text: "ok"}}
	ver := &fakeVerifier{exitCodes: []int{1, 1, 0}}
	exec := New(inv, ver, noSessions{}, "", time.Millisecond, false, zerolog.Nop())
	exec.Sleep = noSleep

	s := task.Spec{Name: "build", Prompt: "p", VerifyCommand: "v", MaxAttempts: 3, VerifySuccessCode: 0, OnFailure: task.ActionRetry}
	result := exec.Run(context.Background(), s)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
}

func TestExecutorStopsOnFailureStopPolicy(t *testing.T) {
	inv := &fakeInvoker{out: assistant.Output{Text: "ok"}}
	ver := &fakeVerifier{exitCodes: []int{1, 1, 1}}
	exec := New(inv, ver, noSessions{}, "", time.Millisecond, false, zerolog.Nop())
	exec.Sleep = noSleep

	s := task.Spec{Name: "build", Prompt: "p", VerifyCommand: "v", MaxAttempts: 5, VerifySuccessCode: 0, OnFailure: task.ActionStop}
	result := exec.Run(context.Background(), s)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
}

func TestExecutorFailsAfterMaxAttemptsExhausted(t *testing.T) {
	inv := &fakeInvoker{out: assistant.Output{Text: "ok"}}
	ver := &fakeVerifier{exitCodes: []int{1, 1, 1}}
	exec := New(inv, ver, noSessions{}, "", time.Millisecond, false, zerolog.Nop())
	exec.Sleep = noSleep

	s := task.Spec{Name: "build", Prompt: "p", VerifyCommand: "v", MaxAttempts: 3, VerifySuccessCode: 0, OnFailure: task.ActionRetry}
	result := exec.Run(context.Background(), s)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
}

func TestExecutorReportsInvocationError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("spawn failed")}
	ver := &fakeVerifier{exitCodes: []int{0}}
	exec := New(inv, ver, noSessions{}, "", time.Millisecond, false, zerolog.Nop())
	exec.Sleep = noSleep

	s := task.Spec{Name: "build", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, VerifySuccessCode: 0, OnFailure: task.ActionRetry}
	result := exec.Run(context.Background(), s)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "spawn failed")
}

func TestExecutorDryRunNeverInvokesRealCollaborators(t *testing.T) {
	exec := New(nil, nil, noSessions{}, "", time.Millisecond, true, zerolog.Nop())
	exec.Sleep = noSleep

	s := task.Spec{Name: "build", Prompt: "p", VerifyCommand: "v", MaxAttempts: 1, VerifySuccessCode: 0, OnFailure: task.ActionRetry}
	result := exec.Run(context.Background(), s)

	require.True(t, result.Success)
	assert.Contains(t, result.Output, "[DRY RUN]")
}
