// Package executor runs exactly one task.Spec to completion: it issues
// the prompt to the AI assistant, lets side effects settle, runs the
// verify command, and decides success per the task's retry policy.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"prompter/internal/assistant"
	"prompter/internal/task"
	"prompter/internal/verify"
)

// SessionLookup resolves the previously recorded session id for a task,
// so resume_previous_session tasks can be resumed. The Executor depends
// on this narrow interface rather than the whole StateStore.
type SessionLookup interface {
	GetPreviousSessionID(name string) string
}

// Executor runs a single task.Spec, attempt by attempt.
type Executor struct {
	Invoker       assistant.Invoker
	Verifier      verify.Runner
	Sessions      SessionLookup
	WorkingDir    string
	CheckInterval time.Duration // default settling delay between invoke and verify
	DryRun        bool
	Logger        zerolog.Logger

	// Sleep is overridable so tests don't pay the real settling delay.
	Sleep func(time.Duration)
}

// DefaultCheckInterval matches the spec's default of 5 seconds.
const DefaultCheckInterval = 5 * time.Second

// DefaultVerifyTimeout matches the spec's suggested default of 300 seconds.
const DefaultVerifyTimeout = 300 * time.Second

// New builds an Executor, substituting dry-run collaborators when dryRun
// is true so no subprocess is ever spawned.
func New(invoker assistant.Invoker, verifier verify.Runner, sessions SessionLookup, workingDir string, checkInterval time.Duration, dryRun bool, logger zerolog.Logger) *Executor {
	if dryRun {
		invoker = assistant.DryRun{}
		verifier = verify.DryRun{}
	}
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	return &Executor{
		Invoker:       invoker,
		Verifier:      verifier,
		Sessions:      sessions,
		WorkingDir:    workingDir,
		CheckInterval: checkInterval,
		DryRun:        dryRun,
		Logger:        logger,
		Sleep:         time.Sleep,
	}
}

// Run executes spec, retrying per its on_failure policy, up to
// spec.MaxAttempts times, and returns exactly one task.Result.
func (e *Executor) Run(ctx context.Context, spec task.Spec) task.Result {
	if e.DryRun {
		// Dry run short-circuits: one synthetic attempt, always a success,
		// with no settling delay and no exit-code comparison.
		out, _ := e.Invoker.Invoke(ctx, spec.Prompt, "")
		vOut, _ := e.Verifier.Verify(ctx, spec.VerifyCommand, e.WorkingDir)
		return e.result(spec, true, out.Text, "", vOut.Stdout, 1, "")
	}

	resumeID := ""
	if spec.ResumePreviousSession && e.Sessions != nil {
		resumeID = e.Sessions.GetPreviousSessionID(spec.Name)
	}

	var lastOutput, lastVerification, lastErr string
	attempts := 0

	for attempts < spec.MaxAttempts {
		attempts++
		e.Logger.Debug().Str("task", spec.Name).Int("attempt", attempts).Int("max_attempts", spec.MaxAttempts).Msg("invoking assistant")

		invokeCtx := ctx
		var cancel context.CancelFunc
		if spec.Timeout > 0 {
			invokeCtx, cancel = context.WithTimeout(ctx, time.Duration(spec.Timeout)*time.Second)
		}
		out, err := e.Invoker.Invoke(invokeCtx, spec.Prompt, resumeID)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = err.Error()
			if attempts >= spec.MaxAttempts {
				return e.result(spec, false, lastOutput, lastErr, lastVerification, attempts, "")
			}
			continue
		}
		lastOutput = out.Text
		sessionID := out.SessionID
		if sessionID != "" {
			resumeID = sessionID
		}

		if e.CheckInterval > 0 {
			e.Sleep(e.CheckInterval)
		}

		verifyCtx, verifyCancel := context.WithTimeout(ctx, DefaultVerifyTimeout)
		vOut, vErr := e.Verifier.Verify(verifyCtx, spec.VerifyCommand, e.WorkingDir)
		verifyCancel()
		if vErr != nil {
			lastErr = vErr.Error()
			lastVerification = vErr.Error()
			if attempts >= spec.MaxAttempts {
				return e.result(spec, false, lastOutput, lastErr, lastVerification, attempts, sessionID)
			}
			continue
		}

		lastVerification = fmt.Sprintf("exit code: %d\nstdout: %s\nstderr: %s", vOut.ExitCode, vOut.Stdout, vOut.Stderr)

		if vOut.ExitCode == spec.VerifySuccessCode {
			return e.result(spec, true, lastOutput, "", lastVerification, attempts, sessionID)
		}

		lastErr = fmt.Sprintf("verification-mismatch: expected exit code %d, got %d", spec.VerifySuccessCode, vOut.ExitCode)
		switch spec.OnFailure {
		case task.ActionStop:
			return e.result(spec, false, lastOutput, lastErr, lastVerification, attempts, sessionID)
		case task.ActionNext:
			return e.result(spec, false, lastOutput, lastErr, lastVerification, attempts, sessionID)
		case task.ActionRetry:
			continue
		default:
			// Any other string names a jump target; the engine, not the
			// Executor, interprets it. The Executor just reports failure.
			return e.result(spec, false, lastOutput, lastErr, lastVerification, attempts, sessionID)
		}
	}

	return e.result(spec, false, lastOutput, fmt.Sprintf("task failed after %d attempts: %s", attempts, lastErr), lastVerification, attempts, "")
}

func (e *Executor) result(spec task.Spec, success bool, output, errText, verificationOutput string, attempts int, sessionID string) task.Result {
	return task.Result{
		TaskName:           spec.Name,
		Success:            success,
		Output:             output,
		Error:              errText,
		VerificationOutput: verificationOutput,
		Attempts:           attempts,
		Timestamp:          time.Now(),
		SessionID:          sessionID,
	}
}
