// Package assistant implements the AI-assistant invocation layer: given
// a prompt (and, optionally, a session id to resume), it runs the
// configured external assistant command and reports its stdout and
// session id back to the Executor.
package assistant

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

// Output is what a successful invocation reports back to the Executor.
type Output struct {
	Text      string
	SessionID string
}

// Invoker is the interface the Executor depends on. The production
// implementation spawns a real subprocess; DryRun never does.
type Invoker interface {
	Invoke(ctx context.Context, prompt, resumeSessionID string) (Output, error)
}

// sessionMarker is the line prefix an assistant may emit to report its
// session id; when absent, Invoke synthesizes one so resume_previous_session
// always has something to record even against assistants that never
// report their own identifier.
const sessionMarker = "session_id:"

// SubprocessInvoker spawns Command with the prompt as its final
// argument, in an isolated process group so that a context cancellation
// (the per-task timeout) reliably tears down the whole subprocess tree
// rather than leaving orphaned children.
type SubprocessInvoker struct {
	Command    string
	WorkingDir string
	ResumeFlag string // e.g. "--resume"; appended with the session id when resuming
}

// NewSubprocessInvoker builds an invoker around the given command
// (default "claude" if empty).
func NewSubprocessInvoker(command, workingDir string) *SubprocessInvoker {
	if command == "" {
		command = "claude"
	}
	return &SubprocessInvoker{Command: command, WorkingDir: workingDir, ResumeFlag: "--resume"}
}

func (a *SubprocessInvoker) Invoke(ctx context.Context, prompt, resumeSessionID string) (Output, error) {
	args := []string{prompt}
	if resumeSessionID != "" {
		args = append([]string{a.ResumeFlag, resumeSessionID}, args...)
	}

	cmd := exec.CommandContext(ctx, a.Command, args...)
	cmd.Dir = a.WorkingDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Output{}, fmt.Errorf("invocation-spawn failure: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return Output{}, fmt.Errorf("invocation-timeout: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Output{}, fmt.Errorf("invocation-non-zero: %s: %w", strings.TrimSpace(stderr.String()), err)
		}
	}

	text := stdout.String()
	return Output{Text: text, SessionID: extractOrGenerateSessionID(text)}, nil
}

func extractOrGenerateSessionID(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, sessionMarker) {
			if id := strings.TrimSpace(strings.TrimPrefix(line, sessionMarker)); id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}

// DryRun never spawns a subprocess: it returns synthetic output naming
// the prompt, so dry-run mode can exercise the whole engine without
// touching the outside world.
type DryRun struct{}

func (DryRun) Invoke(_ context.Context, prompt, _ string) (Output, error) {
	return Output{
		Text:      fmt.Sprintf("[DRY RUN] Would invoke assistant with prompt: %s", truncatePrompt(prompt)),
		SessionID: "",
	}, nil
}

func truncatePrompt(p string) string {
	const max = 80
	if len(p) <= max {
		return p
	}
	return p[:max] + "..."
}
