package task

import "time"

// Result is the immutable outcome of one attempt-batch for a task: the
// Executor produces exactly one Result per invocation, win or lose.
type Result struct {
	TaskName           string
	Success            bool
	Output             string
	Error              string
	VerificationOutput string
	Attempts           int
	Timestamp          time.Time
	SessionID          string // empty in dry-run mode and on failure results that carry no session
}
