// Package task defines the immutable per-task declaration that flows,
// unmodified, from configuration through the graph, the executor, and
// both engines.
package task

import "fmt"

// Reserved action words. A task name may never collide with one of these,
// since both on_success and on_failure treat them as control-flow verbs
// rather than jump targets.
const (
	ActionNext   = "next"
	ActionStop   = "stop"
	ActionRetry  = "retry"
	ActionRepeat = "repeat"
)

// ReservedNames lists the words a task name must not equal.
var ReservedNames = map[string]bool{
	ActionNext:   true,
	ActionStop:   true,
	ActionRetry:  true,
	ActionRepeat: true,
}

// onSuccessActions and onFailureActions enumerate the reserved verbs legal
// in each field; anything else is interpreted as a jump target and must
// resolve to a task name at validation time.
var onSuccessActions = map[string]bool{ActionNext: true, ActionStop: true, ActionRepeat: true}
var onFailureActions = map[string]bool{ActionRetry: true, ActionStop: true, ActionNext: true}

// Spec is the immutable declaration of a single task. Once defaulted via
// WithDefaults, a Spec is never mutated; all runtime state lives elsewhere (in
// ExecutionState or the StateStore).
type Spec struct {
	Name                  string
	Prompt                string
	VerifyCommand         string
	VerifySuccessCode     int
	OnSuccess             string
	OnFailure             string
	MaxAttempts           int
	Timeout               int // seconds; 0 means unset
	DependsOn             []string
	Exclusive             bool
	Priority              int
	CPURequired           float64
	MemoryRequired        int
	ResumePreviousSession bool
}

// Defaults applied when a field is absent from configuration.
const (
	DefaultVerifySuccessCode = 0
	DefaultOnSuccess         = ActionNext
	DefaultOnFailure         = ActionRetry
	DefaultMaxAttempts       = 3
	DefaultCPURequired       = 1.0
	DefaultMemoryRequired    = 512
)

// WithDefaults returns a copy of s with zero-valued optional fields filled
// in. It does not validate; call Validate separately once the full task
// name set is known (on_success/on_failure may reference sibling tasks).
func (s Spec) WithDefaults() Spec {
	if s.VerifySuccessCode == 0 && s.OnSuccess == "" && s.OnFailure == "" {
		// leave VerifySuccessCode at its explicit zero; only the string
		// fields below have a meaningful "unset" sentinel.
	}
	if s.OnSuccess == "" {
		s.OnSuccess = DefaultOnSuccess
	}
	if s.OnFailure == "" {
		s.OnFailure = DefaultOnFailure
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.CPURequired == 0 {
		s.CPURequired = DefaultCPURequired
	}
	if s.MemoryRequired == 0 {
		s.MemoryRequired = DefaultMemoryRequired
	}
	return s
}

// Validate checks the fields of s that can be checked in isolation. The
// caller (normally the config loader or TaskGraph construction) is
// responsible for checking on_success/on_failure against the full set of
// task names in the workflow, and depends_on against the set of nodes in
// the graph.
func (s Spec) Validate() []string {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "name is required")
	} else if ReservedNames[s.Name] {
		errs = append(errs, fmt.Sprintf("name %q is a reserved word and cannot be used as a task name", s.Name))
	}
	if s.Prompt == "" {
		errs = append(errs, fmt.Sprintf("task %q: prompt is required", s.Name))
	}
	if s.VerifyCommand == "" {
		errs = append(errs, fmt.Sprintf("task %q: verify_command is required", s.Name))
	}
	if s.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("task %q: max_attempts must be >= 1", s.Name))
	}
	if s.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("task %q: timeout must be >= 0", s.Name))
	}
	return errs
}

// IsReservedOnSuccess reports whether v is one of the reserved on_success verbs.
func IsReservedOnSuccess(v string) bool { return onSuccessActions[v] }

// IsReservedOnFailure reports whether v is one of the reserved on_failure verbs.
func IsReservedOnFailure(v string) bool { return onFailureActions[v] }
