package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is the sentinel wrapped by every structural validation
// failure that is not a cycle (duplicate names, dangling references,
// self-loops).
var ErrInvalid = errors.New("invalid graph")

// ErrCycle is the sentinel wrapped by a detected cycle.
var ErrCycle = errors.New("cycle detected")

// ValidationError carries one or more structural problems found while
// building or validating a Graph. Dangling references are always
// reported together (never one at a time), matching the "report all
// missing references together" policy.
type ValidationError struct {
	Messages []string
	sentinel error
}

func invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{Messages: []string{fmt.Sprintf(format, args...)}, sentinel: ErrInvalid}
}

func invalidMany(messages []string) *ValidationError {
	return &ValidationError{Messages: messages, sentinel: ErrInvalid}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error { return e.sentinel }

// CycleError reports one detected cycle as the ordered path of task
// names from the ancestor back to itself.
type CycleError struct {
	Path []string
}

func cycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }
