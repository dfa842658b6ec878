// Package orchestrator is the top-level wiring: it picks parallel vs.
// sequential execution based on configuration and invocation, builds
// every collaborator, drives the run, and returns a process exit status.
package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"prompter/internal/assistant"
	"prompter/internal/config"
	"prompter/internal/coordinator"
	"prompter/internal/executor"
	"prompter/internal/graph"
	"prompter/internal/observer"
	"prompter/internal/sequential"
	"prompter/internal/state"
	"prompter/internal/task"
	"prompter/internal/verify"
)

// Exit codes, mirrored by the CLI entry point.
const (
	ExitSuccess           = 0
	ExitTaskFailure       = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Invocation carries every CLI-derived input the orchestrator needs.
type Invocation struct {
	Doc           *config.Document
	StateFile     string
	DryRun        bool
	SingleTask    string // empty unless --task was given
	ForceParallel *bool  // nil = use config, else force
	Observer      observer.Observer
	Logger        zerolog.Logger
}

// Run selects a mode, drives it to completion, and returns the exit code.
func Run(ctx context.Context, inv Invocation) (int, error) {
	specs := inv.Doc.Tasks
	settings := inv.Doc.Settings

	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}

	statePath := inv.StateFile
	if statePath == "" {
		statePath = settings.StateFile
	}
	store, err := state.Open(statePath, names, state.WithLogger(inv.Logger))
	if err != nil {
		return ExitInternalError, err
	}

	workingDir := settings.WorkingDirectory

	buildExecutor := func() *executor.Executor {
		invoker := assistant.Invoker(assistant.NewSubprocessInvoker(settings.AssistantCommand, workingDir))
		verifier := verify.Runner(verify.ShellRunner{})
		return executor.New(invoker, verifier, store, workingDir, time.Duration(settings.CheckInterval)*time.Second, inv.DryRun, inv.Logger)
	}

	runParallel := wantsParallel(specs, settings, inv.SingleTask, inv.ForceParallel)

	if inv.SingleTask != "" {
		target, ok := findTask(specs, inv.SingleTask)
		if !ok {
			return ExitInvalidInvocation, &unknownTaskError{Name: inv.SingleTask}
		}
		specs = []task.Spec{target}
		runParallel = false
	}

	var failed bool
	if runParallel {
		g, err := graph.NewGraph(specs)
		if err != nil {
			return ExitConfigError, err
		}
		exec := buildExecutor()
		coord := coordinator.New(g, exec, store, inv.Observer, settings.MaxParallelTasks, inv.Logger)
		result := coord.Run(ctx)
		failed = len(result.Failed) > 0
	} else {
		exec := buildExecutor()
		eng := sequential.New(specs, exec, store, inv.Observer, settings.AllowInfiniteLoops, 0, inv.Logger)
		result, err := eng.Run(ctx)
		if err != nil {
			return ExitTaskFailure, err
		}
		failed = result.Failed
	}

	if failed || len(store.GetFailed()) > 0 {
		return ExitTaskFailure, nil
	}
	return ExitSuccess, nil
}

// wantsParallel implements the mode-selection rule from the component
// design: parallel requires at least one depends_on edge, enable_parallel,
// and no single task named on the invocation.
func wantsParallel(specs []task.Spec, settings config.Settings, singleTask string, force *bool) bool {
	if force != nil {
		return *force
	}
	if singleTask != "" {
		return false
	}
	if !settings.EnableParallel {
		return false
	}
	for _, s := range specs {
		if len(s.DependsOn) > 0 {
			return true
		}
	}
	return false
}

func findTask(specs []task.Spec, name string) (task.Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return task.Spec{}, false
}

type unknownTaskError struct{ Name string }

func (e *unknownTaskError) Error() string { return "unknown task: " + e.Name }
