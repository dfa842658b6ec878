// Package cliapp wires the command-line surface with spf13/cobra: flag
// parsing, mode selection, and dispatch into the orchestrator. It plays
// the role the reference CLI's ParseInvocation/Execute pair plays, just
// expressed through cobra's Command tree instead of a hand-rolled
// flag.FlagSet.
package cliapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"prompter/internal/config"
	"prompter/internal/errs"
	"prompter/internal/initwizard"
	"prompter/internal/logging"
	"prompter/internal/observer"
	"prompter/internal/orchestrator"
)

// options collects every flag value; kept as a struct (rather than
// loose closured variables) so New can be exercised from tests without
// touching package-level state.
type options struct {
	verbose    bool
	debug      bool
	logFile    string
	dryRun     bool
	stateFile  string
	task       string
	progress   string
	parallel   bool
	noParallel bool
	init       bool
	status     bool
	clearState bool
}

// New builds the root *cobra.Command. stdout/stderr are injected so
// tests can capture output instead of writing to the real console.
func New(stdout, stderr io.Writer) *cobra.Command {
	var o options

	root := &cobra.Command{
		Use:           "prompter [config-file]",
		Short:         "Drive prompt-based coding tasks against an AI assistant until they verify.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, &o, stdout, stderr)
		},
	}

	flags := root.Flags()
	flags.BoolVar(&o.verbose, "verbose", false, "debug-level logging")
	flags.BoolVar(&o.debug, "debug", false, "trace-level logging")
	flags.StringVar(&o.logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.BoolVar(&o.dryRun, "dry-run", false, "never invoke the assistant or verify commands; simulate instead")
	flags.StringVar(&o.stateFile, "state-file", "", "override the state file path from [settings]")
	flags.StringVar(&o.task, "task", "", "run only the named task")
	flags.StringVar(&o.progress, "progress", "", "progress renderer: rich|simple|none (default: auto-detected)")
	flags.BoolVar(&o.parallel, "parallel", false, "force parallel (DAG) execution")
	flags.BoolVar(&o.noParallel, "no-parallel", false, "force sequential execution")
	flags.BoolVar(&o.init, "init", false, "generate a starter configuration file and exit")
	flags.BoolVar(&o.status, "status", false, "print the current state file's status and exit")
	flags.BoolVar(&o.clearState, "clear-state", false, "reset the state file and exit")

	return root
}

func run(cmd *cobra.Command, args []string, o *options, stdout, stderr io.Writer) error {
	configPath := "prompter.toml"
	if len(args) == 1 {
		configPath = args[0]
	}

	if o.init {
		return runInit(configPath, stdout)
	}

	logger, err := logging.New(logging.Options{Verbose: o.verbose, Debug: o.debug, LogFile: o.logFile})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	doc, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(stderr, formatConfigError(err))
		return &exitError{code: orchestrator.ExitConfigError}
	}

	stateFile := o.stateFile
	if stateFile == "" {
		stateFile = doc.Settings.StateFile
	}

	if o.clearState {
		return clearState(stateFile, doc, stdout)
	}
	if o.status {
		return printStatus(stateFile, doc, stdout)
	}

	var forceParallel *bool
	switch {
	case o.parallel && o.noParallel:
		fmt.Fprintln(stderr, "--parallel and --no-parallel are mutually exclusive")
		return &exitError{code: orchestrator.ExitInvalidInvocation}
	case o.parallel:
		v := true
		forceParallel = &v
	case o.noParallel:
		v := false
		forceParallel = &v
	}

	progress := o.progress
	if progress == "" {
		progress = os.Getenv("PROMPTER_PROGRESS_MODE")
	}
	mode := observer.DetectMode(progress, stdoutFile())
	obs := observer.NewRenderer(mode, stdout)

	inv := orchestrator.Invocation{
		Doc:           doc,
		StateFile:     stateFile,
		DryRun:        o.dryRun,
		SingleTask:    o.task,
		ForceParallel: forceParallel,
		Observer:      obs,
		Logger:        logger,
	}

	code, err := orchestrator.Run(cmd.Context(), inv)
	if err != nil {
		fmt.Fprintln(stderr, err)
	}
	if code != orchestrator.ExitSuccess {
		return &exitError{code: code}
	}
	return nil
}

func stdoutFile() *os.File {
	return os.Stdout
}

func runInit(configPath string, stdout io.Writer) error {
	dir := filepath.Dir(configPath)
	content, err := initwizard.Generate(dir)
	if err != nil {
		return err
	}
	if err := initwizard.WriteNew(configPath, content); err != nil {
		fmt.Fprintln(stdout, err)
		return &exitError{code: orchestrator.ExitInvalidInvocation}
	}
	fmt.Fprintf(stdout, "wrote starter configuration to %s\n", configPath)
	return nil
}

func formatConfigError(err error) string {
	if ce, ok := err.(*errs.ConfigError); ok {
		out := "configuration error:"
		for _, m := range ce.Messages {
			out += "\n  - " + m
		}
		return out
	}
	return err.Error()
}

// exitError carries a process exit code up through cobra's RunE chain
// without cobra printing its own "Error:" line (SilenceErrors is set on
// the root command). run writes any message itself before returning one;
// Execute turns it into the code that main passes to os.Exit.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("exit code %d", e.code)
}

// ExitCode extracts the process exit code intended for err, defaulting
// to orchestrator.ExitInternalError for anything unrecognized.
func ExitCode(err error) int {
	if err == nil {
		return orchestrator.ExitSuccess
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	var c errs.Classified
	if errors.As(err, &c) {
		switch c.Kind() {
		case errs.KindConfig:
			return orchestrator.ExitConfigError
		case errs.KindGraph:
			return orchestrator.ExitConfigError
		case errs.KindLoopSafety, errs.KindExecution:
			return orchestrator.ExitTaskFailure
		}
	}
	return orchestrator.ExitInternalError
}

// Execute runs the root command end to end and returns the process exit
// code, matching the reference CLI's Run/CLIResult contract.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := New(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	return ExitCode(err)
}
