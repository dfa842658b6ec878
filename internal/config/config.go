// Package config loads the TOML workflow document into TaskSpecs and
// run-wide settings.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"prompter/internal/errs"
	"prompter/internal/task"
)

// Settings holds the [settings] table.
type Settings struct {
	CheckInterval      int    `toml:"check_interval"`
	MaxRetries         int    `toml:"max_retries"`
	WorkingDirectory   string `toml:"working_directory"`
	AllowInfiniteLoops bool   `toml:"allow_infinite_loops"`
	MaxParallelTasks   int    `toml:"max_parallel_tasks"`
	EnableParallel     bool   `toml:"enable_parallel"`
	AssistantCommand   string `toml:"assistant_command"`
	StateFile          string `toml:"state_file"`
}

// taskDoc mirrors the [[tasks]] table shape for decoding, before
// defaults are applied and it is converted to task.Spec.
type taskDoc struct {
	Name                  string   `toml:"name"`
	Prompt                string   `toml:"prompt"`
	VerifyCommand         string   `toml:"verify_command"`
	VerifySuccessCode     int      `toml:"verify_success_code"`
	OnSuccess             string   `toml:"on_success"`
	OnFailure             string   `toml:"on_failure"`
	MaxAttempts           int      `toml:"max_attempts"`
	Timeout               int      `toml:"timeout"`
	ResumePreviousSession bool     `toml:"resume_previous_session"`
	DependsOn             []string `toml:"depends_on"`
	Exclusive             bool     `toml:"exclusive"`
	Priority              int      `toml:"priority"`
	CPURequired           float64  `toml:"cpu_required"`
	MemoryRequired        int      `toml:"memory_required"`
}

type document struct {
	Settings Settings  `toml:"settings"`
	Tasks    []taskDoc `toml:"tasks"`
}

// Document is the fully parsed, defaulted, and validated configuration.
type Document struct {
	Settings Settings
	Tasks    []task.Spec
}

// Load reads and parses the TOML file at path. Parse errors are enriched
// with a line/column-highlighted excerpt of the offending source, the
// way the reference implementation's loader does.
func Load(path string) (*Document, error) {
	var doc document
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, &errs.ConfigError{Messages: []string{enrichParseError(path, err)}}
	}

	applySettingsDefaults(&doc.Settings, !meta.IsDefined("settings", "enable_parallel"))

	specs := make([]task.Spec, 0, len(doc.Tasks))
	for _, td := range doc.Tasks {
		specs = append(specs, toSpec(td).WithDefaults())
	}

	if errsList := Validate(doc.Settings, specs); len(errsList) > 0 {
		return nil, &errs.ConfigError{Messages: errsList}
	}

	return &Document{Settings: doc.Settings, Tasks: specs}, nil
}

// applySettingsDefaults fills in zero-valued fields. defaultEnableParallel
// is true when the caller's metadata says enable_parallel was absent from
// the document entirely — TOML decodes an absent bool to false, which
// would otherwise be indistinguishable from an explicit `false`.
func applySettingsDefaults(s *Settings, defaultEnableParallel bool) {
	if s.CheckInterval == 0 {
		s.CheckInterval = 5
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = 3
	}
	if s.MaxParallelTasks == 0 {
		s.MaxParallelTasks = 4
	}
	if s.AssistantCommand == "" {
		s.AssistantCommand = "claude"
	}
	if s.StateFile == "" {
		s.StateFile = ".prompter_state.json"
	}
	if defaultEnableParallel {
		s.EnableParallel = true
	}
}

func toSpec(td taskDoc) task.Spec {
	return task.Spec{
		Name:                  td.Name,
		Prompt:                td.Prompt,
		VerifyCommand:         td.VerifyCommand,
		VerifySuccessCode:     td.VerifySuccessCode,
		OnSuccess:             td.OnSuccess,
		OnFailure:             td.OnFailure,
		MaxAttempts:           td.MaxAttempts,
		Timeout:               td.Timeout,
		ResumePreviousSession: td.ResumePreviousSession,
		DependsOn:             td.DependsOn,
		Exclusive:             td.Exclusive,
		Priority:              td.Priority,
		CPURequired:           td.CPURequired,
		MemoryRequired:        td.MemoryRequired,
	}
}

// Validate checks the full task set: per-task field validation, plus the
// cross-task checks that need the whole name set (on_success/on_failure
// targets, depends_on targets, reserved names). It does not build a
// graph.Graph — that is done separately by the caller when running in
// parallel mode, so a sequential-only config is never forced to pay the
// graph-construction cost.
func Validate(settings Settings, specs []task.Spec) []string {
	var errs []string
	if len(specs) == 0 {
		errs = append(errs, "no tasks defined in configuration")
		return errs
	}

	names := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Sprintf("duplicate task name: %q", s.Name))
		}
		names[s.Name] = true
	}

	for _, s := range specs {
		errs = append(errs, s.Validate()...)

		if !task.IsReservedOnSuccess(s.OnSuccess) && !names[s.OnSuccess] {
			errs = append(errs, fmt.Sprintf("task %q: on_success %q must be one of next/stop/repeat or a valid task name", s.Name, s.OnSuccess))
		}
		if !task.IsReservedOnFailure(s.OnFailure) && !names[s.OnFailure] {
			errs = append(errs, fmt.Sprintf("task %q: on_failure %q must be one of retry/stop/next or a valid task name", s.Name, s.OnFailure))
		}
		for _, dep := range s.DependsOn {
			if !names[dep] {
				errs = append(errs, fmt.Sprintf("task %q depends on unknown task %q", s.Name, dep))
			}
		}
	}

	sort.Strings(errs)
	return errs
}

func enrichParseError(path string, err error) string {
	perr, ok := err.(toml.ParseError)
	if !ok {
		return fmt.Sprintf("failed to parse %s: %v", path, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "TOML parsing error in %s (line %d):\n%s", path, perr.Position.Line, perr.ErrorWithUsage())
	return b.String()
}
