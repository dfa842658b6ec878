package observer

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Mode selects a renderer implementation.
type Mode string

const (
	ModeRich   Mode = "rich"
	ModeSimple Mode = "simple"
	ModeNone   Mode = "none"
)

// ciEnvVars are well-known CI detection variables that force a downgrade
// from rich to simple, since ANSI cursor control garbles CI log output.
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE"}

// DetectMode resolves the effective renderer mode from an explicit
// override (e.g. --progress or PROMPTER_PROGRESS_MODE; empty if neither
// was supplied), terminal capability, and CI environment variables, in
// that priority order.
func DetectMode(override string, out *os.File) Mode {
	switch Mode(override) {
	case ModeRich, ModeSimple, ModeNone:
		return Mode(override)
	}
	for _, v := range ciEnvVars {
		if os.Getenv(v) != "" {
			return ModeSimple
		}
	}
	if out == nil || !isatty.IsTerminal(out.Fd()) {
		return ModeSimple
	}
	return ModeRich
}

// NewRenderer builds the Observer for the given mode, writing to w (for
// ModeRich, w is wrapped with colorable so ANSI sequences behave on
// Windows consoles too).
func NewRenderer(mode Mode, w io.Writer) Observer {
	switch mode {
	case ModeRich:
		if f, ok := w.(*os.File); ok {
			w = colorable.NewColorable(f)
		}
		return &richRenderer{out: w}
	case ModeSimple:
		return &simpleRenderer{out: w}
	default:
		return None{}
	}
}

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiGray   = "\x1b[90m"
)

func colorFor(status string) string {
	switch status {
	case "completed":
		return ansiGreen
	case "failed":
		return ansiRed
	case "skipped":
		return ansiGray
	case "running", "ready":
		return ansiYellow
	default:
		return ""
	}
}

// richRenderer writes one colorized line per event. It does not attempt
// a live in-place redraw (that machinery is irrelevant to the engine and
// adds risk without changing behavior); it is "rich" in the sense of
// color and symbol, not animation.
type richRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *richRenderer) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	color := colorFor(e.Status)
	symbol := symbolFor(e.Status)
	if color == "" {
		fmt.Fprintf(r.out, "%s %-9s %s\n", symbol, e.Status, e.TaskName)
		return
	}
	fmt.Fprintf(r.out, "%s%s %-9s%s %s", color, symbol, e.Status, ansiReset, e.TaskName)
	if e.Attempt > 1 {
		fmt.Fprintf(r.out, " (attempt %d)", e.Attempt)
	}
	if e.Err != "" {
		fmt.Fprintf(r.out, " — %s", e.Err)
	}
	fmt.Fprintln(r.out)
}

func symbolFor(status string) string {
	switch status {
	case "completed":
		return "✔"
	case "failed":
		return "✘"
	case "skipped":
		return "⏭"
	case "running":
		return "▶"
	default:
		return "•"
	}
}

// simpleRenderer writes plain, non-colored, non-animated lines: the
// right default for CI logs, redirected output, and non-TTY pipes.
type simpleRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *simpleRenderer) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Err != "" {
		fmt.Fprintf(r.out, "[%s] %s: %s\n", e.Status, e.TaskName, e.Err)
		return
	}
	fmt.Fprintf(r.out, "[%s] %s\n", e.Status, e.TaskName)
}
