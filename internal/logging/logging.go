// Package logging wires a single zerolog.Logger the way every component
// in this codebase expects to receive one: as an explicit value, never
// an ambient singleton.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// LevelEnv overrides the configured level when set.
const LevelEnv = "PROMPTER_LOG_LEVEL"

// Options configures New.
type Options struct {
	Verbose bool   // -> debug level
	Debug   bool   // -> trace level
	LogFile string // when set, logs go there as plain JSON instead of stderr
}

// New builds a logger. Output goes to a colorized console writer when
// stderr is a terminal, plain JSON otherwise (redirected stderr, a log
// file, or PROMPTER_LOG_LEVEL-only tuning without a TTY) — the same
// TTY-gated formatting split used by the progress renderer.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	switch {
	case opts.Debug:
		level = zerolog.TraceLevel
	case opts.Verbose:
		level = zerolog.DebugLevel
	}
	if v := os.Getenv(LevelEnv); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stderr
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		out = f
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: colorable.NewColorable(os.Stderr)}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
