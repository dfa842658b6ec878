// Command prompter drives prompt-based coding tasks against an AI
// assistant, verifying each one with a shell command, until every task
// in a workflow has either completed or been stopped.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"prompter/internal/cliapp"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := cliapp.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
