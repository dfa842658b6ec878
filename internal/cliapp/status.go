package cliapp

import (
	"fmt"
	"io"

	"prompter/internal/config"
	"prompter/internal/state"
)

// printStatus opens the state file read-only (via the normal tolerant
// Store.Open) and prints a one-line-per-task summary.
func printStatus(stateFile string, doc *config.Document, stdout io.Writer) error {
	names := make([]string, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		names = append(names, t.Name)
	}
	store, err := state.Open(stateFile, names)
	if err != nil {
		return err
	}
	summary := store.GetSummary()
	fmt.Fprintf(stdout, "session: %s\n", summary.SessionID)
	fmt.Fprintf(stdout, "last update: %s\n\n", summary.LastUpdate.Format("2006-01-02 15:04:05"))
	for _, rec := range summary.TaskStates {
		line := fmt.Sprintf("%-24s %-10s attempts=%d", rec.Name, rec.Status, rec.Attempts)
		if rec.ErrorMessage != "" {
			line += "  error=" + rec.ErrorMessage
		}
		fmt.Fprintln(stdout, line)
	}
	return nil
}

// clearState resets the state file to a fresh, empty snapshot.
func clearState(stateFile string, doc *config.Document, stdout io.Writer) error {
	names := make([]string, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		names = append(names, t.Name)
	}
	store, err := state.Open(stateFile, names)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cleared state file %s\n", stateFile)
	return nil
}
