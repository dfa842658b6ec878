// Package state implements the durable StateStore: the on-disk record of
// per-task status, attempts, timestamps, error text, and result history
// that both engines read and write after every transition.
package state

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"prompter/internal/errs"
	"prompter/internal/task"
)

// DefaultPath is the default state-file location, relative to the
// working directory, when no override is supplied.
const DefaultPath = ".prompter_state.json"

// DefaultTruncateBytes bounds how much of a result's Output/Error is kept
// in results_history.
const DefaultTruncateBytes = 500

// Store is the durable, mutex-serialised state store. Every mutating
// method persists to disk before returning. MarkRunning, Update and
// MarkSkipped log a save failure and swallow it (the run is not aborted
// for a write failure), matching the error-handling design's best-effort
// durability policy; Clear returns it to the caller.
type Store struct {
	mu            sync.Mutex
	path          string
	truncateBytes int
	logger        zerolog.Logger

	snapshot   Snapshot
	byName     map[string]*TaskRecord
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithTruncateBytes overrides DefaultTruncateBytes.
func WithTruncateBytes(n int) Option {
	return func(s *Store) { s.truncateBytes = n }
}

// WithLogger attaches a logger; the zero value discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open loads an existing state file at path, or starts a fresh snapshot
// if the file is missing, malformed, or otherwise unreadable (the last
// two are logged as warnings). The returned error is always nil.
func Open(path string, names []string, opts ...Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path, truncateBytes: DefaultTruncateBytes, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}

	snap, err := loadSnapshot(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("state file unreadable; starting fresh")
		snap = freshSnapshot()
	} else if snap == nil {
		snap = freshSnapshot()
	}
	s.snapshot = *snap
	s.reindex()
	s.ensureNames(names)
	return s, nil
}

func freshSnapshot() *Snapshot {
	now := time.Now()
	return &Snapshot{
		SessionID:  uuid.NewString(),
		StartTime:  now,
		LastUpdate: now,
	}
}

func (s *Store) reindex() {
	s.byName = make(map[string]*TaskRecord, len(s.snapshot.TaskStates))
	for i := range s.snapshot.TaskStates {
		rec := &s.snapshot.TaskStates[i]
		s.byName[rec.Name] = rec
	}
}

// ensureNames guarantees every known task name has a Pending record, so
// callers can always GetState a task declared in the current workflow
// even if it never ran in a prior invocation.
func (s *Store) ensureNames(names []string) {
	for _, n := range names {
		if _, ok := s.byName[n]; ok {
			continue
		}
		s.snapshot.TaskStates = append(s.snapshot.TaskStates, TaskRecord{Name: n, Status: StatusPending})
		s.byName[n] = &s.snapshot.TaskStates[len(s.snapshot.TaskStates)-1]
	}
}

// SessionID returns this run's process-scoped session identifier.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.SessionID
}

// MarkRunning transitions name to Running and bumps its attempt count.
func (s *Store) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(name)
	rec.Status = StatusRunning
	rec.Attempts++
	now := time.Now()
	rec.LastAttempt = &now
	s.persistLocked()
}

// Update records a completed attempt-batch: the terminal status,
// timestamps, error text, session id, and a truncated results_history
// entry.
func (s *Store) Update(r task.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(r.TaskName)
	if r.Success {
		rec.Status = StatusCompleted
		now := r.Timestamp
		rec.LastSuccess = &now
		rec.ErrorMessage = ""
	} else {
		rec.Status = StatusFailed
		rec.ErrorMessage = r.Error
	}
	rec.Attempts = r.Attempts
	if r.SessionID != "" {
		rec.SessionID = r.SessionID
	}

	s.snapshot.ResultsHistory = append(s.snapshot.ResultsHistory, ResultSummary{
		TaskName:           r.TaskName,
		Success:            r.Success,
		Output:             truncate(r.Output, s.truncateBytes),
		Error:              truncate(r.Error, s.truncateBytes),
		VerificationOutput: truncate(r.VerificationOutput, s.truncateBytes),
		Attempts:           r.Attempts,
		Timestamp:          r.Timestamp,
		SessionID:          r.SessionID,
	})
	s.persistLocked()
}

// MarkSkipped records a task that was never run because a dependency
// failed. The store has no dedicated Skipped status (see the data
// model); skipped tasks are recorded as Failed with an explanatory
// message, since "did not complete" is the fact that matters for exit
// status and for --status output.
func (s *Store) MarkSkipped(name, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(name)
	rec.Status = StatusFailed
	rec.ErrorMessage = reason
	s.persistLocked()
}

func (s *Store) recordLocked(name string) *TaskRecord {
	if rec, ok := s.byName[name]; ok {
		return rec
	}
	s.snapshot.TaskStates = append(s.snapshot.TaskStates, TaskRecord{Name: name})
	rec := &s.snapshot.TaskStates[len(s.snapshot.TaskStates)-1]
	s.byName[name] = rec
	return rec
}

// GetState returns a copy of the record for name.
func (s *Store) GetState(name string) (TaskRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[name]
	if !ok {
		return TaskRecord{}, false
	}
	return *rec, true
}

// GetFailed returns the names of every task currently recorded Failed.
func (s *Store) GetFailed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, rec := range s.snapshot.TaskStates {
		if rec.Status == StatusFailed {
			out = append(out, rec.Name)
		}
	}
	return out
}

// GetCompleted returns the names of every task currently recorded Completed.
func (s *Store) GetCompleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, rec := range s.snapshot.TaskStates {
		if rec.Status == StatusCompleted {
			out = append(out, rec.Name)
		}
	}
	return out
}

// GetSummary returns a point-in-time copy of the whole snapshot.
func (s *Store) GetSummary() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.snapshot
	cp.TaskStates = append([]TaskRecord(nil), s.snapshot.TaskStates...)
	cp.ResultsHistory = append([]ResultSummary(nil), s.snapshot.ResultsHistory...)
	return cp
}

// GetPreviousSessionID returns the last non-empty session id recorded
// for name, or "" if none is known.
func (s *Store) GetPreviousSessionID(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byName[name]; ok {
		return rec.SessionID
	}
	return ""
}

// Clear resets the store to a fresh, empty snapshot and persists it.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = *freshSnapshot()
	s.byName = map[string]*TaskRecord{}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	s.snapshot.LastUpdate = time.Now()
	data, err := json.MarshalIndent(s.snapshot, "", "  ")
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal state snapshot")
		return &errs.StateStoreError{Op: "save", Path: s.path, Cause: err}
	}
	data = append(data, '\n')
	if err := writeFileAtomicDurable(s.path, data, 0o644); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("failed to persist state file")
		return &errs.StateStoreError{Op: "save", Path: s.path, Cause: err}
	}
	return nil
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}

func loadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var snap Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// writeFileAtomicDurable writes data to a temp file in the same
// directory as path, fsyncs it, renames it over path, and fsyncs the
// containing directory — the same write-then-replace-then-fsync pattern
// used throughout this codebase's durable writers.
func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
