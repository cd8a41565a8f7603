// Package ledger stores application records in an append-only JSON Lines
// file shared safely between processes.
package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/amishk599/jobpilot/internal/model"
)

// ErrLockFailed is returned when the ledger's file lock cannot be acquired.
var ErrLockFailed = errors.New("ledger lock acquisition failed")

const (
	defaultLockTimeout = 10 * time.Second
	defaultRetryDelay  = 50 * time.Millisecond
)

// Options tune lock acquisition.
type Options struct {
	LockTimeout time.Duration
	RetryDelay  time.Duration
}

// FileLedger is a model.Ledger backed by a JSON Lines file. Appends hold an
// exclusive advisory lock on a sibling ".lock" file; reads take no lock and
// ignore a trailing line that is still being written.
type FileLedger struct {
	path   string
	lock   *flock.Flock
	opts   Options
	logger *slog.Logger

	// appendMu serializes appends in this process, including the wait for the
	// file lock. mu guards index and offset and is never held across that wait.
	appendMu sync.Mutex
	mu       sync.Mutex
	index    map[string]struct{}
	offset   int64
}

// Open opens the ledger at path, creating its directory if needed, and
// indexes the records already in it.
func Open(path string, opts Options, logger *slog.Logger) (*FileLedger, error) {
	if opts.LockTimeout == 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	l := &FileLedger{
		path:   path,
		lock:   flock.New(path + ".lock"),
		opts:   opts,
		logger: logger,
		index:  make(map[string]struct{}),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.refresh(); err != nil {
		return nil, err
	}
	logger.Debug("ledger opened", "path", path, "records", len(l.index))
	return l, nil
}

// Path returns the ledger file path.
func (l *FileLedger) Path() string { return l.path }

// Append writes rec as one line. It returns model.ErrDuplicate if rec.JobID
// is already recorded, including by another process since the last read.
func (l *FileLedger) Append(ctx context.Context, rec model.ApplicationRecord) error {
	if rec.JobID == "" {
		return errors.New("ledger record has no job ID")
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding ledger record: %w", err)
	}
	line = append(line, '\n')

	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, l.opts.LockTimeout)
	defer cancel()
	locked, err := l.lock.TryLockContext(lockCtx, l.opts.RetryDelay)
	if err != nil || !locked {
		return fmt.Errorf("%w: %s: %v", ErrLockFailed, l.path, err)
	}
	defer func() {
		if err := l.lock.Unlock(); err != nil {
			l.logger.Warn("releasing ledger lock", "path", l.path, "error", err)
		}
	}()

	l.mu.Lock()
	err = l.refresh()
	_, dup := l.index[rec.JobID]
	indexed := l.offset
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if dup {
		return model.ErrDuplicate
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}
	// A torn line from an interrupted writer is terminated so it stays a
	// single unreadable line instead of corrupting this record.
	if info.Size() > indexed {
		line = append([]byte{'\n'}, line...)
	}

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("writing ledger record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing ledger: %w", err)
	}

	l.mu.Lock()
	l.index[rec.JobID] = struct{}{}
	if end := info.Size() + int64(len(line)); end > l.offset {
		l.offset = end
	}
	l.mu.Unlock()
	return nil
}

// HasRecord reports whether jobID has been recorded.
func (l *FileLedger) HasRecord(jobID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.refresh(); err != nil {
		return false, err
	}
	_, ok := l.index[jobID]
	return ok, nil
}

// Records returns every complete record in file order. Malformed lines are
// skipped.
func (l *FileLedger) Records() ([]model.ApplicationRecord, error) {
	return ReadFile(l.path, l.logger)
}

// ReadFile reads the records in a ledger file without opening it for writing.
// A missing file has no records.
func ReadFile(path string, logger *slog.Logger) ([]model.ApplicationRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i+1]
	} else {
		data = nil
	}

	var out []model.ApplicationRecord
	for n, raw := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var rec model.ApplicationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.Debug("skipping malformed ledger line", "path", path, "line", n+1, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// refresh indexes complete lines appended since the last read. The caller
// holds l.mu.
func (l *FileLedger) refresh() error {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.index = make(map[string]struct{})
		l.offset = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}
	if info.Size() < l.offset {
		// Truncated or replaced underneath us; start over.
		l.index = make(map[string]struct{})
		l.offset = 0
	}
	if _, err := f.Seek(l.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking ledger: %w", err)
	}

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// Anything left is a partial line; it is read again next time.
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading ledger: %w", err)
		}
		l.offset += int64(len(line))

		var head struct {
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(line, &head); err != nil || head.JobID == "" {
			continue
		}
		l.index[head.JobID] = struct{}{}
	}
}

// Stats summarises a set of records.
type Stats struct {
	Total      int
	ByStatus   map[model.Status]int
	ByPlatform map[string]int
	Runs       int
}

// Summarize counts records by status, platform and run.
func Summarize(records []model.ApplicationRecord) Stats {
	s := Stats{
		Total:      len(records),
		ByStatus:   make(map[model.Status]int),
		ByPlatform: make(map[string]int),
	}
	runs := make(map[string]struct{})
	for _, r := range records {
		s.ByStatus[r.Status]++
		s.ByPlatform[r.Platform]++
		runs[r.RunID] = struct{}{}
	}
	s.Runs = len(runs)
	return s
}
