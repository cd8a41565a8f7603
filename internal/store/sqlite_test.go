package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteLedger(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteLedger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string, at time.Time) model.ApplicationRecord {
	return model.ApplicationRecord{
		JobID:             id,
		RunID:             "run-1",
		ProfileSnapshotID: "snap",
		Title:             "Backend Engineer",
		Company:           "Acme",
		URL:               "https://boards.greenhouse.io/acme/jobs/1",
		Score:             72.5,
		Platform:          "greenhouse",
		Status:            model.StatusFailed,
		Step:              "submit",
		FailureReason:     "submit: submission failed",
		Timestamp:         at,
	}
}

func TestAppendThenHasRecord(t *testing.T) {
	s := newTestLedger(t)

	if err := s.Append(context.Background(), record("job-123", time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}

	seen, err := s.HasRecord("job-123")
	if err != nil {
		t.Fatalf("HasRecord: %v", err)
	}
	if !seen {
		t.Error("expected HasRecord to return true after Append")
	}
}

func TestHasRecordUnknownReturnsFalse(t *testing.T) {
	s := newTestLedger(t)

	seen, err := s.HasRecord("does-not-exist")
	if err != nil {
		t.Fatalf("HasRecord: %v", err)
	}
	if seen {
		t.Error("expected HasRecord to return false for unknown job ID")
	}
}

func TestAppendDuplicate(t *testing.T) {
	s := newTestLedger(t)
	ctx := context.Background()

	if err := s.Append(ctx, record("job-456", time.Now())); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	dup := record("job-456", time.Now())
	dup.Status = model.StatusApplied
	if err := s.Append(ctx, dup); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	records, err := s.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 || records[0].Status != model.StatusFailed {
		t.Errorf("original record must be kept: %+v", records)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	s := newTestLedger(t)
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	want := record("job-1", at)
	if err := s.Append(context.Background(), want); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(context.Background(), record("job-2", at)); err != nil {
		t.Fatal(err)
	}

	records, err := s.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 2 || records[0].JobID != "job-1" || records[1].JobID != "job-2" {
		t.Fatalf("records = %+v", records)
	}
	got := records[0]
	if !got.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, at)
	}
	got.Timestamp = want.Timestamp
	if got != want {
		t.Errorf("record = %+v, want %+v", got, want)
	}
}

func TestConcurrentAppendSameJob(t *testing.T) {
	s := newTestLedger(t)
	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Append(context.Background(), record("same", time.Now()))
			if err == nil {
				ok.Add(1)
			} else if !errors.Is(err, model.ErrDuplicate) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok.Load() != 1 {
		t.Errorf("%d appends succeeded, want 1", ok.Load())
	}
}

func TestPruneRemovesOldKeepsFresh(t *testing.T) {
	s := newTestLedger(t)
	ctx := context.Background()

	if err := s.Append(ctx, record("old-job", time.Now().Add(-48*time.Hour))); err != nil {
		t.Fatalf("Append old: %v", err)
	}
	if err := s.Append(ctx, record("fresh-job", time.Now())); err != nil {
		t.Fatalf("Append fresh: %v", err)
	}

	if err := s.Prune(24 * time.Hour); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	if seen, _ := s.HasRecord("old-job"); seen {
		t.Error("expected old job to be pruned")
	}
	if seen, _ := s.HasRecord("fresh-job"); !seen {
		t.Error("expected fresh job to survive pruning")
	}
}

func TestNopLedger(t *testing.T) {
	var l model.Ledger = NewNopLedger()
	if err := l.Append(context.Background(), record("a", time.Now())); err != nil {
		t.Fatal(err)
	}
	if seen, _ := l.HasRecord("a"); seen {
		t.Error("nop ledger should never report a record")
	}
}
