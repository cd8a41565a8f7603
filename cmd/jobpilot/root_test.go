package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobpilot/internal/config"
	"github.com/amishk599/jobpilot/internal/ledger"
	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/retry"
)

func TestPolicyFor(t *testing.T) {
	p := policyFor(retry.DefaultSourcePolicy, config.RetryConfig{MaxAttempts: 5, MaxDelay: time.Minute})
	if p.MaxAttempts != 5 || p.MaxDelay != time.Minute {
		t.Errorf("overrides not applied: %+v", p)
	}
	if p.BaseDelay != retry.DefaultSourcePolicy.BaseDelay || p.Retryable == nil {
		t.Errorf("defaults lost: %+v", p)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateSource(t *testing.T) {
	logger := discardLogger()
	for _, name := range []string{"remotive", "adzuna", "jsearch", "serpapi", "linkedin", "greenhouse", "lever", "ashby", "workday", "gem", "mock"} {
		s, ok := createSource(config.SourceConfig{Name: name}, nil, logger)
		if !ok || s.Name() != name {
			t.Errorf("createSource(%q) = %v, %v", name, s, ok)
		}
	}
	if _, ok := createSource(config.SourceConfig{Name: "monster"}, nil, logger); ok {
		t.Error("unknown source should not be created")
	}
}

func TestPrintRanked(t *testing.T) {
	var buf bytes.Buffer
	printRanked(&buf, nil, 5)
	if !strings.Contains(buf.String(), "No matching jobs") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	jobs := []model.ScoredJob{
		{Job: model.Job{Title: "Backend Engineer", Company: "Acme", Location: "Remote"}, Score: 88, RoleTier: "core"},
		{Job: model.Job{Title: "Platform Engineer", Company: "Globex"}, Score: 41.5},
	}
	printRanked(&buf, jobs, 1)
	out := buf.String()
	if !strings.Contains(out, "88.0") || !strings.Contains(out, "Acme") || strings.Contains(out, "Globex") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderLedger(t *testing.T) {
	records := []model.ApplicationRecord{
		{JobID: "a", RunID: "r1", Title: "Backend Engineer", Company: "Acme", Platform: "greenhouse", Status: model.StatusApplied, Timestamp: time.Now()},
		{JobID: "b", RunID: "r1", Title: "SRE", Company: "Globex", Platform: "linkedin", Status: model.StatusFailed, FailureReason: "login: missing-credential", Timestamp: time.Now()},
	}
	out := renderLedger("data/applications.jsonl", records, 1)
	for _, want := range []string{"Application ledger", "greenhouse", "linkedin", "missing-credential"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Backend Engineer") {
		t.Errorf("only the most recent record should be listed:\n%s", out)
	}
}

func TestBuildApplier_DryRunLeavesLedgerEmpty(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.Write([]byte(`<html><body><h1>Backend Engineer</h1>
			<form action="/apply" method="post">
				<input type="text" name="name">
				<input type="email" name="email">
			</form></body></html>`))
	}))
	defer srv.Close()

	cfg := &config.Config{
		Profile:   model.Profile{Name: "Ada Lovelace"},
		Applicant: config.ApplicantConfig{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		Apply:     config.ApplyConfig{Enabled: true, DryRun: true, StepTimeout: 5 * time.Second},
		Ledger:    config.LedgerConfig{Backend: config.LedgerJSONL, Path: filepath.Join(t.TempDir(), "applications.jsonl"), LockTimeout: time.Second},
	}
	logger := discardLogger()
	led, closeLedger, err := openLedger(cfg, logger)
	if err != nil {
		t.Fatalf("openLedger: %v", err)
	}
	defer closeLedger()

	orch, err := buildApplier(cfg, led, srv.Client(), logger)
	if err != nil {
		t.Fatalf("buildApplier: %v", err)
	}
	job := model.ScoredJob{Job: model.Job{ID: "1", Title: "Backend Engineer", Company: "Acme", URL: srv.URL + "/jobs/1"}, Score: 90}
	sum, err := orch.Run(context.Background(), "dry-1", []model.ScoredJob{job})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Skipped != 1 || sum.Records[0].FailureReason != "dry-run" {
		t.Fatalf("summary = %+v", sum)
	}
	if posts.Load() != 0 {
		t.Error("dry run must not submit the form")
	}

	records, err := ledger.ReadFile(cfg.Ledger.Path, logger)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("dry run wrote %d ledger records", len(records))
	}
	if seen, _ := led.HasRecord(job.Job.RecordID()); seen {
		t.Error("a rehearsed job must stay eligible for real runs")
	}
}
