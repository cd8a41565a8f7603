package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/retry"
)

// --- Fakes ---

// fakeSource returns canned jobs per query, or fails every call with err.
type fakeSource struct {
	name  string
	jobs  map[string][]model.Job
	err   error
	mu    sync.Mutex
	calls []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(_ context.Context, query, location string, _ int) ([]model.Job, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query+"@"+location)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs[query], nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, Retryable: retry.SourceRetryable}
}

func job(title, company, location, source string) model.Job {
	return model.Job{ID: title + "-" + source, Title: title, Company: company, Location: location, Source: source}
}

func testProfile() model.Profile {
	return model.Profile{
		ExperienceLevel: model.LevelSenior,
		CoreRoles:       []string{"Backend Engineer"},
		StretchRoles:    []string{"Platform Engineer"},
		Locations:       []string{"Bangalore"},
	}
}

// --- Tests ---

func TestFetch_NoSources(t *testing.T) {
	a := New(nil, Options{}, discardLogger())
	_, err := a.Fetch(context.Background(), testProfile(), 10)
	if !errors.Is(err, model.ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestFetch_PartialFailureIsolated(t *testing.T) {
	failing := &fakeSource{
		name: "A",
		err:  &model.SourceError{Kind: model.SourceNetwork, Source: "A", Err: errors.New("connection reset")},
	}
	healthy := &fakeSource{
		name: "B",
		jobs: map[string][]model.Job{
			"Backend Engineer": {job("Backend Engineer", "Acme", "Bangalore", "B")},
		},
	}

	a := New([]Source{
		{Adapter: failing, Policy: fastPolicy(3)},
		{Adapter: healthy, Policy: fastPolicy(3)},
	}, Options{}, discardLogger())

	res, err := a.Fetch(context.Background(), testProfile(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Jobs) != 1 || res.Jobs[0].Company != "Acme" {
		t.Fatalf("expected B's job, got %+v", res.Jobs)
	}

	// One failure per query of A: core and stretch, one location each.
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(res.Failures))
	}
	for _, f := range res.Failures {
		if f.Source != "A" {
			t.Errorf("unexpected failing source %q", f.Source)
		}
		if f.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", f.Attempts)
		}
		if !errors.Is(f.Err, retry.ErrRetryExhausted) {
			t.Errorf("expected exhausted error, got %v", f.Err)
		}
	}
	if failing.callCount() != 6 {
		t.Errorf("expected 6 calls to A, got %d", failing.callCount())
	}
}

func TestFetch_AuthFailureNotRetried(t *testing.T) {
	src := &fakeSource{
		name: "A",
		err:  &model.SourceError{Kind: model.SourceAuth, Source: "A", Err: errors.New("bad key")},
	}
	a := New([]Source{{Adapter: src, Policy: fastPolicy(3)}}, Options{}, discardLogger())

	res, err := a.Fetch(context.Background(), testProfile(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.callCount() != 2 {
		t.Errorf("expected one call per query, got %d", src.callCount())
	}
	if len(res.Failures) != 2 || res.Failures[0].Attempts != 1 {
		t.Errorf("unexpected failures %+v", res.Failures)
	}
}

func TestFetch_MergesAcrossSourcesWithProvenance(t *testing.T) {
	a1 := &fakeSource{name: "A", jobs: map[string][]model.Job{
		"Backend Engineer": {job("Backend Engineer", "Acme", "Bengaluru", "A")},
	}}
	b1 := &fakeSource{name: "B", jobs: map[string][]model.Job{
		"Backend Engineer": {job("backend  engineer", "ACME", "Bengaluru", "B")},
	}}

	agg := New([]Source{
		{Adapter: a1, Policy: fastPolicy(1)},
		{Adapter: b1, Policy: fastPolicy(1)},
	}, Options{}, discardLogger())

	res, err := agg.Fetch(context.Background(), testProfile(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Jobs) != 1 {
		t.Fatalf("expected 1 merged job, got %d", len(res.Jobs))
	}
	prov := res.Jobs[0].Provenance
	if len(prov) != 2 {
		t.Fatalf("expected provenance from both sources, got %v", prov)
	}
	if res.Jobs[0].Source != prov[0] {
		t.Errorf("first sighting should win: source %s, provenance %v", res.Jobs[0].Source, prov)
	}
}

func TestFetch_BudgetSkipsStretchQueries(t *testing.T) {
	src := &fakeSource{name: "A", jobs: map[string][]model.Job{
		"Backend Engineer": {
			job("Backend Engineer", "Acme", "Bangalore", "A"),
			job("Backend Engineer", "Beta", "Bangalore", "A"),
		},
		"Platform Engineer": {job("Platform Engineer", "Gamma", "Bangalore", "A")},
	}}
	a := New([]Source{{Adapter: src, Policy: fastPolicy(1)}}, Options{}, discardLogger())

	res, err := a.Fetch(context.Background(), testProfile(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.callCount() != 1 {
		t.Errorf("expected stretch query to be skipped, got calls %v", src.calls)
	}
	if len(res.Jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(res.Jobs))
	}
}

func TestFetch_BudgetCountsDistinctPostings(t *testing.T) {
	// The source returns the same two postings for every location.
	src := &fakeSource{name: "A", jobs: map[string][]model.Job{
		"Backend Engineer": {
			job("Backend Engineer", "Acme", "Remote", "A"),
			job("Backend Engineer", "Beta", "Remote", "A"),
		},
		"Platform Engineer": {job("Platform Engineer", "Gamma", "Remote", "A")},
	}}
	p := testProfile()
	p.Locations = []string{"Bangalore", "Pune"}
	a := New([]Source{{Adapter: src, Policy: fastPolicy(1)}}, Options{}, discardLogger())

	res, err := a.Fetch(context.Background(), p, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Jobs) != 3 {
		t.Errorf("stretch query should still run with 2 distinct postings under a budget of 3, got %d jobs (calls %v)", len(res.Jobs), src.calls)
	}
}

// locationFreeSource is a fakeSource whose results ignore location.
type locationFreeSource struct{ *fakeSource }

func (locationFreeSource) IgnoresLocation() bool { return true }

func TestFetch_LocationFreeSourceQueriedOncePerRole(t *testing.T) {
	src := locationFreeSource{&fakeSource{name: "remotive"}}
	p := testProfile()
	p.Locations = []string{"Bangalore", "Pune"}
	a := New([]Source{{Adapter: src, Policy: fastPolicy(1)}}, Options{}, discardLogger())

	if _, err := a.Fetch(context.Background(), p, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Backend Engineer@", "Platform Engineer@"}
	if !reflect.DeepEqual(src.calls, want) {
		t.Errorf("calls = %v, want %v", src.calls, want)
	}
}

func TestFetch_LocationsCapped(t *testing.T) {
	src := &fakeSource{name: "A"}
	p := testProfile()
	p.StretchRoles = nil
	p.Locations = []string{"Bangalore", "Pune", "Remote"}

	a := New([]Source{{Adapter: src, Policy: fastPolicy(1)}}, Options{}, discardLogger())
	if _, err := a.Fetch(context.Background(), p, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Backend Engineer@Bangalore", "Backend Engineer@Pune"}
	if !reflect.DeepEqual(src.calls, want) {
		t.Errorf("calls = %v, want %v", src.calls, want)
	}
}

func TestFetch_FallbackWhenEverythingEmpty(t *testing.T) {
	empty := &fakeSource{name: "A"}
	fallback := &fakeSource{name: "mock", jobs: map[string][]model.Job{
		"Backend Engineer": {job("Backend Engineer", "Sample", "Bangalore", "mock")},
	}}
	a := New([]Source{{Adapter: empty, Policy: fastPolicy(1)}}, Options{Fallback: fallback}, discardLogger())

	res, err := a.Fetch(context.Background(), testProfile(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Jobs) != 1 || res.Jobs[0].Provenance[0] != "mock" {
		t.Fatalf("expected fallback job, got %+v", res.Jobs)
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	src := &fakeSource{name: "A"}
	a := New([]Source{{Adapter: src, Policy: fastPolicy(1)}}, Options{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Fetch(ctx, testProfile(), 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if src.callCount() != 0 {
		t.Errorf("expected no calls after cancellation, got %d", src.callCount())
	}
}

func TestDedup_Idempotent(t *testing.T) {
	jobs := []model.Job{
		job("Backend Engineer", "Acme", "Bangalore", "A"),
		job("Backend Engineer", "Acme", "Bangalore", "B"),
		job("Bäckend Engineer", "acme", "bangalore", "C"),
		job("SRE", "Acme", "Pune", "A"),
	}

	once := Dedup(jobs)
	if len(once) != 2 {
		t.Fatalf("expected 2 unique jobs, got %d", len(once))
	}
	if got := once[0].Provenance; !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("unexpected provenance %v", got)
	}

	twice := Dedup(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedup is not idempotent:\n once  %+v\n twice %+v", once, twice)
	}

	// Feeding the same batch twice must not change the result either.
	doubled := Dedup(append(append([]model.Job(nil), jobs...), jobs...))
	if !reflect.DeepEqual(once, doubled) {
		t.Errorf("duplicate batch changed result:\n once    %+v\n doubled %+v", once, doubled)
	}
}

func TestDedup_DoesNotMutateInput(t *testing.T) {
	first := job("SRE", "Acme", "Pune", "A")
	first.Provenance = []string{"A"}
	jobs := []model.Job{first, job("SRE", "Acme", "Pune", "B")}

	Dedup(jobs)
	if len(jobs[0].Provenance) != 1 {
		t.Errorf("input provenance was mutated: %v", jobs[0].Provenance)
	}
}
