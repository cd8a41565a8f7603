package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/amishk599/jobpilot/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const greenhousePayload = `{
	"jobs": [
		{
			"id": 12345,
			"title": "Senior Backend Engineer",
			"location": {"name": "Bengaluru, India"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/12345",
			"updated_at": "2026-02-13T10:00:00Z",
			"content": "&lt;p&gt;Build Go services.&lt;/p&gt;"
		},
		{
			"id": 67890,
			"title": "Product Designer",
			"location": {"name": "Remote, US"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/67890",
			"updated_at": "2026-02-13T11:30:00Z"
		},
		{"id": "not-a-number", "title": "Broken"}
	]
}`

func TestGreenhouse_Search_FiltersByQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/jobs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("content") != "true" {
			t.Errorf("expected content=true, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(greenhousePayload))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(srv.URL, []Board{{Token: "acme", Company: "Acme Corp"}}, srv.Client(), discardLogger())

	jobs, err := a.Search(context.Background(), "Backend Engineer", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}

	j := jobs[0]
	if j.ID != "12345" {
		t.Errorf("expected ID 12345, got %s", j.ID)
	}
	if j.Company != "Acme Corp" {
		t.Errorf("expected company Acme Corp, got %s", j.Company)
	}
	if j.Description != "Build Go services." {
		t.Errorf("expected decoded description, got %q", j.Description)
	}
	if j.Source != "greenhouse" {
		t.Errorf("expected source greenhouse, got %s", j.Source)
	}
	if j.PostedAt == nil || j.PostedAt.Day() != 13 {
		t.Errorf("unexpected PostedAt: %v", j.PostedAt)
	}
}

func TestGreenhouse_Search_CachesBoardAcrossQueries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(greenhousePayload))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(srv.URL, []Board{{Token: "acme", Company: "Acme"}}, srv.Client(), discardLogger())
	for _, q := range []string{"Backend Engineer", "Product Designer"} {
		if _, err := a.Search(context.Background(), q, "", 10); err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected board to be fetched once, got %d", hits.Load())
	}
}

func TestGreenhouse_Search_LocationFilterKeepsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(greenhousePayload))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(srv.URL, []Board{{Token: "acme", Company: "Acme"}}, srv.Client(), discardLogger())
	jobs, err := a.Search(context.Background(), "", "Pune", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Title != "Product Designer" {
		t.Fatalf("expected only the remote posting, got %+v", jobs)
	}
}

func TestGreenhouse_Search_ServerErrorIsRetryableNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(srv.URL, []Board{{Token: "fail-co", Company: "Fail Co"}}, srv.Client(), discardLogger())
	_, err := a.Search(context.Background(), "Engineer", "", 10)
	var srcErr *model.SourceError
	if !errors.As(err, &srcErr) || srcErr.Kind != model.SourceNetwork {
		t.Fatalf("expected network SourceError, got %v", err)
	}
}

func TestGreenhouse_Search_SkipsMissingBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone/jobs" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(greenhousePayload))
	}))
	defer srv.Close()

	boards := []Board{{Token: "gone", Company: "Gone"}, {Token: "acme", Company: "Acme"}}
	a := NewGreenhouseAdapter(srv.URL, boards, srv.Client(), discardLogger())
	jobs, err := a.Search(context.Background(), "Backend", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job from the healthy board, got %d", len(jobs))
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "double-encoded HTML from Greenhouse API",
			input: "This is the job description. &lt;p&gt;Any HTML included.&lt;/p&gt;",
			want:  "This is the job description. Any HTML included.",
		},
		{
			name:  "nested tags and whitespace",
			input: "&lt;p&gt;We are hiring.&lt;/p&gt;\n&lt;ul&gt;\n  &lt;li&gt;Write code&lt;/li&gt;\n&lt;/ul&gt;",
			want:  "We are hiring. Write code",
		},
		{
			name:  "plain text with no HTML",
			input: "No tags here.",
			want:  "No tags here.",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := extractText(tc.input)
			if got != tc.want {
				t.Errorf("extractText(%q)\n got  %q\n want %q", tc.input, got, tc.want)
			}
		})
	}
}
