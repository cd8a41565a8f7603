package source

import (
	"context"
	"fmt"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
)

// MockAdapter returns a fixed set of sample postings built around the query.
// It is registered when no real source has credentials, and used as the
// fallback when every real source came back empty.
type MockAdapter struct {
	now func() time.Time
}

// NewMockAdapter returns a MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{now: time.Now}
}

func (a *MockAdapter) Name() string { return "mock" }

// Search never fails. IDs carry the current date so sample postings are
// treated as new each day.
func (a *MockAdapter) Search(_ context.Context, query, location string, limit int) ([]model.Job, error) {
	title := query
	if title == "" {
		title = "Software Engineer"
	}
	loc := location
	if loc == "" {
		loc = "Bangalore"
	}
	day := a.now().UTC().Format("2006-01-02")
	posted := a.now().UTC().Add(-48 * time.Hour)

	jobs := []model.Job{
		{
			ID:          fmt.Sprintf("mock-%s-1", day),
			Title:       title,
			Company:     "TechCorp India",
			Location:    loc,
			Description: "Kubernetes, cloud, incident response. 8+ years of experience.",
			URL:         "https://example.com/job/1",
			PostedAt:    &posted,
			Source:      a.Name(),
		},
		{
			ID:          fmt.Sprintf("mock-%s-2", day),
			Title:       "Customer Reliability Engineer",
			Company:     "CloudScale SaaS",
			Location:    "Hyderabad, Remote",
			Description: "SRE, distributed systems, customer-facing escalations. " + title + " experience welcome.",
			URL:         "https://example.com/job/2",
			Source:      a.Name(),
		},
		{
			ID:          fmt.Sprintf("mock-%s-3", day),
			Title:       "Technical Support Engineer L4",
			Company:     "Enterprise Platform Inc",
			Location:    "Gurgaon",
			Description: "L4 support, root cause analysis, SaaS.",
			URL:         "https://example.com/job/3",
			Source:      a.Name(),
		},
	}
	return truncate(jobs, limit), nil
}
