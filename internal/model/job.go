package model

import (
	"context"
	"time"
)

// Unified representation of a job posting from any source.
type Job struct {
	ID          string       // unique per source
	Title       string       // job title
	Company     string       // company name
	Location    string       // location string as published
	Description string       // plain-text description
	Salary      *SalaryRange // nil when the posting lists no salary
	Source      string       // source adapter name
	URL         string       // posting or apply link
	PostedAt    *time.Time   // nullable (not all APIs provide this)
	Provenance  []string     // sources that reported this posting, discoverer first
}

// SalaryRange is a posted salary band. Min and Max share the profile's unit.
type SalaryRange struct {
	Min      float64
	Max      float64
	Currency string
}

// Key returns the composite key used for cross-source deduplication.
func (j Job) Key() string {
	return CompositeKey(j.Title, j.Company, j.Location)
}

// RecordID identifies the job in the application ledger. It is the composite
// key, so the same posting keeps its identity whichever source found it.
func (j Job) RecordID() string {
	return j.Key()
}

// ProvenanceCount returns how many distinct sources reported the job.
func (j Job) ProvenanceCount() int {
	if len(j.Provenance) == 0 {
		return 1
	}
	return len(j.Provenance)
}

// ScoredJob is a Job plus the scorer's verdict. Never mutated after creation.
type ScoredJob struct {
	Job             Job
	Score           float64
	MatchReasons    []string
	MatchedSkills   []string
	RoleTier        string // "core", "stretch" or ""
	Excluded        bool
	ExclusionReason string
}

// SourceFailure records a source query that failed after retries.
type SourceFailure struct {
	Source   string
	Query    string
	Location string
	Attempts int
	Err      error
}

func (f SourceFailure) Error() string {
	return f.Source + " " + f.Query + ": " + f.Err.Error()
}

// SourceAdapter fetches postings from one provider (e.g. Remotive).
type SourceAdapter interface {
	Name() string
	Search(ctx context.Context, query, location string, limit int) ([]Job, error)
}

// JobFilter decides whether a job is eligible for ranking.
type JobFilter interface {
	Match(job Job) bool
}

// CoverLetterGenerator writes a cover letter for a job.
type CoverLetterGenerator interface {
	Generate(ctx context.Context, profile Profile, job ScoredJob) (string, error)
}

// Notifier reports the outcome of an apply run.
type Notifier interface {
	Notify(records []ApplicationRecord) error
}
