// Package pipeline runs one full search: aggregate, rank, apply, notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobpilot/internal/aggregate"
	"github.com/amishk599/jobpilot/internal/apply"
	"github.com/amishk599/jobpilot/internal/model"
)

// Fetcher gathers postings for a profile.
type Fetcher interface {
	Fetch(ctx context.Context, profile model.Profile, maxResults int) (aggregate.Result, error)
}

// Ranker scores, filters and orders postings.
type Ranker interface {
	Rank(jobs []model.Job, profile model.Profile) []model.ScoredJob
}

// Applier applies to ranked jobs.
type Applier interface {
	Run(ctx context.Context, runID string, jobs []model.ScoredJob) (apply.Summary, error)
}

// Options tune a Runner.
type Options struct {
	MaxResults int
	// MaxAge drops postings published longer ago. Zero keeps everything;
	// postings without a date are always kept.
	MaxAge time.Duration
	// ApplyMinScore is the auto-apply threshold, separate from the ranking cutoff.
	ApplyMinScore float64
	Timeout       time.Duration
	NewRunID      func() string
	Now           func() time.Time
}

// Report describes one run.
type Report struct {
	RunID          string
	Fetched        int
	Stale          int
	AlreadyApplied int
	Failures       []model.SourceFailure
	Ranked         []model.ScoredJob
	Apply          apply.Summary
	Duration       time.Duration
}

// Runner owns the full pipeline for one profile:
// fetch → freshness → already applied → rank → apply → notify.
type Runner struct {
	fetcher  Fetcher
	ranker   Ranker
	applier  Applier
	ledger   model.Ledger
	notifier model.Notifier
	profile  model.Profile
	opts     Options
	logger   *slog.Logger
}

// NewRunner creates a runner wired with all its dependencies. applier and
// notifier may be nil to rank without applying or reporting.
func NewRunner(
	profile model.Profile,
	fetcher Fetcher,
	ranker Ranker,
	applier Applier,
	ledger model.Ledger,
	notifier model.Notifier,
	opts Options,
	logger *slog.Logger,
) *Runner {
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		fetcher:  fetcher,
		ranker:   ranker,
		applier:  applier,
		ledger:   ledger,
		notifier: notifier,
		profile:  profile,
		opts:     opts,
		logger:   logger,
	}
}

// Run executes one pipeline pass. Source and notification failures are
// logged, not returned; the run fails only when no source is configured or
// the ledger is unusable.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.opts.Now()
	report := Report{RunID: r.opts.NewRunID()}
	logger := r.logger.With("run_id", report.RunID)

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	res, err := r.fetcher.Fetch(ctx, r.profile, r.opts.MaxResults)
	report.Fetched = len(res.Jobs)
	report.Failures = res.Failures
	for _, f := range res.Failures {
		logger.Warn("source failed", "source", f.Source, "query", f.Query, "location", f.Location, "attempts", f.Attempts, "error", f.Err)
	}
	if err != nil {
		if errors.Is(err, model.ErrNoSources) || ctx.Err() == nil {
			return report, fmt.Errorf("run %s: fetching: %w", report.RunID, err)
		}
		logger.Warn("fetch cut short, ranking partial results", "error", err)
	}

	var fresh []model.Job
	for _, job := range res.Jobs {
		if r.stale(job, start) {
			report.Stale++
			continue
		}
		seen, err := r.ledger.HasRecord(job.RecordID())
		if err != nil {
			return report, fmt.Errorf("run %s: checking ledger: %w", report.RunID, err)
		}
		if seen {
			report.AlreadyApplied++
			continue
		}
		fresh = append(fresh, job)
	}

	report.Ranked = r.ranker.Rank(fresh, r.profile)

	if r.applier != nil && ctx.Err() == nil {
		var eligible []model.ScoredJob
		for _, j := range report.Ranked {
			if j.Score >= r.opts.ApplyMinScore {
				eligible = append(eligible, j)
			}
		}
		report.Apply, err = r.applier.Run(ctx, report.RunID, eligible)
		if err != nil {
			return report, fmt.Errorf("run %s: applying: %w", report.RunID, err)
		}
	}

	if r.notifier != nil && len(report.Apply.Records) > 0 {
		// Outcomes are already in the ledger; a lost notification is not a failed run.
		if err := r.notifier.Notify(report.Apply.Records); err != nil {
			logger.Error("notification failed", "records", len(report.Apply.Records), "error", err)
		}
	}

	report.Duration = r.opts.Now().Sub(start)
	logger.Info("run complete",
		"fetched", report.Fetched,
		"source_failures", len(report.Failures),
		"stale", report.Stale,
		"already_applied", report.AlreadyApplied,
		"ranked", len(report.Ranked),
		"applied", report.Apply.Applied,
		"skipped", report.Apply.Skipped,
		"failed", report.Apply.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

func (r *Runner) stale(job model.Job, now time.Time) bool {
	if r.opts.MaxAge <= 0 || job.PostedAt == nil {
		return false
	}
	return now.Sub(*job.PostedAt) > r.opts.MaxAge
}
