package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/ratelimit"
	"github.com/amishk599/jobpilot/internal/retry"
)

// DefaultStepTimeout bounds a single attempt of one step.
const DefaultStepTimeout = 30 * time.Second

// AdapterLookup resolves the adapter for a posting URL.
type AdapterLookup interface {
	For(rawURL string) model.PlatformAdapter
}

// Applicant holds the contact details entered on application forms.
type Applicant struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Deps are the collaborators an Orchestrator calls out to.
type Deps struct {
	Adapters    AdapterLookup
	Ledger      model.Ledger
	Credentials model.CredentialProvider
	CoverLetter model.CoverLetterGenerator
}

// Options tune an Orchestrator.
type Options struct {
	Applicant       Applicant
	Resume          *model.Resume
	StepPolicy      retry.Policy
	StepTimeout     time.Duration
	MaxApplications int // zero means no cap
	// Limiter paces applications per platform. Nil disables pacing.
	Limiter *ratelimit.KeyedLimiter
	Now     func() time.Time
}

// Summary reports what one Run did.
type Summary struct {
	Records        []model.ApplicationRecord
	Applied        int
	Skipped        int
	Failed         int
	AlreadyApplied int
	NotAttempted   int
}

// Orchestrator applies to ranked jobs, one platform at a time per goroutine.
type Orchestrator struct {
	deps   Deps
	opts   Options
	env    *env
	logger *slog.Logger
}

// New creates an Orchestrator applying on behalf of profile.
func New(profile model.Profile, deps Deps, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.StepPolicy.MaxAttempts == 0 {
		opts.StepPolicy = retry.DefaultStepPolicy
	}
	if opts.StepTimeout == 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		deps: deps,
		opts: opts,
		env: &env{
			profile:     profile,
			applicant:   opts.Applicant,
			resume:      opts.Resume,
			credentials: deps.Credentials,
			letters:     deps.CoverLetter,
			policy:      opts.StepPolicy,
			stepTimeout: opts.StepTimeout,
		},
		logger: logger,
	}
}

type platformQueue struct {
	adapter model.PlatformAdapter
	jobs    []model.ScoredJob
}

// Run applies to jobs in ranked order. Jobs already in the ledger, or listed
// earlier in jobs, are passed over without a new record. Every attempted job
// gets exactly one record.
// A ledger error other than model.ErrDuplicate aborts the run.
func (o *Orchestrator) Run(ctx context.Context, runID string, jobs []model.ScoredJob) (Summary, error) {
	var summary Summary

	pending := make([]model.ScoredJob, 0, len(jobs))
	queued := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		id := j.Job.RecordID()
		if queued[id] {
			o.logger.Debug("posting listed twice, applying once", "job_id", id)
			continue
		}
		seen, err := o.deps.Ledger.HasRecord(id)
		if err != nil {
			return summary, fmt.Errorf("checking ledger for %s: %w", id, err)
		}
		if seen {
			summary.AlreadyApplied++
			continue
		}
		queued[id] = true
		pending = append(pending, j)
	}
	if limit := o.opts.MaxApplications; limit > 0 && len(pending) > limit {
		summary.NotAttempted = len(pending) - limit
		pending = pending[:limit]
	}

	var order []string
	queues := make(map[string]*platformQueue)
	for _, j := range pending {
		adapter := o.deps.Adapters.For(j.Job.URL)
		if adapter == nil {
			o.logger.Warn("no adapter for posting", "job_id", j.Job.RecordID(), "url", j.Job.URL)
			summary.NotAttempted++
			continue
		}
		q, ok := queues[adapter.Name()]
		if !ok {
			q = &platformQueue{adapter: adapter}
			queues[adapter.Name()] = q
			order = append(order, adapter.Name())
		}
		q.jobs = append(q.jobs, j)
	}

	results := make([]Summary, len(order))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range order {
		q := queues[name]
		g.Go(func() error {
			return o.runPlatform(gctx, runID, q, &results[i])
		})
	}
	err := g.Wait()
	for _, r := range results {
		summary.merge(r)
	}

	o.logger.Info("apply run complete",
		"run_id", runID,
		"applied", summary.Applied,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"already_applied", summary.AlreadyApplied,
		"not_attempted", summary.NotAttempted,
	)
	return summary, err
}

// runPlatform applies to q's jobs one after another.
// Jobs left when ctx ends are counted as not attempted.
func (o *Orchestrator) runPlatform(ctx context.Context, runID string, q *platformQueue, out *Summary) error {
	logger := o.logger.With("platform", q.adapter.Name())
	for i, job := range q.jobs {
		if ctx.Err() != nil {
			out.NotAttempted += len(q.jobs) - i
			return nil
		}
		if o.opts.Limiter != nil {
			if err := o.opts.Limiter.Wait(ctx, q.adapter.Name()); err != nil {
				out.NotAttempted += len(q.jobs) - i
				return nil
			}
		}

		m := newMachine(job, q.adapter, o.env, logger)
		rec := o.record(runID, job, q.adapter.Name(), m.Run(ctx))

		// The outcome is recorded even when the run deadline passed mid-step.
		err := o.deps.Ledger.Append(context.WithoutCancel(ctx), rec)
		switch {
		case errors.Is(err, model.ErrDuplicate):
			logger.Debug("ledger already holds job", "job_id", rec.JobID)
			continue
		case err != nil:
			return fmt.Errorf("recording %s: %w", rec.JobID, err)
		}
		out.add(rec)
	}
	return nil
}

func (o *Orchestrator) record(runID string, job model.ScoredJob, platform string, out Outcome) model.ApplicationRecord {
	return model.ApplicationRecord{
		JobID:             job.Job.RecordID(),
		RunID:             runID,
		ProfileSnapshotID: o.env.profile.SnapshotID(),
		Title:             job.Job.Title,
		Company:           job.Job.Company,
		URL:               job.Job.URL,
		Score:             job.Score,
		Platform:          platform,
		Status:            out.Status,
		Step:              out.Step,
		FailureReason:     out.Reason,
		Timestamp:         o.opts.Now().UTC(),
	}
}

func (s *Summary) merge(other Summary) {
	for _, rec := range other.Records {
		s.add(rec)
	}
	s.NotAttempted += other.NotAttempted
}

func (s *Summary) add(rec model.ApplicationRecord) {
	s.Records = append(s.Records, rec)
	switch rec.Status {
	case model.StatusApplied:
		s.Applied++
	case model.StatusSkipped:
		s.Skipped++
	case model.StatusFailed:
		s.Failed++
	}
}
