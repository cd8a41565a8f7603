package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/ratelimit"
	"github.com/amishk599/jobpilot/internal/retry"
)

// DefaultMaxLocations is how many profile locations each query is run for.
const DefaultMaxLocations = 2

// Source is one enabled adapter with its retry policy.
type Source struct {
	Adapter model.SourceAdapter
	Policy  retry.Policy

	anyLocation bool
}

// LocationFree is implemented by sources whose results do not depend on the
// location argument. They are queried once per role.
type LocationFree interface {
	IgnoresLocation() bool
}

// Options tunes an Aggregator. Zero values use the defaults.
type Options struct {
	MaxLocations int
	// Limiter paces calls per source name. Nil disables pacing.
	Limiter *ratelimit.KeyedLimiter
	// Fallback is queried when every source came back empty.
	Fallback model.SourceAdapter
}

// Result is the merged output of one Fetch.
type Result struct {
	Jobs     []model.Job
	Failures []model.SourceFailure
}

// Aggregator fans a profile's role queries out to every source and merges
// the results by composite key.
type Aggregator struct {
	sources      []Source
	maxLocations int
	fallback     model.SourceAdapter
	logger       *slog.Logger
}

// New creates an Aggregator over sources.
func New(sources []Source, opts Options, logger *slog.Logger) *Aggregator {
	maxLoc := opts.MaxLocations
	if maxLoc <= 0 {
		maxLoc = DefaultMaxLocations
	}
	wrapped := make([]Source, len(sources))
	for i, s := range sources {
		if lf, ok := s.Adapter.(LocationFree); ok {
			s.anyLocation = lf.IgnoresLocation()
		}
		if opts.Limiter != nil {
			s.Adapter = ratelimit.NewRateLimitedSource(s.Adapter, opts.Limiter)
		}
		if s.Policy.MaxAttempts == 0 {
			s.Policy = retry.DefaultSourcePolicy
		}
		wrapped[i] = s
	}
	return &Aggregator{
		sources:      wrapped,
		maxLocations: maxLoc,
		fallback:     opts.Fallback,
		logger:       logger,
	}
}

// query is one (role, location) pair for a source.
type query struct {
	role     string
	location string
	stretch  bool
}

func (a *Aggregator) queries(profile model.Profile, anyLocation bool) []query {
	locs := profile.Locations
	if len(locs) > a.maxLocations {
		locs = locs[:a.maxLocations]
	}
	if len(locs) == 0 || anyLocation {
		locs = []string{""}
	}

	var out []query
	for _, role := range profile.CoreRoles {
		for _, loc := range locs {
			out = append(out, query{role: role, location: loc})
		}
	}
	for _, role := range profile.StretchRoles {
		for _, loc := range locs {
			out = append(out, query{role: role, location: loc, stretch: true})
		}
	}
	return out
}

// Fetch runs every source concurrently and returns the deduplicated jobs in
// first-sighting order plus one SourceFailure per query that failed after
// retries. A failing source never aborts the run. If ctx ends, the jobs
// gathered so far are returned together with the context error.
func (a *Aggregator) Fetch(ctx context.Context, profile model.Profile, maxResults int) (Result, error) {
	if len(a.sources) == 0 {
		return Result{}, model.ErrNoSources
	}

	m := newMerger()
	total := 0

	var g errgroup.Group
	g.SetLimit(len(a.sources))
	for _, src := range a.sources {
		queries := a.queries(profile, src.anyLocation)
		total += len(queries)
		g.Go(func() error {
			a.runSource(ctx, src, queries, maxResults, m)
			return nil
		})
	}
	g.Wait()

	res := Result{Jobs: m.jobs, Failures: m.failures}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("aggregate: %w", err)
	}

	if len(res.Jobs) == 0 && a.fallback != nil {
		a.logger.Warn("no jobs from any source, using fallback", "fallback", a.fallback.Name())
		jobs, err := a.fallback.Search(ctx, firstRole(profile), firstLocation(profile), maxResults)
		if err != nil {
			res.Failures = append(res.Failures, model.SourceFailure{Source: a.fallback.Name(), Attempts: 1, Err: err})
		} else {
			m.add(a.fallback.Name(), jobs)
			res.Jobs = m.jobs
		}
	}

	a.logger.Info("aggregated jobs",
		"sources", len(a.sources),
		"queries", total,
		"jobs", len(res.Jobs),
		"failures", len(res.Failures),
	)
	return res, nil
}

func (a *Aggregator) runSource(ctx context.Context, src Source, queries []query, maxResults int, m *merger) {
	name := src.Adapter.Name()
	logger := a.logger.With("source", name)
	// The budget counts distinct postings; a repeat across locations is one job.
	produced := make(map[string]struct{})

	for _, q := range queries {
		if ctx.Err() != nil {
			return
		}
		if q.stretch && maxResults > 0 && len(produced) >= maxResults {
			logger.Debug("budget reached, skipping stretch query", "query", q.role)
			continue
		}

		attempts := 0
		jobs, err := retry.Do(ctx, src.Policy, logger, func(ctx context.Context, attempt int) ([]model.Job, error) {
			attempts = attempt
			return src.Adapter.Search(ctx, q.role, q.location, maxResults)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("source query failed", "query", q.role, "location", q.location, "attempts", attempts, "error", err)
			m.fail(model.SourceFailure{Source: name, Query: q.role, Location: q.location, Attempts: attempts, Err: err})
			continue
		}

		for _, j := range jobs {
			produced[j.Key()] = struct{}{}
		}
		m.add(name, jobs)
		logger.Debug("source query done", "query", q.role, "location", q.location, "jobs", len(jobs))
	}
}

func firstRole(p model.Profile) string {
	if len(p.CoreRoles) > 0 {
		return p.CoreRoles[0]
	}
	if len(p.StretchRoles) > 0 {
		return p.StretchRoles[0]
	}
	return ""
}

func firstLocation(p model.Profile) string {
	if len(p.Locations) > 0 {
		return p.Locations[0]
	}
	return ""
}

// merger collects batches from concurrent sources.
type merger struct {
	mu       sync.Mutex
	index    map[string]int
	jobs     []model.Job
	failures []model.SourceFailure
}

func newMerger() *merger {
	return &merger{index: make(map[string]int)}
}

// add merges batch reported by source. The first sighting of a key is kept;
// later sightings only extend its provenance.
func (m *merger) add(source string, batch []model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range batch {
		key := j.Key()
		if i, ok := m.index[key]; ok {
			m.jobs[i] = withProvenance(m.jobs[i], source)
			continue
		}
		if j.Source == "" {
			j.Source = source
		}
		j.Provenance = []string{source}
		m.index[key] = len(m.jobs)
		m.jobs = append(m.jobs, j)
	}
}

func (m *merger) fail(f model.SourceFailure) {
	m.mu.Lock()
	m.failures = append(m.failures, f)
	m.mu.Unlock()
}

// withProvenance returns j with source appended to a fresh provenance slice,
// or j unchanged when source is already listed.
func withProvenance(j model.Job, source string) model.Job {
	for _, s := range j.Provenance {
		if s == source {
			return j
		}
	}
	prov := make([]string, len(j.Provenance), len(j.Provenance)+1)
	copy(prov, j.Provenance)
	j.Provenance = append(prov, source)
	return j
}

// Dedup merges jobs by composite key using each job's Source as provenance.
// Applying it to its own output returns the same jobs.
func Dedup(jobs []model.Job) []model.Job {
	m := newMerger()
	for _, j := range jobs {
		sources := j.Provenance
		if len(sources) == 0 {
			sources = []string{j.Source}
		}
		for _, s := range sources {
			m.add(s, []model.Job{j})
		}
	}
	return m.jobs
}
