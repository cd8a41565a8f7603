// Package rank scores aggregated jobs, drops ineligible ones and orders the
// rest deterministically.
package rank

import (
	"log/slog"
	"sort"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/score"
)

// Options configures a Pipeline.
type Options struct {
	MinScore float64
	Score    score.Options
	// Filter, when set, drops jobs before scoring.
	Filter model.JobFilter
}

// Pipeline applies the scorer to a batch of jobs.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// New creates a ranking pipeline.
func New(opts Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{opts: opts, logger: logger}
}

// Rank scores jobs against profile and returns the eligible ones, best first.
func (p *Pipeline) Rank(jobs []model.Job, profile model.Profile) []model.ScoredJob {
	s := score.New(profile, p.opts.Score)

	out := make([]model.ScoredJob, 0, len(jobs))
	var filtered, excluded, below int
	for _, j := range jobs {
		if p.opts.Filter != nil && !p.opts.Filter.Match(j) {
			filtered++
			continue
		}
		sj := s.Score(j)
		if sj.Excluded {
			excluded++
			p.logger.Debug("job excluded", "title", j.Title, "company", j.Company, "reason", sj.ExclusionReason)
			continue
		}
		if sj.Score < p.opts.MinScore {
			below++
			continue
		}
		out = append(out, sj)
	}
	Sort(out)

	p.logger.Info("ranked jobs",
		"input", len(jobs),
		"filtered", filtered,
		"excluded", excluded,
		"below_threshold", below,
		"ranked", len(out),
		"min_score", p.opts.MinScore,
	)
	return out
}

// Rank is a one-shot ranking with the default scorer options and no logging.
func Rank(jobs []model.Job, profile model.Profile, minScore float64) []model.ScoredJob {
	return New(Options{MinScore: minScore}, slog.New(slog.DiscardHandler)).Rank(jobs, profile)
}

// Sort orders jobs by score descending, then by number of reporting sources
// descending, then by composite key.
func Sort(jobs []model.ScoredJob) {
	sort.SliceStable(jobs, func(a, b int) bool {
		ja, jb := jobs[a], jobs[b]
		if ja.Score != jb.Score {
			return ja.Score > jb.Score
		}
		if pa, pb := ja.Job.ProvenanceCount(), jb.Job.ProvenanceCount(); pa != pb {
			return pa > pb
		}
		return ja.Job.Key() < jb.Job.Key()
	})
}
