// Package score rates a job posting against a candidate profile with a fixed
// weight table. Scoring is deterministic and does no I/O.
package score

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/amishk599/jobpilot/internal/model"
)

// Component weights. A non-excluded job scores at most 105.
const (
	weightCoreTitle         = 40
	weightCoreOverlap       = 35
	weightStretchTitle      = 20
	weightStretchOverlap    = 18
	weightCoreDescription   = 15
	weightStretchDesc       = 8
	weightPerSkill          = 5
	maxSkillPoints          = 25
	weightSeniorityExact    = 10
	weightSeniorityAdjacent = 5
	weightLocation          = 15
	weightSalary            = 10
	weightBonus             = 5

	// overlapRatio is the share of a role's words that must appear in a title.
	overlapRatio = 0.6
	// bonusSkills is how many matched skills a core-role job needs for the bonus.
	bonusSkills = 3
)

// DefaultFresherExperienceThreshold is the experience in years from which
// fresher-only postings are excluded.
const DefaultFresherExperienceThreshold = 2

// Options tunes a Scorer.
type Options struct {
	// FresherExperienceThreshold of zero uses the default. Use a negative
	// value to exclude fresher postings for every profile.
	FresherExperienceThreshold float64
}

// Scorer scores jobs against one profile. It is safe for concurrent use.
type Scorer struct {
	profile      model.Profile
	opts         Options
	coreRoles    []string
	stretchRoles []string

	// skills[i] is the normalized skill for matcher hit i.
	skills  []string
	mu      sync.Mutex // guards matcher, whose Match keeps internal state
	matcher *ahocorasick.Matcher
}

// New prepares a Scorer for profile.
func New(profile model.Profile, opts Options) *Scorer {
	if opts.FresherExperienceThreshold == 0 {
		opts.FresherExperienceThreshold = DefaultFresherExperienceThreshold
	}
	p := profile.Normalize()
	s := &Scorer{
		profile:      p,
		opts:         opts,
		coreRoles:    normalizeAll(p.CoreRoles),
		stretchRoles: normalizeAll(p.StretchRoles),
	}

	seen := make(map[string]bool)
	for _, sk := range p.Skills {
		n := model.Normalize(sk)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		s.skills = append(s.skills, n)
	}
	sort.Strings(s.skills)
	if len(s.skills) > 0 {
		patterns := make([]string, len(s.skills))
		for i, sk := range s.skills {
			patterns[i] = padded(sk)
		}
		s.matcher = ahocorasick.NewStringMatcher(patterns)
	}
	return s
}

// Score is shorthand for New(profile, Options{}).Score(job).
func Score(profile model.Profile, job model.Job) model.ScoredJob {
	return New(profile, Options{}).Score(job)
}

// Score rates job. Excluded jobs score 0 with a reason; otherwise the score is
// the sum of the role, skills, seniority, location and salary components plus
// the core-role bonus. MatchReasons has one entry per component that fired,
// in that order.
func (s *Scorer) Score(job model.Job) model.ScoredJob {
	titleNorm := model.Normalize(job.Title)
	descNorm := model.Normalize(job.Description)
	title := padded(titleNorm)
	desc := padded(descNorm)
	text := padded(strings.TrimSpace(titleNorm + " " + descNorm))

	if reason := s.exclusion(title, text); reason != "" {
		return model.ScoredJob{Job: job, Excluded: true, ExclusionReason: reason}
	}

	out := model.ScoredJob{Job: job}
	var total float64

	rolePoints, role, tier := s.bestRole(title, desc)
	if rolePoints > 0 {
		total += rolePoints
		out.RoleTier = tier
		out.MatchReasons = append(out.MatchReasons, fmt.Sprintf("role match (%s): %s", tier, role))
	}

	matched := s.matchSkills(text)
	if len(matched) > 0 {
		out.MatchedSkills = matched
		total += min(float64(len(matched))*weightPerSkill, maxSkillPoints)
		out.MatchReasons = append(out.MatchReasons, "skills: "+strings.Join(matched, ", "))
	}

	band := inferBand(title, text)
	if pts := seniorityPoints(s.profile.ExperienceLevel, band); pts > 0 {
		total += pts
		fit := "exact"
		if pts < weightSeniorityExact {
			fit = "adjacent"
		}
		out.MatchReasons = append(out.MatchReasons, fmt.Sprintf("seniority %s: %s", fit, band))
	}

	if LocationMatches(job.Location, s.profile.Locations) {
		total += weightLocation
		out.MatchReasons = append(out.MatchReasons, "location match: "+job.Location)
	}

	if job.Salary != nil && s.profile.HasSalaryBand() &&
		job.Salary.Min <= s.profile.SalaryMax && job.Salary.Max >= s.profile.SalaryMin {
		total += weightSalary
		out.MatchReasons = append(out.MatchReasons, "salary in range")
	}

	if len(matched) >= bonusSkills && tier == "core" {
		total += weightBonus
		out.MatchReasons = append(out.MatchReasons, "bonus: strong skill overlap on a core role")
	}

	out.Score = total
	return out
}

// bestRole returns the highest role contribution. Core roles are checked
// before stretch roles and a tie keeps the earlier role.
func (s *Scorer) bestRole(title, desc string) (float64, string, string) {
	var best float64
	var bestRole, bestTier string

	consider := func(pts float64, role, tier string) {
		if pts > best {
			best, bestRole, bestTier = pts, role, tier
		}
	}

	for i, role := range s.coreRoles {
		if role == "" {
			continue
		}
		name := s.profile.CoreRoles[i]
		switch {
		case strings.Contains(title, padded(role)):
			consider(weightCoreTitle, name, "core")
		case wordOverlap(role, title) >= overlapRatio:
			consider(weightCoreOverlap, name, "core")
		case strings.Contains(desc, padded(role)):
			consider(weightCoreDescription, name, "core")
		}
	}
	for i, role := range s.stretchRoles {
		if role == "" {
			continue
		}
		name := s.profile.StretchRoles[i]
		switch {
		case strings.Contains(title, padded(role)):
			consider(weightStretchTitle, name, "stretch")
		case wordOverlap(role, title) >= overlapRatio:
			consider(weightStretchOverlap, name, "stretch")
		case strings.Contains(desc, padded(role)):
			consider(weightStretchDesc, name, "stretch")
		}
	}
	return best, bestRole, bestTier
}

// matchSkills returns the profile skills found in text, sorted.
func (s *Scorer) matchSkills(text string) []string {
	if s.matcher == nil {
		return nil
	}
	s.mu.Lock()
	hits := s.matcher.Match([]byte(text))
	s.mu.Unlock()

	seen := make(map[int]bool, len(hits))
	var out []string
	for _, h := range hits {
		if h < 0 || h >= len(s.skills) || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, s.skills[h])
	}
	sort.Strings(out)
	return out
}

// wordOverlap returns the share of role's words present in text. A
// multi-word role needs at least two shared words so a single common word
// like "engineer" does not count.
func wordOverlap(role, text string) float64 {
	roleWords := strings.Fields(role)
	if len(roleWords) == 0 {
		return 0
	}
	textWords := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		textWords[w] = true
	}
	uniq := make(map[string]bool, len(roleWords))
	shared := 0
	for _, w := range roleWords {
		if uniq[w] {
			continue
		}
		uniq[w] = true
		if textWords[w] {
			shared++
		}
	}
	if len(uniq) > 1 && shared < 2 {
		return 0
	}
	return float64(shared) / float64(len(uniq))
}

func normalizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = model.Normalize(s)
	}
	return out
}
