package score

import (
	"strings"

	"github.com/amishk599/jobpilot/internal/model"
)

// overLevelTitles mark titles well above a senior individual contributor.
var overLevelTitles = []string{
	"director", "vice president", "vp", "svp", "evp", "avp",
	"assistant vice president", "chief", "head of", "cto", "cfo", "coo", "ceo",
	"managing director", "general manager",
}

// fresherPhrases mark postings aimed at candidates with no experience.
// Phrases are in normalized form ("0-2 years" becomes "0 2 years").
var fresherPhrases = []string{
	"fresher", "freshers", "freshers only", "0 1 years", "0 2 years", "0 1 year",
	"entry level", "no experience", "fresh graduate", "recent graduate", "0 years",
}

// seniorMarkers cancel a fresher phrase; such postings usually read
// "no fresher, 5+ years required".
var seniorMarkers = []string{"senior", "sr", "lead", "5+", "8+", "10+"}

const (
	reasonOverLevel = "seniority above profile level"
	reasonFresher   = "fresher-only posting"
)

// exclusion returns a non-empty reason when job must not be scored.
func (s *Scorer) exclusion(title, text string) string {
	if s.profile.ExperienceLevel != model.LevelDirector && containsAny(title, overLevelTitles) {
		return reasonOverLevel
	}
	if s.profile.ExperienceYears >= s.opts.FresherExperienceThreshold &&
		containsAny(text, fresherPhrases) && !containsAny(text, seniorMarkers) {
		return reasonFresher
	}
	return ""
}

// containsAny reports whether the padded, normalized text contains any phrase
// as whole words.
func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, padded(p)) {
			return true
		}
	}
	return false
}
