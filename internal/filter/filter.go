package filter

import (
	"strings"

	"github.com/amishk599/jobpilot/internal/model"
)

// Blocklist rejects jobs from excluded companies or whose title contains an
// excluded keyword. Matching is case- and accent-insensitive on whole words.
// Empty lists pass everything.
type Blocklist struct {
	companies     map[string]bool
	titleKeywords []string
}

// NewBlocklist returns a filter over the given company names and title
// keywords.
func NewBlocklist(companies, titleKeywords []string) *Blocklist {
	b := &Blocklist{companies: make(map[string]bool, len(companies))}
	for _, c := range companies {
		if n := model.Normalize(c); n != "" {
			b.companies[n] = true
		}
	}
	for _, kw := range titleKeywords {
		if n := model.Normalize(kw); n != "" {
			b.titleKeywords = append(b.titleKeywords, n)
		}
	}
	return b
}

// Match returns true if the job may be ranked.
func (b *Blocklist) Match(job model.Job) bool {
	if b.companies[model.Normalize(job.Company)] {
		return false
	}

	title := " " + model.Normalize(job.Title) + " "
	for _, kw := range b.titleKeywords {
		if strings.Contains(title, " "+kw+" ") {
			return false
		}
	}
	return true
}
