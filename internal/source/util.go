package source

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// extractText converts an HTML or HTML-encoded string to plain text.
// It first unescapes HTML entities (handles Greenhouse's double-encoding;
// no-op on already-real HTML), strips all tags, then collapses whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// matchesQuery reports whether every word of query appears in title.
// An empty query matches everything.
func matchesQuery(title, query string) bool {
	words := strings.Fields(model.Normalize(query))
	if len(words) == 0 {
		return true
	}
	titleWords := make(map[string]bool)
	for _, w := range strings.Fields(model.Normalize(title)) {
		titleWords[w] = true
	}
	for _, w := range words {
		if !titleWords[w] {
			return false
		}
	}
	return true
}

// matchesLocation reports whether location mentions want. Remote postings
// match every location; an empty want matches everything.
func matchesLocation(location, want string) bool {
	w := model.Normalize(want)
	if w == "" {
		return true
	}
	loc := model.Normalize(location)
	return strings.Contains(loc, w) || strings.Contains(loc, "remote")
}

// parseTime parses an RFC3339 timestamp or a bare date, returning nil when
// absent or invalid.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func salaryRange(lo, hi float64, currency string) *model.SalaryRange {
	if lo <= 0 && hi <= 0 {
		return nil
	}
	if hi <= 0 {
		hi = lo
	}
	if lo <= 0 {
		lo = hi
	}
	return &model.SalaryRange{Min: lo, Max: hi, Currency: currency}
}

func truncate(jobs []model.Job, limit int) []model.Job {
	if limit > 0 && len(jobs) > limit {
		return jobs[:limit]
	}
	return jobs
}
