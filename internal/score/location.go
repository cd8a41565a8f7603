package score

import (
	"strings"

	"github.com/amishk599/jobpilot/internal/model"
)

// locationAliases groups spellings of the same place under a canonical name.
var locationAliases = map[string][]string{
	"bangalore": {"bangalore", "bengaluru", "bengalore"},
	"gurgaon":   {"gurgaon", "gurugram"},
	"mumbai":    {"mumbai", "bombay"},
	"chennai":   {"chennai", "madras"},
	"kolkata":   {"kolkata", "calcutta"},
	"delhi":     {"delhi", "new delhi", "ncr", "delhi ncr"},
	"remote":    {"remote", "anywhere", "wfh", "work from home"},
}

// canonicalLocation maps every alias to its group name.
var canonicalLocation = func() map[string]string {
	m := make(map[string]string)
	for canon, aliases := range locationAliases {
		for _, a := range aliases {
			m[a] = canon
		}
	}
	return m
}()

func canonical(loc string) string {
	n := model.Normalize(loc)
	if c, ok := canonicalLocation[n]; ok {
		return c
	}
	return n
}

// spellings returns every known spelling of a profile location.
func spellings(loc string) []string {
	c := canonical(loc)
	if aliases, ok := locationAliases[c]; ok {
		return aliases
	}
	if c == "" {
		return nil
	}
	return []string{c}
}

// LocationMatches reports whether jobLocation names any of profileLocations,
// resolving aliases in both directions. A remote posting matches a profile
// that lists Remote (or any alias of it).
func LocationMatches(jobLocation string, profileLocations []string) bool {
	text := padded(model.Normalize(jobLocation))
	if text == "  " {
		return false
	}
	for _, loc := range profileLocations {
		for _, s := range spellings(loc) {
			if strings.Contains(text, padded(s)) {
				return true
			}
		}
	}
	return false
}

// padded surrounds s with spaces so Contains works on word boundaries.
func padded(s string) string {
	return " " + s + " "
}
