package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Experience levels understood by the scorer.
const (
	LevelJunior       = "junior"
	LevelIntermediate = "intermediate"
	LevelSenior       = "senior"
	LevelDirector     = "director"
)

// Profile describes the candidate that jobs are ranked against.
type Profile struct {
	Name            string
	Title           string
	Summary         string
	ExperienceYears float64
	ExperienceLevel string
	Skills          []string // lower-cased, deduplicated
	CoreRoles       []string // direct-background titles, in priority order
	StretchRoles    []string // adjacent titles, in priority order
	Locations       []string
	SalaryMin       float64 // zero means unset
	SalaryMax       float64 // zero means unset
}

// Normalize lower-cases skills, trims every list and drops duplicates.
// Role order is preserved.
func (p Profile) Normalize() Profile {
	out := p
	out.ExperienceLevel = strings.ToLower(strings.TrimSpace(p.ExperienceLevel))
	out.Skills = dedupe(p.Skills, true)
	out.CoreRoles = dedupe(p.CoreRoles, false)
	out.StretchRoles = dedupe(p.StretchRoles, false)
	out.Locations = dedupe(p.Locations, false)
	return out
}

// Validate checks the profile invariants.
func (p Profile) Validate() error {
	switch p.ExperienceLevel {
	case LevelJunior, LevelIntermediate, LevelSenior, LevelDirector:
	default:
		return fmt.Errorf("profile: unknown experience level %q", p.ExperienceLevel)
	}
	if len(p.CoreRoles) == 0 && len(p.StretchRoles) == 0 {
		return fmt.Errorf("profile: at least one core or stretch role is required")
	}
	core := make(map[string]bool, len(p.CoreRoles))
	for _, r := range p.CoreRoles {
		core[strings.ToLower(r)] = true
	}
	for _, r := range p.StretchRoles {
		if core[strings.ToLower(r)] {
			return fmt.Errorf("profile: role %q is listed as both core and stretch", r)
		}
	}
	if p.SalaryMin > 0 && p.SalaryMax > 0 && p.SalaryMin > p.SalaryMax {
		return fmt.Errorf("profile: salary min %.2f exceeds max %.2f", p.SalaryMin, p.SalaryMax)
	}
	if p.ExperienceYears < 0 {
		return fmt.Errorf("profile: experience years must not be negative")
	}
	return nil
}

// HasSalaryBand reports whether both salary bounds are set.
func (p Profile) HasSalaryBand() bool {
	return p.SalaryMin > 0 && p.SalaryMax > 0
}

// SnapshotID is a short stable hash of the profile, recorded in the ledger so
// outcomes can be traced to the profile version that produced them.
func (p Profile) SnapshotID() string {
	n := p.Normalize()
	skills := append([]string(nil), n.Skills...)
	sort.Strings(skills)
	locs := append([]string(nil), n.Locations...)
	sort.Strings(locs)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%g\x00%s\x00", n.Name, n.Title, n.ExperienceYears, n.ExperienceLevel)
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", strings.Join(skills, ","), strings.Join(n.CoreRoles, ","),
		strings.Join(n.StretchRoles, ","), strings.Join(locs, ","))
	fmt.Fprintf(h, "%g\x00%g", n.SalaryMin, n.SalaryMax)
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func dedupe(in []string, lower bool) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if lower {
			s = strings.ToLower(s)
		}
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
