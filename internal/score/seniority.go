package score

import (
	"regexp"
	"strconv"

	"github.com/amishk599/jobpilot/internal/model"
)

// bandRank orders experience levels; adjacent bands differ by one.
var bandRank = map[string]int{
	model.LevelJunior:       0,
	model.LevelIntermediate: 1,
	model.LevelSenior:       2,
	model.LevelDirector:     3,
}

// titleBands is checked in order; the first band with a marker in the
// title wins.
var titleBands = []struct {
	band    string
	markers []string
}{
	{model.LevelDirector, []string{"director", "vice president", "vp", "head of"}},
	{model.LevelSenior, []string{"senior", "sr", "lead", "staff", "principal", "architect", "l4", "iii"}},
	{model.LevelJunior, []string{"junior", "jr", "intern", "trainee", "graduate", "entry level", "associate"}},
	{model.LevelIntermediate, []string{"mid", "mid level", "intermediate", "ii", "l3"}},
}

// yearsPattern finds "5+ years", "3-5 years" or "8 yrs" in normalized text.
var yearsPattern = regexp.MustCompile(`\b(\d{1,2})\+?(?: \d{1,2})? (?:years|year|yrs|yr)\b`)

// inferBand guesses the seniority a posting asks for. Title markers take
// precedence over years of experience found in the description. It returns
// "" when there is no signal.
func inferBand(title, text string) string {
	for _, tb := range titleBands {
		if containsAny(title, tb.markers) {
			return tb.band
		}
	}

	m := yearsPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	years, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	switch {
	case years < 2:
		return model.LevelJunior
	case years < 5:
		return model.LevelIntermediate
	default:
		return model.LevelSenior
	}
}

// seniorityPoints returns 10 for an equal band, 5 for an adjacent band and 0
// otherwise or when the band is unknown.
func seniorityPoints(profileLevel, jobBand string) float64 {
	p, ok1 := bandRank[profileLevel]
	j, ok2 := bandRank[jobBand]
	if !ok1 || !ok2 {
		return 0
	}
	switch d := p - j; {
	case d == 0:
		return weightSeniorityExact
	case d == 1 || d == -1:
		return weightSeniorityAdjacent
	}
	return 0
}
