package bazi

import (
	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/reference"
)

// StrengthClass is the day-master strength classification.
type StrengthClass string

const (
	Strong StrengthClass = "strong"
	Weak   StrengthClass = "weak"
)

// Label is the display form of the class.
func (c StrengthClass) Label() string {
	if c == Strong {
		return "身強"
	}
	return "身弱"
}

// Scoring constants. Changing any of them changes existing charts.
const (
	monthBranchScore  = 40
	dayBranchScore    = 20
	yearBranchScore   = 10
	hourBranchScore   = 10
	balanceBonus      = 20
	balanceThreshold  = 550
	strongScoreCutoff = 50
)

// Strength is the scored day-master strength.
type Strength struct {
	Score int           `json:"score"`
	Class StrengthClass `json:"class"`
}

// Supporting returns the day master's own element and the element that generates it.
func Supporting(e reference.Element) [2]reference.Element {
	return [2]reference.Element{e, e.Parent()}
}

// EvaluateStrength scores the branches that carry a supporting element and adds a
// bonus when the supporting elements dominate the balance.
func EvaluateStrength(t *reference.Tables, p calendar.Pillars, balance ElementBalance) Strength {
	support := Supporting(t.StemElement(p.Day.Stem))
	supports := func(branch int) bool {
		e := t.BranchElement(branch)
		return e == support[0] || e == support[1]
	}

	score := 0
	if supports(p.Month.Branch) {
		score += monthBranchScore
	}
	if supports(p.Day.Branch) {
		score += dayBranchScore
	}
	if supports(p.Year.Branch) {
		score += yearBranchScore
	}
	if supports(p.Hour.Branch) {
		score += hourBranchScore
	}
	if balance.Sum(support[0], support[1]) > balanceThreshold {
		score += balanceBonus
	}

	class := Weak
	if score >= strongScoreCutoff {
		class = Strong
	}
	return Strength{Score: score, Class: class}
}
