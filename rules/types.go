package rules

import (
	"github.com/liamcoop/fatechart/internal/reference"
)

// Rule represents a single classification rule
type Rule struct {
	ID         string
	Name       string
	Expression string
	// Priority orders evaluation; lower values are evaluated first
	Priority int
	Active   bool
}

// EvaluationResult contains the outcome of evaluating a rule
type EvaluationResult struct {
	RuleID     string
	RuleName   string
	Priority   int
	Expression string
	Matched    bool
	Error      error
	// Trace is set by Evaluate and EvaluateAll only
	Trace []TraceStep
}

// TraceStep is the value one subexpression produced. Offset is the position of
// the subexpression in the rule expression, counted in characters.
type TraceStep struct {
	Offset int    `json:"offset"`
	Value  string `json:"value"`
}

// Facts are the chart properties a rule expression can reference
type Facts struct {
	// Roles holds the relational role of each pillar, in year, month, day, hour order
	Roles []string
	// DayMasterElement is the element of the day stem
	DayMasterElement reference.Element
	// Season is the season of the month branch
	Season string
	// Balance is the elemental balance; every element must be present
	Balance map[reference.Element]int
}

// ToActivation converts the facts into the variable bindings declared by NewEngine
func (f Facts) ToActivation() map[string]any {
	roles := make([]string, len(f.Roles))
	copy(roles, f.Roles)

	balance := make(map[string]int64, len(reference.Elements))
	for _, e := range reference.Elements {
		balance[string(e)] = int64(f.Balance[e])
	}

	return map[string]any{
		VarRoles:            roles,
		VarDayMasterElement: string(f.DayMasterElement),
		VarSeason:           f.Season,
		VarBalance:          balance,
	}
}
