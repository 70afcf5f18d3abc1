package bazi

import (
	"fmt"

	"github.com/liamcoop/fatechart/internal/reference"
	"github.com/liamcoop/fatechart/rules"
)

// StructureClassifier selects one archetype by evaluating the archetype rules in
// priority order. The first matching rule wins; the default archetype is returned
// when none match.
type StructureClassifier struct {
	engine     *rules.Engine
	archetypes map[string]reference.Archetype
	fallback   reference.Archetype
	version    int
}

// NewStructureClassifier compiles every archetype rule. A rule that does not compile
// is a configuration error.
func NewStructureClassifier(set reference.ArchetypeSet) (*StructureClassifier, error) {
	defs := make([]rules.Rule, 0, len(set.Rules))
	archetypes := make(map[string]reference.Archetype, len(set.Rules))
	for _, r := range set.Rules {
		defs = append(defs, rules.Rule{
			ID:         r.ID,
			Name:       r.Name,
			Expression: r.Expression,
			Priority:   r.Priority,
		})
		archetypes[r.ID] = r.Archetype
	}

	store, err := rules.LoadRules(defs...)
	if err != nil {
		return nil, fmt.Errorf("load archetype rules: %w", err)
	}

	engine, err := rules.NewEngine(store)
	if err != nil {
		return nil, fmt.Errorf("compile archetype rules: %w", err)
	}

	return &StructureClassifier{
		engine:     engine,
		archetypes: archetypes,
		fallback:   set.Default,
		version:    set.Version,
	}, nil
}

// Version is the archetype rule-set version.
func (c *StructureClassifier) Version() int { return c.version }

// Classify returns exactly one archetype for the facts.
func (c *StructureClassifier) Classify(facts rules.Facts) (reference.Archetype, error) {
	result, err := c.engine.EvaluateFirst(facts.ToActivation())
	if err != nil {
		return reference.Archetype{}, fmt.Errorf("evaluate archetype rules: %w", err)
	}
	if result == nil {
		return c.fallback, nil
	}
	return c.archetypes[result.RuleID], nil
}

// CacheStats exposes the rule cache counters.
func (c *StructureClassifier) CacheStats() rules.CacheStats { return c.engine.CacheStats() }

// RuleOutcome is one archetype rule evaluated against a chart.
type RuleOutcome struct {
	Archetype  reference.Archetype
	Priority   int
	Expression string
	Matched    bool
	// Selected marks the rule Classify would pick
	Selected bool
	Err      error
	Trace    []rules.TraceStep
}

// Explain evaluates every archetype rule in priority order and marks the one
// Classify selects. The returned archetype is the selection, or the default when
// no rule matches.
func (c *StructureClassifier) Explain(facts rules.Facts) (reference.Archetype, []RuleOutcome, error) {
	results, err := c.engine.EvaluateAll(facts.ToActivation())
	if err != nil {
		return reference.Archetype{}, nil, fmt.Errorf("evaluate archetype rules: %w", err)
	}

	selected := c.fallback
	found := false
	outcomes := make([]RuleOutcome, 0, len(results))
	for _, r := range results {
		o := c.outcome(r)
		if o.Matched && !found {
			o.Selected = true
			selected = o.Archetype
			found = true
		}
		outcomes = append(outcomes, o)
	}
	return selected, outcomes, nil
}

// ExplainRule evaluates a single archetype rule by ID. Evaluation errors are
// reported in the outcome; only an unknown ID fails.
func (c *StructureClassifier) ExplainRule(facts rules.Facts, id string) (RuleOutcome, error) {
	result, err := c.engine.Evaluate(id, facts.ToActivation())
	if result == nil {
		return RuleOutcome{}, err
	}
	return c.outcome(result), nil
}

func (c *StructureClassifier) outcome(r *rules.EvaluationResult) RuleOutcome {
	return RuleOutcome{
		Archetype:  c.archetypes[r.RuleID],
		Priority:   r.Priority,
		Expression: r.Expression,
		Matched:    r.Matched && r.Error == nil,
		Err:        r.Error,
		Trace:      r.Trace,
	}
}
