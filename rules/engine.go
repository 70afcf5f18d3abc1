// Package rules evaluates prioritized CEL predicates over chart facts.
package rules

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/interpreter"
)

// Variable names available to rule expressions
const (
	VarRoles            = "roles"
	VarDayMasterElement = "day_master_element"
	VarSeason           = "season"
	VarBalance          = "balance"
)

// costLimit bounds the work a single expression may do
const costLimit = 1000000

// Engine compiles the active rules of a RuleStore once and evaluates them over
// chart facts. The rule set is fixed after NewEngine, so an Engine is safe for
// concurrent use without locking.
type Engine struct {
	env      *cel.Env
	store    RuleStore
	cache    RulesCache           // cache for active rules list
	programs map[string]*compiled // ruleID -> compiled programs
}

// compiled holds two programs per rule. fast is used to classify; traced records
// every subexpression value and only runs when a caller asks for an explanation.
type compiled struct {
	fast   cel.Program
	traced cel.Program
	ast    *cel.Ast
}

// NewEnv returns the CEL environment declaring the chart fact variables
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(VarRoles, cel.ListType(cel.StringType)),
		cel.Variable(VarDayMasterElement, cel.StringType),
		cel.Variable(VarSeason, cel.StringType),
		cel.Variable(VarBalance, cel.MapType(cel.StringType, cel.IntType)),
	)
}

// NewEngine compiles every active rule in store. A rule that does not compile
// fails construction.
func NewEngine(store RuleStore) (*Engine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &Engine{
		env:      env,
		store:    store,
		cache:    NewInMemoryRulesCache(),
		programs: make(map[string]*compiled),
	}

	active, err := store.ListActive()
	if err != nil {
		return nil, err
	}
	for _, rule := range active {
		c, err := en.compile(rule.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
		en.programs[rule.ID] = c
	}

	return en, nil
}

func (en *Engine) compile(expression string) (*compiled, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	fast, err := en.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	traced, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return &compiled{fast: fast, traced: traced, ast: ast}, nil
}

// Evaluate runs one rule by ID with tracing.
// Non-boolean results are treated as no match
func (en *Engine) Evaluate(ruleID string, facts map[string]any) (*EvaluationResult, error) {
	rule, err := en.store.Get(ruleID)
	if err != nil {
		return nil, err
	}

	result := en.eval(rule, facts, true)
	return result, result.Error
}

// EvaluateAll evaluates all active rules in priority order with tracing.
// Evaluation continues past rules that fail; the failure is recorded in the result
func (en *Engine) EvaluateAll(facts map[string]any) ([]*EvaluationResult, error) {
	rules, err := en.activeRules()
	if err != nil {
		return nil, err
	}

	results := make([]*EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, en.eval(rule, facts, true))
	}

	return results, nil
}

// EvaluateFirst returns the first active rule, in priority order, that matches
// Rules that fail to evaluate are skipped. A nil result means nothing matched.
func (en *Engine) EvaluateFirst(facts map[string]any) (*EvaluationResult, error) {
	rules, err := en.activeRules()
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if result := en.eval(rule, facts, false); result.Matched {
			return result, nil
		}
	}

	return nil, nil
}

// CacheStats reports active-rule cache usage when the cache tracks it
func (en *Engine) CacheStats() CacheStats {
	if s, ok := en.cache.(interface{ Stats() CacheStats }); ok {
		return s.Stats()
	}
	return CacheStats{}
}

// activeRules reads the cache and falls back to the store on a miss
func (en *Engine) activeRules() ([]*Rule, error) {
	rules := en.cache.Get()
	if rules != nil {
		return rules, nil
	}

	rules, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}
	en.cache.Set(rules)
	return rules, nil
}

func (en *Engine) eval(rule *Rule, facts map[string]any, trace bool) *EvaluationResult {
	result := &EvaluationResult{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Priority:   rule.Priority,
		Expression: rule.Expression,
	}

	c, exists := en.programs[rule.ID]
	if !exists {
		result.Error = fmt.Errorf("rule %s is not compiled", rule.ID)
		return result
	}

	prog := c.fast
	if trace {
		prog = c.traced
	}
	out, details, err := prog.Eval(facts)
	if trace && details != nil {
		result.Trace = c.steps(details.State())
	}
	if err != nil {
		result.Error = err
		return result
	}

	if boolVal, ok := out.Value().(bool); ok {
		result.Matched = boolVal
	}
	return result
}

// steps lists the recorded subexpression values in source order. Values of
// macro-generated nodes have no source position and are left out.
func (c *compiled) steps(state interpreter.EvalState) []TraceStep {
	if state == nil {
		return nil
	}
	info := c.ast.NativeRep().SourceInfo()

	ids := state.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	steps := make([]TraceStep, 0, len(ids))
	for _, id := range ids {
		val, ok := state.Value(id)
		if !ok || val == nil {
			continue
		}
		r, ok := info.GetOffsetRange(id)
		if !ok || r.Start < 0 {
			continue
		}
		steps = append(steps, TraceStep{
			Offset: int(r.Start),
			Value:  fmt.Sprint(val.Value()),
		})
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Offset < steps[j].Offset })
	return steps
}
