// Package fate assembles a complete report from a birth moment.
//
// An Engine is built once from a set of reference tables and is safe for
// concurrent use. Generating a report performs no I/O and never logs.
package fate

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/liamcoop/fatechart/internal/bazi"
	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/palace"
	"github.com/liamcoop/fatechart/internal/reference"
	"github.com/liamcoop/fatechart/internal/shensha"
	"github.com/liamcoop/fatechart/internal/synthesis"
	"github.com/liamcoop/fatechart/rules"
)

// Engine generates reports.
type Engine struct {
	tables     *reference.Tables
	classifier *bazi.StructureClassifier
	composer   *synthesis.Composer
	rng        *rand.Rand
}

type options struct {
	tables *reference.Tables
	source rand.Source
}

// Option configures an Engine.
type Option func(*options)

// WithTables replaces the embedded reference tables.
func WithTables(t *reference.Tables) Option {
	return func(o *options) { o.tables = t }
}

// WithSeed makes quote draws reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) { o.source = rand.NewSource(seed) }
}

// WithSource sets the random source used for quote draws.
func WithSource(src rand.Source) Option {
	return func(o *options) { o.source = src }
}

// NewEngine compiles the archetype rules and prepares the quote choosers.
func NewEngine(opts ...Option) (*Engine, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.tables == nil {
		t, err := reference.Default()
		if err != nil {
			return nil, fmt.Errorf("load reference tables: %w", err)
		}
		o.tables = t
	}
	if o.source == nil {
		o.source = rand.NewSource(time.Now().UnixNano())
	}

	classifier, err := bazi.NewStructureClassifier(o.tables.Archetypes())
	if err != nil {
		return nil, err
	}
	composer, err := synthesis.NewComposer(o.tables)
	if err != nil {
		return nil, err
	}

	return &Engine{
		tables:     o.tables,
		classifier: classifier,
		composer:   composer,
		rng:        rand.New(&lockedSource{src: o.source}),
	}, nil
}

// Tables returns the reference tables the engine was built with.
func (e *Engine) Tables() *reference.Tables { return e.tables }

// RulesVersion is the version of the archetype rule set.
func (e *Engine) RulesVersion() int { return e.classifier.Version() }

// RuleCacheStats reports the archetype rule cache counters.
func (e *Engine) RuleCacheStats() rules.CacheStats { return e.classifier.CacheStats() }

// Generate validates m and builds its report using the engine's random source.
func (e *Engine) Generate(m BirthMoment) (*Report, error) {
	return e.GenerateWith(m, e.rng)
}

// GenerateWith builds a report drawing the quote from rng. Two calls with equal
// inputs and identically seeded sources return equal reports.
func (e *Engine) GenerateWith(m BirthMoment, rng *rand.Rand) (*Report, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	t := e.tables

	p := calendar.Convert(m.Year, m.Month, m.Day, m.Hour)
	balance := bazi.Balance(t, p)
	roles := bazi.Roles(t, p)
	strength := bazi.EvaluateStrength(t, p, balance)

	archetype, err := e.classifier.Classify(e.facts(p, roles, balance))
	if err != nil {
		return nil, fmt.Errorf("classify structure: %w", err)
	}

	palaces := palace.Map(t, p)
	markers := shensha.Match(t, p)

	narratives := e.composer.Compose(synthesis.Input{
		BirthYear: m.Year,
		Pillars:   p,
		Roles:     roles,
		Balance:   balance,
		Strength:  strength,
		Archetype: archetype,
		Palaces:   palaces,
	}, rng)

	birth := m
	birth.Name = strings.TrimSpace(m.Name)

	return &Report{
		Birth:          birth,
		Chart:          e.chart(p, roles, balance, markers),
		Archetype:      archetype,
		Strength:       strength,
		DominantRole:   narratives.DominantRole,
		Personality:    narratives.Personality,
		OverallFortune: narratives.OverallFortune,
		Wealth:         narratives.Wealth,
		Career:         narratives.Career,
		Love:           narratives.Love,
		Guidance:       narratives.Guidance,
		CurrentCycle:   narratives.CurrentCycle,
		Tags:           narratives.Tags,
		Markers:        markers.Chart,
		QuoteCategory:  narratives.QuoteCategory,
		Quote:          narratives.Quote,
		Palaces:        palaces,
		RulesVersion:   e.classifier.Version(),
	}, nil
}

func (e *Engine) facts(p calendar.Pillars, roles [4]bazi.TenGod, balance bazi.ElementBalance) rules.Facts {
	return rules.Facts{
		Roles:            bazi.Strings(roles),
		DayMasterElement: e.tables.StemElement(p.Day.Stem),
		Season:           e.tables.SeasonOf(p.Month.Branch),
		Balance:          balance,
	}
}

// chartFacts validates m and derives the facts the archetype rules read.
func (e *Engine) chartFacts(m BirthMoment) (rules.Facts, error) {
	if err := Validate(m); err != nil {
		return rules.Facts{}, err
	}
	p := calendar.Convert(m.Year, m.Month, m.Day, m.Hour)
	return e.facts(p, bazi.Roles(e.tables, p), bazi.Balance(e.tables, p)), nil
}

// Explain evaluates every archetype rule for m and reports which one Generate
// selects.
func (e *Engine) Explain(m BirthMoment) (*Explanation, error) {
	facts, err := e.chartFacts(m)
	if err != nil {
		return nil, err
	}
	selected, outcomes, err := e.classifier.Explain(facts)
	if err != nil {
		return nil, fmt.Errorf("explain structure: %w", err)
	}

	x := &Explanation{
		Archetype:    selected,
		RulesVersion: e.classifier.Version(),
		Rules:        make([]RuleExplanation, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		x.Rules = append(x.Rules, newRuleExplanation(o))
	}
	return x, nil
}

// ExplainRule evaluates the archetype rule with the given ID for m. An unknown ID
// returns an error matching rules.ErrRuleNotFound.
func (e *Engine) ExplainRule(m BirthMoment, id string) (*RuleExplanation, error) {
	facts, err := e.chartFacts(m)
	if err != nil {
		return nil, err
	}
	o, err := e.classifier.ExplainRule(facts, id)
	if err != nil {
		return nil, err
	}
	r := newRuleExplanation(o)
	return &r, nil
}

func newRuleExplanation(o bazi.RuleOutcome) RuleExplanation {
	r := RuleExplanation{
		ID:         o.Archetype.ID,
		Name:       o.Archetype.Name,
		Priority:   o.Priority,
		Expression: o.Expression,
		Matched:    o.Matched,
		Selected:   o.Selected,
		Trace:      o.Trace,
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

func (e *Engine) chart(p calendar.Pillars, roles [4]bazi.TenGod, balance bazi.ElementBalance, markers shensha.Markers) Chart {
	t := e.tables
	var pillars [4]Pillar
	for i, cp := range p.All() {
		hidden := make([]string, 0, len(t.Branch(cp.Branch).Hidden))
		for _, h := range t.Branch(cp.Branch).Hidden {
			hidden = append(hidden, calendar.Stems[h.Stem])
		}
		pillars[i] = Pillar{
			Stem:          cp.StemSymbol(),
			Branch:        cp.BranchSymbol(),
			Element:       t.StemElement(cp.Stem),
			BranchElement: t.BranchElement(cp.Branch),
			Role:          roles[i],
			HiddenStems:   hidden,
			Stage:         t.Stage(p.Day.Stem, cp.Branch),
			Markers:       markers.PerPillar[i],
		}
	}

	b := make(map[reference.Element]int, len(balance))
	for k, v := range balance {
		b[k] = v
	}

	return Chart{
		Year:             pillars[0],
		Month:            pillars[1],
		Day:              pillars[2],
		Hour:             pillars[3],
		DayMaster:        p.Day.StemSymbol(),
		DayMasterElement: t.StemElement(p.Day.Stem),
		Balance:          b,
		DayOffset:        p.DayOffset,
		HourMapped:       p.HourMapped,
	}
}

// lockedSource serializes access to a rand.Source shared by concurrent Generate calls.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s64, ok := s.src.(rand.Source64); ok {
		return s64.Uint64()
	}
	return uint64(s.src.Int63())>>31 | uint64(s.src.Int63())<<32
}
