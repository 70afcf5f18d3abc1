// Package reference holds the static lookup tables behind chart classification:
// stem and branch attributes, the twelve-stage cycle, star and palace data, marker
// rules, narrative content and reflection quotes.
//
// Tables are decoded once from YAML and are read-only afterwards. Components take
// a *Tables explicitly so tests can substitute fixture data.
package reference

import (
	"github.com/liamcoop/fatechart/internal/calendar"
)

// Element is one of the five phases.
type Element string

const (
	Wood  Element = "木"
	Fire  Element = "火"
	Earth Element = "土"
	Metal Element = "金"
	Water Element = "水"
)

// Elements lists the five phases in generating-cycle order.
var Elements = [5]Element{Wood, Fire, Earth, Metal, Water}

// Index returns the element's position in the generating cycle, or -1.
func (e Element) Index() int {
	for i, el := range Elements {
		if el == e {
			return i
		}
	}
	return -1
}

// Parent returns the element that generates e (wood is generated by water).
func (e Element) Parent() Element {
	return Elements[(e.Index()+4)%5]
}

// Valid reports whether e is one of the five phases.
func (e Element) Valid() bool { return e.Index() >= 0 }

// Transformation is one of the four year-stem overlay tags.
type Transformation string

const (
	Prosperity Transformation = "化祿"
	Authority  Transformation = "化權"
	Merit      Transformation = "化科"
	Adversity  Transformation = "化忌"
)

// QuoteCategory groups reflection quotes by elemental imbalance.
type QuoteCategory string

const (
	TurningPoint QuoteCategory = "turning-point"
	Imbalance    QuoteCategory = "imbalance"
	Stable       QuoteCategory = "stable"
)

// QuoteCategories lists every category the tables must provide.
var QuoteCategories = [3]QuoteCategory{TurningPoint, Imbalance, Stable}

// MarkerKind selects how a marker rule is keyed.
type MarkerKind string

const (
	// DayStemMarker rules list qualifying branches per day stem.
	DayStemMarker MarkerKind = "day_stem"
	// BranchMarker rules map the year branch and the day branch to one target branch each.
	BranchMarker MarkerKind = "branch"
)

// HiddenStem is a stem stored inside a branch together with its weight.
type HiddenStem struct {
	Stem   int
	Weight int
}

// Essence is the templated day-master description for each strength class.
type Essence struct {
	Strong string
	Weak   string
}

// Stem carries the attributes of one heavenly stem.
type Stem struct {
	Symbol  string
	Element Element
	Image   string
	Essence Essence
}

// Branch carries the attributes of one earthly branch.
type Branch struct {
	Symbol  string
	Element Element
	Season  string
	Context string
	Hidden  []HiddenStem
}

// Star is one major star of the palace chart.
type Star struct {
	Name     string
	Keyword  string
	Traits   string
	Function string
}

// Palace is one named life domain with its offset from the life position.
type Palace struct {
	Name        string
	Role        string
	Offset      int
	Icon        string
	Function    string
	Personality string
}

// SiHua is the four-transformation assignment for one year stem.
type SiHua struct {
	Lu   string
	Quan string
	Ke   string
	Ji   string
}

// TagFor returns the transformation attached to star, if any. When a star carries
// several tags the later one in lu, quan, ke, ji order wins.
func (s SiHua) TagFor(star string) (Transformation, bool) {
	var tag Transformation
	if s.Lu == star {
		tag = Prosperity
	}
	if s.Quan == star {
		tag = Authority
	}
	if s.Ke == star {
		tag = Merit
	}
	if s.Ji == star {
		tag = Adversity
	}
	return tag, tag != ""
}

// MarkerRule is one auxiliary-marker table.
type MarkerRule struct {
	Name      string
	Kind      MarkerKind
	ByDayStem map[int][]int
	ByBranch  map[int]int
}

// RoleProfile describes a relational role for the dominant-role paragraph.
type RoleProfile struct {
	Trait    string
	Behavior string
	Nuance   map[Element]string
}

// Narrative is a content-table entry with its character tags.
type Narrative struct {
	Content string
	Tags    []string
}

// Quote is one reflection quote.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
	Source string `json:"source"`
	Weight uint   `json:"-"`
}

// Archetype is a named structural pattern.
type Archetype struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ArchetypeRule pairs an archetype with the predicate that selects it.
type ArchetypeRule struct {
	Archetype
	Priority   int
	Expression string
}

// ArchetypeSet is the ordered archetype rule list plus the default archetype.
type ArchetypeSet struct {
	Version int
	Rules   []ArchetypeRule
	Default Archetype
}

// Tables is the full reference data set.
type Tables struct {
	stems           [10]Stem
	branches        [12]Branch
	stages          [10][12]string
	stageOrder      []string
	stageBlurbs     map[string]string
	transformations [10]SiHua
	stars           []Star
	starIndex       map[string]int
	palaces         []Palace
	markers         []MarkerRule
	roles           map[string]RoleProfile

	palaceNarratives map[PalaceKey]string
	dayPillars       map[DayPillarKey]Narrative
	matrix           map[MatrixKey]Narrative
	wealth           map[SynthesisKey]string
	career           map[SynthesisKey]string

	quotes     map[QuoteCategory][]Quote
	archetypes ArchetypeSet
}

// Stem returns the attributes of stem i.
func (t *Tables) Stem(i int) Stem { return t.stems[i] }

// Branch returns the attributes of branch i.
func (t *Tables) Branch(i int) Branch { return t.branches[i] }

// StemElement returns the element of stem i.
func (t *Tables) StemElement(i int) Element { return t.stems[i].Element }

// BranchElement returns the primary element of branch i.
func (t *Tables) BranchElement(i int) Element { return t.branches[i].Element }

// Stage returns the twelve-stage label of branch for the given day stem.
func (t *Tables) Stage(dayStem, branch int) string { return t.stages[dayStem][branch] }

// StageOrder returns the twelve stage labels in cycle order.
func (t *Tables) StageOrder() []string { return t.stageOrder }

// StageBlurb returns the one-line energy description for a stage.
func (t *Tables) StageBlurb(stage string) string { return t.stageBlurbs[stage] }

// Transformations returns the four-transformation assignment for a year stem.
func (t *Tables) Transformations(yearStem int) SiHua { return t.transformations[yearStem] }

// Stars returns the star sequence in cyclic order.
func (t *Tables) Stars() []Star { return t.stars }

// Star looks up a star by name.
func (t *Tables) Star(name string) (Star, bool) {
	i, ok := t.starIndex[name]
	if !ok {
		return Star{}, false
	}
	return t.stars[i], true
}

// Palaces returns the palace list in report order.
func (t *Tables) Palaces() []Palace { return t.palaces }

// Markers returns the auxiliary marker rules in table order.
func (t *Tables) Markers() []MarkerRule { return t.markers }

// Role returns the profile for a relational role label.
func (t *Tables) Role(label string) (RoleProfile, bool) {
	p, ok := t.roles[label]
	return p, ok
}

// Quotes returns the quotes of one category.
func (t *Tables) Quotes(c QuoteCategory) []Quote { return t.quotes[c] }

// Archetypes returns the ordered archetype rule set.
func (t *Tables) Archetypes() ArchetypeSet { return t.archetypes }

// SeasonOf returns the season of a branch.
func (t *Tables) SeasonOf(branch int) string { return t.branches[branch].Season }

// stemName is used in error messages.
func stemName(i int) string { return calendar.Stems[i] }
