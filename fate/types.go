package fate

import (
	"github.com/liamcoop/fatechart/internal/bazi"
	"github.com/liamcoop/fatechart/internal/palace"
	"github.com/liamcoop/fatechart/internal/reference"
	"github.com/liamcoop/fatechart/rules"
)

// BirthMoment is the input to a chart.
type BirthMoment struct {
	Name  string `json:"name"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Day   int    `json:"day"`
	// Hour is one of calendar.HourLabels. Any other label charts as the 子 hour.
	Hour string `json:"hour"`
}

// Pillar is one classified stem/branch pair.
type Pillar struct {
	Stem          string            `json:"stem"`
	Branch        string            `json:"branch"`
	Element       reference.Element `json:"element"`
	BranchElement reference.Element `json:"branchElement"`
	Role          bazi.TenGod       `json:"role"`
	HiddenStems   []string          `json:"hiddenStems"`
	Stage         string            `json:"stage"`
	Markers       []string          `json:"markers"`
}

// String renders the pillar as its two glyphs.
func (p Pillar) String() string { return p.Stem + p.Branch }

// Chart is the four pillars with the day master and elemental balance.
type Chart struct {
	Year             Pillar                    `json:"year"`
	Month            Pillar                    `json:"month"`
	Day              Pillar                    `json:"day"`
	Hour             Pillar                    `json:"hour"`
	DayMaster        string                    `json:"dayMaster"`
	DayMasterElement reference.Element         `json:"dayMasterElement"`
	Balance          map[reference.Element]int `json:"balance"`
	DayOffset        int                       `json:"dayOffset"`
	// HourMapped is false when the hour label was not recognized.
	HourMapped bool `json:"hourMapped"`
}

// Pillars returns the pillars in year, month, day, hour order.
func (c Chart) Pillars() [4]Pillar {
	return [4]Pillar{c.Year, c.Month, c.Day, c.Hour}
}

// Report is the complete reading of one birth moment. A report is never modified
// after Generate returns it.
type Report struct {
	Birth          BirthMoment             `json:"birth"`
	Chart          Chart                   `json:"chart"`
	Archetype      reference.Archetype     `json:"archetype"`
	Strength       bazi.Strength           `json:"strength"`
	DominantRole   bazi.TenGod             `json:"dominantRole"`
	Personality    string                  `json:"personality"`
	OverallFortune string                  `json:"overallFortune"`
	Wealth         string                  `json:"wealth"`
	Career         string                  `json:"career"`
	Love           string                  `json:"love"`
	Guidance       string                  `json:"guidance"`
	CurrentCycle   string                  `json:"currentCycle"`
	Tags           []string                `json:"tags"`
	Markers        []string                `json:"markers"`
	QuoteCategory  reference.QuoteCategory `json:"quoteCategory"`
	Quote          reference.Quote         `json:"quote"`
	Palaces        []palace.Insight        `json:"palaces"`
	RulesVersion   int                     `json:"rulesVersion"`
}

// Explanation shows how the archetype of a chart was chosen.
type Explanation struct {
	// Archetype is the selected archetype, or the default when no rule matched
	Archetype    reference.Archetype `json:"archetype"`
	RulesVersion int                 `json:"rulesVersion"`
	Rules        []RuleExplanation   `json:"rules"`
}

// RuleExplanation is one archetype rule evaluated against a chart.
type RuleExplanation struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Priority   int               `json:"priority"`
	Expression string            `json:"expression"`
	Matched    bool              `json:"matched"`
	Selected   bool              `json:"selected"`
	Error      string            `json:"error,omitempty"`
	Trace      []rules.TraceStep `json:"trace"`
}
