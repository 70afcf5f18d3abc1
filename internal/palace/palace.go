// Package palace places the major stars into the six report palaces and resolves a
// narrative for each one.
package palace

import (
	"fmt"
	"strings"

	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/reference"
)

// selfRole marks the palace used as the generic narrative fallback.
const selfRole = "self"

// Source records which narrative lookup produced an insight's text.
type Source string

const (
	// FromTransformation matched {palace, star, transformation}.
	FromTransformation Source = "transformation"
	// FromStage matched {palace, star, stage}.
	FromStage Source = "stage"
	// FromSelfStage matched {self palace, star, stage}.
	FromSelfStage Source = "self-stage"
	// FromTemplate was composed from the star and stage.
	FromTemplate Source = "template"
)

// Insight is the reading for one palace.
type Insight struct {
	Palace         string                   `json:"palace"`
	Role           string                   `json:"role"`
	Icon           string                   `json:"icon"`
	Position       int                      `json:"position"`
	Branch         string                   `json:"branch"`
	Star           string                   `json:"star"`
	Transformation reference.Transformation `json:"transformation,omitempty"`
	Stage          string                   `json:"stage"`
	Narrative      string                   `json:"narrative"`
	Source         Source                   `json:"source"`
	Keyword        string                   `json:"keyword"`
	Traits         string                   `json:"traits"`
	Function       string                   `json:"function"`
	PalaceFunction string                   `json:"palaceFunction"`
	Detail         string                   `json:"detail"`
}

// StarLabel is the star name with its transformation tag, e.g. "太陽 (化祿)".
func (i Insight) StarLabel() string {
	if i.Transformation == "" {
		return i.Star
	}
	return fmt.Sprintf("%s (%s)", i.Star, i.Transformation)
}

// LifePosition is the branch index of the self palace.
func LifePosition(monthIdx, hourIdx int) int {
	return (monthIdx + 12 - hourIdx) % 12
}

// Map returns one insight per configured palace, in table order. Every insight
// has a non-empty narrative.
func Map(t *reference.Tables, p calendar.Pillars) []Insight {
	stars := t.Stars()
	sihua := t.Transformations(p.Year.Stem)
	life := LifePosition(p.MonthIndex(), p.HourIndex())
	self := selfPalace(t)

	out := make([]Insight, 0, len(t.Palaces()))
	for _, pal := range t.Palaces() {
		pos := (life + pal.Offset) % 12
		star := stars[pos%len(stars)]
		stage := t.Stage(p.Day.Stem, pos)
		tag, _ := sihua.TagFor(star.Name)

		narrative, source := resolve(t, self, pal, star, tag, stage)
		in := Insight{
			Palace:         pal.Name,
			Role:           pal.Role,
			Icon:           pal.Icon,
			Position:       pos,
			Branch:         calendar.Branches[pos],
			Star:           star.Name,
			Transformation: tag,
			Stage:          stage,
			Narrative:      narrative,
			Source:         source,
			Keyword:        star.Keyword,
			Traits:         star.Traits,
			Function:       star.Function,
			PalaceFunction: strings.TrimSpace(pal.Function + " " + pal.Personality),
		}
		in.Detail = detail(t, in)
		out = append(out, in)
	}
	return out
}

// ByRole finds the insight of the palace with the given role.
func ByRole(insights []Insight, role string) (Insight, bool) {
	for _, in := range insights {
		if in.Role == role {
			return in, true
		}
	}
	return Insight{}, false
}

func selfPalace(t *reference.Tables) string {
	palaces := t.Palaces()
	for _, p := range palaces {
		if p.Role == selfRole {
			return p.Name
		}
	}
	return palaces[0].Name
}

// resolve walks the narrative fallback chain from the most to the least specific key.
func resolve(t *reference.Tables, self string, pal reference.Palace, star reference.Star, tag reference.Transformation, stage string) (string, Source) {
	if tag != "" {
		if s, ok := t.PalaceNarrative(reference.PalaceKey{Palace: pal.Name, Star: star.Name, Facet: reference.TransformationOf(tag)}); ok {
			return s, FromTransformation
		}
	}
	if s, ok := t.PalaceNarrative(reference.PalaceKey{Palace: pal.Name, Star: star.Name, Facet: reference.StageOf(stage)}); ok {
		return s, FromStage
	}
	if s, ok := t.PalaceNarrative(reference.PalaceKey{Palace: self, Star: star.Name, Facet: reference.StageOf(stage)}); ok {
		return s, FromSelfStage
	}
	return fmt.Sprintf("主星「%s」在%s，代表您的「%s」能量正處於「%s」的動態循環中。這意味著您在處理%s相關事務時，傾向於%s。",
		star.Name, pal.Name, star.Keyword, stage, pal.Name, FirstSentence(star.Traits)), FromTemplate
}

// FirstSentence returns text up to its first full stop, without the stop.
func FirstSentence(text string) string {
	if i := strings.Index(text, "。"); i >= 0 {
		return text[:i]
	}
	return text
}

func detail(t *reference.Tables, in Insight) string {
	var b strings.Builder
	title := in.Star
	if in.Transformation != "" {
		title += " · " + string(in.Transformation)
	}
	fmt.Fprintf(&b, "【%s解析：%s】\n%s\n\n", in.Palace, title, in.Narrative)
	fmt.Fprintf(&b, "【星曜特徵：%s】\n%s\n\n", in.Keyword, in.Traits)
	fmt.Fprintf(&b, "【宮位職能】\n%s\n\n", in.PalaceFunction)
	fmt.Fprintf(&b, "【能量狀態：%s位】\n目前該宮位處於「%s」階段，象徵著該領域的動能%s。", in.Stage, in.Stage, t.StageBlurb(in.Stage))
	return b.String()
}
