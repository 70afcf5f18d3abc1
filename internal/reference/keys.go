package reference

// FacetKind tells which qualifier a palace narrative key carries.
type FacetKind uint8

const (
	StageFacet FacetKind = iota + 1
	TransformationFacet
)

// Facet qualifies a palace narrative by either a life-cycle stage or a transformation tag.
type Facet struct {
	Kind  FacetKind
	Label string
}

// StageOf builds a stage facet.
func StageOf(stage string) Facet { return Facet{Kind: StageFacet, Label: stage} }

// TransformationOf builds a transformation facet.
func TransformationOf(tag Transformation) Facet {
	return Facet{Kind: TransformationFacet, Label: string(tag)}
}

// PalaceKey addresses the palace narrative table.
type PalaceKey struct {
	Palace string
	Star   string
	Facet  Facet
}

// DayPillarKey addresses the day-pillar narrative table.
type DayPillarKey struct {
	Stem   int
	Branch int
	Stage  string
}

// MatrixKey addresses the seasonal strength matrix.
type MatrixKey struct {
	Stem     int
	Season   string
	Strength string
}

// SynthesisKey addresses the wealth and career tables. An empty Role means the
// chart carries none of the roles the table is keyed on.
type SynthesisKey struct {
	Star string
	Role string
}

// PalaceNarrative looks up a palace narrative.
func (t *Tables) PalaceNarrative(k PalaceKey) (string, bool) {
	s, ok := t.palaceNarratives[k]
	return s, ok
}

// DayPillarNarrative looks up a day-pillar narrative.
func (t *Tables) DayPillarNarrative(k DayPillarKey) (Narrative, bool) {
	n, ok := t.dayPillars[k]
	return n, ok
}

// MatrixNarrative looks up the seasonal strength matrix.
func (t *Tables) MatrixNarrative(k MatrixKey) (Narrative, bool) {
	n, ok := t.matrix[k]
	return n, ok
}

// WealthSynthesis looks up the wealth synthesis table.
func (t *Tables) WealthSynthesis(k SynthesisKey) (string, bool) {
	s, ok := t.wealth[k]
	return s, ok
}

// CareerSynthesis looks up the career synthesis table.
func (t *Tables) CareerSynthesis(k SynthesisKey) (string, bool) {
	s, ok := t.career[k]
	return s, ok
}
