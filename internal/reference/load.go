package reference

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/fatechart/internal/calendar"
)

//go:embed data/*.yaml
var embedded embed.FS

// Files lists the YAML documents that make up a table set, in load order.
var Files = []string{
	"stems.yaml",
	"branches.yaml",
	"changsheng.yaml",
	"sihua.yaml",
	"stars.yaml",
	"palaces.yaml",
	"shensha.yaml",
	"tengods.yaml",
	"ziwei_narratives.yaml",
	"bazi_narratives.yaml",
	"synthesis.yaml",
	"quotes.yaml",
	"archetypes.yaml",
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
	defaultErr    error
)

// Source returns the embedded data directory as an fs.FS rooted at the YAML files.
func Source() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		// data/ is embedded at compile time; Sub only fails on an invalid path.
		panic(err)
	}
	return sub
}

// Default returns the embedded table set, decoding it on first use.
func Default() (*Tables, error) {
	defaultOnce.Do(func() {
		defaultTables, defaultErr = Load(Source())
	})
	return defaultTables, defaultErr
}

// MustDefault is Default for callers that cannot continue without tables.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(fmt.Sprintf("reference: load embedded tables: %v", err))
	}
	return t
}

// Load decodes every file in Files from fsys and validates the result.
func Load(fsys fs.FS) (*Tables, error) {
	var doc document
	for _, name := range Files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return doc.build()
}

type document struct {
	Stems []struct {
		Symbol  string  `yaml:"symbol"`
		Element Element `yaml:"element"`
		Image   string  `yaml:"image"`
		Essence struct {
			Strong string `yaml:"strong"`
			Weak   string `yaml:"weak"`
		} `yaml:"essence"`
	} `yaml:"stems"`

	Branches []struct {
		Symbol  string  `yaml:"symbol"`
		Element Element `yaml:"element"`
		Season  string  `yaml:"season"`
		Context string  `yaml:"context"`
		Hidden  []struct {
			Stem   string `yaml:"stem"`
			Weight int    `yaml:"weight"`
		} `yaml:"hidden"`
	} `yaml:"branches"`

	Stages map[string][]string `yaml:"stages"`
	Order  []string            `yaml:"order"`
	Blurbs map[string]string   `yaml:"blurbs"`

	Transformations map[string]struct {
		Lu   string `yaml:"lu"`
		Quan string `yaml:"quan"`
		Ke   string `yaml:"ke"`
		Ji   string `yaml:"ji"`
	} `yaml:"transformations"`

	Stars []struct {
		Name     string `yaml:"name"`
		Keyword  string `yaml:"keyword"`
		Traits   string `yaml:"traits"`
		Function string `yaml:"function"`
	} `yaml:"stars"`

	Palaces []struct {
		Name        string `yaml:"name"`
		Role        string `yaml:"role"`
		Offset      int    `yaml:"offset"`
		Icon        string `yaml:"icon"`
		Function    string `yaml:"function"`
		Personality string `yaml:"personality"`
	} `yaml:"palaces"`

	Markers []struct {
		Name      string              `yaml:"name"`
		Kind      MarkerKind          `yaml:"kind"`
		ByDayStem map[string][]string `yaml:"by_day_stem"`
		ByBranch  map[string]string   `yaml:"by_branch"`
	} `yaml:"markers"`

	Roles map[string]struct {
		Trait    string             `yaml:"trait"`
		Behavior string             `yaml:"behavior"`
		Nuance   map[Element]string `yaml:"nuance"`
	} `yaml:"roles"`

	Narratives []struct {
		Palace         string         `yaml:"palace"`
		Star           string         `yaml:"star"`
		Transformation Transformation `yaml:"transformation"`
		Stage          string         `yaml:"stage"`
		Content        string         `yaml:"content"`
	} `yaml:"narratives"`

	DayPillars []struct {
		Stem    string   `yaml:"stem"`
		Branch  string   `yaml:"branch"`
		Stage   string   `yaml:"stage"`
		Content string   `yaml:"content"`
		Tags    []string `yaml:"tags"`
	} `yaml:"day_pillars"`

	Matrix []struct {
		Stem     string   `yaml:"stem"`
		Season   string   `yaml:"season"`
		Strength string   `yaml:"strength"`
		Content  string   `yaml:"content"`
		Tags     []string `yaml:"tags"`
	} `yaml:"matrix"`

	Wealth []synthesisEntry `yaml:"wealth"`
	Career []synthesisEntry `yaml:"career"`

	Categories map[QuoteCategory][]struct {
		Text   string `yaml:"text"`
		Author string `yaml:"author"`
		Source string `yaml:"source"`
		Weight uint   `yaml:"weight"`
	} `yaml:"categories"`

	Version   int `yaml:"version"`
	Archetype []struct {
		ID          string `yaml:"id"`
		Priority    int    `yaml:"priority"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Icon        string `yaml:"icon"`
		Expression  string `yaml:"expression"`
	} `yaml:"rules"`
	Default struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Icon        string `yaml:"icon"`
	} `yaml:"default"`
}

type synthesisEntry struct {
	Star    string `yaml:"star"`
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// build converts the decoded documents into indexed tables. Every structural
// table must be complete; content tables may be empty.
func (d *document) build() (*Tables, error) {
	t := &Tables{
		stageBlurbs:      make(map[string]string),
		starIndex:        make(map[string]int),
		roles:            make(map[string]RoleProfile),
		palaceNarratives: make(map[PalaceKey]string),
		dayPillars:       make(map[DayPillarKey]Narrative),
		matrix:           make(map[MatrixKey]Narrative),
		wealth:           make(map[SynthesisKey]string),
		career:           make(map[SynthesisKey]string),
		quotes:           make(map[QuoteCategory][]Quote),
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// Stems
	if len(d.Stems) != len(calendar.Stems) {
		return nil, fmt.Errorf("stems: got %d entries, want %d", len(d.Stems), len(calendar.Stems))
	}
	for i, s := range d.Stems {
		if s.Symbol != calendar.Stems[i] {
			fail("stems[%d]: symbol %q, want %q", i, s.Symbol, calendar.Stems[i])
		}
		if !s.Element.Valid() {
			fail("stem %s: invalid element %q", s.Symbol, s.Element)
		}
		t.stems[i] = Stem{
			Symbol:  s.Symbol,
			Element: s.Element,
			Image:   s.Image,
			Essence: Essence{Strong: s.Essence.Strong, Weak: s.Essence.Weak},
		}
	}

	// Branches
	if len(d.Branches) != len(calendar.Branches) {
		return nil, fmt.Errorf("branches: got %d entries, want %d", len(d.Branches), len(calendar.Branches))
	}
	for i, b := range d.Branches {
		if b.Symbol != calendar.Branches[i] {
			fail("branches[%d]: symbol %q, want %q", i, b.Symbol, calendar.Branches[i])
		}
		if !b.Element.Valid() {
			fail("branch %s: invalid element %q", b.Symbol, b.Element)
		}
		if b.Season == "" {
			fail("branch %s: missing season", b.Symbol)
		}
		hidden := make([]HiddenStem, 0, len(b.Hidden))
		for _, h := range b.Hidden {
			idx, ok := calendar.StemIndex(h.Stem)
			if !ok {
				fail("branch %s: unknown hidden stem %q", b.Symbol, h.Stem)
				continue
			}
			if h.Weight <= 0 {
				fail("branch %s: hidden stem %s has non-positive weight %d", b.Symbol, h.Stem, h.Weight)
			}
			hidden = append(hidden, HiddenStem{Stem: idx, Weight: h.Weight})
		}
		t.branches[i] = Branch{
			Symbol:  b.Symbol,
			Element: b.Element,
			Season:  b.Season,
			Context: b.Context,
			Hidden:  hidden,
		}
	}

	// Twelve stages
	if len(d.Order) != 12 {
		fail("changsheng: order has %d stages, want 12", len(d.Order))
	}
	known := make(map[string]bool, len(d.Order))
	for _, s := range d.Order {
		known[s] = true
		t.stageBlurbs[s] = d.Blurbs[s]
	}
	t.stageOrder = d.Order
	for i := range calendar.Stems {
		row, ok := d.Stages[stemName(i)]
		if !ok || len(row) != 12 {
			fail("changsheng: stem %s needs 12 stages", stemName(i))
			continue
		}
		for b, s := range row {
			if !known[s] {
				fail("changsheng: stem %s branch %s has unknown stage %q", stemName(i), calendar.Branches[b], s)
			}
			t.stages[i][b] = s
		}
	}

	// Four transformations
	for i := range calendar.Stems {
		s, ok := d.Transformations[stemName(i)]
		if !ok {
			fail("sihua: missing stem %s", stemName(i))
			continue
		}
		t.transformations[i] = SiHua{Lu: s.Lu, Quan: s.Quan, Ke: s.Ke, Ji: s.Ji}
	}

	// Stars
	if len(d.Stars) == 0 {
		fail("stars: sequence is empty")
	}
	for i, s := range d.Stars {
		if _, dup := t.starIndex[s.Name]; dup {
			fail("stars: duplicate star %s", s.Name)
		}
		t.starIndex[s.Name] = i
		t.stars = append(t.stars, Star{Name: s.Name, Keyword: s.Keyword, Traits: s.Traits, Function: s.Function})
	}

	// Palaces
	if len(d.Palaces) == 0 {
		fail("palaces: list is empty")
	}
	for _, p := range d.Palaces {
		if p.Offset < 0 || p.Offset >= 12 {
			fail("palace %s: offset %d outside [0,12)", p.Name, p.Offset)
		}
		t.palaces = append(t.palaces, Palace{
			Name:        p.Name,
			Role:        p.Role,
			Offset:      p.Offset,
			Icon:        p.Icon,
			Function:    p.Function,
			Personality: p.Personality,
		})
	}

	// Auxiliary markers
	for _, m := range d.Markers {
		rule := MarkerRule{Name: m.Name, Kind: m.Kind}
		switch m.Kind {
		case DayStemMarker:
			rule.ByDayStem = make(map[int][]int, len(m.ByDayStem))
			for stem, branches := range m.ByDayStem {
				si, ok := calendar.StemIndex(stem)
				if !ok {
					fail("marker %s: unknown stem %q", m.Name, stem)
					continue
				}
				for _, b := range branches {
					bi, ok := calendar.BranchIndex(b)
					if !ok {
						fail("marker %s: unknown branch %q", m.Name, b)
						continue
					}
					rule.ByDayStem[si] = append(rule.ByDayStem[si], bi)
				}
			}
		case BranchMarker:
			rule.ByBranch = make(map[int]int, len(m.ByBranch))
			for from, to := range m.ByBranch {
				fi, ok1 := calendar.BranchIndex(from)
				ti, ok2 := calendar.BranchIndex(to)
				if !ok1 || !ok2 {
					fail("marker %s: unknown branch mapping %q -> %q", m.Name, from, to)
					continue
				}
				rule.ByBranch[fi] = ti
			}
		default:
			fail("marker %s: unknown kind %q", m.Name, m.Kind)
		}
		t.markers = append(t.markers, rule)
	}

	// Relational role profiles
	for label, r := range d.Roles {
		t.roles[label] = RoleProfile{Trait: r.Trait, Behavior: r.Behavior, Nuance: r.Nuance}
	}

	// Palace narratives: exactly one qualifier per entry.
	for _, n := range d.Narratives {
		var facet Facet
		switch {
		case n.Transformation != "" && n.Stage != "":
			fail("narrative %s/%s: set either transformation or stage, not both", n.Palace, n.Star)
			continue
		case n.Transformation != "":
			facet = TransformationOf(n.Transformation)
		case n.Stage != "":
			if !known[n.Stage] {
				fail("narrative %s/%s: unknown stage %q", n.Palace, n.Star, n.Stage)
				continue
			}
			facet = StageOf(n.Stage)
		default:
			fail("narrative %s/%s: missing qualifier", n.Palace, n.Star)
			continue
		}
		t.palaceNarratives[PalaceKey{Palace: n.Palace, Star: n.Star, Facet: facet}] = n.Content
	}

	// Day pillar and matrix narratives
	for _, n := range d.DayPillars {
		si, ok1 := calendar.StemIndex(n.Stem)
		bi, ok2 := calendar.BranchIndex(n.Branch)
		if !ok1 || !ok2 {
			fail("day pillar %s%s: unknown symbols", n.Stem, n.Branch)
			continue
		}
		t.dayPillars[DayPillarKey{Stem: si, Branch: bi, Stage: n.Stage}] = Narrative{Content: n.Content, Tags: n.Tags}
	}
	for _, n := range d.Matrix {
		si, ok := calendar.StemIndex(n.Stem)
		if !ok {
			fail("matrix: unknown stem %q", n.Stem)
			continue
		}
		t.matrix[MatrixKey{Stem: si, Season: n.Season, Strength: n.Strength}] = Narrative{Content: n.Content, Tags: n.Tags}
	}

	// Wealth and career syntheses
	for _, s := range d.Wealth {
		t.wealth[SynthesisKey{Star: s.Star, Role: s.Role}] = s.Content
	}
	for _, s := range d.Career {
		t.career[SynthesisKey{Star: s.Star, Role: s.Role}] = s.Content
	}

	// Quotes
	for _, c := range QuoteCategories {
		entries := d.Categories[c]
		if len(entries) == 0 {
			fail("quotes: category %s is empty", c)
			continue
		}
		for _, q := range entries {
			w := q.Weight
			if w == 0 {
				w = 1
			}
			t.quotes[c] = append(t.quotes[c], Quote{Text: q.Text, Author: q.Author, Source: q.Source, Weight: w})
		}
	}

	// Archetypes, kept in ascending priority. Priorities are unique so the order
	// never falls back to comparing ids.
	ids := make(map[string]bool, len(d.Archetype))
	priorities := make(map[int]string, len(d.Archetype))
	t.archetypes.Version = d.Version
	for _, r := range d.Archetype {
		if r.ID == "" || r.Expression == "" {
			fail("archetype %q: id and expression are required", r.Name)
			continue
		}
		if ids[r.ID] {
			fail("archetype %s: duplicate id", r.ID)
			continue
		}
		ids[r.ID] = true
		if other, ok := priorities[r.Priority]; ok {
			fail("archetype %s: priority %d already used by %s", r.ID, r.Priority, other)
			continue
		}
		priorities[r.Priority] = r.ID
		t.archetypes.Rules = append(t.archetypes.Rules, ArchetypeRule{
			Archetype: Archetype{
				ID:          r.ID,
				Name:        r.Name,
				Description: r.Description,
				Icon:        r.Icon,
			},
			Priority:   r.Priority,
			Expression: r.Expression,
		})
	}
	sort.SliceStable(t.archetypes.Rules, func(i, j int) bool {
		return t.archetypes.Rules[i].Priority < t.archetypes.Rules[j].Priority
	})
	if d.Default.Name == "" {
		fail("archetypes: default archetype is required")
	}
	t.archetypes.Default = Archetype{
		ID:          d.Default.ID,
		Name:        d.Default.Name,
		Description: d.Default.Description,
		Icon:        d.Default.Icon,
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid reference tables: %w", errors.Join(errs...))
	}
	return t, nil
}
