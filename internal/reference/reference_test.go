package reference

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

// overlay copies the embedded tables into a MapFS and replaces the given files.
func overlay(t *testing.T, replace map[string]string) fstest.MapFS {
	t.Helper()
	m := fstest.MapFS{}
	for _, name := range Files {
		data, err := fs.ReadFile(Source(), name)
		if err != nil {
			t.Fatalf("read embedded %s: %v", name, err)
		}
		m[name] = &fstest.MapFile{Data: data}
	}
	for name, content := range replace {
		m[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return m
}

func TestDefaultTables(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}

	if got := tables.Stage(2, 4); got != "冠帶" {
		t.Errorf("Stage(丙, 辰) = %s, want 冠帶", got)
	}
	if got := tables.Transformations(6); got.Lu != "太陽" || got.Ji != "天同" {
		t.Errorf("Transformations(庚) = %+v, want lu 太陽 ji 天同", got)
	}
	if got := len(tables.Stars()); got != 14 {
		t.Errorf("len(Stars()) = %d, want 14", got)
	}
	if got := tables.StemElement(2); got != Fire {
		t.Errorf("StemElement(丙) = %s, want 火", got)
	}
	if got := tables.SeasonOf(2); got != "春" {
		t.Errorf("SeasonOf(寅) = %s, want 春", got)
	}
	if len(tables.StageOrder()) != 12 {
		t.Errorf("StageOrder() has %d entries, want 12", len(tables.StageOrder()))
	}
	if tables.StageBlurb("長生") == "" {
		t.Error("StageBlurb(長生) is empty")
	}
	if _, ok := tables.Star("紫微"); !ok {
		t.Error("Star(紫微) not found")
	}
	if _, ok := tables.Role("食神"); !ok {
		t.Error("Role(食神) not found")
	}

	for i := 0; i < 12; i++ {
		sum := 0
		for _, h := range tables.Branch(i).Hidden {
			sum += h.Weight
		}
		if sum != 100 {
			t.Errorf("branch %s hidden weights sum to %d, want 100", tables.Branch(i).Symbol, sum)
		}
	}

	for _, c := range QuoteCategories {
		quotes := tables.Quotes(c)
		if len(quotes) == 0 {
			t.Errorf("category %s has no quotes", c)
		}
		for _, q := range quotes {
			if q.Weight == 0 {
				t.Errorf("quote %q in %s has zero weight", q.Text, c)
			}
		}
	}

	set := tables.Archetypes()
	if len(set.Rules) == 0 {
		t.Fatal("no archetype rules")
	}
	for i := 1; i < len(set.Rules); i++ {
		if set.Rules[i-1].Priority > set.Rules[i].Priority {
			t.Errorf("archetype rules not sorted: %s (%d) before %s (%d)",
				set.Rules[i-1].ID, set.Rules[i-1].Priority, set.Rules[i].ID, set.Rules[i].Priority)
		}
	}
	if set.Default.Name != "中和格局" {
		t.Errorf("default archetype = %s, want 中和格局", set.Default.Name)
	}
}

func TestDefaultIsShared(t *testing.T) {
	a := MustDefault()
	b := MustDefault()
	if a != b {
		t.Error("MustDefault returned different table sets")
	}
}

func TestLookups(t *testing.T) {
	tables := MustDefault()

	if _, ok := tables.PalaceNarrative(PalaceKey{Palace: "命宮", Star: "太陽", Facet: TransformationOf(Prosperity)}); !ok {
		t.Error("expected a 命宮/太陽/化祿 narrative")
	}
	if _, ok := tables.PalaceNarrative(PalaceKey{Palace: "命宮", Star: "太陽", Facet: StageOf("化祿")}); ok {
		t.Error("a stage facet must not match a transformation entry")
	}
	if n, ok := tables.DayPillarNarrative(DayPillarKey{Stem: 2, Branch: 6, Stage: "帝旺"}); !ok || len(n.Tags) == 0 {
		t.Errorf("DayPillarNarrative(丙午 帝旺) = %+v, %v", n, ok)
	}
	if _, ok := tables.WealthSynthesis(SynthesisKey{Star: "天府", Role: ""}); !ok {
		t.Error("expected a role-less wealth synthesis for 天府")
	}
}

func TestSiHuaTagFor(t *testing.T) {
	s := SiHua{Lu: "甲星", Quan: "乙星", Ke: "甲星", Ji: "丙星"}

	testCases := []struct {
		star   string
		want   Transformation
		wantOK bool
	}{
		{"甲星", Merit, true},
		{"乙星", Authority, true},
		{"丙星", Adversity, true},
		{"丁星", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.star, func(t *testing.T) {
			got, ok := s.TagFor(tc.star)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("TagFor(%s) = (%q, %v), want (%q, %v)", tc.star, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestElementCycle(t *testing.T) {
	testCases := []struct {
		e      Element
		parent Element
	}{
		{Wood, Water},
		{Fire, Wood},
		{Earth, Fire},
		{Metal, Earth},
		{Water, Metal},
	}
	for _, tc := range testCases {
		if got := tc.e.Parent(); got != tc.parent {
			t.Errorf("%s.Parent() = %s, want %s", tc.e, got, tc.parent)
		}
	}
	if Element("風").Valid() {
		t.Error("風 should not be a valid element")
	}
}

func TestLoadDefaultsQuoteWeight(t *testing.T) {
	fsys := overlay(t, map[string]string{
		"quotes.yaml": `
categories:
  turning-point:
    - {text: a, author: x, source: y}
  imbalance:
    - {text: b, author: x, source: y, weight: 3}
  stable:
    - {text: c, author: x, source: y}
`,
	})
	tables, err := Load(fsys)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if w := tables.Quotes(TurningPoint)[0].Weight; w != 1 {
		t.Errorf("default weight = %d, want 1", w)
	}
	if w := tables.Quotes(Imbalance)[0].Weight; w != 3 {
		t.Errorf("explicit weight = %d, want 3", w)
	}
}

func TestLoadRejectsInvalidTables(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "missing quote category",
			file:    "quotes.yaml",
			content: "categories:\n  stable:\n    - {text: c, author: x, source: y}\n",
			wantErr: "category turning-point is empty",
		},
		{
			name:    "narrative with both qualifiers",
			file:    "ziwei_narratives.yaml",
			content: "narratives:\n  - {palace: 命宮, star: 紫微, transformation: 化權, stage: 長生, content: x}\n",
			wantErr: "not both",
		},
		{
			name:    "unknown marker kind",
			file:    "shensha.yaml",
			content: "markers:\n  - {name: 紅鸞, kind: month}\n",
			wantErr: "unknown kind",
		},
		{
			name:    "truncated stems",
			file:    "stems.yaml",
			content: "stems:\n  - {symbol: 甲, element: 木}\n",
			wantErr: "stems: got 1 entries",
		},
		{
			name:    "unknown field",
			file:    "stars.yaml",
			content: "stars:\n  - {name: 紫微, brightness: 5}\n",
			wantErr: "decode stars.yaml",
		},
		{
			name:    "archetype without expression",
			file:    "archetypes.yaml",
			content: "version: 1\nrules:\n  - {id: a, priority: 1, name: A}\ndefault: {id: d, name: D}\n",
			wantErr: "id and expression are required",
		},
		{
			name:    "archetypes sharing a priority",
			file:    "archetypes.yaml",
			content: "version: 1\nrules:\n  - {id: b, priority: 5, name: B, expression: 'true'}\n  - {id: a, priority: 5, name: A, expression: 'true'}\ndefault: {id: d, name: D}\n",
			wantErr: "archetype a: priority 5 already used by b",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(overlay(t, map[string]string{tc.file: tc.content}))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	fsys := overlay(t, nil)
	delete(fsys, "sihua.yaml")
	if _, err := Load(fsys); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
