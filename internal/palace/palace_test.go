package palace

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/reference"
)

func pillars(yearStem, monthBranch, dayStem, hourBranch int) calendar.Pillars {
	return calendar.Pillars{
		Year:  calendar.Pillar{Stem: yearStem},
		Month: calendar.Pillar{Branch: monthBranch},
		Day:   calendar.Pillar{Stem: dayStem},
		Hour:  calendar.Pillar{Branch: hourBranch},
	}
}

func TestLifePosition(t *testing.T) {
	testCases := []struct {
		month, hour, want int
	}{
		{2, 0, 2},
		{0, 5, 7},
		{11, 11, 0},
		{3, 4, 11},
	}
	for _, tc := range testCases {
		if got := LifePosition(tc.month, tc.hour); got != tc.want {
			t.Errorf("LifePosition(%d, %d) = %d, want %d", tc.month, tc.hour, got, tc.want)
		}
	}
}

func TestMapGolden(t *testing.T) {
	insights := Map(reference.MustDefault(), calendar.Convert(1990, 1, 1, calendar.HourLabels[0]))
	if len(insights) != 6 {
		t.Fatalf("Map() returned %d insights, want 6", len(insights))
	}

	want := []struct {
		palace string
		star   string
		tag    reference.Transformation
		source Source
	}{
		{"命宮", "太陽", reference.Prosperity, FromTransformation},
		{"財帛宮", "天相", "", FromTemplate},
		{"官祿宮", "天府", "", FromTemplate},
		{"遷移宮", "貪狼", "", FromTemplate},
		{"福德宮", "紫微", "", FromTemplate},
		{"田宅宮", "天梁", "", FromTemplate},
	}
	for i, w := range want {
		got := insights[i]
		if got.Palace != w.palace || got.Star != w.star || got.Transformation != w.tag || got.Source != w.source {
			t.Errorf("insight %d = {%s %s %q %s}, want {%s %s %q %s}",
				i, got.Palace, got.Star, got.Transformation, got.Source, w.palace, w.star, w.tag, w.source)
		}
	}

	self := insights[0]
	if self.Stage != "長生" {
		t.Errorf("命宮 stage = %s, want 長生", self.Stage)
	}
	if self.StarLabel() != "太陽 (化祿)" {
		t.Errorf("StarLabel() = %s, want 太陽 (化祿)", self.StarLabel())
	}
	if !strings.Contains(self.Detail, "【命宮解析：太陽 · 化祿】") {
		t.Errorf("Detail missing heading: %s", self.Detail)
	}
}

func TestMapNarrativeFallbackLevels(t *testing.T) {
	tables := reference.MustDefault()

	testCases := []struct {
		name    string
		pillars calendar.Pillars
		palace  string
		star    string
		source  Source
	}{
		{
			// 甲 day, 未 life position: 太陰 at 墓
			name:    "palace and stage",
			pillars: pillars(0, 7, 0, 0),
			palace:  "命宮",
			star:    "太陰",
			source:  FromStage,
		},
		{
			// 丁 day, 戌 life position puts 天府 at 午, stage 臨官
			name:    "non-self palace and stage",
			pillars: pillars(0, 10, 3, 0),
			palace:  "財帛宮",
			star:    "天府",
			source:  FromStage,
		},
		{
			// 甲 day, 亥 life position puts 太陰 at 未 in the wealth palace
			name:    "self palace fallback",
			pillars: pillars(0, 11, 0, 0),
			palace:  "財帛宮",
			star:    "太陰",
			source:  FromSelfStage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got Insight
			for _, in := range Map(tables, tc.pillars) {
				if in.Palace == tc.palace {
					got = in
				}
			}
			if got.Star != tc.star || got.Source != tc.source {
				t.Errorf("%s = {%s %s}, want {%s %s}", tc.palace, got.Star, got.Source, tc.star, tc.source)
			}
			if got.Narrative == "" {
				t.Error("narrative is empty")
			}
		})
	}
}

// TestMapTemplateFallback removes every palace narrative and checks that all six
// insights still carry text.
func TestMapTemplateFallback(t *testing.T) {
	m := fstest.MapFS{}
	for _, name := range reference.Files {
		data, err := fs.ReadFile(reference.Source(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		m[name] = &fstest.MapFile{Data: data}
	}
	m["ziwei_narratives.yaml"] = &fstest.MapFile{Data: []byte("narratives: []\n")}

	tables, err := reference.Load(m)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	for day := 1; day <= 28; day += 3 {
		for _, label := range calendar.HourLabels {
			insights := Map(tables, calendar.Convert(1990, 1+day%12, day, label))
			if len(insights) != 6 {
				t.Fatalf("Map() returned %d insights, want 6", len(insights))
			}
			for _, in := range insights {
				if in.Source != FromTemplate {
					t.Errorf("%s source = %s, want template", in.Palace, in.Source)
				}
				if !strings.HasPrefix(in.Narrative, "主星「"+in.Star+"」在"+in.Palace) {
					t.Errorf("%s narrative = %q", in.Palace, in.Narrative)
				}
			}
		}
	}
}

func TestMapAppliesYearTransformation(t *testing.T) {
	// 戊 year: 太陰 carries 化權 only; 天機 carries 化忌 only
	insights := Map(reference.MustDefault(), pillars(4, 1, 0, 0))
	for _, in := range insights {
		if in.Star == "天機" && in.Transformation != reference.Adversity {
			t.Errorf("天機 tag = %q, want 化忌", in.Transformation)
		}
	}
}

func TestFirstSentence(t *testing.T) {
	if got := FirstSentence("甲。乙。"); got != "甲" {
		t.Errorf("FirstSentence() = %q, want 甲", got)
	}
	if got := FirstSentence("無句號"); got != "無句號" {
		t.Errorf("FirstSentence() = %q, want 無句號", got)
	}
}

func TestByRole(t *testing.T) {
	insights := Map(reference.MustDefault(), calendar.Convert(1990, 1, 1, calendar.HourLabels[0]))
	if in, ok := ByRole(insights, "wealth"); !ok || in.Star != "天相" {
		t.Errorf("ByRole(wealth) = %s, %v", in.Star, ok)
	}
	if _, ok := ByRole(insights, "nope"); ok {
		t.Error("ByRole(nope) should report absence")
	}
}
