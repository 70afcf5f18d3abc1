// Package synthesis composes the narrative sections of a report from the
// classified chart, and draws its reflection quote.
//
// Every section resolves through a content-table lookup first and falls back to
// templated text, so no section is ever empty.
package synthesis

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/mroth/weightedrand/v2"

	"github.com/liamcoop/fatechart/internal/bazi"
	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/palace"
	"github.com/liamcoop/fatechart/internal/reference"
)

// Quote category thresholds on the elemental spread.
const (
	turningPointSpread = 450
	imbalanceSpread    = 350
)

// defaultTags are used when no personality table entry matched.
var defaultTags = []string{"強勢", "韌性"}

// Input is everything the composer reads. It is produced by the earlier stages.
type Input struct {
	BirthYear int
	Pillars   calendar.Pillars
	Roles     [4]bazi.TenGod
	Balance   bazi.ElementBalance
	Strength  bazi.Strength
	Archetype reference.Archetype
	Palaces   []palace.Insight
}

// Narratives are the composed report sections.
type Narratives struct {
	Personality    string
	OverallFortune string
	Wealth         string
	Career         string
	Love           string
	Guidance       string
	CurrentCycle   string
	Tags           []string
	DominantRole   bazi.TenGod
	QuoteCategory  reference.QuoteCategory
	Quote          reference.Quote
}

// Composer holds the tables and one weighted quote chooser per category.
type Composer struct {
	t        *reference.Tables
	choosers map[reference.QuoteCategory]*weightedrand.Chooser[reference.Quote, uint]
}

// NewComposer prepares the quote choosers. Every category must have at least one
// quote with a positive weight.
func NewComposer(t *reference.Tables) (*Composer, error) {
	c := &Composer{
		t:        t,
		choosers: make(map[reference.QuoteCategory]*weightedrand.Chooser[reference.Quote, uint], len(reference.QuoteCategories)),
	}
	for _, cat := range reference.QuoteCategories {
		quotes := t.Quotes(cat)
		choices := make([]weightedrand.Choice[reference.Quote, uint], 0, len(quotes))
		for _, q := range quotes {
			choices = append(choices, weightedrand.NewChoice(q, q.Weight))
		}
		chooser, err := weightedrand.NewChooser(choices...)
		if err != nil {
			return nil, fmt.Errorf("quote category %s: %w", cat, err)
		}
		c.choosers[cat] = chooser
	}
	return c, nil
}

// CategoryFor selects the quote category from the balance spread and birth year.
func CategoryFor(balance bazi.ElementBalance, birthYear int) reference.QuoteCategory {
	spread := balance.Spread()
	switch {
	case spread > turningPointSpread || birthYear%10 == 0:
		return reference.TurningPoint
	case spread > imbalanceSpread:
		return reference.Imbalance
	default:
		return reference.Stable
	}
}

// DrawQuote picks one quote of the category using rng. The caller owns rng and
// must not share it between goroutines.
func (c *Composer) DrawQuote(cat reference.QuoteCategory, rng *rand.Rand) reference.Quote {
	return c.choosers[cat].PickSource(rng)
}

// Compose builds every narrative section. The quote draw is the only step that
// reads rng.
func (c *Composer) Compose(in Input, rng *rand.Rand) Narratives {
	var n Narratives

	dominant, hasDominant := bazi.Dominant(in.Roles)
	n.DominantRole = dominant

	self, _ := palace.ByRole(in.Palaces, "self")
	wealth, _ := palace.ByRole(in.Palaces, "wealth")
	career, _ := palace.ByRole(in.Palaces, "career")
	travel, _ := palace.ByRole(in.Palaces, "travel")

	personality, tags, matched := c.personality(in)
	if hasDominant {
		personality += c.rolePassage(dominant, in.Pillars.Day.Stem)
	}
	n.Personality = personality
	n.Tags = tags

	n.OverallFortune = c.overall(in, self, personality)
	n.Wealth = c.wealth(in.Roles, wealth.Star)
	n.Career = c.career(in.Roles, career.Star)
	n.Love = fmt.Sprintf("【人際指引】身處「%s」位，與遷移宮「%s」形成對應。",
		c.t.Stage(in.Pillars.Day.Stem, in.Pillars.Day.Branch), travel.StarLabel())

	n.QuoteCategory = CategoryFor(in.Balance, in.BirthYear)
	n.Quote = c.DrawQuote(n.QuoteCategory, rng)
	n.CurrentCycle = "當前修煉：" + n.Quote.Text
	n.Guidance = c.guidance(in, self, n.QuoteCategory, n.Quote, matched)

	return n
}

// personality resolves the day pillar table, then the seasonal matrix, then the
// day-master essence for the strength class.
func (c *Composer) personality(in Input) (text string, tags []string, dayPillar *reference.Narrative) {
	p := in.Pillars
	stage := c.t.Stage(p.Day.Stem, p.Day.Branch)

	if adv, ok := c.t.DayPillarNarrative(reference.DayPillarKey{Stem: p.Day.Stem, Branch: p.Day.Branch, Stage: stage}); ok {
		return adv.Content, cloneTags(adv.Tags), &adv
	}

	key := reference.MatrixKey{
		Stem:     p.Day.Stem,
		Season:   c.t.SeasonOf(p.Month.Branch),
		Strength: string(in.Strength.Class),
	}
	if m, ok := c.t.MatrixNarrative(key); ok {
		return m.Content, cloneTags(m.Tags), nil
	}

	essence := c.t.Stem(p.Day.Stem).Essence.Weak
	if in.Strength.Class == bazi.Strong {
		essence = c.t.Stem(p.Day.Stem).Essence.Strong
	}
	return fmt.Sprintf("【%s】%s", in.Strength.Class.Label(), essence), cloneTags(defaultTags), nil
}

// rolePassage describes the dominant role. It is empty when the role has no profile.
func (c *Composer) rolePassage(role bazi.TenGod, dayStem int) string {
	profile, ok := c.t.Role(string(role))
	if !ok {
		return ""
	}
	element := c.t.StemElement(dayStem)
	return fmt.Sprintf("\n\n【十神動力學：%s主導】\n您的命盤中「%s」能量顯著。%s。在行為模式上，%s\n針對您%s命（%s主）的感應：%s",
		role, role, profile.Trait, profile.Behavior, calendar.Stems[dayStem], element, profile.Nuance[element])
}

func (c *Composer) overall(in Input, self palace.Insight, personality string) string {
	p := in.Pillars
	var b strings.Builder
	b.WriteString("【格局應用：星能化合】\n")
	fmt.Fprintf(&b, "您的核心命格由日主「%s」坐「%s」與紫微命宮「%s」共同建構。\n",
		p.Day.StemSymbol(), p.Day.BranchSymbol(), self.StarLabel())
	fmt.Fprintf(&b, "在「%s」的格局引導下，展現出「%s」的生命底色。%s\n",
		in.Archetype.Name, self.Keyword, in.Archetype.Description)
	b.WriteString(personality)
	return b.String()
}

func (c *Composer) wealth(roles [4]bazi.TenGod, star string) string {
	role, _ := bazi.FirstPresent(roles, bazi.DirectWealth, bazi.IndirectWealth)
	if s, ok := c.t.WealthSynthesis(reference.SynthesisKey{Star: star, Role: string(role)}); ok {
		return s
	}
	advice := "建立標準化的體系，追求長期穩定的現金流。"
	if role == bazi.IndirectWealth {
		advice = "關注市場波動與資訊差帶來的機會。"
	}
	return fmt.Sprintf("【資源獲取特質】結合紫微財帛宮主星「%s」與八字財星能量，您的資源掌控傾向於「%s」。\n建議：%s",
		star, c.keyword(star, "穩健模式"), advice)
}

func (c *Composer) career(roles [4]bazi.TenGod, star string) string {
	role, _ := bazi.FirstPresent(roles, bazi.DirectOfficer, bazi.SevenKillings)
	if s, ok := c.t.CareerSynthesis(reference.SynthesisKey{Star: star, Role: string(role)}); ok {
		return s
	}
	advice := "在制度完善、具備明確晉升路徑的體系中更容易獲得認可。"
	if role == bazi.SevenKillings {
		advice = "在充滿挑戰與開創性的職能中更能發揮潛力。"
	}
	return fmt.Sprintf("【職場行為模式】紫微官祿宮主星「%s」反映了您的工作姿態，結合八字官殺能量，展現出「%s」的位能。\n引導：%s",
		star, c.keyword(star, "專業化"), advice)
}

func (c *Composer) keyword(star, fallback string) string {
	if s, ok := c.t.Star(star); ok && s.Keyword != "" {
		return s.Keyword
	}
	return fallback
}

const (
	strongStrategy = "由於能量充沛，容易陷入「過度掌控」的陷阱。稻盛和夫先生提倡的「利他之心」是您當前最重要的修煉。在事業高峰期懂得「謙虛」與「讓利」，反而能建立更強大的社會護城河。請練習放下對結果的絕對執著。"
	weakStrategy   = "由於能量內斂，在執行大型計畫時常感到心力交瘁。查理·蒙格的「安全邊際」思維是您的生存指南。學會專注於自己的「能力圈」，在優勢領域內發動精確打擊，而非盲目消耗。借力使力，依附穩定的架構。"
)

func (c *Composer) guidance(in Input, self palace.Insight, cat reference.QuoteCategory, q reference.Quote, dayPillar *reference.Narrative) string {
	p := in.Pillars
	dm := c.t.Stem(p.Day.Stem)
	month := c.t.Branch(p.Month.Branch)

	tone := "柔"
	strategy := weakStrategy
	if in.Strength.Class == bazi.Strong {
		tone = "盛"
		strategy = strongStrategy
	}
	phase := "穩定的自我優化期"
	if cat == reference.TurningPoint {
		phase = "關鍵的生命轉折期"
	}

	var b strings.Builder
	b.WriteString("【生命指引：修煉與平衡全書】\n\n")
	fmt.Fprintf(&b, "【命主原型深度解析：%s命之%s】\n您的生命本質如同%s\n格局識別：【%s】。", dm.Symbol, tone, dm.Image, in.Archetype.Name)
	if dayPillar != nil {
		b.WriteString("特定感應：" + dayPillar.Content)
	}
	fmt.Fprintf(&b, "\n\n【月令時空脈絡：%s季之動能】\n出生於「%s」月，%s。\n", month.Season, month.Symbol, month.Context)
	fmt.Fprintf(&b, "此時空的初始頻率與您的紫微命宮「%s」產生了深刻的共振。\n\n", self.StarLabel())
	fmt.Fprintf(&b, "【能量平衡策略與終極修煉】\n目前的能量雷達反映出您的五行分佈正處於「%s」。\n針對您的【%s】格局建議如下：\n%s\n\n", phase, in.Archetype.Name, strategy)
	fmt.Fprintf(&b, "【哲學實踐指南】\n%s在《%s》中曾言：「%s」。", q.Author, q.Source, q.Text)
	return b.String()
}

func cloneTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
