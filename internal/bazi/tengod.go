package bazi

import (
	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/reference"
)

// TenGod is the relational role of a stem relative to the day master.
type TenGod string

const (
	Self             TenGod = "日主"
	Companion        TenGod = "比肩"
	RobWealth        TenGod = "劫財"
	EatingGod        TenGod = "食神"
	HurtingOfficer   TenGod = "傷官"
	IndirectWealth   TenGod = "偏財"
	DirectWealth     TenGod = "正財"
	SevenKillings    TenGod = "七殺"
	DirectOfficer    TenGod = "正官"
	IndirectResource TenGod = "偏印"
	DirectResource   TenGod = "正印"
)

// relations is indexed by the element distance from the day master, then by
// whether the polarity differs.
var relations = [5][2]TenGod{
	{Companion, RobWealth},
	{EatingGod, HurtingOfficer},
	{IndirectWealth, DirectWealth},
	{SevenKillings, DirectOfficer},
	{IndirectResource, DirectResource},
}

// TenGodOf returns the relation of target to the day master stem. It never
// returns Self; see Roles for self tagging.
func TenGodOf(t *reference.Tables, dayMaster, target int) TenGod {
	diff := (t.StemElement(target).Index() - t.StemElement(dayMaster).Index() + 5) % 5
	polarity := 0
	if dayMaster%2 != target%2 {
		polarity = 1
	}
	return relations[diff][polarity]
}

// Roles returns the role of each pillar stem in year, month, day, hour order.
// Any pillar whose stem equals the day stem is Self.
func Roles(t *reference.Tables, p calendar.Pillars) [4]TenGod {
	var roles [4]TenGod
	dm := p.Day.Stem
	for i, pillar := range p.All() {
		if pillar.Stem == dm {
			roles[i] = Self
			continue
		}
		roles[i] = TenGodOf(t, dm, pillar.Stem)
	}
	return roles
}

// Dominant returns the most frequent non-self role. Ties go to the role that
// appears first. ok is false when every pillar is Self.
func Dominant(roles [4]TenGod) (role TenGod, ok bool) {
	counts := make(map[TenGod]int, len(roles))
	best := 0
	for _, r := range roles {
		if r == Self {
			continue
		}
		counts[r]++
	}
	for _, r := range roles {
		if r == Self {
			continue
		}
		if c := counts[r]; c > best {
			best, role = c, r
		}
	}
	return role, best > 0
}

// FirstPresent returns the first of candidates that occurs in roles.
func FirstPresent(roles [4]TenGod, candidates ...TenGod) (TenGod, bool) {
	for _, c := range candidates {
		for _, r := range roles {
			if r == c {
				return c, true
			}
		}
	}
	return "", false
}

// Strings converts roles for rule facts.
func Strings(roles [4]TenGod) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
