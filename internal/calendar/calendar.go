// Package calendar maps Gregorian birth dates onto the four stem/branch pillars.
//
// The arithmetic is a fixed-cycle approximation of the sexagenary calendar: it does
// not track solar terms or the lunar new year, and the epoch constants are kept as-is
// so that existing charts reproduce exactly.
package calendar

import "unicode/utf8"

// Stems are the ten heavenly stems in cycle order.
var Stems = [10]string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}

// Branches are the twelve earthly branches in cycle order.
var Branches = [12]string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

// UnknownHour is the label used when the birth hour is not known.
const UnknownHour = "不詳"

// HourLabels are the thirteen accepted hour-bucket labels.
var HourLabels = [13]string{
	"子時 (23:00-01:00)", "丑時 (01:00-03:00)", "寅時 (03:00-05:00)",
	"卯時 (05:00-07:00)", "辰時 (07:00-09:00)", "巳時 (09:00-11:00)",
	"午時 (11:00-13:00)", "未時 (13:00-15:00)", "申時 (15:00-17:00)",
	"酉時 (17:00-19:00)", "戌時 (19:00-21:00)", "亥時 (21:00-23:00)",
	UnknownHour,
}

const (
	// epochJDN is the Julian Day Number of 1900-01-01, the day-cycle origin.
	epochJDN = 2415021
	// epochYear anchors the year cycle.
	epochYear = 1900
	// yearStemShift aligns (year-1900) with the stem cycle: 1900 is 庚.
	yearStemShift = 6
)

// Pillar is one stem/branch pair, stored as cycle indices.
type Pillar struct {
	Stem   int `json:"stem"`
	Branch int `json:"branch"`
}

// StemSymbol returns the stem glyph.
func (p Pillar) StemSymbol() string { return Stems[p.Stem] }

// BranchSymbol returns the branch glyph.
func (p Pillar) BranchSymbol() string { return Branches[p.Branch] }

// String renders the pillar as its two glyphs, e.g. "甲子".
func (p Pillar) String() string { return p.StemSymbol() + p.BranchSymbol() }

// Pillars is the full calendar conversion of one birth moment. Later stages read
// the month and hour indices from here instead of deriving them again.
type Pillars struct {
	Year  Pillar `json:"year"`
	Month Pillar `json:"month"`
	Day   Pillar `json:"day"`
	Hour  Pillar `json:"hour"`

	// DayOffset is the number of days since 1900-01-01.
	DayOffset int `json:"dayOffset"`
	// HourMapped is false when the hour label fell back to 子.
	HourMapped bool `json:"hourMapped"`
}

// All returns the pillars in year, month, day, hour order.
func (p Pillars) All() [4]Pillar {
	return [4]Pillar{p.Year, p.Month, p.Day, p.Hour}
}

// MonthIndex is the branch index of the month pillar.
func (p Pillars) MonthIndex() int { return p.Month.Branch }

// HourIndex is the branch index of the hour pillar.
func (p Pillars) HourIndex() int { return p.Hour.Branch }

// Convert computes the four pillars. The date must already be a valid Gregorian date;
// callers validate before converting.
func Convert(year, month, day int, hourLabel string) Pillars {
	yearOffset := year - epochYear
	dayOffset := DayOffset(year, month, day)
	hourIdx, mapped := HourBranch(hourLabel)

	return Pillars{
		Year: Pillar{
			Stem:   mod(yearOffset+yearStemShift, 10),
			Branch: mod(yearOffset, 12),
		},
		Month: Pillar{
			Stem:   mod(yearOffset*12+month+1, 10),
			Branch: mod(month+1, 12),
		},
		Day: Pillar{
			Stem:   mod(dayOffset, 10),
			Branch: mod(dayOffset, 12),
		},
		Hour: Pillar{
			Stem:   mod(mod(dayOffset, 5)*2+hourIdx, 10),
			Branch: hourIdx,
		},
		DayOffset:  dayOffset,
		HourMapped: mapped,
	}
}

// JulianDayNumber returns the civil Julian Day Number of a proleptic Gregorian date.
func JulianDayNumber(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

// DayOffset returns the number of days between 1900-01-01 and the given date.
// Dates before the epoch yield negative offsets.
func DayOffset(year, month, day int) int {
	return JulianDayNumber(year, month, day) - epochJDN
}

// HourBranch matches the first character of an hour label against the branch glyphs.
// The label is not trimmed. Labels that do not start with a branch, including
// UnknownHour, the empty string and labels with leading spaces, resolve to
// branch 0 (子) with mapped=false.
func HourBranch(label string) (idx int, mapped bool) {
	r, size := utf8.DecodeRuneInString(label)
	if size == 0 || r == utf8.RuneError {
		return 0, false
	}
	first := label[:size]
	for i, b := range Branches {
		if b == first {
			return i, true
		}
	}
	return 0, false
}

// StemIndex returns the cycle index of a stem glyph.
func StemIndex(symbol string) (int, bool) {
	for i, s := range Stems {
		if s == symbol {
			return i, true
		}
	}
	return 0, false
}

// BranchIndex returns the cycle index of a branch glyph.
func BranchIndex(symbol string) (int, bool) {
	for i, b := range Branches {
		if b == symbol {
			return i, true
		}
	}
	return 0, false
}

// mod is a floor modulo so negative offsets stay inside [0, n).
func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
