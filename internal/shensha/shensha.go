// Package shensha attaches auxiliary markers to the branches of a chart.
package shensha

import (
	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/reference"
)

// Markers holds the markers of each pillar, in year, month, day, hour order, and
// their union for the whole chart. Both levels are free of duplicates and keep
// first-seen order.
type Markers struct {
	PerPillar [4][]string
	Chart     []string
}

// Match evaluates every marker rule against every pillar branch.
func Match(t *reference.Tables, p calendar.Pillars) Markers {
	var m Markers
	seen := make(map[string]bool)
	for i, pillar := range p.All() {
		names := ForBranch(t, pillar.Branch, p.Day.Stem, p.Year.Branch, p.Day.Branch)
		m.PerPillar[i] = names
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				m.Chart = append(m.Chart, n)
			}
		}
	}
	if m.Chart == nil {
		m.Chart = []string{}
	}
	return m
}

// ForBranch returns the markers triggered at branch. A marker reached through
// both the year and the day branch is listed once.
func ForBranch(t *reference.Tables, branch, dayStem, yearBranch, dayBranch int) []string {
	out := []string{}
	for _, rule := range t.Markers() {
		if matches(rule, branch, dayStem, yearBranch, dayBranch) {
			out = appendUnique(out, rule.Name)
		}
	}
	return out
}

func matches(rule reference.MarkerRule, branch, dayStem, yearBranch, dayBranch int) bool {
	switch rule.Kind {
	case reference.DayStemMarker:
		for _, b := range rule.ByDayStem[dayStem] {
			if b == branch {
				return true
			}
		}
	case reference.BranchMarker:
		if target, ok := rule.ByBranch[yearBranch]; ok && target == branch {
			return true
		}
		if target, ok := rule.ByBranch[dayBranch]; ok && target == branch {
			return true
		}
	}
	return false
}

func appendUnique(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}
