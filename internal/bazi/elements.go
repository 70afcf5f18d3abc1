// Package bazi classifies a set of four pillars: elemental balance, relational
// roles against the day master, day-master strength and the structural archetype.
package bazi

import (
	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/reference"
)

// stemWeight is the contribution of each pillar's stem to its element.
const stemWeight = 100

// ElementBalance maps every element to its accumulated weight.
type ElementBalance map[reference.Element]int

// Balance sums stemWeight for every pillar stem plus the hidden-stem weights of
// every pillar branch. All five elements are present in the result.
func Balance(t *reference.Tables, p calendar.Pillars) ElementBalance {
	b := make(ElementBalance, len(reference.Elements))
	for _, e := range reference.Elements {
		b[e] = 0
	}
	for _, pillar := range p.All() {
		b[t.StemElement(pillar.Stem)] += stemWeight
		for _, h := range t.Branch(pillar.Branch).Hidden {
			b[t.StemElement(h.Stem)] += h.Weight
		}
	}
	return b
}

// Total is the sum over all elements.
func (b ElementBalance) Total() int {
	total := 0
	for _, v := range b {
		total += v
	}
	return total
}

// Spread is the difference between the largest and smallest element weight.
func (b ElementBalance) Spread() int {
	lo, hi := 0, 0
	for i, e := range reference.Elements {
		v := b[e]
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return hi - lo
}

// Sum adds the weights of the given elements.
func (b ElementBalance) Sum(elements ...reference.Element) int {
	total := 0
	for _, e := range elements {
		total += b[e]
	}
	return total
}
