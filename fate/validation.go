package fate

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Accepted ranges for a birth moment.
const (
	MinYear       = 1
	MaxYear       = 9999
	maxNameLength = 100
)

// Validate checks that a birth moment names someone and falls on a real Gregorian
// date. The hour label is not validated: unknown labels chart as the 子 hour.
func Validate(m BirthMoment) error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return &InvalidInputError{Field: "name", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(name); n > maxNameLength {
		return &InvalidInputError{Field: "name", Reason: fmt.Sprintf("length %d exceeds maximum of %d characters", n, maxNameLength)}
	}

	if m.Year < MinYear || m.Year > MaxYear {
		return &InvalidInputError{Field: "year", Reason: fmt.Sprintf("%d is outside %d-%d", m.Year, MinYear, MaxYear)}
	}
	if m.Month < 1 || m.Month > 12 {
		return &InvalidInputError{Field: "month", Reason: fmt.Sprintf("%d is outside 1-12", m.Month)}
	}
	if last := DaysIn(m.Year, m.Month); m.Day < 1 || m.Day > last {
		return &InvalidInputError{Field: "day", Reason: fmt.Sprintf("%04d-%02d has no day %d", m.Year, m.Month, m.Day)}
	}

	return nil
}

// DaysIn returns the number of days in a Gregorian month.
func DaysIn(year, month int) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
