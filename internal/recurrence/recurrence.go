package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a closed set of recurrence frequencies. Adding or removing a kind
// is a compile-time-checked change everywhere a Rule is matched.
type Kind int

const (
	Daily Kind = iota
	Weekly
	Monthly
	// Custom is stored by the data model but has no defined schedule.
	// Rules of this kind never expand and never roll over.
	Custom
)

// ErrUnsupported is returned when a schedule operation is asked of a kind
// that has none (currently only Custom).
var ErrUnsupported = errors.New("recurrence kind has no defined schedule")

var kindNames = map[Kind]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Custom:  "CUSTOM",
}

var kindFromName = map[string]Kind{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
	"CUSTOM":  Custom,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Rule is a recurrence rule: a kind plus an interval count
// (every N days / weeks / months).
type Rule struct {
	Kind     Kind
	Interval int
}

// Parse builds a Rule from the stored type string and interval.
// Intervals below 1 are clamped to 1.
func Parse(recurrenceType string, interval int) (Rule, error) {
	kind, ok := kindFromName[recurrenceType]
	if !ok {
		return Rule{}, fmt.Errorf("unknown recurrence type: %q", recurrenceType)
	}
	if interval < 1 {
		interval = 1
	}
	return Rule{Kind: kind, Interval: interval}, nil
}

// DaysBetween returns the whole-day count from a to b, floor semantics:
// both instants are truncated to their UTC calendar day first, so any two
// instants on the same day are zero days apart. Negative when b is earlier.
func DaysBetween(a, b time.Time) int {
	return int(startOfDay(b).Sub(startOfDay(a)) / (24 * time.Hour))
}

// SameDay reports whether two instants fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsOccurrenceDay reports whether candidate lands on an occurrence day of
// the rule anchored at due. Days before the anchor are never occurrences.
func (r Rule) IsOccurrenceDay(due, candidate time.Time) bool {
	days := DaysBetween(due, candidate)
	if days < 0 {
		return false
	}

	switch r.Kind {
	case Daily:
		return days%r.interval() == 0
	case Weekly:
		return days%(7*r.interval()) == 0
	case Monthly:
		return candidate.UTC().Day() == due.UTC().Day()
	case Custom:
		// Only the anchor day itself; Custom has no expansion.
		return days == 0
	}
	return false
}

// Next returns the due instant of the occurrence after due.
//
// Month arithmetic uses native calendar normalization: advancing Jan 31 by
// one month yields Mar 2 or Mar 3, not Feb 28. Known quirk, kept as-is.
func (r Rule) Next(due time.Time) (time.Time, error) {
	switch r.Kind {
	case Daily:
		return due.AddDate(0, 0, r.interval()), nil
	case Weekly:
		return due.AddDate(0, 0, 7*r.interval()), nil
	case Monthly:
		return due.AddDate(0, r.interval(), 0), nil
	case Custom:
		return time.Time{}, ErrUnsupported
	}
	return time.Time{}, fmt.Errorf("%w: %s", ErrUnsupported, r.Kind)
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	n := r.interval()
	switch r.Kind {
	case Daily:
		if n > 1 {
			return fmt.Sprintf("Repeats every %d days", n)
		}
		return "Repeats daily"
	case Weekly:
		if n > 1 {
			return fmt.Sprintf("Repeats every %d weeks", n)
		}
		return "Repeats weekly"
	case Monthly:
		if n > 1 {
			return fmt.Sprintf("Repeats every %d months", n)
		}
		return "Repeats monthly"
	case Custom:
		return "Custom schedule"
	}
	return ""
}

func (r Rule) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}
