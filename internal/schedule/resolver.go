package schedule

import (
	"time"

	"github.com/calebwray/tock/internal/model"
	"github.com/calebwray/tock/internal/recurrence"
)

// Evaluate decides which notifications a reminder fires at the given
// instant. It is pure: the same (reminder, now) pair always yields the same
// events, and nothing is mutated. The sweeper owns all side effects
// (sending, watermark persistence, rollover).
//
// A reminder may fire more than one kind in the same tick.
func Evaluate(r model.Reminder, now time.Time) []Event {
	if r.IsCompleted {
		return nil
	}

	// Occurrence gate for recurring reminders: today must be the anchor due
	// day or land on the periodic expansion. Non-recurring reminders pass
	// unconditionally. An unparseable rule closes the gate; the sweeper
	// logs that state separately.
	onOccurrenceDay := true
	if r.IsRecurring {
		rule, err := recurrence.Parse(r.RecurrenceType, r.RecurrenceInterval)
		if err != nil {
			onOccurrenceDay = false
		} else {
			onOccurrenceDay = recurrence.SameDay(r.DueDate, now) ||
				rule.IsOccurrenceDay(r.DueDate, now)
		}
	}

	var events []Event

	if target, ok := advanceTarget(r); ok && r.LastNotificationSent == nil && onOccurrenceDay {
		if WithinTolerance(target, now, SweepTolerance) {
			events = append(events, Event{ReminderID: r.ID, Kind: KindAdvance, FiredAt: now})
		}
	}

	// Repeat applies to non-recurring reminders only; the combination of a
	// repeat interval with a recurring rule is unsupported.
	if !r.IsRecurring && r.LastNotificationSent != nil && r.ReminderIntervalMinutes != nil {
		interval := time.Duration(*r.ReminderIntervalMinutes) * time.Minute
		if interval > 0 && now.Sub(*r.LastNotificationSent) >= interval {
			events = append(events, Event{ReminderID: r.ID, Kind: KindRepeat, FiredAt: now})
		}
	}

	if onOccurrenceDay {
		target := r.DueDate
		if r.ReminderTime != nil {
			target = *r.ReminderTime
		}
		// One-sided window: the exact kind fires once the instant has
		// passed, never early. There is no persisted watermark for it;
		// the narrow window is the only duplicate suppression.
		if !now.Before(target) && now.Sub(target) <= ExactTolerance {
			events = append(events, Event{ReminderID: r.ID, Kind: KindExact, FiredAt: now})
		}
	}

	for _, offset := range r.PreDueDays {
		if offset > 0 && recurrence.DaysBetween(now, r.DueDate) == offset {
			events = append(events, Event{ReminderID: r.ID, Kind: KindPreDue, FiredAt: now, OffsetDays: offset})
		}
	}

	return events
}

// advanceTarget resolves the advance notification instant: the explicit
// notification time when set, else one hour before the reminder time. A
// reminder with neither has no advance kind.
func advanceTarget(r model.Reminder) (time.Time, bool) {
	if r.NotificationTime != nil {
		return *r.NotificationTime, true
	}
	if r.ReminderTime != nil {
		return r.ReminderTime.Add(-time.Hour), true
	}
	return time.Time{}, false
}
