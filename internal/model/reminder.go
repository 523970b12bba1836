package model

import "time"

// Recurrence type strings as stored in the database.
const (
	RecurrenceDaily   = "DAILY"
	RecurrenceWeekly  = "WEEKLY"
	RecurrenceMonthly = "MONTHLY"
	RecurrenceCustom  = "CUSTOM"
)

// Reminder is one occurrence of a (possibly recurring) task reminder.
// A recurrence rollover creates a fresh row; it never mutates this one.
type Reminder struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// DueDate anchors the occurrence. ReminderTime, when set, is the exact
	// firing instant for this occurrence; otherwise DueDate is used.
	DueDate      time.Time  `json:"due_date"`
	ReminderTime *time.Time `json:"reminder_time"`

	// NotificationTime is the user-chosen advance firing instant.
	// ReminderIntervalMinutes, when set, repeats the advance notification
	// every N minutes after the first firing until completion.
	NotificationTime        *time.Time `json:"notification_time"`
	ReminderIntervalMinutes *int       `json:"reminder_interval_minutes"`

	// LastNotificationSent is the persisted dedup watermark for the
	// advance/repeat notifications. Unset on a fresh occurrence.
	LastNotificationSent *time.Time `json:"last_notification_sent"`

	IsRecurring        bool   `json:"is_recurring"`
	RecurrenceType     string `json:"recurrence_type"`
	RecurrenceInterval int    `json:"recurrence_interval"`

	// PreDueDays holds "days before due" offsets that each trigger one
	// notification on the matching calendar day.
	PreDueDays []int `json:"pre_due_days"`

	IsCompleted bool       `json:"is_completed"`
	IsSnoozed   bool       `json:"is_snoozed"`
	SnoozeUntil *time.Time `json:"snooze_until"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveCheckInstant is the instant against which overdue status is
// judged: an active snooze overrides the reminder time, which overrides
// the due date.
func (r *Reminder) EffectiveCheckInstant() time.Time {
	if r.IsSnoozed && r.SnoozeUntil != nil {
		return *r.SnoozeUntil
	}
	if r.ReminderTime != nil {
		return *r.ReminderTime
	}
	return r.DueDate
}
