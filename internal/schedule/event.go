package schedule

import "time"

// Kind identifies which notification a reminder fired.
type Kind string

const (
	// KindAdvance is the user-configured early notification, deduped by
	// the persisted last_notification_sent watermark.
	KindAdvance Kind = "advance"
	// KindRepeat is the nag loop after an advance notification, repeating
	// every reminder_interval_minutes until completion.
	KindRepeat Kind = "repeat"
	// KindExact fires at the reminder's precise due instant.
	KindExact Kind = "exact"
	// KindPreDue fires once per configured "days before due" offset.
	KindPreDue Kind = "pre_due"
	// KindOverdue marks the not-yet-due to overdue transition, raised by
	// the real-time watcher rather than the sweep.
	KindOverdue Kind = "overdue_transition"
)

// Event is one firing decision for a reminder. Events are ephemeral: they
// are handed to a transport and never persisted.
type Event struct {
	ReminderID int64     `json:"reminder_id"`
	Kind       Kind      `json:"kind"`
	FiredAt    time.Time `json:"fired_at"`

	// OffsetDays is set for pre_due events: the matched "days before due".
	OffsetDays int `json:"offset_days,omitempty"`
}
