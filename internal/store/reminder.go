package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calebwray/tock/internal/model"
)

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

const reminderCols = `id, user_id, title, description, due_date, reminder_time, notification_time,
	reminder_interval_minutes, last_notification_sent, is_recurring, recurrence_type,
	recurrence_interval, pre_due_days, is_completed, is_snoozed, snooze_until, created_at, updated_at`

// ReminderParams carries the user-editable fields for create and update.
type ReminderParams struct {
	Title                   string
	Description             string
	DueDate                 time.Time
	ReminderTime            *time.Time
	NotificationTime        *time.Time
	ReminderIntervalMinutes *int
	IsRecurring             bool
	RecurrenceType          string
	RecurrenceInterval      int
	PreDueDays              []int
}

func scanReminder(scanner interface{ Scan(...any) error }) (*model.Reminder, error) {
	var r model.Reminder
	var reminderTime, notificationTime, lastSent, snoozeUntil sql.NullTime
	var intervalMinutes sql.NullInt64
	var isRecurring, isCompleted, isSnoozed int
	var preDueDays string

	err := scanner.Scan(
		&r.ID, &r.UserID, &r.Title, &r.Description, &r.DueDate,
		&reminderTime, &notificationTime, &intervalMinutes, &lastSent,
		&isRecurring, &r.RecurrenceType, &r.RecurrenceInterval,
		&preDueDays, &isCompleted, &isSnoozed, &snoozeUntil,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reminderTime.Valid {
		r.ReminderTime = &reminderTime.Time
	}
	if notificationTime.Valid {
		r.NotificationTime = &notificationTime.Time
	}
	if intervalMinutes.Valid {
		n := int(intervalMinutes.Int64)
		r.ReminderIntervalMinutes = &n
	}
	if lastSent.Valid {
		r.LastNotificationSent = &lastSent.Time
	}
	if snoozeUntil.Valid {
		r.SnoozeUntil = &snoozeUntil.Time
	}
	r.IsRecurring = isRecurring != 0
	r.IsCompleted = isCompleted != 0
	r.IsSnoozed = isSnoozed != 0
	r.PreDueDays = decodePreDueDays(preDueDays)

	return &r, nil
}

func (s *ReminderStore) Create(userID int64, p ReminderParams) (*model.Reminder, error) {
	result, err := s.db.Exec(
		`INSERT INTO reminders (user_id, title, description, due_date, reminder_time, notification_time,
			reminder_interval_minutes, is_recurring, recurrence_type, recurrence_interval, pre_due_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, p.Title, p.Description, p.DueDate.UTC(),
		nullTime(p.ReminderTime), nullTime(p.NotificationTime), nullInt(p.ReminderIntervalMinutes),
		boolInt(p.IsRecurring), p.RecurrenceType, p.RecurrenceInterval, encodePreDueDays(p.PreDueDays),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, userID)
}

func (s *ReminderStore) GetByID(id, userID int64) (*model.Reminder, error) {
	row := s.db.QueryRow(`SELECT `+reminderCols+` FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderStore) ListByUser(userID int64) ([]model.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT `+reminderCols+` FROM reminders WHERE user_id = ? ORDER BY due_date ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListOpenByUser returns the user's not-completed reminders, the set the
// overdue watcher polls.
func (s *ReminderStore) ListOpenByUser(userID int64) ([]model.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT `+reminderCols+` FROM reminders WHERE user_id = ? AND is_completed = 0 ORDER BY due_date ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list open reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListEligible returns every reminder the sweep should evaluate: not
// completed, with at least one of a recurrence rule, a reminder time, or an
// advance notification time.
func (s *ReminderStore) ListEligible() ([]model.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT ` + reminderCols + ` FROM reminders
		 WHERE is_completed = 0
		   AND (is_recurring = 1 OR reminder_time IS NOT NULL OR notification_time IS NOT NULL)
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list eligible reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (s *ReminderStore) Update(id, userID int64, p ReminderParams) (*model.Reminder, error) {
	_, err := s.db.Exec(
		`UPDATE reminders
		 SET title = ?, description = ?, due_date = ?, reminder_time = ?, notification_time = ?,
			reminder_interval_minutes = ?, is_recurring = ?, recurrence_type = ?, recurrence_interval = ?,
			pre_due_days = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		p.Title, p.Description, p.DueDate.UTC(),
		nullTime(p.ReminderTime), nullTime(p.NotificationTime), nullInt(p.ReminderIntervalMinutes),
		boolInt(p.IsRecurring), p.RecurrenceType, p.RecurrenceInterval, encodePreDueDays(p.PreDueDays),
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	return s.GetByID(id, userID)
}

func (s *ReminderStore) Delete(id, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

// Complete marks the reminder done and clears any snooze.
func (s *ReminderStore) Complete(id, userID int64) (*model.Reminder, error) {
	_, err := s.db.Exec(
		`UPDATE reminders
		 SET is_completed = 1, is_snoozed = 0, snooze_until = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("complete reminder: %w", err)
	}
	return s.GetByID(id, userID)
}

// Snooze defers the reminder's effective firing instant to until.
func (s *ReminderStore) Snooze(id, userID int64, until time.Time) (*model.Reminder, error) {
	_, err := s.db.Exec(
		`UPDATE reminders
		 SET is_snoozed = 1, snooze_until = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		until.UTC(), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("snooze reminder: %w", err)
	}
	return s.GetByID(id, userID)
}

// MarkNotified persists the advance/repeat watermark. The guard keeps the
// watermark monotonically non-decreasing even if ticks land out of order.
func (s *ReminderStore) MarkNotified(id int64, sentAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE reminders
		 SET last_notification_sent = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND (last_notification_sent IS NULL OR last_notification_sent <= ?)`,
		sentAt.UTC(), id, sentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// CreateRollover inserts the next occurrence of a recurring reminder: a
// copy with the new due date and all dedup/snooze/lifecycle fields reset.
// Returns (nil, nil) without inserting when an open copy with the same
// title and due date already exists, so repeated sweep ticks on the
// occurrence day stay idempotent.
func (s *ReminderStore) CreateRollover(r model.Reminder, nextDue time.Time) (*model.Reminder, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM reminders
		 WHERE user_id = ? AND title = ? AND due_date = ? AND is_completed = 0`,
		r.UserID, r.Title, nextDue.UTC(),
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("check rollover copy: %w", err)
	}
	if existing > 0 {
		return nil, nil
	}

	// Reminder and notification instants shift by the same delta as the
	// due date so the new occurrence keeps its time-of-day offsets.
	delta := nextDue.Sub(r.DueDate)
	result, err := tx.Exec(
		`INSERT INTO reminders (user_id, title, description, due_date, reminder_time, notification_time,
			reminder_interval_minutes, is_recurring, recurrence_type, recurrence_interval, pre_due_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Title, r.Description, nextDue.UTC(),
		nullTime(shiftTime(r.ReminderTime, delta)), nullTime(shiftTime(r.NotificationTime, delta)),
		nullInt(r.ReminderIntervalMinutes),
		boolInt(r.IsRecurring), r.RecurrenceType, r.RecurrenceInterval, encodePreDueDays(r.PreDueDays),
	)
	if err != nil {
		return nil, fmt.Errorf("insert rollover: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rollover: %w", err)
	}
	return s.GetByID(id, r.UserID)
}

func collectReminders(rows *sql.Rows) ([]model.Reminder, error) {
	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// --- column helpers ---

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func shiftTime(t *time.Time, delta time.Duration) *time.Time {
	if t == nil {
		return nil
	}
	shifted := t.Add(delta)
	return &shifted
}

// pre_due_days is stored as a comma-separated list ("1,3,7").

func encodePreDueDays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func decodePreDueDays(s string) []int {
	if s == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		days = append(days, n)
	}
	return days
}
