package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/calebwray/tock/internal/model"
	"github.com/calebwray/tock/internal/recurrence"
)

// ReminderStore is the persistence surface the sweeper needs.
type ReminderStore interface {
	ListEligible() ([]model.Reminder, error)
	MarkNotified(id int64, sentAt time.Time) error
	CreateRollover(r model.Reminder, nextDue time.Time) (*model.Reminder, error)
}

// UserStore resolves reminder owners for the send call.
type UserStore interface {
	GetByID(id int64) (*model.User, error)
}

// ReminderSender delivers one fired notification. Implementations own their
// transport timeouts; the sweeper only isolates and logs failures.
type ReminderSender interface {
	SendReminder(ctx context.Context, user *model.User, r model.Reminder, ev Event) error
}

// Sweeper is the server-side dispatcher: one full pass over all eligible
// reminders per tick, sequential, with per-reminder failure isolation.
type Sweeper struct {
	mu        sync.RWMutex
	reminders ReminderStore
	users     UserStore
	sender    ReminderSender
	interval  time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSweeper creates a sweep dispatcher with the given tick period.
func NewSweeper(reminders ReminderStore, users UserStore, sender ReminderSender, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		reminders: reminders,
		users:     users,
		sender:    sender,
		interval:  interval,
		logger:    logger,
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx, time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the sweeper. Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Sweeper) tick(ctx context.Context, now time.Time) {
	reminders, err := s.reminders.ListEligible()
	if err != nil {
		s.logger.Error("sweep: list eligible reminders", "error", err)
		return
	}

	for _, r := range reminders {
		s.process(ctx, r, now)
	}
}

// process evaluates one reminder and performs the side effects its events
// call for. A failure on one reminder never aborts the rest of the tick.
func (s *Sweeper) process(ctx context.Context, r model.Reminder, now time.Time) {
	s.flagMalformed(r)

	events := Evaluate(r, now)
	if len(events) > 0 {
		user, err := s.users.GetByID(r.UserID)
		if err != nil || user == nil {
			s.logger.Error("sweep: resolve reminder owner", "reminder_id", r.ID, "user_id", r.UserID, "error", err)
			return
		}

		for _, ev := range events {
			if err := s.sender.SendReminder(ctx, user, r, ev); err != nil {
				// Watermark stays put so the next tick retries.
				s.logger.Error("sweep: send notification", "reminder_id", r.ID, "kind", ev.Kind, "error", err)
				continue
			}
			s.logger.Info("sweep: notification sent", "reminder_id", r.ID, "kind", ev.Kind)

			// Mark sent only after a successful send, and only for the
			// watermark-deduped kinds.
			if ev.Kind == KindAdvance || ev.Kind == KindRepeat {
				if err := s.reminders.MarkNotified(r.ID, ev.FiredAt); err != nil {
					s.logger.Error("sweep: persist watermark", "reminder_id", r.ID, "error", err)
				}
			}
		}
	}

	s.rollover(r, now)
}

// rollover creates the next occurrence row for a recurring reminder whose
// anchor due day is today. The original row is left untouched; its
// lifecycle ends when the user completes it.
func (s *Sweeper) rollover(r model.Reminder, now time.Time) {
	if !r.IsRecurring || !recurrence.SameDay(r.DueDate, now) {
		return
	}

	rule, err := recurrence.Parse(r.RecurrenceType, r.RecurrenceInterval)
	if err != nil {
		return // already flagged
	}
	if rule.Kind == recurrence.Custom {
		s.logger.Warn("sweep: custom recurrence has no schedule, skipping rollover", "reminder_id", r.ID)
		return
	}

	next, err := rule.Next(r.DueDate)
	if err != nil {
		s.logger.Warn("sweep: compute next occurrence", "reminder_id", r.ID, "error", err)
		return
	}

	created, err := s.reminders.CreateRollover(r, next)
	if err != nil {
		s.logger.Error("sweep: create rollover", "reminder_id", r.ID, "error", err)
		return
	}
	if created != nil {
		s.logger.Info("sweep: rolled over recurring reminder", "reminder_id", r.ID, "new_id", created.ID, "due", next)
	}
}

// flagMalformed surfaces reminder states the engine deliberately does not
// handle, so they are visible rather than silently skipped.
func (s *Sweeper) flagMalformed(r model.Reminder) {
	if !r.IsRecurring {
		return
	}
	if _, err := recurrence.Parse(r.RecurrenceType, r.RecurrenceInterval); err != nil {
		s.logger.Warn("sweep: unparseable recurrence, reminder skipped", "reminder_id", r.ID, "type", r.RecurrenceType)
	}
	if r.ReminderIntervalMinutes != nil {
		s.logger.Warn("sweep: repeat interval on recurring reminder is unsupported", "reminder_id", r.ID)
	}
}
