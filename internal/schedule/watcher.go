package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calebwray/tock/internal/model"
)

// ReminderLister loads the open (not completed) reminders for one user.
type ReminderLister interface {
	ListOpenByUser(userID int64) ([]model.Reminder, error)
}

// AlertSender delivers a local alert to the user's active sessions. The tag
// lets the transport visually replace a resent alert instead of stacking.
type AlertSender interface {
	SendAlert(userID int64, title, body, tag string) error
}

// PermissionGate answers whether the user has granted alert delivery.
// Consulted once, before the watcher's first send attempt.
type PermissionGate interface {
	AlertsAllowed(userID int64) bool
}

// Watcher detects the edge at which a reminder transitions from not-yet-due
// to overdue and raises a local alert exactly once per transition. It runs
// on a much finer period than the sweeper, carries its own dedup set, and
// owns all of its state: no package-level timers or globals.
//
// The dedup set lives in memory only. A restart may re-notify once for a
// reminder that went overdue while the watcher was down; accepted tradeoff.
type Watcher struct {
	userID    int64
	reminders ReminderLister
	alerts    AlertSender
	gate      PermissionGate
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Tick state. A single goroutine owns it; ticks never overlap.
	lastCheck   time.Time
	notified    map[int64]struct{}
	permChecked bool
	permGranted bool
}

// NewWatcher creates a watcher for one user's reminders.
func NewWatcher(userID int64, reminders ReminderLister, alerts AlertSender, gate PermissionGate, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		userID:    userID,
		reminders: reminders,
		alerts:    alerts,
		gate:      gate,
		interval:  interval,
		logger:    logger,
		lastCheck: time.Now().UTC(),
		notified:  make(map[int64]struct{}),
	}
}

// Start begins the watch loop and returns an idempotent stop function.
// Calling Start while the watcher is already running is a no-op that
// returns a handle to the existing run.
func (w *Watcher) Start(ctx context.Context) (stop func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return w.stopFunc()
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true
	w.lastCheck = time.Now().UTC()

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				w.mu.Lock()
				w.running = false
				w.mu.Unlock()
				return
			case <-ticker.C:
				w.tick(time.Now().UTC())
			}
		}
	}(w.done)

	return w.stopFunc()
}

// stopFunc captures the current run's cancel/done pair. Callers may invoke
// the returned function any number of times.
func (w *Watcher) stopFunc() func() {
	cancel := w.cancel
	done := w.done
	var once sync.Once
	return func() {
		once.Do(func() {
			if cancel != nil {
				cancel()
			}
			if done != nil {
				<-done
			}
		})
	}
}

// tick runs one edge-detection pass. lastCheck advances at the end of every
// tick regardless of outcome, so edges are never evaluated against a stale
// baseline.
func (w *Watcher) tick(now time.Time) {
	defer func() { w.lastCheck = now }()

	reminders, err := w.reminders.ListOpenByUser(w.userID)
	if err != nil {
		w.logger.Error("watch: list reminders", "user_id", w.userID, "error", err)
		return
	}

	for _, r := range reminders {
		if r.IsCompleted {
			// Free the id so a recycled reminder can notify again.
			delete(w.notified, r.ID)
			continue
		}

		effective := r.EffectiveCheckInstant()
		wasOverdue := !effective.After(w.lastCheck)
		isOverdueNow := !effective.After(now)
		if wasOverdue || !isOverdueNow {
			continue
		}
		if _, seen := w.notified[r.ID]; seen {
			continue
		}

		if !w.permitted() {
			// Record the edge anyway so a later grant does not replay
			// transitions that already happened.
			w.notified[r.ID] = struct{}{}
			continue
		}

		// One attempt per transition: the edge is consumed whether or not
		// delivery succeeds, so a flaky transport cannot stack alerts.
		w.notified[r.ID] = struct{}{}

		tag := fmt.Sprintf("reminder-%d", r.ID)
		if err := w.alerts.SendAlert(w.userID, r.Title, "Reminder is now due", tag); err != nil {
			w.logger.Error("watch: send alert", "reminder_id", r.ID, "error", err)
			continue
		}
		w.logger.Info("watch: overdue alert sent", "reminder_id", r.ID)
	}
}

func (w *Watcher) permitted() bool {
	if !w.permChecked {
		w.permChecked = true
		w.permGranted = w.gate.AlertsAllowed(w.userID)
		if !w.permGranted {
			w.logger.Warn("watch: alert permission denied", "user_id", w.userID)
		}
	}
	return w.permGranted
}
