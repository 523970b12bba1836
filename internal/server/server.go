package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/calebwray/tock/internal/backup"
	"github.com/calebwray/tock/internal/config"
	"github.com/calebwray/tock/internal/handler"
	"github.com/calebwray/tock/internal/middleware"
	"github.com/calebwray/tock/internal/model"
	"github.com/calebwray/tock/internal/notify"
	"github.com/calebwray/tock/internal/push"
	"github.com/calebwray/tock/internal/schedule"
	"github.com/calebwray/tock/internal/store"
	ws "github.com/calebwray/tock/internal/websocket"
)

type Server struct {
	db  *sql.DB
	cfg *config.Config
	hub *ws.Hub

	authH     *handler.AuthHandler
	reminderH *handler.ReminderHandler
	pushH     *handler.PushHandler
	calendarH *handler.CalendarHandler

	sessionStore  *store.SessionStore
	reminderStore *store.ReminderStore
	pushStore     *store.PushStore

	rateLimiter   *middleware.RateLimiter
	sweeper       *schedule.Sweeper
	backupManager *backup.Manager
	watchers      *watcherRegistry
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	reminderStore := store.NewReminderStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	pushSvc := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
	fanout := push.NewFanout(pushSvc, pushStore, logger.With("component", "push"))

	emailSender := notify.NewEmailSender(cfg.Email.PostmarkToken, cfg.Email.From, cfg.Server.BaseURL)

	alerts := &alertDelivery{hub: hub, fanout: fanout, subs: pushStore, logger: logger.With("component", "alerts")}

	dispatcher := &notificationDispatcher{
		email:  emailSender,
		alerts: alerts,
		logger: logger.With("component", "dispatch"),
	}

	sweeper := schedule.NewSweeper(reminderStore, userStore, dispatcher,
		cfg.Sweep.Interval(), logger.With("component", "sweep"))

	backupMgr := backup.NewManager(cfg.Backup, cfg.Database.Path, db, backupStore,
		logger.With("component", "backup"))

	watchers := &watcherRegistry{
		reminders: reminderStore,
		alerts:    alerts,
		gate:      alerts,
		interval:  cfg.Watcher.Interval(),
		logger:    logger.With("component", "watch"),
		entries:   make(map[int64]*watcherEntry),
	}

	return &Server{
		db:            db,
		cfg:           cfg,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		reminderH:     handler.NewReminderHandler(reminderStore, hub, logger.With("component", "reminder")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, fanout, logger.With("component", "push_handler")),
		calendarH:     handler.NewCalendarHandler(reminderStore, logger.With("component", "calendar")),
		sessionStore:  sessionStore,
		reminderStore: reminderStore,
		pushStore:     pushStore,
		rateLimiter:   middleware.NewRateLimiter(),
		sweeper:       sweeper,
		backupManager: backupMgr,
		watchers:      watchers,
		logger:        logger,
	}
}

// Sweeper returns the notification sweep dispatcher for lifecycle control.
func (s *Server) Sweeper() *schedule.Sweeper {
	return s.sweeper
}

// BackupManager returns the backup manager for lifecycle control.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// StopWatchers shuts down all per-user overdue watchers.
func (s *Server) StopWatchers() {
	s.watchers.stopAll()
}

func (s *Server) Router(ctx context.Context) http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	loginLimit := middleware.RateLimitByIP(s.rateLimiter, 10, time.Minute)
	outerMux.Handle("POST /api/auth/register", loginLimit(http.HandlerFunc(s.authH.Register)))
	outerMux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(s.authH.Login)))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(ctx, protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Reminder API routes
	mux.HandleFunc("POST /api/reminders", s.reminderH.Create)
	mux.HandleFunc("GET /api/reminders", s.reminderH.List)
	mux.HandleFunc("GET /api/reminders/{id}", s.reminderH.Get)
	mux.HandleFunc("PUT /api/reminders/{id}", s.reminderH.Update)
	mux.HandleFunc("DELETE /api/reminders/{id}", s.reminderH.Delete)
	mux.HandleFunc("POST /api/reminders/{id}/complete", s.reminderH.Complete)
	mux.HandleFunc("POST /api/reminders/{id}/snooze", s.reminderH.Snooze)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// Calendar feed
	mux.HandleFunc("GET /api/calendar/feed.ics", s.calendarH.Feed)

	// WebSocket. Each open connection holds a lease on the user's overdue
	// watcher; the watcher stops when the last connection closes.
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"),
		func(userID int64) func() {
			return s.watchers.acquire(ctx, userID)
		}))
}

// alertDelivery fans one alert out to the user's open WebSocket sessions and
// registered push endpoints. It doubles as the watcher's permission gate:
// alerts are deliverable if the user has any live channel.
type alertDelivery struct {
	hub    *ws.Hub
	fanout *push.Fanout
	subs   *store.PushStore
	logger *slog.Logger
}

func (a *alertDelivery) SendAlert(userID int64, title, body, tag string) error {
	a.hub.SendToUser(userID, ws.AlertMessage(title, body, tag))
	return a.fanout.SendToUser(userID, push.Payload{
		Title: title,
		Body:  body,
		URL:   "/reminders",
		Tag:   tag,
	})
}

func (a *alertDelivery) AlertsAllowed(userID int64) bool {
	if a.hub.UserConnected(userID) {
		return true
	}
	ok, err := a.subs.HasSubscription(userID)
	if err != nil {
		a.logger.Error("check push subscription", "user_id", userID, "error", err)
		return false
	}
	return ok
}

// notificationDispatcher is the sweeper's sender: email when configured,
// always a push/WebSocket alert.
type notificationDispatcher struct {
	email  *notify.EmailSender
	alerts *alertDelivery
	logger *slog.Logger
}

func (d *notificationDispatcher) SendReminder(ctx context.Context, user *model.User, r model.Reminder, ev schedule.Event) error {
	if err := d.alerts.SendAlert(user.ID, r.Title, alertBody(ev), fmt.Sprintf("reminder-%d", r.ID)); err != nil {
		d.logger.Error("dispatch alert", "reminder_id", r.ID, "error", err)
	}

	if !d.email.Configured() {
		return nil
	}
	return d.email.SendReminder(ctx, user, r, ev)
}

func alertBody(ev schedule.Event) string {
	switch ev.Kind {
	case schedule.KindAdvance:
		return "Coming due soon"
	case schedule.KindRepeat:
		return "Still pending"
	case schedule.KindPreDue:
		return fmt.Sprintf("Due in %d day(s)", ev.OffsetDays)
	default:
		return "Due now"
	}
}

// watcherRegistry keeps one overdue watcher per user with an open WebSocket
// connection, refcounted across that user's connections.
type watcherRegistry struct {
	reminders schedule.ReminderLister
	alerts    schedule.AlertSender
	gate      schedule.PermissionGate
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[int64]*watcherEntry
}

type watcherEntry struct {
	stop func()
	refs int
}

// acquire starts (or joins) the user's watcher and returns a release func.
func (reg *watcherRegistry) acquire(ctx context.Context, userID int64) func() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.entries[userID]
	if !ok {
		w := schedule.NewWatcher(userID, reg.reminders, reg.alerts, reg.gate, reg.interval, reg.logger)
		e = &watcherEntry{stop: w.Start(ctx)}
		reg.entries[userID] = e
	}
	e.refs++

	var once sync.Once
	return func() {
		once.Do(func() { reg.release(userID) })
	}
}

func (reg *watcherRegistry) release(userID int64) {
	reg.mu.Lock()
	e, ok := reg.entries[userID]
	if ok {
		e.refs--
		if e.refs <= 0 {
			delete(reg.entries, userID)
		}
	}
	reg.mu.Unlock()

	if ok && e.refs <= 0 {
		e.stop()
	}
}

func (reg *watcherRegistry) stopAll() {
	reg.mu.Lock()
	entries := reg.entries
	reg.entries = make(map[int64]*watcherEntry)
	reg.mu.Unlock()

	for _, e := range entries {
		e.stop()
	}
}
