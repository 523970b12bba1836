package store

import (
	"testing"
	"time"

	"github.com/calebwray/tock/internal/database"
	"github.com/calebwray/tock/internal/model"
)

func setupTestDB(t *testing.T) (*ReminderStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewReminderStore(db), NewUserStore(db)
}

func testUser(t *testing.T, users *UserStore) *model.User {
	t.Helper()
	u, err := users.Create("test@example.com", "Test", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func baseParams() ReminderParams {
	return ReminderParams{
		Title:   "pay rent",
		DueDate: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
	}
}

func TestReminderCRUD(t *testing.T) {
	rs, us := setupTestDB(t)
	u := testUser(t, us)

	notif := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	interval := 15
	p := baseParams()
	p.Description = "transfer before noon"
	p.NotificationTime = &notif
	p.ReminderIntervalMinutes = &interval
	p.PreDueDays = []int{1, 3}

	r, err := rs.Create(u.ID, p)
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	if r.Title != "pay rent" || r.UserID != u.ID {
		t.Errorf("created = %+v", r)
	}
	if r.NotificationTime == nil || !r.NotificationTime.Equal(notif) {
		t.Errorf("notification_time = %v, want %v", r.NotificationTime, notif)
	}
	if r.ReminderIntervalMinutes == nil || *r.ReminderIntervalMinutes != 15 {
		t.Errorf("reminder_interval_minutes = %v, want 15", r.ReminderIntervalMinutes)
	}
	if len(r.PreDueDays) != 2 || r.PreDueDays[0] != 1 || r.PreDueDays[1] != 3 {
		t.Errorf("pre_due_days = %v, want [1 3]", r.PreDueDays)
	}
	if r.LastNotificationSent != nil {
		t.Error("fresh reminder must have no watermark")
	}

	// Update
	p.Title = "pay rent (march)"
	updated, err := rs.Update(r.ID, u.ID, p)
	if err != nil {
		t.Fatalf("update reminder: %v", err)
	}
	if updated.Title != "pay rent (march)" {
		t.Errorf("updated title = %q", updated.Title)
	}

	// Delete
	if err := rs.Delete(r.ID, u.ID); err != nil {
		t.Fatalf("delete reminder: %v", err)
	}
	got, err := rs.GetByID(r.ID, u.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("reminder should be gone after delete")
	}
}

func TestReminderScopedToOwner(t *testing.T) {
	rs, us := setupTestDB(t)
	u := testUser(t, us)
	other, err := us.Create("other@example.com", "Other", "hash")
	if err != nil {
		t.Fatalf("create other user: %v", err)
	}

	r, err := rs.Create(u.ID, baseParams())
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}

	got, err := rs.GetByID(r.ID, other.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("another user must not see the reminder")
	}
}

func TestListEligible(t *testing.T) {
	rs, us := setupTestDB(t)
	u := testUser(t, us)

	// Bare reminder: no recurrence, no times — not eligible.
	if _, err := rs.Create(u.ID, baseParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	// With a notification time — eligible.
	notif := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	p := baseParams()
	p.Title = "with advance"
	p.NotificationTime = &notif
	withNotif, err := rs.Create(u.ID, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Recurring — eligible until completed.
	p2 := baseParams()
	p2.Title = "recurring"
	p2.IsRecurring = true
	p2.RecurrenceType = model.RecurrenceDaily
	p2.RecurrenceInterval = 1
	recurring, err := rs.Create(u.ID, p2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	eligible, err := rs.ListEligible()
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(eligible) != 2 {
		t.Fatalf("eligible = %d reminders, want 2", len(eligible))
	}

	if _, err := rs.Complete(recurring.ID, u.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	eligible, err = rs.ListEligible()
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != withNotif.ID {
		t.Errorf("after completion eligible = %+v, want only %d", eligible, withNotif.ID)
	}
}

func TestMarkNotifiedMonotonic(t *testing.T) {
	rs, us := setupTestDB(t)
	u := testUser(t, us)

	r, err := rs.Create(u.ID, baseParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t1 := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(15 * time.Minute)

	if err := rs.MarkNotified(r.ID, t2); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	// An out-of-order earlier mark must not move the watermark back.
	if err := rs.MarkNotified(r.ID, t1); err != nil {
		t.Fatalf("mark notified: %v", err)
	}

	got, err := rs.GetByID(r.ID, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastNotificationSent == nil || !got.LastNotificationSent.Equal(t2) {
		t.Errorf("watermark = %v, want %v (monotonic)", got.LastNotificationSent, t2)
	}
}

func TestSnoozeAndComplete(t *testing.T) {
	rs, us := setupTestDB(t)
	u := testUser(t, us)

	r, err := rs.Create(u.ID, baseParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	until := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	snoozed, err := rs.Snooze(r.ID, u.ID, until)
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}
	if !snoozed.IsSnoozed || snoozed.SnoozeUntil == nil || !snoozed.SnoozeUntil.Equal(until) {
		t.Errorf("snoozed = %+v", snoozed)
	}
	if !snoozed.EffectiveCheckInstant().Equal(until) {
		t.Errorf("effective instant = %v, want snooze_until", snoozed.EffectiveCheckInstant())
	}

	completed, err := rs.Complete(r.ID, u.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !completed.IsCompleted || completed.IsSnoozed || completed.SnoozeUntil != nil {
		t.Errorf("complete should clear the snooze, got %+v", completed)
	}
}

func TestCreateRollover(t *testing.T) {
	rs, us := setupTestDB(t)
	u := testUser(t, us)

	remTime := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	p := baseParams()
	p.ReminderTime = &remTime
	p.IsRecurring = true
	p.RecurrenceType = model.RecurrenceDaily
	p.RecurrenceInterval = 3
	orig, err := rs.Create(u.ID, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rs.MarkNotified(orig.ID, remTime.Add(-time.Hour)); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	orig, _ = rs.GetByID(orig.ID, u.ID)

	nextDue := orig.DueDate.AddDate(0, 0, 3)
	rolled, err := rs.CreateRollover(*orig, nextDue)
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if rolled == nil {
		t.Fatal("rollover should create a row the first time")
	}
	if !rolled.DueDate.Equal(nextDue) {
		t.Errorf("rolled due = %v, want %v", rolled.DueDate, nextDue)
	}
	if rolled.LastNotificationSent != nil {
		t.Error("rollover must reset the watermark")
	}
	if rolled.IsCompleted || rolled.IsSnoozed {
		t.Error("rollover must reset lifecycle flags")
	}
	if rolled.ReminderTime == nil || !rolled.ReminderTime.Equal(remTime.AddDate(0, 0, 3)) {
		t.Errorf("reminder_time should shift with the due date, got %v", rolled.ReminderTime)
	}

	// Same rollover again: duplicate guard.
	again, err := rs.CreateRollover(*orig, nextDue)
	if err != nil {
		t.Fatalf("rollover again: %v", err)
	}
	if again != nil {
		t.Error("duplicate rollover should be refused")
	}

	// Original row untouched.
	kept, _ := rs.GetByID(orig.ID, u.ID)
	if kept.LastNotificationSent == nil || kept.IsCompleted {
		t.Errorf("original occurrence must be left alone, got %+v", kept)
	}
}
