package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/garagedesk/internal/model"
	"github.com/garagedesk/internal/storage/memory"
)

type captureToaster struct {
	toasts []Toast
}

func (c *captureToaster) Show(t Toast) {
	c.toasts = append(c.toasts, t)
}

type failingStore struct{}

func (failingStore) Save(ctx context.Context, list []model.Notification) error {
	return errors.New("disk full")
}
func (failingStore) Load(ctx context.Context) ([]model.Notification, error) {
	return nil, errors.New("disk full")
}
func (failingStore) Close() error { return nil }

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(context.Background(), memory.New(), &captureToaster{})
}

func TestAddNotificationNewestFirst(t *testing.T) {
	h := newTestHub(t)
	first := h.AddNotification(model.NotificationInput{Title: "first", Type: model.NotificationInfo})
	second := h.AddNotification(model.NotificationInput{Title: "second", Type: model.NotificationInfo})

	list := h.Notifications()
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %q then %q", list[0].Title, list[1].Title)
	}
	if list[0].Read {
		t.Fatalf("new notification must start unread")
	}
	if list[0].ID == "" || list[0].Timestamp.IsZero() {
		t.Fatalf("hub must assign id and timestamp")
	}
	if first.ID == second.ID {
		t.Fatalf("ids must be unique, both are %q", first.ID)
	}
}

func TestMarkAsRead(t *testing.T) {
	h := newTestHub(t)
	n := h.AddNotification(model.NotificationInput{Title: "a"})

	h.MarkAsRead(n.ID)
	if got := h.UnreadCount(); got != 0 {
		t.Fatalf("unread count after mark = %d, want 0", got)
	}

	// Marking again and marking unknown ids are no-ops.
	h.MarkAsRead(n.ID)
	h.MarkAsRead("no-such-id")
	if got := h.Notifications(); !got[0].Read {
		t.Fatalf("read flag must not revert")
	}
}

func TestMarkAllAsRead(t *testing.T) {
	h := newTestHub(t)
	for i := 0; i < 3; i++ {
		h.AddNotification(model.NotificationInput{Title: "n"})
	}
	var calls int
	h.Subscribe(func([]model.Notification) { calls++ })

	h.MarkAllAsRead()
	if got := h.UnreadCount(); got != 0 {
		t.Fatalf("unread count = %d, want 0", got)
	}
	if calls != 1 {
		t.Fatalf("MarkAllAsRead fanned out %d times, want 1", calls)
	}
}

func TestDeleteNotification(t *testing.T) {
	h := newTestHub(t)
	a := h.AddNotification(model.NotificationInput{Title: "a"})
	b := h.AddNotification(model.NotificationInput{Title: "b"})

	h.DeleteNotification(a.ID)
	list := h.Notifications()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("expected only %q to remain, got %d entries", b.Title, len(list))
	}

	h.DeleteNotification("no-such-id")
	if got := len(h.Notifications()); got != 1 {
		t.Fatalf("deleting unknown id changed the list, len=%d", got)
	}
}

func TestClearAllNotifications(t *testing.T) {
	store := memory.New()
	h := NewHub(context.Background(), store, &captureToaster{})
	h.AddNotification(model.NotificationInput{Title: "a"})
	h.AddNotification(model.NotificationInput{Title: "b"})

	h.ClearAllNotifications()
	if got := len(h.Notifications()); got != 0 {
		t.Fatalf("list not empty after clear, len=%d", got)
	}

	// The cleared state is what a fresh hub loads.
	h2 := NewHub(context.Background(), store, &captureToaster{})
	if got := len(h2.Notifications()); got != 0 {
		t.Fatalf("store still holds %d entries after clear", got)
	}
}

func TestFilters(t *testing.T) {
	h := newTestHub(t)
	appr := h.AddNotification(model.NotificationInput{
		Title: "approve", Category: model.CategoryApproval, Priority: model.PriorityHigh,
	})
	h.AddNotification(model.NotificationInput{
		Title: "task", Category: model.CategoryFollowUp, Priority: model.PriorityMedium,
	})
	urgent := h.AddNotification(model.NotificationInput{
		Title: "pickup", Category: model.CategoryReminder, Priority: model.PriorityUrgent,
	})

	if got := h.NotificationsByCategory(model.CategoryApproval); len(got) != 1 || got[0].ID != appr.ID {
		t.Fatalf("category filter returned %d entries", len(got))
	}
	if got := h.UrgentNotifications(); len(got) != 1 || got[0].ID != urgent.ID {
		t.Fatalf("urgent filter returned %d entries", len(got))
	}
	if got := h.UrgentCount(); got != 1 {
		t.Fatalf("urgent count = %d, want 1", got)
	}

	// Reading the urgent entry removes it from the urgent view.
	h.MarkAsRead(urgent.ID)
	if got := h.UrgentNotifications(); len(got) != 0 {
		t.Fatalf("read urgent entry still in urgent view")
	}
	if got := h.UnreadNotifications(); len(got) != 2 {
		t.Fatalf("unread filter returned %d entries, want 2", len(got))
	}
}

func TestSubscribeFanOut(t *testing.T) {
	h := newTestHub(t)

	var got1, got2 [][]model.Notification
	unsub1 := h.Subscribe(func(list []model.Notification) { got1 = append(got1, list) })
	h.Subscribe(func(list []model.Notification) { got2 = append(got2, list) })

	h.AddNotification(model.NotificationInput{Title: "a"})
	if len(got1) != 1 || len(got2) != 1 {
		t.Fatalf("fan-out counts: %d and %d, want 1 and 1", len(got1), len(got2))
	}
	if len(got1[0]) != 1 || got1[0][0].Title != "a" {
		t.Fatalf("subscriber got wrong snapshot: %+v", got1[0])
	}

	// Snapshots are independent copies.
	got1[0][0].Title = "mutated"
	if got2[0][0].Title != "a" {
		t.Fatalf("mutating one subscriber's snapshot leaked into another's")
	}
	if h.Notifications()[0].Title != "a" {
		t.Fatalf("mutating a snapshot leaked into the hub list")
	}

	unsub1()
	h.AddNotification(model.NotificationInput{Title: "b"})
	if len(got1) != 1 {
		t.Fatalf("unsubscribed callback still invoked")
	}
	if len(got2) != 2 {
		t.Fatalf("remaining subscriber missed a fan-out, got %d", len(got2))
	}
}

func TestSubscriberMutationDuringDispatch(t *testing.T) {
	h := newTestHub(t)

	// A subscriber that reacts by mutating the hub must not deadlock.
	marked := false
	h.Subscribe(func(list []model.Notification) {
		if !marked && len(list) == 1 {
			marked = true
			h.MarkAsRead(list[0].ID)
		}
	})

	h.AddNotification(model.NotificationInput{Title: "a"})
	if got := h.UnreadCount(); got != 0 {
		t.Fatalf("reentrant MarkAsRead did not apply, unread=%d", got)
	}
}

func TestPersistAcrossHubs(t *testing.T) {
	store := memory.New()
	h := NewHub(context.Background(), store, &captureToaster{})
	n := h.AddNotification(model.NotificationInput{Title: "persisted"})
	h.MarkAsRead(n.ID)

	h2 := NewHub(context.Background(), store, &captureToaster{})
	list := h2.Notifications()
	if len(list) != 1 || list[0].ID != n.ID || !list[0].Read {
		t.Fatalf("reloaded list mismatch: %+v", list)
	}
}

func TestFailingStoreDoesNotBlockMutations(t *testing.T) {
	h := NewHub(context.Background(), failingStore{}, &captureToaster{})
	if got := len(h.Notifications()); got != 0 {
		t.Fatalf("load failure must yield empty list, got %d", got)
	}

	n := h.AddNotification(model.NotificationInput{Title: "a"})
	if got := len(h.Notifications()); got != 1 {
		t.Fatalf("add lost to store failure, len=%d", got)
	}
	h.MarkAsRead(n.ID)
	if !h.Notifications()[0].Read {
		t.Fatalf("mark lost to store failure")
	}
}

func TestToastStyles(t *testing.T) {
	toaster := &captureToaster{}
	h := NewHub(context.Background(), memory.New(), toaster)

	h.AddNotification(model.NotificationInput{Type: model.NotificationSuccess, Title: "ok"})
	h.AddNotification(model.NotificationInput{Type: model.NotificationWarning, Title: "hm"})
	h.AddNotification(model.NotificationInput{Type: model.NotificationUrgent, Title: "now"})

	if len(toaster.toasts) != 3 {
		t.Fatalf("expected 3 toasts, got %d", len(toaster.toasts))
	}
	if toaster.toasts[0].Style != ToastSuccess {
		t.Fatalf("success toast style = %s", toaster.toasts[0].Style)
	}
	if toaster.toasts[1].Style != ToastWarning || toaster.toasts[1].Icon != "warning" {
		t.Fatalf("warning toast = %+v", toaster.toasts[1])
	}
	if toaster.toasts[2].Style != ToastAlert || toaster.toasts[2].Duration != urgentToastDuration {
		t.Fatalf("urgent toast = %+v", toaster.toasts[2])
	}
}

func TestApprovalPresetEscalation(t *testing.T) {
	h := newTestHub(t)

	cheap := h.NotifyApprovalRequest("Estimate", "brake pads", "/orders/1", 350)
	if cheap.Priority != model.PriorityHigh || cheap.Category != model.CategoryApproval {
		t.Fatalf("cheap approval = %s/%s", cheap.Priority, cheap.Category)
	}

	costly := h.NotifyApprovalRequest("Estimate", "engine rebuild", "/orders/2", 4800)
	if costly.Priority != model.PriorityUrgent {
		t.Fatalf("costly approval priority = %s, want urgent", costly.Priority)
	}

	followUp := h.NotifyFollowUpAssigned("Call back", "customer waiting", "/tasks/7")
	if followUp.Category != model.CategoryFollowUp || followUp.Priority != model.PriorityMedium {
		t.Fatalf("follow-up = %s/%s", followUp.Priority, followUp.Category)
	}

	reminder := h.NotifyUrgentReminder("Pickup overdue", "bay 3", "/vehicles/9")
	if reminder.Type != model.NotificationUrgent || reminder.Category != model.CategoryReminder {
		t.Fatalf("reminder = %s/%s", reminder.Type, reminder.Category)
	}
}
