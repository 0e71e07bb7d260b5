// Package notify is the notification hub of a garagedesk session: the
// single owner of the in-memory notification list. Every mutation goes
// through it, is persisted to the configured store, and is fanned out to
// subscribed UI components as a fresh snapshot.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
	"github.com/garagedesk/internal/storage"
)

const persistTimeout = 5 * time.Second

// Subscriber receives the full list, newest-first, after every mutation.
// Callbacks run synchronously within the dispatch, in registration order.
type Subscriber func([]model.Notification)

type subscription struct {
	fn Subscriber
}

type Hub struct {
	mu      sync.Mutex
	list    []model.Notification
	subs    []*subscription
	store   storage.NotificationStore
	toaster Toaster
}

// NewHub builds a hub backed by store and loads the persisted list once.
// A load failure starts the session with an empty list rather than failing:
// notifications are a convenience, not critical state. toaster may be nil
// (falls back to LogToaster).
func NewHub(ctx context.Context, store storage.NotificationStore, toaster Toaster) *Hub {
	if toaster == nil {
		toaster = LogToaster{}
	}
	h := &Hub{store: store, toaster: toaster}
	list, err := store.Load(ctx)
	if err != nil {
		logger.Errorf("notify: load persisted list: %v", err)
		list = []model.Notification{}
	}
	h.list = list
	return h
}

// Close releases the underlying store.
func (h *Hub) Close() error {
	return h.store.Close()
}

func newID() string {
	// Time-based prefix plus random suffix: sortable by creation and unique
	// without a server round trip.
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// AddNotification builds the full record (id, timestamp, unread), inserts
// it at the head of the list, shows a toast, persists and fans out.
// Always succeeds; persistence is best-effort.
func (h *Hub) AddNotification(in model.NotificationInput) model.Notification {
	n := model.Notification{
		ID:        newID(),
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Timestamp: time.Now().UTC(),
		Read:      false,
		ActionURL: in.ActionURL,
		Priority:  in.Priority,
		Category:  in.Category,
	}

	h.mu.Lock()
	h.list = append([]model.Notification{n}, h.list...)
	h.persistLocked()
	subs := h.subsLocked()
	h.mu.Unlock()

	h.toaster.Show(toastFor(n))
	h.fanOut(subs)
	return n
}

// HandleServerEvent feeds a server-pushed notification payload into the
// list. Wired as the transport's notification handler; duplicates from the
// server produce duplicate entries on purpose.
func (h *Hub) HandleServerEvent(in model.NotificationInput) {
	h.AddNotification(in)
}

// Notifications returns a snapshot of the full list, newest-first.
// Callers must not mutate entries in place.
func (h *Hub) Notifications() []model.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// UnreadNotifications returns unread entries, order preserved.
func (h *Hub) UnreadNotifications() []model.Notification {
	return h.filter(func(n model.Notification) bool { return !n.Read })
}

// NotificationsByCategory returns entries of one category, order preserved.
func (h *Hub) NotificationsByCategory(c model.NotificationCategory) []model.Notification {
	return h.filter(func(n model.Notification) bool { return n.Category == c })
}

// UrgentNotifications returns unread entries with urgent priority.
func (h *Hub) UrgentNotifications() []model.Notification {
	return h.filter(func(n model.Notification) bool {
		return n.Priority == model.PriorityUrgent && !n.Read
	})
}

// UnreadCount returns the number of unread entries.
func (h *Hub) UnreadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := 0
	for i := range h.list {
		if !h.list[i].Read {
			count++
		}
	}
	return count
}

// UrgentCount returns the number of unread urgent entries.
func (h *Hub) UrgentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := 0
	for i := range h.list {
		if h.list[i].Priority == model.PriorityUrgent && !h.list[i].Read {
			count++
		}
	}
	return count
}

// MarkAsRead marks one entry read. Unknown ids are a no-op, not an error;
// read never reverts to unread.
func (h *Hub) MarkAsRead(id string) {
	h.mu.Lock()
	found := false
	for i := range h.list {
		if h.list[i].ID == id {
			h.list[i].Read = true
			found = true
			break
		}
	}
	if !found {
		h.mu.Unlock()
		return
	}
	h.persistLocked()
	subs := h.subsLocked()
	h.mu.Unlock()
	h.fanOut(subs)
}

// MarkAllAsRead marks every entry read with a single persist and fan-out.
func (h *Hub) MarkAllAsRead() {
	h.mu.Lock()
	for i := range h.list {
		h.list[i].Read = true
	}
	h.persistLocked()
	subs := h.subsLocked()
	h.mu.Unlock()
	h.fanOut(subs)
}

// DeleteNotification removes one entry. Unknown ids are a no-op.
func (h *Hub) DeleteNotification(id string) {
	h.mu.Lock()
	idx := -1
	for i := range h.list {
		if h.list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return
	}
	h.list = append(h.list[:idx], h.list[idx+1:]...)
	h.persistLocked()
	subs := h.subsLocked()
	h.mu.Unlock()
	h.fanOut(subs)
}

// ClearAllNotifications empties the list.
func (h *Hub) ClearAllNotifications() {
	h.mu.Lock()
	h.list = []model.Notification{}
	h.persistLocked()
	subs := h.subsLocked()
	h.mu.Unlock()
	h.fanOut(subs)
}

// Subscribe registers fn for every future fan-out and returns the matching
// unsubscribe function. Registration and teardown are symmetric; invocation
// order is registration order.
func (h *Hub) Subscribe(fn Subscriber) func() {
	sub := &subscription{fn: fn}
	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s == sub {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

func (h *Hub) filter(keep func(model.Notification) bool) []model.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Notification, 0, len(h.list))
	for _, n := range h.list {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func (h *Hub) snapshotLocked() []model.Notification {
	cp := make([]model.Notification, len(h.list))
	copy(cp, h.list)
	return cp
}

// persistLocked saves the full list. Failures are logged and swallowed:
// the in-memory mutation already applied is never rolled back or blocked
// by storage trouble.
func (h *Hub) persistLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.store.Save(ctx, h.list); err != nil {
		logger.Errorf("notify: persist list: %v", err)
	}
}

type fanOutBatch struct {
	subs     []*subscription
	snapshot []model.Notification
}

func (h *Hub) subsLocked() fanOutBatch {
	subs := make([]*subscription, len(h.subs))
	copy(subs, h.subs)
	return fanOutBatch{subs: subs, snapshot: h.snapshotLocked()}
}

func (h *Hub) fanOut(b fanOutBatch) {
	for _, s := range b.subs {
		// Each subscriber gets its own copy so none can mutate another's view.
		cp := make([]model.Notification, len(b.snapshot))
		copy(cp, b.snapshot)
		s.fn(cp)
	}
}
