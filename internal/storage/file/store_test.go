package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garagedesk/internal/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	s := New(path)
	ctx := context.Background()

	in := []model.Notification{
		{
			ID:        "2-bbbb",
			Type:      model.NotificationUrgent,
			Title:     "Pickup overdue",
			Timestamp: time.Date(2026, 3, 10, 17, 45, 0, 0, time.UTC),
			Priority:  model.PriorityUrgent,
			Category:  model.CategoryReminder,
		},
		{
			ID:        "1-aaaa",
			Type:      model.NotificationApproval,
			Title:     "Estimate ready",
			Message:   "brake pads and rotors",
			Timestamp: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			Read:      true,
			ActionURL: "/orders/42",
			Priority:  model.PriorityHigh,
			Category:  model.CategoryApproval,
		},
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(out))
	}
	if out[0].ID != "2-bbbb" || out[1].ID != "1-aaaa" {
		t.Fatalf("order not preserved: %s then %s", out[0].ID, out[1].ID)
	}
	if !out[1].Read || out[1].ActionURL != "/orders/42" {
		t.Fatalf("fields lost: %+v", out[1])
	}
	if !out[0].Timestamp.Equal(in[0].Timestamp) {
		t.Fatalf("timestamp drift: %v vs %v", out[0].Timestamp, in[0].Timestamp)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"))
	out, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("missing file yielded %d entries", len(out))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s := New(path)
	out, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("corrupt file must not error, got: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("corrupt file yielded %d entries", len(out))
	}
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	s := New(path)
	ctx := context.Background()

	if err := s.Save(ctx, []model.Notification{{ID: "1-aaaa"}, {ID: "2-bbbb"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, []model.Notification{}); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	out, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("old entries survived overwrite: %d", len(out))
	}
	// The temp file from the atomic write must not linger.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}
