package storage

import (
	"context"

	"github.com/garagedesk/internal/model"
)

// NotificationStore persists a session's full notification list under a
// single fixed key. Implementations: file.Store (local profile storage),
// redis.Store (shared terminals of one shop), memory.Store (tests/dev).
//
// Persistence is best-effort by contract: callers apply the in-memory
// mutation first and only log Save failures.
type NotificationStore interface {
	Save(ctx context.Context, list []model.Notification) error
	Load(ctx context.Context) ([]model.Notification, error)
	Close() error
}
