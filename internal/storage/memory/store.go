// Package memory keeps the notification list in process memory. Used by
// tests and by kiosks that intentionally forget notifications on restart.
package memory

import (
	"context"
	"sync"

	"github.com/garagedesk/internal/model"
)

type Store struct {
	mu   sync.RWMutex
	list []model.Notification
}

func New() *Store {
	return &Store{}
}

func (s *Store) Close() error { return nil }

func (s *Store) Save(ctx context.Context, list []model.Notification) error {
	cp := make([]model.Notification, len(list))
	copy(cp, list)
	s.mu.Lock()
	s.list = cp
	s.mu.Unlock()
	return nil
}

func (s *Store) Load(ctx context.Context) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Notification, len(s.list))
	copy(cp, s.list)
	return cp, nil
}
