// Package file stores the notification list as a single JSON document in
// the local profile directory, the durable browser-storage analog for
// desktop terminals.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
)

const defaultFileName = "notifications.json"

type Store struct {
	path string
}

// New creates a store writing to path. Empty path defaults to
// notifications.json in the current directory.
func New(path string) *Store {
	if path == "" {
		path = defaultFileName
	}
	return &Store{path: path}
}

func (s *Store) Close() error { return nil }

// Save overwrites the stored list. The write goes through a temp file and
// rename so a crash mid-write never leaves a truncated document behind.
func (s *Store) Save(ctx context.Context, list []model.Notification) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("fileStore.Save marshal: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fileStore.Save mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("fileStore.Save write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("fileStore.Save rename: %w", err)
	}
	return nil
}

// Load reads the stored list. A missing file yields an empty list; a file
// that no longer parses is discarded (logged) rather than returned as an
// error, so a corrupt profile never blocks startup.
func (s *Store) Load(ctx context.Context) ([]model.Notification, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []model.Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fileStore.Load read: %w", err)
	}
	var list []model.Notification
	if err := json.Unmarshal(data, &list); err != nil {
		logger.Errorf("fileStore.Load: discarding corrupt %s: %v", s.path, err)
		return []model.Notification{}, nil
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}
