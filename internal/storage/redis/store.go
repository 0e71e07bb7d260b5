// Package redis backs the notification list with a Redis key, so the
// front-desk terminals of one shop share a single list.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
)

const defaultKey = "garagedesk:notifications"

type Store struct {
	cli *redis.Client
	key string
}

// New connects to url and stores the list under key (defaultKey if empty).
func New(ctx context.Context, url, key string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	if key == "" {
		key = defaultKey
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{cli: cli, key: key}, nil
}

func (s *Store) Close() error {
	return s.cli.Close()
}

func (s *Store) Save(ctx context.Context, list []model.Notification) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("redisStore.Save marshal: %w", err)
	}
	// No TTL: notifications persist until the user deletes or clears them.
	if err := s.cli.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redisStore.Save: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]model.Notification, error) {
	val, err := s.cli.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return []model.Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisStore.Load: %w", err)
	}
	var list []model.Notification
	if err := json.Unmarshal([]byte(val), &list); err != nil {
		logger.Errorf("redisStore.Load: discarding corrupt value at %s: %v", s.key, err)
		return []model.Notification{}, nil
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}
