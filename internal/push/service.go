// Package push delivers notifications over Web Push to sessions that have
// no open socket. Subscriptions live in Redis, keyed by session id.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
)

const (
	redisKeyPrefix    = "push:subs:"
	maxSubsPerSession = 10
	subscriptionTTL   = 30 * 24 * time.Hour
)

// Subscription is what the browser hands over on subscribe.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Service stores subscriptions and sends pushes. With nil vapid options
// (keys not configured) subscriptions are still saved but sends are no-ops.
type Service struct {
	redis *redis.Client
	vapid *webpush.Options
}

// NewService builds the push service. subscriber is the contact address
// required by the Web Push protocol (mailto: or https: origin).
func NewService(rdb *redis.Client, keys *VAPIDKeys, subscriber string) *Service {
	var opts *webpush.Options
	if keys != nil && keys.PublicKey != "" && keys.PrivateKey != "" {
		opts = &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		}
	}
	return &Service{redis: rdb, vapid: opts}
}

// Enabled reports whether pushes can actually be sent.
func (s *Service) Enabled() bool {
	return s.vapid != nil
}

// Subscribe saves a session's subscription, keeping at most
// maxSubsPerSession most recent ones.
func (s *Service) Subscribe(ctx context.Context, sessionID string, sub Subscription) error {
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return fmt.Errorf("push subscribe: endpoint and keys required")
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("push subscribe encode: %w", err)
	}
	key := redisKeyPrefix + sessionID
	pipe := s.redis.Pipeline()
	pipe.RPush(ctx, key, string(raw))
	pipe.LTrim(ctx, key, -maxSubsPerSession, -1)
	pipe.Expire(ctx, key, subscriptionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push subscribe redis: %w", err)
	}
	return nil
}

// Unsubscribe removes one endpoint of a session.
func (s *Service) Unsubscribe(ctx context.Context, sessionID, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("push unsubscribe: endpoint required")
	}
	return s.removeSubscription(ctx, sessionID, endpoint)
}

// Notify sends the notification to every subscription of the session.
// Best-effort: individual send failures are logged, stale subscriptions
// (410/404) are pruned.
func (s *Service) Notify(ctx context.Context, sessionID string, in model.NotificationInput) {
	key := redisKeyPrefix + sessionID
	list, err := s.redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		logger.Errorf("push notify redis: %v", err)
		return
	}
	if s.vapid == nil || len(list) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"title":      in.Title,
		"body":       in.Message,
		"action_url": in.ActionURL,
		"priority":   in.Priority,
		"category":   in.Category,
	})
	if err != nil {
		logger.Errorf("push notify encode: %v", err)
		return
	}

	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) != nil || sub.Endpoint == "" {
			continue
		}
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("push send session=%s: %v", sessionID, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			s.removeSubscription(ctx, sessionID, sub.Endpoint)
		}
	}
}

func (s *Service) removeSubscription(ctx context.Context, sessionID, endpoint string) error {
	key := redisKeyPrefix + sessionID
	list, err := s.redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("push remove redis: %w", err)
	}
	var kept []string
	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != endpoint {
			kept = append(kept, item)
		}
	}
	s.redis.Del(ctx, key)
	for _, v := range kept {
		s.redis.RPush(ctx, key, v)
	}
	if len(kept) > 0 {
		s.redis.Expire(ctx, key, subscriptionTTL)
	}
	return nil
}
