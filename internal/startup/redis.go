package startup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garagedesk/internal/logger"
)

// ConnectRedisWithRetry connects to Redis with exponential backoff.
// logPrefix is prepended to log lines (e.g. "hub: ").
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration, logPrefix string) *redis.Client {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := connectRedis(ctx, redisURL)
		cancel()
		if err != nil {
			if time.Now().After(deadline) {
				logger.Errorf("%sredis (gave up after %v): %v", logPrefix, maxWait, err)
				os.Exit(1)
			}
			logger.Errorf("%sredis connect failed, retry in %v: %v", logPrefix, backoff, err)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		return client
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cli, nil
}
