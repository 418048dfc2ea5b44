package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "orderhub:processed:"

// RedisTracker stores one hash per order with a TTL equal to the retention.
// Unlike FileTracker it can be shared by several processes.
type RedisTracker struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
	now       func() time.Time
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisTracker(ctx context.Context, cfg RedisConfig, retention time.Duration) (*RedisTracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisTrackerWithClient(client, "", retention), nil
}

func NewRedisTrackerWithClient(client *redis.Client, keyPrefix string, retention time.Duration) *RedisTracker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisTracker{client: client, keyPrefix: keyPrefix, retention: retention, now: time.Now}
}

func (t *RedisTracker) key(marketplace, orderID string) string {
	return t.keyPrefix + marketplace + ":" + orderID
}

func (t *RedisTracker) has(ctx context.Context, marketplace, orderID, field string) (bool, error) {
	ok, err := t.client.HExists(ctx, t.key(marketplace, orderID), field).Result()
	if err != nil {
		return false, fmt.Errorf("check %s %s/%s: %w", field, marketplace, orderID, err)
	}
	return ok, nil
}

func (t *RedisTracker) set(ctx context.Context, marketplace, orderID string, values ...any) error {
	key := t.key(marketplace, orderID)
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, values...)
	pipe.Expire(ctx, key, t.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark %s/%s: %w", marketplace, orderID, err)
	}
	return nil
}

func (t *RedisTracker) IsProcessed(ctx context.Context, marketplace, orderID string) (bool, error) {
	return t.has(ctx, marketplace, orderID, "processed_at")
}

func (t *RedisTracker) IsAccepted(ctx context.Context, marketplace, orderID string) (bool, error) {
	return t.has(ctx, marketplace, orderID, "accepted_at")
}

func (t *RedisTracker) MarkAccepted(ctx context.Context, marketplace, orderID string) error {
	return t.set(ctx, marketplace, orderID, "accepted_at", t.now().UTC().Format(time.RFC3339))
}

func (t *RedisTracker) MarkProcessed(ctx context.Context, marketplace, orderID, ddtID string) error {
	return t.set(ctx, marketplace, orderID,
		"processed_at", t.now().UTC().Format(time.RFC3339),
		"ddt_id", ddtID,
	)
}

func (t *RedisTracker) Stats(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	iter := t.client.Scan(ctx, 0, t.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		rest := strings.TrimPrefix(key, t.keyPrefix)
		mp, _, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		processed, err := t.client.HExists(ctx, key, "processed_at").Result()
		if err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		if processed {
			out[mp]++
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return out, nil
}

func (t *RedisTracker) Close() error {
	return t.client.Close()
}
