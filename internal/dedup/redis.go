package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ounols/jekyll-news/internal/logger"
)

const (
	keyPrefix     = "posted:article:"
	scanBatchSize = 100
	pingTimeout   = 5 * time.Second
)

// ErrEmptyAddress is returned when Redis is enabled without an address.
var ErrEmptyAddress = errors.New("redis address is required")

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Tracker remembers published identity keys in Redis across runs and hosts.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

var _ Index = (*Tracker)(nil)

// NewTracker creates a Tracker. ttl 0 keeps keys forever.
func NewTracker(client *redis.Client, ttl time.Duration, log logger.Logger) *Tracker {
	return &Tracker{client: client, ttl: ttl, log: log}
}

func (t *Tracker) key(identity string) string {
	return keyPrefix + identity
}

// Has treats Redis errors as "not published"; the store check still
// prevents a duplicate file.
func (t *Tracker) Has(ctx context.Context, identity string) bool {
	key := t.key(identity)

	exists, err := t.client.Exists(ctx, key).Result()
	if err != nil {
		t.log.Error("Redis error checking article",
			logger.String("identity_key", identity),
			logger.String("redis_key", key),
			logger.Error(err),
		)
		return false
	}
	return exists == 1
}

func (t *Tracker) Mark(ctx context.Context, identity string) error {
	key := t.key(identity)

	if err := t.client.Set(ctx, key, "1", t.ttl).Err(); err != nil {
		t.log.Error("Redis error marking article as published",
			logger.String("identity_key", identity),
			logger.String("redis_key", key),
			logger.Duration("ttl", t.ttl),
			logger.Error(err),
		)
		return fmt.Errorf("mark %s: %w", identity, err)
	}
	return nil
}

// Clear forgets one identity key.
func (t *Tracker) Clear(ctx context.Context, identity string) error {
	if err := t.client.Del(ctx, t.key(identity)).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", identity, err)
	}
	return nil
}

// FlushAll removes every tracked key with SCAN rather than FLUSHDB, so
// other data in the database survives.
func (t *Tracker) FlushAll(ctx context.Context) (int, error) {
	pattern := keyPrefix + "*"
	var cursor uint64
	var deleted int

	for {
		keys, next, err := t.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := t.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("delete keys: %w", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	t.log.Info("Flushed identity index",
		logger.Int("keys_deleted", deleted),
		logger.String("pattern", pattern),
	)
	return deleted, nil
}
