// Package cache keeps per-event seat availability in Redis so floor-plan
// views do not recount reservations on every poll.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"catering/internal/config"
	"catering/internal/models"
	"catering/internal/observability"
)

const (
	keyPrefix   = "catering:availability:"
	pingTimeout = 2 * time.Second
	defaultTTL  = 30 * time.Second
)

// NewRedisClient connects to Redis. It returns nil when no address is
// configured or the server does not answer a ping, and callers then run
// without a cache.
func NewRedisClient(cfg config.RedisConfig, logger observability.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, availability cache disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

// Availability caches the seat balance of every table in an event. A nil
// *Availability, or one without a client, misses every lookup.
type Availability struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger observability.Logger
}

// NewAvailability wraps rdb; ttl <= 0 uses 30 seconds
func NewAvailability(rdb *redis.Client, ttl time.Duration, logger observability.Logger) *Availability {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Availability{rdb: rdb, ttl: ttl, logger: logger}
}

// Key is the Redis key holding an event's availability
func Key(eventID uint) string {
	return fmt.Sprintf("%s%d", keyPrefix, eventID)
}

func (c *Availability) enabled() bool {
	return c != nil && c.rdb != nil
}

// Get returns the cached availability and whether it was found
func (c *Availability) Get(ctx context.Context, eventID uint) ([]models.TableAvailability, bool) {
	if !c.enabled() {
		return nil, false
	}
	bs, err := c.rdb.Get(ctx, Key(eventID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Availability cache read failed", zap.Uint("event_id", eventID), zap.Error(err))
		}
		return nil, false
	}
	var tables []models.TableAvailability
	if err := json.Unmarshal(bs, &tables); err != nil {
		return nil, false
	}
	return tables, true
}

// Set stores availability for the configured ttl
func (c *Availability) Set(ctx context.Context, eventID uint, tables []models.TableAvailability) {
	if !c.enabled() {
		return
	}
	payload, err := json.Marshal(tables)
	if err != nil {
		return
	}
	if err := c.rdb.SetEx(ctx, Key(eventID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Availability cache write failed", zap.Uint("event_id", eventID), zap.Error(err))
	}
}

// Invalidate drops an event's cached availability after a booking change
func (c *Availability) Invalidate(ctx context.Context, eventID uint) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Del(ctx, Key(eventID)).Err(); err != nil {
		c.logger.Warn("Availability cache invalidation failed", zap.Uint("event_id", eventID), zap.Error(err))
	}
}
