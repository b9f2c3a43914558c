package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turnosalud/booking-platform/pkg/logging"
)

// Cache is a redis-backed availability cache. Entries are short-lived and
// invalidated wholesale per professional on any schedule or booking write.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache creates an availability cache with the given entry TTL.
func NewCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{redis: client, ttl: ttl, logger: logger}
}

func (c *Cache) key(professionalID uuid.UUID, from, to time.Time, modality string) string {
	return fmt.Sprintf("availability:%s:%d:%d:%s", professionalID, from.Unix(), to.Unix(), modality)
}

// Get returns a cached window, or ok=false on miss or any redis failure.
// Cache errors never fail an availability request.
func (c *Cache) Get(ctx context.Context, professionalID uuid.UUID, from, to time.Time, modality string) ([]Slot, bool) {
	data, err := c.redis.Get(ctx, c.key(professionalID, from, to, modality)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("availability cache get failed", "error", err, "professional_id", professionalID)
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.logger.Warn("availability cache entry corrupt", "error", err, "professional_id", professionalID)
		return nil, false
	}
	return slots, true
}

// Set stores a computed window. Best effort.
func (c *Cache) Set(ctx context.Context, professionalID uuid.UUID, from, to time.Time, modality string, slots []Slot) {
	data, err := json.Marshal(slots)
	if err != nil {
		c.logger.Warn("availability cache marshal failed", "error", err)
		return
	}
	if err := c.redis.Set(ctx, c.key(professionalID, from, to, modality), data, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache set failed", "error", err, "professional_id", professionalID)
	}
}

// Invalidate drops every cached window for a professional. Called after any
// write that changes their schedule or busy intervals.
func (c *Cache) Invalidate(ctx context.Context, professionalID uuid.UUID) {
	pattern := fmt.Sprintf("availability:%s:*", professionalID)
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("availability cache scan failed", "error", err, "professional_id", professionalID)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("availability cache invalidate failed", "error", err, "professional_id", professionalID)
	}
}

var _ AvailabilityCache = (*Cache)(nil)
