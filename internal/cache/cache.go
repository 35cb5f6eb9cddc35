// Package cache provides an optional Redis-backed cache for composed group
// summaries. The cache is purely an accelerator: every value is rebuildable
// and the engine runs unchanged with caching disabled.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/splitterhq/balances/internal/models"
)

const summaryKeyPrefix = "balance:group:"

// SummaryCache caches group summaries in Redis with a TTL and invalidates
// them whenever the group's ledger changes. A nil *SummaryCache is valid and
// disables caching.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a SummaryCache from a Redis URL. Returns nil (caching disabled)
// when the URL is empty.
func New(redisURL string, ttl time.Duration) (*SummaryCache, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{client: client, ttl: ttl}, nil
}

func summaryKey(groupID, displayCurrency string) string {
	return summaryKeyPrefix + groupID + ":" + displayCurrency
}

// GetSummary returns the cached summary for (group, display currency), or
// false when absent. Cache errors are reported as misses; the caller
// recomputes either way.
func (c *SummaryCache) GetSummary(ctx context.Context, groupID, displayCurrency string) (*models.GroupSummary, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, summaryKey(groupID, displayCurrency)).Bytes()
	if err != nil {
		return nil, false
	}
	var summary models.GroupSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

// SetSummary stores a computed summary. Failures are ignored; the next read
// simply recomputes.
func (c *SummaryCache) SetSummary(ctx context.Context, summary *models.GroupSummary) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	c.client.Set(ctx, summaryKey(summary.GroupID, summary.DisplayCurrency), raw, c.ttl)
}

// InvalidateGroup drops every cached summary of the group, called after each
// successful append.
func (c *SummaryCache) InvalidateGroup(ctx context.Context, groupID string) {
	if c == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, summaryKeyPrefix+groupID+":*", 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

// Close releases the Redis connection.
func (c *SummaryCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
