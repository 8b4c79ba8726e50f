package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

const analyticsKeyPrefix = "sigap:analytics:"

// AnalyticsCache shares computed analytics results between API instances.
type AnalyticsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnalyticsCache(client *redis.Client, ttl time.Duration) *AnalyticsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnalyticsCache{client: client, ttl: ttl}
}

func (c *AnalyticsCache) Get(ctx context.Context, key string) (model.AnalyticsResult, bool, error) {
	data, err := c.client.Get(ctx, analyticsKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.AnalyticsResult{}, false, nil
	}
	if err != nil {
		return model.AnalyticsResult{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var r model.AnalyticsResult
	if err := json.Unmarshal(data, &r); err != nil {
		return model.AnalyticsResult{}, false, fmt.Errorf("decode cached analytics: %w", err)
	}
	return r, true, nil
}

func (c *AnalyticsCache) Set(ctx context.Context, key string, r model.AnalyticsResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode analytics: %w", err)
	}
	if err := c.client.Set(ctx, analyticsKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// InvalidateAll deletes every cached analytics result.
func (c *AnalyticsCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, analyticsKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
