package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wanderly/tour-bookings/internal/domain"
)

// TourCache is a read-through cache for tour detail lookups. Writes to a
// tour invalidate its entry; a miss is never an error.
type TourCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTourCache(client *redis.Client, ttl time.Duration) *TourCache {
	return &TourCache{client: client, ttl: ttl}
}

func (c *TourCache) Get(ctx context.Context, id string) (*domain.Tour, error) {
	val, err := c.client.Get(ctx, "tour:"+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tour domain.Tour
	if err := json.Unmarshal(val, &tour); err != nil {
		return nil, err
	}
	return &tour, nil
}

func (c *TourCache) Set(ctx context.Context, tour *domain.Tour) error {
	data, err := json.Marshal(tour)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "tour:"+tour.ID.Hex(), data, c.ttl).Err()
}

func (c *TourCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, "tour:"+id).Err()
}
