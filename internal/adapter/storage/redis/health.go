package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthKey = keyPrefix + "health"

// HealthCheck reports Redis healthy only when it accepts writes. Settlement
// locks are writes, so a read-only replica counts as down.
type HealthCheck struct {
	client *goredis.Client
	now    func() time.Time
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client, now: time.Now}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, healthKey, h.now().Unix(), 30*time.Second).Err(); err != nil {
		return fmt.Errorf("redis not writable: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "redis"
}
