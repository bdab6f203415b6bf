package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayCache implements ports.ReplayCache. It remembers accepted
// (beneficiary, nonce) authorizations so replays are rejected before
// touching the database.
type ReplayCache struct {
	client *goredis.Client
	prefix string
}

// NewReplayCache creates a Redis-backed replay cache.
func NewReplayCache(client *goredis.Client) *ReplayCache {
	return &ReplayCache{
		client: client,
		prefix: keyPrefix + "auth:",
	}
}

func (c *ReplayCache) key(beneficiary string, nonce int64) string {
	return c.prefix + strings.ToLower(beneficiary) + ":" + strconv.FormatInt(nonce, 10)
}

// Seen reports whether the authorization was already remembered.
func (c *ReplayCache) Seen(ctx context.Context, beneficiary string, nonce int64) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(beneficiary, nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("redis replay check: %w", err)
	}
	return n > 0, nil
}

// Remember records an accepted authorization for ttl.
func (c *ReplayCache) Remember(ctx context.Context, beneficiary string, nonce int64, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(beneficiary, nonce), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis replay remember: %w", err)
	}
	return nil
}

// Forget removes a remembered authorization. Missing keys are not an error.
func (c *ReplayCache) Forget(ctx context.Context, beneficiary string, nonce int64) error {
	if err := c.client.Del(ctx, c.key(beneficiary, nonce)).Err(); err != nil {
		return fmt.Errorf("redis replay forget: %w", err)
	}
	return nil
}
