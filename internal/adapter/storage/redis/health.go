package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthKey = KeyPrefix + "health"

// HealthCheck reports whether Redis accepts idempotency cache writes.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping writes a short-lived health entry. A read-only replica fails here
// even though PING succeeds.
func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.client.Set(ctx, healthKey, "1", time.Second).Err()
}

func (h *HealthCheck) Name() string { return "redis" }
