package ports

import "context"

// HealthChecker is one dependency reported by GET /health.
// A nil Ping result marks the dependency healthy.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
