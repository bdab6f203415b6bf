package ports

import "context"

// HealthChecker is one dependency the ledger needs to accept or settle IOUs:
// the store, Redis, or the chain node. GET /health reports each by Name.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
