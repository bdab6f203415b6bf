package postgres

import (
	"context"
	"errors"
	"fmt"
)

// ErrSchemaMissing means the database answers but the ledger table is absent.
var ErrSchemaMissing = errors.New("ious table missing, run migrations")

// HealthCheck implements ports.HealthChecker for the PostgreSQL ledger. A
// reachable database without the ious table is reported unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var present bool
	err := h.pool.QueryRow(ctx, `SELECT to_regclass('ious') IS NOT NULL`).Scan(&present)
	if err != nil {
		return fmt.Errorf("checking ledger schema: %w", err)
	}
	if !present {
		return ErrSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
