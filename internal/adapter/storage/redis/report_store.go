package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"relief-offline-ledger/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ReportStore implements ports.ReportStore, keeping reconciliation reports as JSON.
type ReportStore struct {
	client *goredis.Client
	prefix string
}

// NewReportStore creates a Redis-backed report store.
func NewReportStore(client *goredis.Client) *ReportStore {
	return &ReportStore{
		client: client,
		prefix: keyPrefix + "report:",
	}
}

// Save stores the report under its batch id, replacing any earlier snapshot.
func (s *ReportStore) Save(ctx context.Context, report *domain.ReconcileReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+report.BatchID.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis report set: %w", err)
	}
	return nil
}

// Get returns nil, nil if the report does not exist or has expired.
func (s *ReportStore) Get(ctx context.Context, batchID uuid.UUID) (*domain.ReconcileReport, error) {
	data, err := s.client.Get(ctx, s.prefix+batchID.String()).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis report get: %w", err)
	}

	var report domain.ReconcileReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
