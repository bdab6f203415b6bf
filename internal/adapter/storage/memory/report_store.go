package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"relief-offline-ledger/internal/core/domain"

	"github.com/google/uuid"
)

type storedReport struct {
	data    []byte
	expires time.Time
}

// ReportStore keeps reconciliation reports in process memory. Reports are
// stored serialized so later mutation by the caller never leaks in.
type ReportStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]storedReport
	now     func() time.Time
}

// NewReportStore creates an empty report store.
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[uuid.UUID]storedReport), now: time.Now}
}

func (s *ReportStore) Save(ctx context.Context, report *domain.ReconcileReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, r := range s.reports {
		if !now.Before(r.expires) {
			delete(s.reports, id)
		}
	}
	s.reports[report.BatchID] = storedReport{data: data, expires: now.Add(ttl)}
	return nil
}

func (s *ReportStore) Get(ctx context.Context, batchID uuid.UUID) (*domain.ReconcileReport, error) {
	s.mu.Lock()
	r, ok := s.reports[batchID]
	s.mu.Unlock()
	if !ok || !s.now().Before(r.expires) {
		return nil, nil
	}

	var report domain.ReconcileReport
	if err := json.Unmarshal(r.data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
