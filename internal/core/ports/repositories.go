package ports

import (
	"context"
	"time"

	"relief-offline-ledger/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// IOURepository is the ledger of record for offline IOUs.
//
// UpdateStatus is the only way a status changes. Implementations apply it
// atomically: the current status is re-read under the same lock or statement
// that writes the new one, and the change is refused with *domain.TransitionError
// unless domain.CanTransition allows it.
type IOURepository interface {
	Create(ctx context.Context, iou domain.NewIOU) (*domain.IOU, error)
	GetByID(ctx context.Context, id int64) (*domain.IOU, error) // nil, nil when missing
	ListByMerchant(ctx context.Context, merchant string) ([]domain.IOU, error)
	ListAll(ctx context.Context) ([]domain.IOU, error)
	ListSyncedBefore(ctx context.Context, before time.Time, limit int) ([]domain.IOU, error)
	UpdateStatus(ctx context.Context, id int64, upd domain.StatusUpdate) (*domain.IOU, error)
	Delete(ctx context.Context, id int64) error // domain.ErrIOUNotFound when missing
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// ReplayCache is the fast-path guard against resubmitted offline authorizations.
// The IOU store's unique (beneficiary, nonce) constraint stays authoritative.
type ReplayCache interface {
	Seen(ctx context.Context, beneficiary string, nonce int64) (bool, error)
	Remember(ctx context.Context, beneficiary string, nonce int64, ttl time.Duration) error
	// Forget drops an entry whose IOU was purged, so the cache agrees with the store.
	Forget(ctx context.Context, beneficiary string, nonce int64) error
}

// LockStore provides short-lived per-key mutual exclusion across processes.
type LockStore interface {
	// Acquire returns a token and true when the lock was taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	// Release drops the lock only if token still owns it.
	Release(ctx context.Context, key string, token string) error
}

// ReportStore keeps reconciliation reports for follow-up status checks.
type ReportStore interface {
	Save(ctx context.Context, report *domain.ReconcileReport, ttl time.Duration) error
	Get(ctx context.Context, batchID uuid.UUID) (*domain.ReconcileReport, error) // nil, nil when missing
}
