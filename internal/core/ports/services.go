package ports

import (
	"context"
	"time"

	"relief-offline-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}

// RoleAdmin is the only role the token service issues today.
const RoleAdmin = "admin"

// --- Service Ports (Business Logic) ---

// CreateIOURequest holds validated input for IOU creation.
type CreateIOURequest struct {
	Beneficiary string
	Merchant    string
	Amount      decimal.Decimal
	Signature   string
	Nonce       int64
	Timestamp   *time.Time // nil = receipt time
}

// IOUService is the lifecycle engine: the only writer of IOU status.
type IOUService interface {
	Create(ctx context.Context, req CreateIOURequest) (*domain.IOU, error)
	Get(ctx context.Context, id int64) (*domain.IOU, error)
	ListByMerchant(ctx context.Context, merchant string) ([]domain.IOU, domain.Summary, error)
	ListAll(ctx context.Context) ([]domain.IOU, domain.SystemSummary, error)

	// MarkSynced moves a pending IOU owned by merchant to synced.
	MarkSynced(ctx context.Context, id int64, merchant string) (*domain.IOU, error)
	// MarkSettled moves a synced IOU to settled. Re-marking a settled IOU
	// returns it unchanged.
	MarkSettled(ctx context.Context, id int64, txHash string) (*domain.IOU, error)
	MarkFailed(ctx context.Context, id int64, reason string) (*domain.IOU, error)
	// Release returns a synced IOU to pending so a later bulk-sync can pick it up.
	Release(ctx context.Context, id int64, reason string) (*domain.IOU, error)

	ConfirmSettled(ctx context.Context, ids []int64, txHash string) (*domain.MarkSettledResult, error)
	Delete(ctx context.Context, id int64) error
}

// ReconcileService is the bulk reconciliation coordinator.
type ReconcileService interface {
	BulkSync(ctx context.Context, merchant string, ids []int64) (*domain.ReconcileReport, error)
	Report(ctx context.Context, batchID uuid.UUID) (*domain.ReconcileReport, error)
	Sweep(ctx context.Context) (*domain.ReconcileReport, error)
}

// AuthService issues admin tokens.
type AuthService interface {
	AdminLogin(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// AuditService records audit trail entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// SettlementNotifier publishes per-item settlement outcomes.
type SettlementNotifier interface {
	Notify(ctx context.Context, iou *domain.IOU, outcome domain.SettlementOutcome) error
}
