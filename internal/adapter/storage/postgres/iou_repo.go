package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relief-offline-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// amount is selected as text so NUMERIC(78,18) round-trips through decimal without loss.
const iouColumns = `id, beneficiary, merchant, amount::text, signature, nonce, client_timestamp,
	status, created_at, synced_at, settled_at, tx_hash, last_error`

// IOURepo implements ports.IOURepository.
type IOURepo struct {
	pool Pool
}

// NewIOURepo creates a new IOURepo.
func NewIOURepo(pool Pool) *IOURepo {
	return &IOURepo{pool: pool}
}

// Create inserts a pending IOU and returns it with its assigned id.
func (r *IOURepo) Create(ctx context.Context, n domain.NewIOU) (*domain.IOU, error) {
	query := `INSERT INTO ious (beneficiary, merchant, amount, signature, nonce, client_timestamp, status)
		VALUES ($1, $2, $3::text::numeric, $4, $5, $6, 'pending')
		RETURNING ` + iouColumns

	iou, err := scanIOU(r.pool.QueryRow(ctx, query,
		n.Beneficiary, n.Merchant, n.Amount.String(), n.Signature, n.Nonce, n.Timestamp,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrDuplicateAuthorization
		}
		return nil, fmt.Errorf("insert iou: %w", err)
	}
	return iou, nil
}

// GetByID fetches an IOU. Returns nil, nil when it does not exist.
func (r *IOURepo) GetByID(ctx context.Context, id int64) (*domain.IOU, error) {
	query := `SELECT ` + iouColumns + ` FROM ious WHERE id = $1`

	iou, err := scanIOU(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get iou: %w", err)
	}
	return iou, nil
}

// ListByMerchant returns the merchant's IOUs in id order.
func (r *IOURepo) ListByMerchant(ctx context.Context, merchant string) ([]domain.IOU, error) {
	query := `SELECT ` + iouColumns + ` FROM ious WHERE lower(merchant) = lower($1) ORDER BY id`
	return r.list(ctx, query, merchant)
}

// ListAll returns every IOU in id order.
func (r *IOURepo) ListAll(ctx context.Context) ([]domain.IOU, error) {
	query := `SELECT ` + iouColumns + ` FROM ious ORDER BY id`
	return r.list(ctx, query)
}

// ListSyncedBefore returns synced IOUs whose synced_at is older than before, oldest first.
func (r *IOURepo) ListSyncedBefore(ctx context.Context, before time.Time, limit int) ([]domain.IOU, error) {
	query := `SELECT ` + iouColumns + ` FROM ious
		WHERE status = 'synced' AND synced_at < $1
		ORDER BY synced_at, id LIMIT $2`
	return r.list(ctx, query, before, limit)
}

// UpdateStatus applies a transition in a single conditional UPDATE. The row is
// only written while its current status is a legal source for upd.Status.
func (r *IOURepo) UpdateStatus(ctx context.Context, id int64, upd domain.StatusUpdate) (*domain.IOU, error) {
	sources := domain.SourceStatuses(upd.Status)
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	query := `UPDATE ious SET
			status = $2,
			synced_at = CASE WHEN $2 = 'pending' THEN NULL ELSE COALESCE(synced_at, $3) END,
			settled_at = COALESCE(settled_at, $4),
			tx_hash = COALESCE($5, tx_hash),
			last_error = $6
		WHERE id = $1 AND status = ANY($7)
		RETURNING ` + iouColumns

	iou, err := scanIOU(r.pool.QueryRow(ctx, query,
		id, string(upd.Status), upd.SyncedAt, upd.SettledAt, upd.TxHash, upd.LastError, from,
	))
	if err == nil {
		return iou, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update iou status: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrIOUNotFound
	}
	return nil, &domain.TransitionError{ID: id, From: current.Status, To: upd.Status, Current: current}
}

// Delete removes an IOU. Administrative purge only.
func (r *IOURepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ious WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete iou: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIOUNotFound
	}
	return nil
}

func (r *IOURepo) list(ctx context.Context, query string, args ...any) ([]domain.IOU, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ious: %w", err)
	}
	defer rows.Close()

	ious := []domain.IOU{}
	for rows.Next() {
		iou, err := scanIOU(rows)
		if err != nil {
			return nil, fmt.Errorf("scan iou row: %w", err)
		}
		ious = append(ious, *iou)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iou rows: %w", err)
	}
	return ious, nil
}

func scanIOU(row pgx.Row) (*domain.IOU, error) {
	var (
		iou    domain.IOU
		amount string
		status string
	)
	err := row.Scan(
		&iou.ID, &iou.Beneficiary, &iou.Merchant, &amount, &iou.Signature, &iou.Nonce, &iou.Timestamp,
		&status, &iou.CreatedAt, &iou.SyncedAt, &iou.SettledAt, &iou.TxHash, &iou.LastError,
	)
	if err != nil {
		return nil, err
	}
	iou.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	iou.Status = domain.IOUStatus(status)
	return &iou, nil
}
