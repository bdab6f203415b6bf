// Package memory holds process-local adapters used when storage.driver is
// "memory" and as fallbacks when Redis is disabled.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"relief-offline-ledger/internal/core/domain"
)

// IOURepo is an in-memory ports.IOURepository. A single mutex serializes
// every write so each status transition is checked and applied atomically.
type IOURepo struct {
	mu     sync.RWMutex
	nextID int64
	ious   map[int64]*domain.IOU
	auths  map[string]int64 // lower(beneficiary)|nonce -> id
	now    func() time.Time
}

// NewIOURepo creates an empty store. Ids start at 1.
func NewIOURepo() *IOURepo {
	return &IOURepo{
		ious:  make(map[int64]*domain.IOU),
		auths: make(map[string]int64),
		now:   time.Now,
	}
}

func authKey(beneficiary string, nonce int64) string {
	return strings.ToLower(beneficiary) + "|" + strconv.FormatInt(nonce, 10)
}

func (r *IOURepo) Create(ctx context.Context, n domain.NewIOU) (*domain.IOU, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.Nonce > 0 {
		if _, dup := r.auths[authKey(n.Beneficiary, n.Nonce)]; dup {
			return nil, domain.ErrDuplicateAuthorization
		}
	}

	r.nextID++
	iou := &domain.IOU{
		ID:          r.nextID,
		Beneficiary: n.Beneficiary,
		Merchant:    n.Merchant,
		Amount:      n.Amount,
		Signature:   n.Signature,
		Nonce:       n.Nonce,
		Timestamp:   n.Timestamp,
		Status:      domain.IOUStatusPending,
		CreatedAt:   r.now().UTC(),
	}
	r.ious[iou.ID] = iou
	if n.Nonce > 0 {
		r.auths[authKey(n.Beneficiary, n.Nonce)] = iou.ID
	}
	return cloneIOU(iou), nil
}

func (r *IOURepo) GetByID(ctx context.Context, id int64) (*domain.IOU, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	iou, ok := r.ious[id]
	if !ok {
		return nil, nil
	}
	return cloneIOU(iou), nil
}

func (r *IOURepo) ListByMerchant(ctx context.Context, merchant string) ([]domain.IOU, error) {
	return r.filter(func(i *domain.IOU) bool { return i.BelongsTo(merchant) }), nil
}

func (r *IOURepo) ListAll(ctx context.Context) ([]domain.IOU, error) {
	return r.filter(func(*domain.IOU) bool { return true }), nil
}

func (r *IOURepo) ListSyncedBefore(ctx context.Context, before time.Time, limit int) ([]domain.IOU, error) {
	out := r.filter(func(i *domain.IOU) bool {
		return i.Status == domain.IOUStatusSynced && i.SyncedAt != nil && i.SyncedAt.Before(before)
	})
	sort.SliceStable(out, func(a, b int) bool { return out[a].SyncedAt.Before(*out[b].SyncedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *IOURepo) UpdateStatus(ctx context.Context, id int64, upd domain.StatusUpdate) (*domain.IOU, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	iou, ok := r.ious[id]
	if !ok {
		return nil, domain.ErrIOUNotFound
	}
	if !domain.CanTransition(iou.Status, upd.Status) {
		return nil, &domain.TransitionError{ID: id, From: iou.Status, To: upd.Status, Current: cloneIOU(iou)}
	}

	iou.Status = upd.Status
	switch {
	case upd.Status == domain.IOUStatusPending:
		iou.SyncedAt = nil
	case iou.SyncedAt == nil && upd.SyncedAt != nil:
		t := *upd.SyncedAt
		iou.SyncedAt = &t
	}
	if iou.SettledAt == nil && upd.SettledAt != nil {
		t := *upd.SettledAt
		iou.SettledAt = &t
	}
	if upd.TxHash != nil {
		h := *upd.TxHash
		iou.TxHash = &h
	}
	iou.LastError = nil
	if upd.LastError != nil {
		e := *upd.LastError
		iou.LastError = &e
	}
	return cloneIOU(iou), nil
}

func (r *IOURepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	iou, ok := r.ious[id]
	if !ok {
		return domain.ErrIOUNotFound
	}
	if iou.Nonce > 0 {
		delete(r.auths, authKey(iou.Beneficiary, iou.Nonce))
	}
	delete(r.ious, id)
	return nil
}

// filter returns copies of matching IOUs in id order.
func (r *IOURepo) filter(keep func(*domain.IOU) bool) []domain.IOU {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.IOU{}
	for _, iou := range r.ious {
		if keep(iou) {
			out = append(out, *cloneIOU(iou))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func cloneIOU(i *domain.IOU) *domain.IOU {
	c := *i
	if i.SyncedAt != nil {
		t := *i.SyncedAt
		c.SyncedAt = &t
	}
	if i.SettledAt != nil {
		t := *i.SettledAt
		c.SettledAt = &t
	}
	if i.TxHash != nil {
		h := *i.TxHash
		c.TxHash = &h
	}
	if i.LastError != nil {
		e := *i.LastError
		c.LastError = &e
	}
	return &c
}
