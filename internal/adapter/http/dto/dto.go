package dto

import (
	"time"

	"relief-offline-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CreateIOURequest is the request body for recording an offline IOU.
// amount accepts a JSON string ("10.5") or number.
type CreateIOURequest struct {
	Beneficiary string           `json:"beneficiary" binding:"required,hex_address"`
	Merchant    string           `json:"merchant" binding:"required,hex_address"`
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
	Signature   string           `json:"signature" binding:"required,max=512" sanitize:"-"`
	Timestamp   *Timestamp       `json:"timestamp,omitempty"`
	Nonce       *int64           `json:"nonce,omitempty" binding:"omitempty,gte=0"`
}

// BulkSyncRequest is the request body for reconciling a merchant's IOUs.
type BulkSyncRequest struct {
	MerchantAddress string  `json:"merchantAddress" binding:"required,hex_address"`
	IOUIDs          []int64 `json:"iouIds" binding:"required,min=1,max=500"`
}

// MarkSettledRequest confirms settlement of IOUs under one transaction hash.
type MarkSettledRequest struct {
	IOUIDs []int64 `json:"iouIds" binding:"required,min=1,max=500"`
	TxHash string  `json:"txHash" binding:"required,hex_string" sanitize:"trim"`
}

// AdminTokenRequest is the request body for admin login.
type AdminTokenRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// TokenResponse is the response body for a successful admin login.
type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateIOUResponse is returned by create-iou.
type CreateIOUResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	IOU    IOU    `json:"iou"`
}

// IOU is the wire form of an IOU record.
type IOU struct {
	ID          int64   `json:"id"`
	Beneficiary string  `json:"beneficiary"`
	Merchant    string  `json:"merchant"`
	Amount      string  `json:"amount"`
	Signature   string  `json:"signature"`
	Nonce       int64   `json:"nonce"`
	Timestamp   string  `json:"timestamp"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
	SyncedAt    *string `json:"syncedAt"`
	SettledAt   *string `json:"settledAt"`
	TxHash      *string `json:"txHash,omitempty"`
	LastError   *string `json:"lastError,omitempty"`
}

// IOUListResponse is returned by the merchant and admin list views.
type IOUListResponse struct {
	IOUs    []IOU `json:"ious"`
	Summary any   `json:"summary"`
}

// BulkSyncResponse is returned by bulk-sync and by the batch report lookup.
type BulkSyncResponse struct {
	BatchID      string                     `json:"batchId"`
	Mode         string                     `json:"mode"`
	SyncedCount  int                        `json:"syncedCount"`
	SettledCount int                        `json:"settledCount"`
	Complete     bool                       `json:"complete"`
	IOUs         []IOU                      `json:"ious"`
	Skipped      []domain.SkippedIOU        `json:"skipped"`
	Outcomes     []domain.SettlementOutcome `json:"outcomes"`
	StartedAt    string                     `json:"startedAt"`
	FinishedAt   *string                    `json:"finishedAt,omitempty"`
}

// MarkSettledResponse is returned by mark-settled.
type MarkSettledResponse struct {
	SettledCount int                 `json:"settledCount"`
	IOUs         []IOU               `json:"ious"`
	Skipped      []domain.SkippedIOU `json:"skipped"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// FromIOU maps a domain IOU to its wire form.
func FromIOU(i *domain.IOU) IOU {
	return IOU{
		ID:          i.ID,
		Beneficiary: i.Beneficiary,
		Merchant:    i.Merchant,
		Amount:      i.Amount.String(),
		Signature:   i.Signature,
		Nonce:       i.Nonce,
		Timestamp:   formatTime(i.Timestamp),
		Status:      string(i.Status),
		CreatedAt:   formatTime(i.CreatedAt),
		SyncedAt:    formatTimePtr(i.SyncedAt),
		SettledAt:   formatTimePtr(i.SettledAt),
		TxHash:      i.TxHash,
		LastError:   i.LastError,
	}
}

// FromIOUs maps a slice, never returning nil.
func FromIOUs(ious []domain.IOU) []IOU {
	out := make([]IOU, len(ious))
	for i := range ious {
		out[i] = FromIOU(&ious[i])
	}
	return out
}

// FromReport maps a reconciliation report.
func FromReport(r *domain.ReconcileReport) BulkSyncResponse {
	return BulkSyncResponse{
		BatchID:      r.BatchID.String(),
		Mode:         string(r.Mode),
		SyncedCount:  r.SyncedCount,
		SettledCount: r.SettledCount(),
		Complete:     r.Complete,
		IOUs:         FromIOUs(r.IOUs),
		Skipped:      nonNil(r.Skipped),
		Outcomes:     nonNil(r.Outcomes),
		StartedAt:    formatTime(r.StartedAt),
		FinishedAt:   formatTimePtr(r.FinishedAt),
	}
}

// FromMarkSettled maps a mark-settled result.
func FromMarkSettled(r *domain.MarkSettledResult) MarkSettledResponse {
	return MarkSettledResponse{
		SettledCount: r.SettledCount,
		IOUs:         FromIOUs(r.IOUs),
		Skipped:      nonNil(r.Skipped),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
