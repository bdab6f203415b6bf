package domain

import (
	"time"

	"github.com/google/uuid"
)

// SkipReason explains why an id in a batch was not processed.
type SkipReason string

const (
	SkipNotFound       SkipReason = "not_found"
	SkipMerchantDiffer SkipReason = "merchant_mismatch"
	SkipNotPending     SkipReason = "not_pending"
	SkipAlreadySettled SkipReason = "already_settled"
	SkipInvalidStatus  SkipReason = "invalid_status"
	SkipLocked         SkipReason = "locked"
	SkipDuplicate      SkipReason = "duplicate_id"
)

// SkippedIOU records a batch id that was filtered out.
type SkippedIOU struct {
	ID     int64      `json:"id"`
	Reason SkipReason `json:"reason"`
}

// SettlementOutcome is the per-item result of submitting an IOU on-chain.
type SettlementOutcome struct {
	ID      int64     `json:"id"`
	Settled bool      `json:"settled"`
	Status  IOUStatus `json:"status"`
	TxHash  string    `json:"txHash,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// ReconcileMode selects whether bulk-sync waits for settlement.
type ReconcileMode string

const (
	ReconcileModeSync  ReconcileMode = "sync"
	ReconcileModeAsync ReconcileMode = "async"
	ReconcileModeSweep ReconcileMode = "sweep"
)

// FailurePolicy decides where a synced IOU goes after a rejected settlement.
type FailurePolicy string

const (
	FailurePolicyFail   FailurePolicy = "fail"   // synced -> failed
	FailurePolicyRevert FailurePolicy = "revert" // synced -> pending
	FailurePolicyRetain FailurePolicy = "retain" // stays synced
)

// ReconcileReport is the result of one bulk-sync or sweep run.
type ReconcileReport struct {
	BatchID     uuid.UUID           `json:"batchId"`
	Merchant    string              `json:"merchantAddress,omitempty"`
	Mode        ReconcileMode       `json:"mode"`
	SyncedCount int                 `json:"syncedCount"`
	IOUs        []IOU               `json:"ious"`
	Skipped     []SkippedIOU        `json:"skipped"`
	Outcomes    []SettlementOutcome `json:"outcomes"`
	Complete    bool                `json:"complete"`
	StartedAt   time.Time           `json:"startedAt"`
	FinishedAt  *time.Time          `json:"finishedAt,omitempty"`
}

// SettledCount counts outcomes that reached settled.
func (r *ReconcileReport) SettledCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Settled {
			n++
		}
	}
	return n
}

// MarkSettledResult is the result of confirming a set of IOUs as settled.
type MarkSettledResult struct {
	SettledCount int          `json:"settledCount"`
	IOUs         []IOU        `json:"ious"`
	Skipped      []SkippedIOU `json:"skipped"`
}
