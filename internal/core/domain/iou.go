package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// IOUStatus represents the lifecycle state of an offline IOU.
type IOUStatus string

const (
	IOUStatusPending IOUStatus = "pending"
	IOUStatusSynced  IOUStatus = "synced"
	IOUStatusSettled IOUStatus = "settled"
	IOUStatusFailed  IOUStatus = "failed"
)

// IsValid reports whether s is one of the known statuses.
func (s IOUStatus) IsValid() bool {
	switch s {
	case IOUStatusPending, IOUStatusSynced, IOUStatusSettled, IOUStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for settled and failed.
func (s IOUStatus) IsTerminal() bool {
	return s == IOUStatusSettled || s == IOUStatusFailed
}

// transitions lists the allowed edges of the IOU state machine.
// synced -> pending is the release edge used by the "revert" failure policy.
var transitions = map[IOUStatus][]IOUStatus{
	IOUStatusPending: {IOUStatusSynced, IOUStatusFailed},
	IOUStatusSynced:  {IOUStatusSettled, IOUStatusFailed, IOUStatusPending},
}

// CanTransition reports whether an IOU may move from one status to another.
func CanTransition(from, to IOUStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var statusOrder = []IOUStatus{IOUStatusPending, IOUStatusSynced, IOUStatusSettled, IOUStatusFailed}

// SourceStatuses returns every status from which to is reachable in one step,
// in lifecycle order.
func SourceStatuses(to IOUStatus) []IOUStatus {
	var out []IOUStatus
	for _, from := range statusOrder {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// IOU is a payment promise captured while the merchant was offline.
type IOU struct {
	ID          int64           `json:"id"`
	Beneficiary string          `json:"beneficiary"`
	Merchant    string          `json:"merchant"`
	Amount      decimal.Decimal `json:"amount"`
	Signature   string          `json:"signature"`
	Nonce       int64           `json:"nonce"`
	Timestamp   time.Time       `json:"timestamp"`
	Status      IOUStatus       `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	SyncedAt    *time.Time      `json:"syncedAt"`
	SettledAt   *time.Time      `json:"settledAt"`
	TxHash      *string         `json:"txHash,omitempty"`
	LastError   *string         `json:"lastError,omitempty"`
}

// BelongsTo reports whether the IOU is payable to merchant (case-insensitive).
func (i *IOU) BelongsTo(merchant string) bool {
	return SameAddress(i.Merchant, merchant)
}

// Description is the label sent on-chain with the relayed spend.
func (i *IOU) Description() string {
	return "Offline IOU #" + strconv.FormatInt(i.ID, 10)
}

// NewIOU holds the client-supplied fields of an IOU before the store assigns an id.
type NewIOU struct {
	Beneficiary string
	Merchant    string
	Amount      decimal.Decimal
	Signature   string
	Nonce       int64
	Timestamp   time.Time
}

// StatusUpdate carries the fields written alongside a status transition.
type StatusUpdate struct {
	Status    IOUStatus
	SyncedAt  *time.Time
	SettledAt *time.Time
	TxHash    *string
	LastError *string
}

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{1,40}$`)

// IsAddress accepts 0x-prefixed hex of up to 20 bytes.
func IsAddress(s string) bool {
	return addressRe.MatchString(s)
}

// SameAddress compares two addresses ignoring hex case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
