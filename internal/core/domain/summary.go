package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Summary aggregates a set of IOUs by status.
type Summary struct {
	Total       int             `json:"total"`
	Pending     int             `json:"pending"`
	Synced      int             `json:"synced"`
	Settled     int             `json:"settled"`
	Failed      int             `json:"failed"`
	TotalAmount decimal.Decimal `json:"totalAmount"` // excludes failed IOUs
}

// SystemSummary is the admin-wide view with distinct participant counts.
type SystemSummary struct {
	Summary
	MerchantCount    int `json:"merchantCount"`
	BeneficiaryCount int `json:"beneficiaryCount"`
}

// Summarize folds ious into a Summary. It never caches; callers recompute per query.
func Summarize(ious []IOU) Summary {
	s := Summary{TotalAmount: decimal.Zero}
	for i := range ious {
		s.Total++
		switch ious[i].Status {
		case IOUStatusPending:
			s.Pending++
		case IOUStatusSynced:
			s.Synced++
		case IOUStatusSettled:
			s.Settled++
		case IOUStatusFailed:
			s.Failed++
		}
		if ious[i].Status != IOUStatusFailed {
			s.TotalAmount = s.TotalAmount.Add(ious[i].Amount)
		}
	}
	return s
}

// SummarizeSystem extends Summarize with distinct merchant and beneficiary counts.
// Addresses are compared case-insensitively.
func SummarizeSystem(ious []IOU) SystemSummary {
	merchants := make(map[string]struct{})
	beneficiaries := make(map[string]struct{})
	for i := range ious {
		merchants[strings.ToLower(ious[i].Merchant)] = struct{}{}
		beneficiaries[strings.ToLower(ious[i].Beneficiary)] = struct{}{}
	}
	return SystemSummary{
		Summary:          Summarize(ious),
		MerchantCount:    len(merchants),
		BeneficiaryCount: len(beneficiaries),
	}
}
