package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=chain.go -destination=mocks/mock_chain.go -package=mocks

// SettlementRequest is one relayed spend submitted on behalf of a beneficiary.
type SettlementRequest struct {
	Beneficiary   string
	Merchant      string
	Amount        decimal.Decimal // whole relief tokens
	Description   string
	Authorization string // beneficiary signature captured offline, 0x-hex
	Nonce         uint64
}

// SettlementReceipt identifies the confirmed on-chain transaction.
type SettlementReceipt struct {
	TxHash      string
	BlockNumber uint64
}

// SettlementClient is the relief contract's relayed-spend surface.
//
// RelaySpend returns only after the transaction is mined. Errors are AppErrors:
// SET_001 when the chain rejected the spend, SET_002 when confirmation timed
// out, SET_003 when the node could not be reached.
type SettlementClient interface {
	RelaySpend(ctx context.Context, req SettlementRequest) (*SettlementReceipt, error)
	GetNonce(ctx context.Context, beneficiary string) (uint64, error)
}

// MerchantProfile is the contract's view of a registered merchant.
type MerchantProfile struct {
	Address       string          `json:"address"`
	Category      uint8           `json:"categoryId"`
	CategoryName  string          `json:"category"`
	BusinessName  string          `json:"businessName"`
	Verified      bool            `json:"verified"`
	TotalReceived decimal.Decimal `json:"totalReceived"`
}

// MerchantDirectory is a read-only lookup of merchant registrations.
type MerchantDirectory interface {
	MerchantProfile(ctx context.Context, merchant string) (*MerchantProfile, error)
}
