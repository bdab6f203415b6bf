// Package chain talks to the relief token contract over JSON-RPC.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"relief-offline-ledger/config"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/apperror"
	"relief-offline-ledger/pkg/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Backend is the node surface the contract client needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// ReliefContract implements ports.SettlementClient, ports.MerchantDirectory
// and ports.HealthChecker against a deployed relief token contract.
type ReliefContract struct {
	backend        Backend
	address        common.Address
	abi            abi.ABI
	bound          *bind.BoundContract
	relayer        *bind.TransactOpts // nil = read-only
	gasLimit       uint64
	confirmTimeout time.Duration
	log            zerolog.Logger

	// sendMu keeps relayer nonce assignment and broadcast in order across
	// concurrent settlements. Receipt waits happen outside it.
	sendMu sync.Mutex
}

// Dial connects to cfg.RPCURL and binds the configured contract.
func Dial(ctx context.Context, cfg config.ChainConfig, log zerolog.Logger) (*ReliefContract, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing chain rpc: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("fetching chain id: %w", err)
		}
	}

	c, err := New(client, cfg, chainID, log)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return c, client, nil
}

// New binds the contract on an existing backend. Without cfg.RelayerKey the
// client can read but RelaySpend reports the chain as unavailable.
func New(backend Backend, cfg config.ChainConfig, chainID *big.Int, log zerolog.Logger) (*ReliefContract, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(reliefABI))
	if err != nil {
		return nil, fmt.Errorf("parsing contract abi: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	c := &ReliefContract{
		backend:        backend,
		address:        address,
		abi:            parsed,
		bound:          bind.NewBoundContract(address, parsed, backend, backend, backend),
		gasLimit:       cfg.GasLimit,
		confirmTimeout: cfg.ConfirmTimeout,
		log:            logger.WithComponent(log, "chain"),
	}

	if cfg.RelayerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayerKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parsing relayer key: %w", err)
		}
		c.relayer, err = bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return nil, fmt.Errorf("building relayer transactor: %w", err)
		}
		c.log.Info().
			Str("contract", address.Hex()).
			Str("relayer", c.relayer.From.Hex()).
			Str("chain_id", chainID.String()).
			Msg("relief contract bound")
	} else {
		c.log.Warn().Str("contract", address.Hex()).Msg("no relayer key configured, settlement disabled")
	}

	return c, nil
}

// RelaySpend submits relaySpendTokens and waits for the receipt.
func (c *ReliefContract) RelaySpend(ctx context.Context, req ports.SettlementRequest) (*ports.SettlementReceipt, error) {
	if c.relayer == nil {
		return nil, apperror.ErrChainUnavailable(errors.New("relayer key not configured"))
	}

	wei, err := ToWei(req.Amount)
	if err != nil {
		return nil, apperror.ErrSettlementFailed(err)
	}
	auth, err := DecodeAuthorization(req.Authorization)
	if err != nil {
		return nil, apperror.ErrSettlementFailed(err)
	}
	if !common.IsHexAddress(req.Beneficiary) || !common.IsHexAddress(req.Merchant) {
		return nil, apperror.ErrSettlementFailed(fmt.Errorf("beneficiary %q or merchant %q is not a 20-byte address", req.Beneficiary, req.Merchant))
	}

	opts := *c.relayer
	opts.Context = ctx
	opts.GasLimit = c.gasLimit

	c.sendMu.Lock()
	tx, err := c.bound.Transact(&opts, "relaySpendTokens",
		common.HexToAddress(req.Beneficiary),
		common.HexToAddress(req.Merchant),
		wei,
		req.Description,
		auth,
		new(big.Int).SetUint64(req.Nonce),
	)
	c.sendMu.Unlock()
	if err != nil {
		return nil, classifySendError(ctx, err)
	}

	c.log.Debug().Str("tx_hash", tx.Hash().Hex()).Str("description", req.Description).Msg("relayed spend broadcast")

	waitCtx := ctx
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperror.ErrSettlementTimeout(fmt.Errorf("tx %s: %w", tx.Hash().Hex(), err))
		}
		return nil, apperror.ErrChainUnavailable(fmt.Errorf("tx %s: %w", tx.Hash().Hex(), err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, apperror.ErrSettlementFailed(fmt.Errorf("tx %s reverted in block %s", tx.Hash().Hex(), receipt.BlockNumber))
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return &ports.SettlementReceipt{TxHash: tx.Hash().Hex(), BlockNumber: block}, nil
}

// GetNonce reads the beneficiary's next relayed-spend nonce.
func (c *ReliefContract) GetNonce(ctx context.Context, beneficiary string) (uint64, error) {
	out, err := c.call(ctx, "getNonce", common.HexToAddress(beneficiary))
	if err != nil {
		return 0, err
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, apperror.ErrChainUnavailable(fmt.Errorf("unexpected getNonce result %v", out[0]))
	}
	return n.Uint64(), nil
}

// MerchantProfile reads a merchant's registration from the contract.
func (c *ReliefContract) MerchantProfile(ctx context.Context, merchant string) (*ports.MerchantProfile, error) {
	out, err := c.call(ctx, "getMerchantProfile", common.HexToAddress(merchant))
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, apperror.ErrChainUnavailable(fmt.Errorf("getMerchantProfile returned %d values", len(out)))
	}

	category, _ := out[0].(uint8)
	name, _ := out[1].(string)
	verified, _ := out[2].(bool)
	received, _ := out[3].(*big.Int)

	return &ports.MerchantProfile{
		Address:       merchant,
		Category:      category,
		CategoryName:  categoryName(category),
		BusinessName:  name,
		Verified:      verified,
		TotalReceived: FromWei(received),
	}, nil
}

// Ping implements ports.HealthChecker.
func (c *ReliefContract) Ping(ctx context.Context) error {
	_, err := c.backend.BlockNumber(ctx)
	return err
}

// Name implements ports.HealthChecker.
func (c *ReliefContract) Name() string {
	return "chain"
}

func (c *ReliefContract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, apperror.ErrChainUnavailable(fmt.Errorf("calling %s: %w", method, err))
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, apperror.ErrChainUnavailable(fmt.Errorf("unpacking %s: %w", method, err))
	}
	return out, nil
}

// classifySendError maps a failed broadcast onto the settlement error codes.
// Only an explicit revert is a rejection; anything else may succeed on retry.
func classifySendError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return apperror.ErrSettlementTimeout(err)
	case strings.Contains(err.Error(), "execution reverted"):
		return apperror.ErrSettlementFailed(err)
	default:
		return apperror.ErrChainUnavailable(err)
	}
}
