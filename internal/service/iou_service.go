package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"relief-offline-ledger/internal/core/domain"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/apperror"
	"relief-offline-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	// maxAmountScale is the token's decimal count; finer amounts cannot be settled.
	maxAmountScale = 18
	// replayTTL bounds how long the cache remembers a captured authorization.
	// The store's unique index is the durable guard.
	replayTTL = 30 * 24 * time.Hour
)

// IOUServiceImpl implements ports.IOUService. It is the only component that
// requests status transitions from the store.
type IOUServiceImpl struct {
	repo            ports.IOURepository
	replay          ports.ReplayCache       // optional
	directory       ports.MerchantDirectory // optional
	requireVerified bool
	log             zerolog.Logger
	now             func() time.Time
}

// NewIOUService creates a new IOUServiceImpl. replay and directory may be nil.
// When requireVerified is set, create-iou rejects merchants the directory
// does not report as verified.
func NewIOUService(
	repo ports.IOURepository,
	replay ports.ReplayCache,
	directory ports.MerchantDirectory,
	requireVerified bool,
	log zerolog.Logger,
) *IOUServiceImpl {
	return &IOUServiceImpl{
		repo:            repo,
		replay:          replay,
		directory:       directory,
		requireVerified: requireVerified,
		log:             logger.WithComponent(log, "iou"),
		now:             time.Now,
	}
}

// Create validates and stores a new pending IOU.
func (s *IOUServiceImpl) Create(ctx context.Context, req ports.CreateIOURequest) (*domain.IOU, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	if req.Nonce > 0 && s.replay != nil {
		seen, err := s.replay.Seen(ctx, req.Beneficiary, req.Nonce)
		if err != nil {
			s.log.Warn().Err(err).Str("beneficiary", req.Beneficiary).Msg("replay cache check failed, falling through to store")
		}
		if seen {
			return nil, apperror.ErrDuplicateAuthorization()
		}
	}

	if s.requireVerified && s.directory != nil {
		profile, err := s.directory.MerchantProfile(ctx, req.Merchant)
		if err != nil {
			return nil, err
		}
		if !profile.Verified {
			return nil, apperror.Validation("merchant is not a verified relief merchant")
		}
	}

	ts := s.now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	iou, err := s.repo.Create(ctx, domain.NewIOU{
		Beneficiary: strings.TrimSpace(req.Beneficiary),
		Merchant:    strings.TrimSpace(req.Merchant),
		Amount:      req.Amount,
		Signature:   req.Signature,
		Nonce:       req.Nonce,
		Timestamp:   ts,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAuthorization) {
			return nil, apperror.ErrDuplicateAuthorization()
		}
		return nil, apperror.ErrStorage(err)
	}

	if iou.Nonce > 0 && s.replay != nil {
		if err := s.replay.Remember(ctx, iou.Beneficiary, iou.Nonce, replayTTL); err != nil {
			s.log.Warn().Err(err).Int64("iou_id", iou.ID).Msg("failed to cache authorization nonce")
		}
	}

	s.log.Info().
		Int64("iou_id", iou.ID).
		Str("merchant", iou.Merchant).
		Str("amount", iou.Amount.String()).
		Msg("iou created")
	return iou, nil
}

func validateCreate(req ports.CreateIOURequest) error {
	switch {
	case req.Beneficiary == "":
		return apperror.Validation("beneficiary is required")
	case req.Merchant == "":
		return apperror.Validation("merchant is required")
	case strings.TrimSpace(req.Signature) == "":
		return apperror.Validation("signature is required")
	case !domain.IsAddress(strings.TrimSpace(req.Beneficiary)):
		return apperror.Validation("beneficiary must be a 0x-prefixed hex address")
	case !domain.IsAddress(strings.TrimSpace(req.Merchant)):
		return apperror.Validation("merchant must be a 0x-prefixed hex address")
	case !req.Amount.IsPositive():
		return apperror.Validation("amount must be greater than zero")
	case !req.Amount.Equal(req.Amount.Truncate(maxAmountScale)):
		return apperror.Validation(fmt.Sprintf("amount has more than %d decimal places", maxAmountScale))
	case req.Nonce < 0:
		return apperror.Validation("nonce must not be negative")
	}
	return nil
}

// Get returns a single IOU.
func (s *IOUServiceImpl) Get(ctx context.Context, id int64) (*domain.IOU, error) {
	iou, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}
	if iou == nil {
		return nil, apperror.ErrNotFound("IOU")
	}
	return iou, nil
}

// ListByMerchant returns the merchant's IOUs with a summary folded over them.
func (s *IOUServiceImpl) ListByMerchant(ctx context.Context, merchant string) ([]domain.IOU, domain.Summary, error) {
	if !domain.IsAddress(merchant) {
		return nil, domain.Summary{}, apperror.Validation("merchant must be a 0x-prefixed hex address")
	}
	ious, err := s.repo.ListByMerchant(ctx, merchant)
	if err != nil {
		return nil, domain.Summary{}, apperror.ErrStorage(err)
	}
	return ious, domain.Summarize(ious), nil
}

// ListAll returns every IOU with the system-wide summary.
func (s *IOUServiceImpl) ListAll(ctx context.Context) ([]domain.IOU, domain.SystemSummary, error) {
	ious, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, domain.SystemSummary{}, apperror.ErrStorage(err)
	}
	return ious, domain.SummarizeSystem(ious), nil
}

// MarkSynced moves a pending IOU to synced on behalf of its merchant.
func (s *IOUServiceImpl) MarkSynced(ctx context.Context, id int64, merchant string) (*domain.IOU, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// merchant is immutable, so checking it before the conditional update is safe
	if !current.BelongsTo(merchant) {
		return nil, apperror.ErrMerchantMismatch()
	}

	now := s.now().UTC()
	iou, err := s.repo.UpdateStatus(ctx, id, domain.StatusUpdate{
		Status:   domain.IOUStatusSynced,
		SyncedAt: &now,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return iou, nil
}

// MarkSettled records chain confirmation. A settled IOU is returned unchanged.
func (s *IOUServiceImpl) MarkSettled(ctx context.Context, id int64, txHash string) (*domain.IOU, error) {
	if txHash == "" {
		return nil, apperror.Validation("txHash is required")
	}

	now := s.now().UTC()
	iou, err := s.repo.UpdateStatus(ctx, id, domain.StatusUpdate{
		Status:    domain.IOUStatusSettled,
		SettledAt: &now,
		TxHash:    &txHash,
	})
	if err != nil {
		var te *domain.TransitionError
		if errors.As(err, &te) && te.From == domain.IOUStatusSettled {
			return te.Current, nil
		}
		return nil, mapStoreError(err)
	}

	s.log.Info().Int64("iou_id", id).Str("tx_hash", txHash).Msg("iou settled")
	return iou, nil
}

// MarkFailed moves a pending or synced IOU to failed, keeping reason on the record.
func (s *IOUServiceImpl) MarkFailed(ctx context.Context, id int64, reason string) (*domain.IOU, error) {
	iou, err := s.repo.UpdateStatus(ctx, id, domain.StatusUpdate{
		Status:    domain.IOUStatusFailed,
		LastError: &reason,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.log.Warn().Int64("iou_id", id).Str("reason", reason).Msg("iou failed")
	return iou, nil
}

// Release returns a synced IOU to pending.
func (s *IOUServiceImpl) Release(ctx context.Context, id int64, reason string) (*domain.IOU, error) {
	iou, err := s.repo.UpdateStatus(ctx, id, domain.StatusUpdate{
		Status:    domain.IOUStatusPending,
		LastError: &reason,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.log.Info().Int64("iou_id", id).Str("reason", reason).Msg("iou released to pending")
	return iou, nil
}

// ConfirmSettled marks each synced id as settled under txHash. Ids that are
// missing or not synced are reported as skipped rather than failing the call.
func (s *IOUServiceImpl) ConfirmSettled(ctx context.Context, ids []int64, txHash string) (*domain.MarkSettledResult, error) {
	if len(ids) == 0 {
		return nil, apperror.Validation("iouIds must be a non-empty list")
	}
	if txHash == "" {
		return nil, apperror.Validation("txHash is required")
	}

	result := &domain.MarkSettledResult{IOUs: []domain.IOU{}, Skipped: []domain.SkippedIOU{}}
	seen := make(map[int64]struct{}, len(ids))
	now := s.now().UTC()

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			result.Skipped = append(result.Skipped, domain.SkippedIOU{ID: id, Reason: domain.SkipDuplicate})
			continue
		}
		seen[id] = struct{}{}

		iou, err := s.repo.UpdateStatus(ctx, id, domain.StatusUpdate{
			Status:    domain.IOUStatusSettled,
			SettledAt: &now,
			TxHash:    &txHash,
		})
		if err != nil {
			var te *domain.TransitionError
			switch {
			case errors.Is(err, domain.ErrIOUNotFound):
				result.Skipped = append(result.Skipped, domain.SkippedIOU{ID: id, Reason: domain.SkipNotFound})
			case errors.As(err, &te) && te.From == domain.IOUStatusSettled:
				result.Skipped = append(result.Skipped, domain.SkippedIOU{ID: id, Reason: domain.SkipAlreadySettled})
			case errors.As(err, &te):
				result.Skipped = append(result.Skipped, domain.SkippedIOU{ID: id, Reason: domain.SkipInvalidStatus})
			default:
				return nil, apperror.ErrStorage(err)
			}
			continue
		}
		result.IOUs = append(result.IOUs, *iou)
	}

	result.SettledCount = len(result.IOUs)
	s.log.Info().
		Int("requested", len(ids)).
		Int("settled", result.SettledCount).
		Str("tx_hash", txHash).
		Msg("settlement confirmed")
	return result, nil
}

// Delete purges an IOU. Administrative use only.
func (s *IOUServiceImpl) Delete(ctx context.Context, id int64) error {
	var purged *domain.IOU
	if s.replay != nil {
		iou, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return apperror.ErrStorage(err)
		}
		purged = iou
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrIOUNotFound) {
			return apperror.ErrNotFound("IOU")
		}
		return apperror.ErrStorage(err)
	}

	// The store's unique index no longer holds the authorization; neither may the cache.
	if purged != nil && purged.Nonce > 0 {
		if err := s.replay.Forget(ctx, purged.Beneficiary, purged.Nonce); err != nil {
			s.log.Warn().Err(err).Int64("iou_id", id).Msg("failed to forget purged authorization nonce")
		}
	}
	s.log.Warn().Int64("iou_id", id).Msg("iou deleted")
	return nil
}

func mapStoreError(err error) error {
	var te *domain.TransitionError
	switch {
	case errors.Is(err, domain.ErrIOUNotFound):
		return apperror.ErrNotFound("IOU")
	case errors.As(err, &te):
		appErr := apperror.ErrInvalidTransition(string(te.From), string(te.To))
		appErr.Err = te
		return appErr
	default:
		return apperror.ErrStorage(err)
	}
}
