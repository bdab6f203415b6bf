package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"relief-offline-ledger/config"
	"relief-offline-ledger/internal/core/domain"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/apperror"
	"relief-offline-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxBatchSize caps the ids accepted by one bulk-sync call.
const maxBatchSize = 500

// ReconcileServiceImpl implements ports.ReconcileService.
//
// A batch runs in two phases. Phase one marks every eligible id synced,
// sequentially and before any chain call, so a concurrent batch cannot
// select the same IOUs. Phase two settles each synced IOU independently
// under a per-IOU lock, with at most cfg.Concurrency calls in flight.
type ReconcileServiceImpl struct {
	ious       ports.IOUService
	repo       ports.IOURepository // read-only: sweep selection
	settlement ports.SettlementClient
	locks      ports.LockStore
	reports    ports.ReportStore
	notifier   ports.SettlementNotifier
	cfg        config.ReconcileConfig
	log        zerolog.Logger
	now        func() time.Time

	inflight sync.WaitGroup
}

// NewReconcileService creates a new ReconcileServiceImpl. settlement and
// notifier may be nil; without a settlement client every item is retained
// as synced with a chain-unavailable outcome.
func NewReconcileService(
	ious ports.IOUService,
	repo ports.IOURepository,
	settlement ports.SettlementClient,
	locks ports.LockStore,
	reports ports.ReportStore,
	notifier ports.SettlementNotifier,
	cfg config.ReconcileConfig,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &ReconcileServiceImpl{
		ious:       ious,
		repo:       repo,
		settlement: settlement,
		locks:      locks,
		reports:    reports,
		notifier:   notifier,
		cfg:        cfg,
		log:        logger.WithComponent(log, "reconcile"),
		now:        time.Now,
	}
}

// BulkSync marks the merchant's pending ids synced and settles them.
// In async mode the returned report has no outcomes yet; the finished
// report is written to the report store.
func (s *ReconcileServiceImpl) BulkSync(ctx context.Context, merchant string, ids []int64) (*domain.ReconcileReport, error) {
	if merchant == "" {
		return nil, apperror.Validation("merchantAddress is required")
	}
	if !domain.IsAddress(merchant) {
		return nil, apperror.Validation("merchantAddress must be a 0x-prefixed hex address")
	}
	if len(ids) == 0 {
		return nil, apperror.Validation("iouIds must be a non-empty list")
	}
	if len(ids) > maxBatchSize {
		return nil, apperror.Validation(fmt.Sprintf("iouIds may hold at most %d ids", maxBatchSize))
	}

	report := s.newReport(merchant, domain.ReconcileMode(s.cfg.Mode))
	seen := make(map[int64]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			report.Skipped = append(report.Skipped, domain.SkippedIOU{ID: id, Reason: domain.SkipDuplicate})
			continue
		}
		seen[id] = struct{}{}

		iou, err := s.ious.MarkSynced(ctx, id, merchant)
		if err != nil {
			reason, skip := skipReason(err)
			if !skip {
				s.releaseMarked(context.WithoutCancel(ctx), report, err)
				return nil, err
			}
			report.Skipped = append(report.Skipped, domain.SkippedIOU{ID: id, Reason: reason})
			continue
		}
		report.IOUs = append(report.IOUs, *iou)
	}
	report.SyncedCount = len(report.IOUs)

	s.log.Info().
		Str(logger.FieldBatchID, report.BatchID.String()).
		Str("merchant", merchant).
		Int("requested", len(ids)).
		Int("synced", report.SyncedCount).
		Int("skipped", len(report.Skipped)).
		Msg("batch marked synced")

	// Settlement outlives the request that started it.
	bg := context.WithoutCancel(ctx)

	if report.SyncedCount == 0 || report.Mode != domain.ReconcileModeAsync {
		report.Outcomes = s.settleAll(bg, report.IOUs)
		s.finish(bg, report)
		return report, nil
	}

	s.saveReport(bg, report)
	final := cloneReport(report)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		final.Outcomes = s.settleAll(bg, final.IOUs)
		s.finish(bg, final)
	}()
	return report, nil
}

// Report returns a stored batch report.
func (s *ReconcileServiceImpl) Report(ctx context.Context, batchID uuid.UUID) (*domain.ReconcileReport, error) {
	report, err := s.reports.Get(ctx, batchID)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}
	if report == nil {
		return nil, apperror.ErrNotFound("Reconciliation batch")
	}
	return report, nil
}

// Sweep retries settlement for IOUs left synced longer than cfg.SweepAge.
func (s *ReconcileServiceImpl) Sweep(ctx context.Context) (*domain.ReconcileReport, error) {
	cutoff := s.now().Add(-s.cfg.SweepAge)
	stale, err := s.repo.ListSyncedBefore(ctx, cutoff, s.cfg.SweepLimit)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}

	report := s.newReport("", domain.ReconcileModeSweep)
	report.IOUs = stale
	report.Outcomes = s.settleAll(ctx, stale)
	s.finish(ctx, report)

	if len(stale) > 0 {
		s.log.Info().
			Str(logger.FieldBatchID, report.BatchID.String()).
			Int("candidates", len(stale)).
			Int("settled", report.SettledCount()).
			Msg("sweep finished")
	}
	return report, nil
}

// RunSweeper calls Sweep every cfg.SweepInterval until ctx is done.
func (s *ReconcileServiceImpl) RunSweeper(ctx context.Context) {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Wait blocks until every async batch has finished settling.
func (s *ReconcileServiceImpl) Wait() {
	s.inflight.Wait()
}

func (s *ReconcileServiceImpl) newReport(merchant string, mode domain.ReconcileMode) *domain.ReconcileReport {
	return &domain.ReconcileReport{
		BatchID:   uuid.New(),
		Merchant:  merchant,
		Mode:      mode,
		IOUs:      []domain.IOU{},
		Skipped:   []domain.SkippedIOU{},
		Outcomes:  []domain.SettlementOutcome{},
		StartedAt: s.now().UTC(),
	}
}

func (s *ReconcileServiceImpl) finish(ctx context.Context, report *domain.ReconcileReport) {
	done := s.now().UTC()
	report.FinishedAt = &done
	report.Complete = true
	s.saveReport(ctx, report)
}

func (s *ReconcileServiceImpl) saveReport(ctx context.Context, report *domain.ReconcileReport) {
	if err := s.reports.Save(ctx, report, s.cfg.ReportTTL); err != nil {
		s.log.Warn().Err(err).Str(logger.FieldBatchID, report.BatchID.String()).Msg("failed to save reconcile report")
	}
}

// releaseMarked returns the IOUs already marked in an aborted batch to
// pending, so a retried bulk-sync selects them again.
func (s *ReconcileServiceImpl) releaseMarked(ctx context.Context, report *domain.ReconcileReport, cause error) {
	log := logger.WithBatch(s.log, report.BatchID.String())
	for _, iou := range report.IOUs {
		if _, err := s.ious.Release(ctx, iou.ID, "batch aborted: "+cause.Error()); err != nil {
			iouLog := logger.WithIOU(log, iou.ID)
			iouLog.Error().Err(err).Msg("failed to release iou from aborted batch")
		}
	}
	log.Warn().Err(cause).Int("released", len(report.IOUs)).Msg("batch aborted before settlement")
}

// settleAll settles every IOU and returns outcomes in input order.
func (s *ReconcileServiceImpl) settleAll(ctx context.Context, ious []domain.IOU) []domain.SettlementOutcome {
	outcomes := make([]domain.SettlementOutcome, len(ious))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range ious {
		i := i
		g.Go(func() error {
			outcomes[i] = s.settleOne(ctx, ious[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// settleOne never returns an error: every failure is recorded on the outcome.
func (s *ReconcileServiceImpl) settleOne(ctx context.Context, iou domain.IOU) domain.SettlementOutcome {
	out := domain.SettlementOutcome{ID: iou.ID, Status: iou.Status}
	log := logger.WithIOU(s.log, iou.ID)

	lockKey := "iou:" + strconv.FormatInt(iou.ID, 10)
	token, ok, err := s.locks.Acquire(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		out.Error = apperror.ErrLockUnavailable(err).Error()
		log.Warn().Err(err).Msg("settlement lock unavailable")
		return out
	}
	if !ok {
		out.Error = string(domain.SkipLocked) + ": settlement already in progress"
		return out
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			log.Warn().Err(err).Msg("failed to release settlement lock")
		}
	}()

	// Re-read under the lock: another worker may have settled or failed it.
	current, err := s.ious.Get(ctx, iou.ID)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Status = current.Status
	if current.Status != domain.IOUStatusSynced {
		out.Settled = current.Status == domain.IOUStatusSettled
		if current.TxHash != nil {
			out.TxHash = *current.TxHash
		}
		if !out.Settled {
			out.Error = "iou is no longer synced"
		}
		return out
	}

	itemCtx := ctx
	if s.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, s.cfg.ItemTimeout)
		defer cancel()
	}

	receipt, err := s.relay(itemCtx, current)
	if err != nil {
		out.Error = err.Error()
		out.Status = s.applyFailurePolicy(ctx, current, err)
		log.Warn().Err(err).Str("status", string(out.Status)).Msg("settlement failed")
		s.notify(ctx, current, out)
		return out
	}

	settled, err := s.ious.MarkSettled(ctx, current.ID, receipt.TxHash)
	out.TxHash = receipt.TxHash
	if err != nil {
		// Confirmed on-chain but not recorded. The contract nonce rejects a
		// replay, so a later sweep cannot pay twice.
		out.Error = err.Error()
		log.Error().Err(err).Str("tx_hash", receipt.TxHash).Msg("settled on-chain but store update failed")
		return out
	}

	out.Settled = true
	out.Status = settled.Status
	log.Info().Str("tx_hash", receipt.TxHash).Uint64("block", receipt.BlockNumber).Msg("iou settled on-chain")
	s.notify(ctx, settled, out)
	return out
}

func (s *ReconcileServiceImpl) relay(ctx context.Context, iou *domain.IOU) (*ports.SettlementReceipt, error) {
	if s.settlement == nil {
		return nil, apperror.ErrChainUnavailable(errors.New("settlement client not configured"))
	}

	nonce := uint64(iou.Nonce)
	if nonce == 0 {
		n, err := s.settlement.GetNonce(ctx, iou.Beneficiary)
		if err != nil {
			return nil, err
		}
		nonce = n
	}

	return s.settlement.RelaySpend(ctx, ports.SettlementRequest{
		Beneficiary:   iou.Beneficiary,
		Merchant:      iou.Merchant,
		Amount:        iou.Amount,
		Description:   iou.Description(),
		Authorization: iou.Signature,
		Nonce:         nonce,
	})
}

// applyFailurePolicy returns the status the IOU is left in. Only a rejected
// settlement is subject to the policy; timeouts and outages stay synced.
func (s *ReconcileServiceImpl) applyFailurePolicy(ctx context.Context, iou *domain.IOU, cause error) domain.IOUStatus {
	if !apperror.HasCode(cause, apperror.CodeSettlementFailed) {
		return domain.IOUStatusSynced
	}

	var (
		updated *domain.IOU
		err     error
	)
	switch domain.FailurePolicy(s.cfg.FailurePolicy) {
	case domain.FailurePolicyRevert:
		updated, err = s.ious.Release(ctx, iou.ID, cause.Error())
	case domain.FailurePolicyRetain:
		return domain.IOUStatusSynced
	default:
		updated, err = s.ious.MarkFailed(ctx, iou.ID, cause.Error())
	}
	if err != nil {
		s.log.Error().Err(err).Int64("iou_id", iou.ID).Str("policy", s.cfg.FailurePolicy).Msg("failed to apply failure policy")
		return domain.IOUStatusSynced
	}
	return updated.Status
}

func (s *ReconcileServiceImpl) notify(ctx context.Context, iou *domain.IOU, out domain.SettlementOutcome) {
	if s.notifier == nil {
		return
	}
	snapshot := *iou
	snapshot.Status = out.Status
	if err := s.notifier.Notify(ctx, &snapshot, out); err != nil {
		s.log.Warn().Err(err).Int64("iou_id", iou.ID).Msg("settlement notification failed")
	}
}

// skipReason maps a MarkSynced error onto a lenient skip. Anything else is fatal to the batch.
func skipReason(err error) (domain.SkipReason, bool) {
	switch {
	case apperror.HasCode(err, apperror.CodeNotFound):
		return domain.SkipNotFound, true
	case apperror.HasCode(err, apperror.CodeMerchantMismatch):
		return domain.SkipMerchantDiffer, true
	case apperror.HasCode(err, apperror.CodeInvalidTransition):
		return domain.SkipNotPending, true
	}
	return "", false
}

func cloneReport(r *domain.ReconcileReport) *domain.ReconcileReport {
	c := *r
	c.IOUs = slices.Clone(r.IOUs)
	c.Skipped = slices.Clone(r.Skipped)
	c.Outcomes = []domain.SettlementOutcome{}
	return &c
}
