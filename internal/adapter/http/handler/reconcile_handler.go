package handler

import (
	"relief-offline-ledger/internal/adapter/http/dto"
	"relief-offline-ledger/internal/adapter/http/middleware"
	"relief-offline-ledger/internal/core/domain"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/apperror"
	"relief-offline-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReconcileHandler serves bulk reconciliation endpoints.
type ReconcileHandler struct {
	reconcileSvc ports.ReconcileService
}

// NewReconcileHandler creates a new ReconcileHandler.
func NewReconcileHandler(reconcileSvc ports.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{reconcileSvc: reconcileSvc}
}

// BulkSync handles POST /api/v1/offline/bulk-sync. Async batches answer 202.
func (h *ReconcileHandler) BulkSync(c *gin.Context) {
	var req dto.BulkSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	report, err := h.reconcileSvc.BulkSync(c.Request.Context(), req.MerchantAddress, req.IOUIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResource, report.BatchID.String())
	if !report.Complete && report.Mode == domain.ReconcileModeAsync {
		response.Accepted(c, dto.FromReport(report))
		return
	}
	response.OK(c, dto.FromReport(report))
}

// Report handles GET /api/v1/offline/bulk-sync/:batchId.
func (h *ReconcileHandler) Report(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		response.Error(c, apperror.Validation("batchId must be a UUID"))
		return
	}

	report, err := h.reconcileSvc.Report(c.Request.Context(), batchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromReport(report))
}

// Sweep handles POST /api/v1/offline/sweep (admin).
func (h *ReconcileHandler) Sweep(c *gin.Context) {
	report, err := h.reconcileSvc.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResource, report.BatchID.String())
	response.OK(c, dto.FromReport(report))
}
