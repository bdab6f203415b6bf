package handler

import (
	"strconv"

	"relief-offline-ledger/internal/adapter/http/dto"
	"relief-offline-ledger/internal/adapter/http/middleware"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/apperror"
	"relief-offline-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// IOUHandler serves the IOU ledger endpoints.
type IOUHandler struct {
	iouSvc ports.IOUService
}

// NewIOUHandler creates a new IOUHandler.
func NewIOUHandler(iouSvc ports.IOUService) *IOUHandler {
	return &IOUHandler{iouSvc: iouSvc}
}

// Create handles POST /api/v1/offline/create-iou.
func (h *IOUHandler) Create(c *gin.Context) {
	var req dto.CreateIOURequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var nonce int64
	if req.Nonce != nil {
		nonce = *req.Nonce
	}

	iou, err := h.iouSvc.Create(c.Request.Context(), ports.CreateIOURequest{
		Beneficiary: req.Beneficiary,
		Merchant:    req.Merchant,
		Amount:      *req.Amount,
		Signature:   req.Signature,
		Nonce:       nonce,
		Timestamp:   req.Timestamp.Ptr(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResource, strconv.FormatInt(iou.ID, 10))
	response.Created(c, dto.CreateIOUResponse{
		ID:     iou.ID,
		Status: string(iou.Status),
		IOU:    dto.FromIOU(iou),
	})
}

// Get handles GET /api/v1/offline/iou/:id.
func (h *IOUHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	iou, err := h.iouSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromIOU(iou))
}

// ListByMerchant handles GET /api/v1/offline/merchant/:address/ious.
func (h *IOUHandler) ListByMerchant(c *gin.Context) {
	ious, summary, err := h.iouSvc.ListByMerchant(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.IOUListResponse{IOUs: dto.FromIOUs(ious), Summary: summary})
}

// ListAll handles GET /api/v1/offline/all-ious (admin).
func (h *IOUHandler) ListAll(c *gin.Context) {
	ious, summary, err := h.iouSvc.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.IOUListResponse{IOUs: dto.FromIOUs(ious), Summary: summary})
}

// MarkSettled handles POST /api/v1/offline/mark-settled.
func (h *IOUHandler) MarkSettled(c *gin.Context) {
	var req dto.MarkSettledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.iouSvc.ConfirmSettled(c.Request.Context(), req.IOUIDs, req.TxHash)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResource, req.TxHash)
	response.OK(c, dto.FromMarkSettled(result))
}

// Delete handles DELETE /api/v1/offline/iou/:id (admin).
func (h *IOUHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.iouSvc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResource, strconv.FormatInt(id, 10))
	response.OK(c, dto.MessageResponse{Message: "IOU " + strconv.FormatInt(id, 10) + " deleted"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, apperror.Validation("id must be a positive integer"))
		return 0, false
	}
	return id, true
}
