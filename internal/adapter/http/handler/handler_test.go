package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relief-offline-ledger/internal/adapter/http/middleware"
	"relief-offline-ledger/internal/core/domain"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/internal/core/ports/mocks"
	"relief-offline-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	beneficiary = "0x1111111111111111111111111111111111111111"
	merchant    = "0x2222222222222222222222222222222222222222"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func jsonContext(method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func pendingIOU(id int64) *domain.IOU {
	return &domain.IOU{
		ID:          id,
		Beneficiary: beneficiary,
		Merchant:    merchant,
		Amount:      decimal.RequireFromString("12.5"),
		Signature:   "0xabc",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:      domain.IOUStatusPending,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
	}
}

// --- Auth Handler ---

func TestAdminToken_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(time.Hour)
	mockAuth.EXPECT().AdminLogin(gomock.Any(), "admin", "secret").Return("tok", expiry, nil)

	c, w := jsonContext(http.MethodPost, "/api/v1/auth/admin-token", map[string]string{
		"username": "admin", "password": "secret",
	})
	h.AdminToken(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "tok", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestAdminToken_PasswordNotEscaped(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().AdminLogin(gomock.Any(), "admin", " p<w>&d ").
		Return("tok", time.Now().Add(time.Hour), nil)

	c, w := jsonContext(http.MethodPost, "/", map[string]string{"username": "  admin ", "password": " p<w>&d "})
	h.AdminToken(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", c.GetString(middleware.CtxSubject))
}

func TestAdminToken_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	c, w := jsonContext(http.MethodPost, "/", map[string]string{})
	h.AdminToken(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminToken_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().AdminLogin(gomock.Any(), "admin", "wrong").
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	c, w := jsonContext(http.MethodPost, "/", map[string]string{"username": "admin", "password": "wrong"})
	h.AdminToken(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decodeErrorCode(t, w))
}

// --- IOU Handler ---

func TestCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	mockIOU.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateIOURequest) (*domain.IOU, error) {
			assert.Equal(t, beneficiary, req.Beneficiary)
			assert.Equal(t, merchant, req.Merchant)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString("12.5")))
			assert.Equal(t, int64(7), req.Nonce)
			require.NotNil(t, req.Timestamp)
			assert.Equal(t, int64(1767323045000), req.Timestamp.UnixMilli())
			return pendingIOU(1), nil
		})

	c, w := jsonContext(http.MethodPost, "/api/v1/offline/create-iou", map[string]interface{}{
		"beneficiary": beneficiary,
		"merchant":    merchant,
		"amount":      "12.5",
		"signature":   "0xabc",
		"timestamp":   1767323045000,
		"nonce":       7,
	})
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, "pending", data["status"])
	iou := data["iou"].(map[string]interface{})
	assert.Equal(t, "12.5", iou["amount"])
	assert.Nil(t, iou["syncedAt"])
}

func TestCreate_SignatureStoredVerbatim(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	const signature = "0xsig&<opaque>"
	mockIOU.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateIOURequest) (*domain.IOU, error) {
			assert.Equal(t, signature, req.Signature)
			iou := pendingIOU(1)
			iou.Signature = req.Signature
			return iou, nil
		})

	c, w := jsonContext(http.MethodPost, "/api/v1/offline/create-iou", map[string]interface{}{
		"beneficiary": beneficiary,
		"merchant":    merchant,
		"amount":      "1",
		"signature":   signature,
	})
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	iou := decodeData(t, w)["iou"].(map[string]interface{})
	assert.Equal(t, signature, iou["signature"])
}

func TestCreate_NumericAmountWithoutNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	mockIOU.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateIOURequest) (*domain.IOU, error) {
			assert.Equal(t, int64(0), req.Nonce)
			assert.Nil(t, req.Timestamp)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(3)))
			return pendingIOU(2), nil
		})

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"beneficiary": beneficiary,
		"merchant":    merchant,
		"amount":      3,
		"signature":   "0xabc",
	})
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreate_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"no beneficiary", map[string]interface{}{"merchant": merchant, "amount": "1", "signature": "0x1"}},
		{"no merchant", map[string]interface{}{"beneficiary": beneficiary, "amount": "1", "signature": "0x1"}},
		{"no amount", map[string]interface{}{"beneficiary": beneficiary, "merchant": merchant, "signature": "0x1"}},
		{"no signature", map[string]interface{}{"beneficiary": beneficiary, "merchant": merchant, "amount": "1"}},
		{"bad address", map[string]interface{}{"beneficiary": "alice", "merchant": merchant, "amount": "1", "signature": "0x1"}},
		{"negative nonce", map[string]interface{}{"beneficiary": beneficiary, "merchant": merchant, "amount": "1", "signature": "0x1", "nonce": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewIOUHandler(mocks.NewMockIOUService(ctrl))

			c, w := jsonContext(http.MethodPost, "/", tt.body)
			h.Create(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VAL_001", decodeErrorCode(t, w))
		})
	}
}

func TestCreate_Duplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	mockIOU.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDuplicateAuthorization())

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"beneficiary": beneficiary, "merchant": merchant, "amount": "1", "signature": "0x1", "nonce": 4,
	})
	h.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "IOU_002", decodeErrorCode(t, w))
}

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	mockIOU.EXPECT().Get(gomock.Any(), int64(9)).Return(pendingIOU(9), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/offline/iou/9", nil)
	c.Params = gin.Params{{Key: "id", Value: "9"}}
	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(9), decodeData(t, w)["id"])
}

func TestGet_InvalidID(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		ctrl := gomock.NewController(t)
		h := NewIOUHandler(mocks.NewMockIOUService(ctrl))

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Params = gin.Params{{Key: "id", Value: raw}}
		h.Get(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	mockIOU.EXPECT().Get(gomock.Any(), int64(404)).Return(nil, apperror.ErrNotFound("IOU"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: "404"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListByMerchant_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	ious := []domain.IOU{*pendingIOU(1), *pendingIOU(2)}
	mockIOU.EXPECT().ListByMerchant(gomock.Any(), merchant).Return(ious, domain.Summarize(ious), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "address", Value: merchant}}
	h.ListByMerchant(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Len(t, data["ious"], 2)
	summary := data["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["pending"])
	assert.Equal(t, "25", summary["totalAmount"])
}

func TestListByMerchant_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	mockIOU.EXPECT().ListByMerchant(gomock.Any(), merchant).Return(nil, domain.Summarize(nil), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "address", Value: merchant}}
	h.ListByMerchant(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ious":[]`)
}

func TestListAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	ious := []domain.IOU{*pendingIOU(1)}
	mockIOU.EXPECT().ListAll(gomock.Any()).Return(ious, domain.SummarizeSystem(ious), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ListAll(c)

	assert.Equal(t, http.StatusOK, w.Code)
	summary := decodeData(t, w)["summary"].(map[string]interface{})
	assert.Equal(t, float64(1), summary["merchantCount"])
	assert.Equal(t, float64(1), summary["beneficiaryCount"])
}

func TestMarkSettled_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	settled := pendingIOU(3)
	settled.Status = domain.IOUStatusSettled
	mockIOU.EXPECT().ConfirmSettled(gomock.Any(), []int64{3, 4}, "0xdead").Return(&domain.MarkSettledResult{
		SettledCount: 1,
		IOUs:         []domain.IOU{*settled},
		Skipped:      []domain.SkippedIOU{{ID: 4, Reason: domain.SkipNotFound}},
	}, nil)

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{"iouIds": []int64{3, 4}, "txHash": "0xdead"})
	h.MarkSettled(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["settledCount"])
	skipped := data["skipped"].([]interface{})
	require.Len(t, skipped, 1)
	assert.Equal(t, "not_found", skipped[0].(map[string]interface{})["reason"])
}

func TestMarkSettled_TxHashTrimmedNotEscaped(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	mockIOU.EXPECT().ConfirmSettled(gomock.Any(), []int64{3}, "0xbeef").Return(&domain.MarkSettledResult{}, nil)

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{"iouIds": []int64{3}, "txHash": " 0xbeef "})
	h.MarkSettled(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMarkSettled_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"empty ids", map[string]interface{}{"iouIds": []int64{}, "txHash": "0xdead"}},
		{"missing hash", map[string]interface{}{"iouIds": []int64{1}}},
		{"non-hex hash", map[string]interface{}{"iouIds": []int64{1}, "txHash": "deadbeef"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewIOUHandler(mocks.NewMockIOUService(ctrl))

			c, w := jsonContext(http.MethodPost, "/", tt.body)
			h.MarkSettled(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestDelete_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIOU := mocks.NewMockIOUService(ctrl)
	h := NewIOUHandler(mockIOU)

	mockIOU.EXPECT().Delete(gomock.Any(), int64(5)).Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodDelete, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	h.Delete(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "IOU 5 deleted", decodeData(t, w)["message"])
}

// --- Reconcile Handler ---

func report(mode domain.ReconcileMode, complete bool) *domain.ReconcileReport {
	r := &domain.ReconcileReport{
		BatchID:     uuid.New(),
		Merchant:    merchant,
		Mode:        mode,
		SyncedCount: 2,
		IOUs:        []domain.IOU{*pendingIOU(1), *pendingIOU(2)},
		Complete:    complete,
		StartedAt:   time.Now(),
	}
	if complete {
		r.Outcomes = []domain.SettlementOutcome{
			{ID: 1, Settled: true, Status: domain.IOUStatusSettled, TxHash: "0x01"},
			{ID: 2, Settled: false, Status: domain.IOUStatusFailed, Error: "reverted"},
		}
	}
	return r
}

func TestBulkSync_SyncMode(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRec := mocks.NewMockReconcileService(ctrl)
	h := NewReconcileHandler(mockRec)

	rep := report(domain.ReconcileModeSync, true)
	mockRec.EXPECT().BulkSync(gomock.Any(), merchant, []int64{1, 2}).Return(rep, nil)

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{"merchantAddress": merchant, "iouIds": []int64{1, 2}})
	h.BulkSync(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, rep.BatchID.String(), data["batchId"])
	assert.Equal(t, float64(2), data["syncedCount"])
	assert.Equal(t, float64(1), data["settledCount"])
	assert.Equal(t, true, data["complete"])
}

func TestBulkSync_AsyncModeAccepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRec := mocks.NewMockReconcileService(ctrl)
	h := NewReconcileHandler(mockRec)

	mockRec.EXPECT().BulkSync(gomock.Any(), merchant, []int64{1, 2}).Return(report(domain.ReconcileModeAsync, false), nil)

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{"merchantAddress": merchant, "iouIds": []int64{1, 2}})
	h.BulkSync(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, false, data["complete"])
	assert.Equal(t, []interface{}{}, data["outcomes"])
}

func TestBulkSync_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing merchant", map[string]interface{}{"iouIds": []int64{1}}},
		{"missing ids", map[string]interface{}{"merchantAddress": merchant}},
		{"empty ids", map[string]interface{}{"merchantAddress": merchant, "iouIds": []int64{}}},
		{"ids not an array", map[string]interface{}{"merchantAddress": merchant, "iouIds": "1,2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewReconcileHandler(mocks.NewMockReconcileService(ctrl))

			c, w := jsonContext(http.MethodPost, "/", tt.body)
			h.BulkSync(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestBulkSync_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRec := mocks.NewMockReconcileService(ctrl)
	h := NewReconcileHandler(mockRec)

	mockRec.EXPECT().BulkSync(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrStorage(errors.New("connection refused")))

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{"merchantAddress": merchant, "iouIds": []int64{1}})
	h.BulkSync(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestReport_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRec := mocks.NewMockReconcileService(ctrl)
	h := NewReconcileHandler(mockRec)

	rep := report(domain.ReconcileModeAsync, true)
	mockRec.EXPECT().Report(gomock.Any(), rep.BatchID).Return(rep, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "batchId", Value: rep.BatchID.String()}}
	h.Report(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData(t, w)["outcomes"], 2)
}

func TestReport_InvalidBatchID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewReconcileHandler(mocks.NewMockReconcileService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "batchId", Value: "not-a-uuid"}}
	h.Report(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweep_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRec := mocks.NewMockReconcileService(ctrl)
	h := NewReconcileHandler(mockRec)

	rep := report(domain.ReconcileModeSweep, true)
	mockRec.EXPECT().Sweep(gomock.Any()).Return(rep, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	h.Sweep(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sweep", decodeData(t, w)["mode"])
}

// --- Health ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                 { return s.name }
func (s stubChecker) Ping(_ context.Context) error { return s.err }

func TestHealthCheck_Healthy(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgres"}, stubChecker{name: "redis"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthCheck_Degraded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgres"}, stubChecker{name: "chain", err: errors.New("dial tcp: refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), "dial tcp: refused")
}
