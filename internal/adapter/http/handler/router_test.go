package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"relief-offline-ledger/config"
	apidocs "relief-offline-ledger/docs/api"
	"relief-offline-ledger/internal/adapter/http/handler"
	"relief-offline-ledger/internal/adapter/metrics"
	"relief-offline-ledger/internal/adapter/storage/memory"
	redisStore "relief-offline-ledger/internal/adapter/storage/redis"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/internal/service"
	"relief-offline-ledger/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob      = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	shopA    = "0x00000000000000000000000000000000000000a1"
	shopB    = "0x00000000000000000000000000000000000000b2"
	adminPwd = "relief-admin-pass"
)

// fakeChain confirms every spend except those from rejected beneficiaries.
type fakeChain struct {
	mu       sync.Mutex
	rejected map[string]bool
	calls    []ports.SettlementRequest
}

func (f *fakeChain) RelaySpend(_ context.Context, req ports.SettlementRequest) (*ports.SettlementReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.rejected[strings.ToLower(req.Beneficiary)] {
		return nil, apperror.ErrSettlementFailed(errors.New("execution reverted: insufficient balance"))
	}
	return &ports.SettlementReceipt{TxHash: "0x" + strconv.Itoa(len(f.calls)) + "f", BlockNumber: uint64(len(f.calls))}, nil
}

func (f *fakeChain) GetNonce(_ context.Context, _ string) (uint64, error) {
	return 1, nil
}

func (f *fakeChain) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testServer struct {
	router   http.Handler
	chain    *fakeChain
	tokenSvc ports.TokenService
}

func newTestServer(t *testing.T, limiter *redisStore.RateLimitStore) *testServer {
	t.Helper()
	log := zerolog.Nop()

	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{
		Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16,
	})
	pwHash, err := hashSvc.Hash(adminPwd)
	require.NoError(t, err)

	tokenSvc := service.NewJWTTokenService("router-test-secret", time.Hour, "relief-offline-ledger")
	authSvc := service.NewAuthService(config.AdminConfig{Username: "admin", PasswordHash: pwHash}, hashSvc, tokenSvc)

	repo := memory.NewIOURepo()
	iouSvc := service.NewIOUService(repo, nil, nil, false, log)
	chain := &fakeChain{rejected: map[string]bool{bob: true}}
	m := metrics.New()
	reconcileSvc := service.NewReconcileService(iouSvc, repo, chain, memory.NewLockStore(), memory.NewReportStore(), m.WrapNotifier(nil),
		config.ReconcileConfig{
			Mode:          "sync",
			Concurrency:   2,
			FailurePolicy: "fail",
			ItemTimeout:   time.Second,
			LockTTL:       time.Minute,
			ReportTTL:     time.Hour,
			SweepAge:      time.Minute,
			SweepLimit:    50,
		}, log)

	deps := handler.RouterDeps{
		IOUSvc:         iouSvc,
		ReconcileSvc:   reconcileSvc,
		AuthSvc:        authSvc,
		TokenSvc:       tokenSvc,
		Logger:         log,
		AllowedOrigins: []string{"http://localhost:3000"},
		Metrics:        m,
		OpenAPIDoc:     apidocs.OpenAPI,
	}
	if limiter != nil {
		deps.RateLimiter = limiter
	}
	return &testServer{router: handler.SetupRouter(deps), chain: chain, tokenSvc: tokenSvc}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

func (s *testServer) createIOU(t *testing.T, from, to, amount string, nonce int64) int64 {
	t.Helper()
	code, resp := s.do(t, http.MethodPost, "/api/v1/offline/create-iou", map[string]interface{}{
		"beneficiary": from,
		"merchant":    to,
		"amount":      amount,
		"signature":   "0x" + strings.Repeat("ab", 65),
		"timestamp":   time.Now().UnixMilli(),
		"nonce":       nonce,
	}, "")
	require.Equal(t, http.StatusCreated, code, resp)
	return int64(resp["data"].(map[string]interface{})["id"].(float64))
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	code, resp := s.do(t, http.MethodPost, "/api/v1/auth/admin-token",
		map[string]string{"username": "admin", "password": adminPwd}, "")
	require.Equal(t, http.StatusOK, code, resp)
	return resp["data"].(map[string]interface{})["token"].(string)
}

func data(resp map[string]interface{}) map[string]interface{} {
	d, _ := resp["data"].(map[string]interface{})
	return d
}

func TestRouter_CreateAndList(t *testing.T) {
	s := newTestServer(t, nil)

	s.createIOU(t, alice, shopA, "10", 1)
	s.createIOU(t, alice, shopA, "2.5", 2)
	s.createIOU(t, bob, shopB, "7", 1)

	code, resp := s.do(t, http.MethodGet, "/api/v1/offline/merchant/0x"+strings.ToUpper(shopA[2:])+"/ious", nil, "")
	require.Equal(t, http.StatusOK, code, resp)
	d := data(resp)
	assert.Len(t, d["ious"], 2)
	summary := d["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["total"])
	assert.Equal(t, float64(2), summary["pending"])
	assert.Equal(t, "12.5", summary["totalAmount"])
}

func TestRouter_DuplicateAuthorizationRejected(t *testing.T) {
	s := newTestServer(t, nil)

	s.createIOU(t, alice, shopA, "10", 5)
	code, resp := s.do(t, http.MethodPost, "/api/v1/offline/create-iou", map[string]interface{}{
		"beneficiary": alice, "merchant": shopA, "amount": "10", "signature": "0x01", "nonce": 5,
	}, "")

	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "IOU_002", resp["error_code"])
}

func TestRouter_BulkSyncPartialFailure(t *testing.T) {
	s := newTestServer(t, nil)

	ok := s.createIOU(t, alice, shopA, "10", 1)
	rejected := s.createIOU(t, bob, shopA, "4", 1)
	foreign := s.createIOU(t, alice, shopB, "3", 2)

	code, resp := s.do(t, http.MethodPost, "/api/v1/offline/bulk-sync", map[string]interface{}{
		"merchantAddress": shopA,
		"iouIds":          []int64{ok, rejected, foreign, 999},
	}, "")
	require.Equal(t, http.StatusOK, code, resp)

	d := data(resp)
	assert.Equal(t, float64(2), d["syncedCount"])
	assert.Equal(t, float64(1), d["settledCount"])
	assert.Equal(t, true, d["complete"])
	assert.Len(t, d["skipped"], 2)
	assert.Equal(t, 2, s.chain.callCount())

	_, resp = s.do(t, http.MethodGet, "/api/v1/offline/iou/"+strconv.FormatInt(ok, 10), nil, "")
	assert.Equal(t, "settled", data(resp)["status"])
	assert.NotNil(t, data(resp)["txHash"])

	_, resp = s.do(t, http.MethodGet, "/api/v1/offline/iou/"+strconv.FormatInt(rejected, 10), nil, "")
	assert.Equal(t, "failed", data(resp)["status"])
	assert.Contains(t, data(resp)["lastError"], "insufficient balance")

	_, resp = s.do(t, http.MethodGet, "/api/v1/offline/iou/"+strconv.FormatInt(foreign, 10), nil, "")
	assert.Equal(t, "pending", data(resp)["status"])

	batchID := d["batchId"].(string)
	code, resp = s.do(t, http.MethodGet, "/api/v1/offline/bulk-sync/"+batchID, nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, data(resp)["outcomes"], 2)
}

func TestRouter_BulkSyncTwiceDoesNotResettle(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createIOU(t, alice, shopA, "10", 1)

	body := map[string]interface{}{"merchantAddress": shopA, "iouIds": []int64{id}}
	code, _ := s.do(t, http.MethodPost, "/api/v1/offline/bulk-sync", body, "")
	require.Equal(t, http.StatusOK, code)

	code, resp := s.do(t, http.MethodPost, "/api/v1/offline/bulk-sync", body, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(resp)["syncedCount"])
	assert.Equal(t, 1, s.chain.callCount())
}

func TestRouter_MarkSettledIdempotent(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createIOU(t, alice, shopA, "10", 1)
	pending := s.createIOU(t, alice, shopA, "1", 2)

	s.do(t, http.MethodPost, "/api/v1/offline/bulk-sync",
		map[string]interface{}{"merchantAddress": shopA, "iouIds": []int64{id}}, "")

	code, resp := s.do(t, http.MethodPost, "/api/v1/offline/mark-settled",
		map[string]interface{}{"iouIds": []int64{id, pending}, "txHash": "0xbeef"}, "")
	require.Equal(t, http.StatusOK, code, resp)

	d := data(resp)
	assert.Equal(t, float64(0), d["settledCount"])
	reasons := map[string]bool{}
	for _, sk := range d["skipped"].([]interface{}) {
		reasons[sk.(map[string]interface{})["reason"].(string)] = true
	}
	assert.True(t, reasons["already_settled"])
	assert.True(t, reasons["invalid_status"])
}

func TestRouter_AdminRoutesRequireAdminToken(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createIOU(t, alice, shopA, "10", 1)

	code, resp := s.do(t, http.MethodGet, "/api/v1/offline/all-ious", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "AUTH_003", resp["error_code"])

	viewer, _, err := s.tokenSvc.Generate("ops", "viewer")
	require.NoError(t, err)
	code, resp = s.do(t, http.MethodGet, "/api/v1/offline/all-ious", nil, viewer)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "AUTH_004", resp["error_code"])

	token := s.adminToken(t)
	code, resp = s.do(t, http.MethodGet, "/api/v1/offline/all-ious", nil, token)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, float64(1), data(resp)["summary"].(map[string]interface{})["merchantCount"])

	code, _ = s.do(t, http.MethodDelete, "/api/v1/offline/iou/"+strconv.FormatInt(id, 10), nil, token)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/offline/iou/"+strconv.FormatInt(id, 10), nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_AdminLoginWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)

	code, resp := s.do(t, http.MethodPost, "/api/v1/auth/admin-token",
		map[string]string{"username": "admin", "password": "nope"}, "")

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "AUTH_001", resp["error_code"])
}

func TestRouter_SweepSettlesStaleSynced(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.adminToken(t)

	code, resp := s.do(t, http.MethodPost, "/api/v1/offline/sweep", nil, token)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "sweep", data(resp)["mode"])
	assert.Equal(t, float64(0), data(resp)["syncedCount"])
}

func TestRouter_PayloadTooLarge(t *testing.T) {
	s := newTestServer(t, nil)

	big := strings.Repeat("a", 2<<20)
	code, resp := s.do(t, http.MethodPost, "/api/v1/offline/create-iou", map[string]string{"signature": big}, "")

	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "VAL_002", resp["error_code"])
}

func TestRouter_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestServer(t, redisStore.NewRateLimitStore(client))

	var last int
	for i := 0; i < 11; i++ {
		last, _ = s.do(t, http.MethodPost, "/api/v1/auth/admin-token",
			map[string]string{"username": "admin", "password": "nope"}, "")
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "field-kit-7")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "field-kit-7", w.Header().Get("X-Request-ID"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/offline/bulk-sync", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/offline/bulk-sync", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_MetricsExposed(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createIOU(t, alice, shopA, "10", 1)
	s.do(t, http.MethodPost, "/api/v1/offline/bulk-sync",
		map[string]interface{}{"merchantAddress": shopA, "iouIds": []int64{id}}, "")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `relief_ledger_settlements_total{settled="true",status="settled"} 1`)
	assert.Contains(t, body, `relief_ledger_http_requests_total{code="201",method="POST",route="/api/v1/offline/create-iou"} 1`)
}

func TestRouter_OpenAPIDocumentServed(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/api/v1/offline/bulk-sync:")

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Relief Offline Ledger")
}
