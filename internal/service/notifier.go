package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"relief-offline-ledger/config"
	"relief-offline-ledger/internal/core/domain"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// notifyRetryIntervals are the waits between delivery attempts.
var notifyRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// Settlement event types.
const (
	EventIOUSettled            = "IOU_SETTLED"
	EventIOUFailed             = "IOU_FAILED"
	EventIOUSettlementDeferred = "IOU_SETTLEMENT_DEFERRED"
)

// Delivery headers. The signature covers "<timestamp>.<body>" so a captured
// delivery cannot be replayed under a fresh timestamp.
const (
	SignatureHeader = "X-Signature"
	TimestampHeader = "X-Signature-Timestamp"
)

// NotifyPayload is the JSON body posted to the configured callback URL.
type NotifyPayload struct {
	EventType string         `json:"eventType"`
	Data      NotifyIOUEvent `json:"data"`
}

// NotifyIOUEvent describes the IOU after settlement was attempted.
type NotifyIOUEvent struct {
	ID          int64  `json:"id"`
	Beneficiary string `json:"beneficiary"`
	Merchant    string `json:"merchant"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	TxHash      string `json:"txHash,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrNotifierClosed is returned by Notify after Shutdown.
var ErrNotifierClosed = errors.New("notifier is shut down")

// WebhookNotifier implements ports.SettlementNotifier. Deliveries run in
// tracked goroutines; Shutdown stops pending retries and drains them.
type WebhookNotifier struct {
	url       string
	secret    string
	sigSvc    ports.SignatureService
	client    HTTPClient
	intervals []time.Duration
	log       zerolog.Logger

	mu       sync.Mutex
	closed   bool
	stop     chan struct{}
	inflight sync.WaitGroup
}

// NewSettlementNotifier posts settlement outcomes to cfg.URL. With no URL it
// only logs.
func NewSettlementNotifier(cfg config.NotifyConfig, sigSvc ports.SignatureService, client HTTPClient, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:       cfg.URL,
		secret:    cfg.Secret,
		sigSvc:    sigSvc,
		client:    client,
		intervals: notifyRetryIntervals,
		log:       logger.WithComponent(log, "notifier"),
		stop:      make(chan struct{}),
	}
}

// Notify builds the event and delivers it in the background with retries.
func (n *WebhookNotifier) Notify(ctx context.Context, iou *domain.IOU, outcome domain.SettlementOutcome) error {
	payload := NotifyPayload{
		EventType: eventType(outcome),
		Data: NotifyIOUEvent{
			ID:          iou.ID,
			Beneficiary: iou.Beneficiary,
			Merchant:    iou.Merchant,
			Amount:      iou.Amount.String(),
			Status:      string(iou.Status),
			TxHash:      outcome.TxHash,
			Error:       outcome.Error,
			Timestamp:   time.Now().Unix(),
		},
	}

	n.log.Info().
		Int64("iou_id", iou.ID).
		Str("event", payload.EventType).
		Str("status", string(iou.Status)).
		Msg("settlement outcome")

	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notify payload: %w", err)
	}
	ts := strconv.FormatInt(payload.Data.Timestamp, 10)
	signature := ""
	if n.secret != "" {
		signature = n.sigSvc.Sign(n.secret, ts+"."+string(body))
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.log.Warn().Int64("iou_id", iou.ID).Str("event", payload.EventType).Msg("notify: dropped after shutdown")
		return ErrNotifierClosed
	}
	n.inflight.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.inflight.Done()
		n.deliverWithRetries(context.WithoutCancel(ctx), body, ts, signature, iou.ID)
	}()
	return nil
}

// Shutdown cancels pending retry waits and waits for deliveries already on
// the wire, or until ctx is done.
func (n *WebhookNotifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.stop)
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining notifications: %w", ctx.Err())
	}
}

func eventType(o domain.SettlementOutcome) string {
	switch {
	case o.Settled:
		return EventIOUSettled
	case o.Status == domain.IOUStatusFailed:
		return EventIOUFailed
	default:
		return EventIOUSettlementDeferred
	}
}

func (n *WebhookNotifier) deliverWithRetries(ctx context.Context, body []byte, ts, signature string, id int64) {
	for attempt := 0; attempt <= len(n.intervals); attempt++ {
		if attempt > 0 && !n.wait(ctx, n.intervals[attempt-1]) {
			n.log.Warn().Int64("iou_id", id).Int("attempt", attempt+1).Msg("notify: retry abandoned on shutdown")
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			n.log.Error().Err(err).Int64("iou_id", id).Msg("notify: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set(TimestampHeader, ts)
			req.Header.Set(SignatureHeader, signature)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			n.log.Warn().Err(err).Int64("iou_id", id).Int("attempt", attempt+1).Msg("notify: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.log.Debug().Int64("iou_id", id).Int("attempt", attempt+1).Msg("notify: delivered")
			return
		}
		n.log.Warn().Int64("iou_id", id).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("notify: non-2xx response, retrying")
	}

	n.log.Error().Int64("iou_id", id).Msg("notify: all retry attempts exhausted")
}

// wait reports false if the notifier stops or ctx ends before d elapses.
func (n *WebhookNotifier) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-n.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
