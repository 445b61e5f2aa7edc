// Package webhook delivers agent events to the URL configured on the agent.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	EventTest          = "test"
	EventCallCompleted = "call.completed"
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "voiceagents",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Outbound agent webhook deliveries by event and result",
	},
	[]string{"event", "result"},
)

// Target is where and how an agent wants to be notified.
type Target struct {
	URL     string
	Secret  string
	Headers map[string]string
}

// Delivery is one event for one agent. It is also the queued task payload,
// so it carries no secrets.
type Delivery struct {
	Event          string          `json:"event"`
	AgentID        uuid.UUID       `json:"agent_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Data           json.RawMessage `json:"data"`
}

type Result struct {
	StatusCode   int    `json:"status_code"`
	DurationMs   int64  `json:"duration_ms"`
	ResponseBody string `json:"response_body,omitempty"`
}

type Dispatcher struct {
	httpClient *http.Client
	now        func() time.Time
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

type envelope struct {
	Event          string          `json:"event"`
	AgentID        uuid.UUID       `json:"agent_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Data           json.RawMessage `json:"data"`
}

// Deliver POSTs the event and returns an error for transport failures and
// non-2xx answers. The result is returned whenever a response was received.
func (d *Dispatcher) Deliver(ctx context.Context, t Target, del Delivery) (*Result, error) {
	data := del.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	body, err := json.Marshal(envelope{
		Event:          del.Event,
		AgentID:        del.AgentID,
		OrganizationID: del.OrganizationID,
		Timestamp:      d.now().UTC(),
		Data:           data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}
	// custom headers first so they cannot override the standard ones
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "voiceagents-webhooks/1.0")
	req.Header.Set("X-Agent-UUID", del.AgentID.String())
	req.Header.Set("X-Organization-UUID", del.OrganizationID.String())
	req.Header.Set("X-Event-Type", del.Event)
	if t.Secret != "" {
		req.Header.Set("X-Webhook-Signature", sign(body, t.Secret))
	}

	start := d.now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		deliveriesTotal.WithLabelValues(del.Event, "error").Inc()
		slog.Warn("webhook delivery failed", "agent_id", del.AgentID, "event", del.Event, "error", err)
		return nil, fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	res := &Result{
		StatusCode:   resp.StatusCode,
		DurationMs:   d.now().Sub(start).Milliseconds(),
		ResponseBody: string(respBody),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		deliveriesTotal.WithLabelValues(del.Event, "rejected").Inc()
		slog.Warn("webhook received non-success response", "status", resp.StatusCode, "agent_id", del.AgentID)
		return res, fmt.Errorf("webhook endpoint answered %d", resp.StatusCode)
	}
	deliveriesTotal.WithLabelValues(del.Event, "delivered").Inc()
	return res, nil
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
