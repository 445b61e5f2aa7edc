// Package calls consumes the voice platform's server events.
package calls

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/webhook"
)

const TypeEndOfCallReport = "end-of-call-report"

var (
	callsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voiceagents",
		Subsystem: "calls",
		Name:      "completed_total",
		Help:      "End-of-call reports processed",
	})
	callSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voiceagents",
		Subsystem: "calls",
		Name:      "billed_seconds_total",
		Help:      "Call seconds deducted from organization balances",
	})
)

type Agents interface {
	GetByAssistantID(ctx context.Context, assistantID string) (*models.Agent, error)
}

type Usage interface {
	DeductSeconds(ctx context.Context, orgID uuid.UUID, seconds int64) (int64, error)
}

type Notifier interface {
	Notify(ctx context.Context, a *models.Agent, event string, data any) error
}

type Service struct {
	secret   string
	agents   Agents
	usage    Usage
	notifier Notifier
}

func NewService(secret string, agents Agents, usage Usage, notifier Notifier) *Service {
	return &Service{secret: secret, agents: agents, usage: usage, notifier: notifier}
}

// Authorize checks the shared secret sent by the platform. With no secret
// configured every request is refused.
func (s *Service) Authorize(got string) bool {
	if s.secret == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.secret), []byte(got)) == 1
}

type envelope struct {
	Message Message `json:"message"`
}

type Message struct {
	Type            string     `json:"type"`
	EndedReason     string     `json:"endedReason,omitempty"`
	DurationSeconds float64    `json:"durationSeconds,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	Transcript      string     `json:"transcript,omitempty"`
	RecordingURL    string     `json:"recordingUrl,omitempty"`
	Call            struct {
		ID          string `json:"id"`
		AssistantID string `json:"assistantId"`
		Customer    struct {
			Number string `json:"number"`
		} `json:"customer"`
	} `json:"call"`
	Assistant struct {
		ID string `json:"id"`
	} `json:"assistant"`
	Analysis struct {
		Summary        string         `json:"summary"`
		StructuredData map[string]any `json:"structuredData"`
	} `json:"analysis"`
	Artifact struct {
		StructuredOutputs map[string]any `json:"structuredOutputs"`
	} `json:"artifact"`
}

func (m *Message) assistantID() string {
	if m.Call.AssistantID != "" {
		return m.Call.AssistantID
	}
	return m.Assistant.ID
}

// BilledSeconds rounds the call duration up to whole seconds, falling back
// to the start and end timestamps when no duration is reported.
func (m *Message) BilledSeconds() int64 {
	d := m.DurationSeconds
	if d <= 0 && m.StartedAt != nil && m.EndedAt != nil {
		d = m.EndedAt.Sub(*m.StartedAt).Seconds()
	}
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d))
}

// CallCompleted is the payload of the call.completed agent webhook.
type CallCompleted struct {
	CallID            string         `json:"call_id"`
	CustomerNumber    string         `json:"customer_number,omitempty"`
	DurationSeconds   int64          `json:"duration_seconds"`
	EndedReason       string         `json:"ended_reason,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	Transcript        string         `json:"transcript,omitempty"`
	RecordingURL      string         `json:"recording_url,omitempty"`
	StructuredData    map[string]any `json:"structured_data,omitempty"`
	StructuredOutputs map[string]any `json:"structured_outputs,omitempty"`
}

// Handle processes one server event. Events that cannot be attributed to an
// agent are acknowledged and dropped.
func (s *Service) Handle(ctx context.Context, payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode server event: %w", models.ErrInvalid)
	}
	msg := &env.Message
	if msg.Type != TypeEndOfCallReport {
		return nil
	}

	assistantID := msg.assistantID()
	log := slog.With("call_id", msg.Call.ID, "assistant_id", assistantID)
	if assistantID == "" {
		log.Warn("end-of-call report without assistant")
		return nil
	}
	a, err := s.agents.GetByAssistantID(ctx, assistantID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("end-of-call report for unknown assistant")
		return nil
	}
	if err != nil {
		return err
	}

	seconds := msg.BilledSeconds()
	remaining, err := s.usage.DeductSeconds(ctx, a.OrganizationID, seconds)
	if err != nil {
		return err
	}
	callsCompleted.Inc()
	callSeconds.Add(float64(seconds))
	log.Info("call completed", "agent_id", a.ID, "organization_id", a.OrganizationID,
		"seconds", seconds, "remaining_seconds", remaining)

	summary := msg.Summary
	if summary == "" {
		summary = msg.Analysis.Summary
	}
	err = s.notifier.Notify(ctx, a, webhook.EventCallCompleted, CallCompleted{
		CallID:            msg.Call.ID,
		CustomerNumber:    msg.Call.Customer.Number,
		DurationSeconds:   seconds,
		EndedReason:       msg.EndedReason,
		Summary:           summary,
		Transcript:        msg.Transcript,
		RecordingURL:      msg.RecordingURL,
		StructuredData:    msg.Analysis.StructuredData,
		StructuredOutputs: msg.Artifact.StructuredOutputs,
	})
	if err != nil {
		// the balance is already updated, a lost notification must not trigger a redelivery
		log.Warn("queue call.completed webhook failed", "agent_id", a.ID, "error", err)
	}
	return nil
}
