package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/webhook"
)

// AgentLookup loads the agent at delivery time so URL and secret changes
// made after the event was queued are honoured.
type AgentLookup interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Agent, error)
}

type Sender interface {
	Deliver(ctx context.Context, t webhook.Target, d webhook.Delivery) (*webhook.Result, error)
}

type WebhookWorker struct {
	agents AgentLookup
	sender Sender
}

func NewWebhookWorker(agents AgentLookup, sender Sender) *WebhookWorker {
	return &WebhookWorker{agents: agents, sender: sender}
}

func (w *WebhookWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var d webhook.Delivery
	if err := json.Unmarshal(t.Payload(), &d); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	slog.Info("delivering webhook", "agent_id", d.AgentID, "event", d.Event)

	a, err := w.agents.Get(ctx, d.OrganizationID, d.AgentID)
	if errors.Is(err, models.ErrNotFound) {
		slog.Warn("webhook agent gone, dropping delivery", "agent_id", d.AgentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}

	target := webhook.TargetOf(a)
	if target.URL == "" {
		return nil
	}

	res, err := w.sender.Deliver(ctx, target, d)
	if err != nil {
		return err
	}
	slog.Info("webhook delivered", "agent_id", d.AgentID, "event", d.Event, "status", res.StatusCode, "duration_ms", res.DurationMs)
	return nil
}
