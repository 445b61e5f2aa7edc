package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nikhilbhutani/voiceagents/internal/models"
)

// Enqueuer hands a delivery to the background worker.
type Enqueuer interface {
	EnqueueWebhookDelivery(ctx context.Context, d Delivery) error
}

// Notifier queues production events for agents that have a webhook URL.
type Notifier struct {
	queue Enqueuer
}

func NewNotifier(queue Enqueuer) *Notifier {
	return &Notifier{queue: queue}
}

func (n *Notifier) Notify(ctx context.Context, a *models.Agent, event string, data any) error {
	if a.AdvancedConfig.WebhookURL == "" {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal webhook data: %w", err)
	}
	return n.queue.EnqueueWebhookDelivery(ctx, Delivery{
		Event:          event,
		AgentID:        a.ID,
		OrganizationID: a.OrganizationID,
		Data:           raw,
	})
}

// TargetOf returns the agent's configured delivery target.
func TargetOf(a *models.Agent) Target {
	return Target{
		URL:     a.AdvancedConfig.WebhookURL,
		Secret:  a.AdvancedConfig.WebhookSecret,
		Headers: a.AdvancedConfig.WebhookHeaders,
	}
}
