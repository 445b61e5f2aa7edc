package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/queue"
	"github.com/nikhilbhutani/voiceagents/internal/webhook"
)

type fakeAgents map[uuid.UUID]*models.Agent

func (f fakeAgents) Get(_ context.Context, orgID, id uuid.UUID) (*models.Agent, error) {
	a, ok := f[id]
	if !ok || a.OrganizationID != orgID {
		return nil, models.ErrNotFound
	}
	return a, nil
}

type fakeSender struct {
	targets []webhook.Target
	err     error
}

func (s *fakeSender) Deliver(_ context.Context, t webhook.Target, _ webhook.Delivery) (*webhook.Result, error) {
	s.targets = append(s.targets, t)
	if s.err != nil {
		return nil, s.err
	}
	return &webhook.Result{StatusCode: 200}, nil
}

func task(t *testing.T, d webhook.Delivery) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(d)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeWebhookDeliver, b)
}

func TestWebhookWorker(t *testing.T) {
	orgID := uuid.New()
	hooked := &models.Agent{
		ID:             uuid.New(),
		OrganizationID: orgID,
		AdvancedConfig: models.AdvancedConfig{WebhookURL: "https://example.com/h", WebhookSecret: "k"},
	}
	bare := &models.Agent{ID: uuid.New(), OrganizationID: orgID}
	agents := fakeAgents{hooked.ID: hooked, bare.ID: bare}

	t.Run("delivers with current target", func(t *testing.T) {
		s := &fakeSender{}
		w := NewWebhookWorker(agents, s)
		err := w.ProcessTask(t.Context(), task(t, webhook.Delivery{Event: webhook.EventCallCompleted, AgentID: hooked.ID, OrganizationID: orgID}))
		require.NoError(t, err)
		require.Len(t, s.targets, 1)
		assert.Equal(t, "https://example.com/h", s.targets[0].URL)
		assert.Equal(t, "k", s.targets[0].Secret)
	})

	t.Run("webhook removed since queued", func(t *testing.T) {
		s := &fakeSender{}
		err := NewWebhookWorker(agents, s).ProcessTask(t.Context(), task(t, webhook.Delivery{AgentID: bare.ID, OrganizationID: orgID}))
		require.NoError(t, err)
		assert.Empty(t, s.targets)
	})

	t.Run("agent deleted", func(t *testing.T) {
		s := &fakeSender{}
		err := NewWebhookWorker(agents, s).ProcessTask(t.Context(), task(t, webhook.Delivery{AgentID: uuid.New(), OrganizationID: orgID}))
		require.NoError(t, err)
		assert.Empty(t, s.targets)
	})

	t.Run("delivery failure is retried", func(t *testing.T) {
		s := &fakeSender{err: errors.New("503")}
		err := NewWebhookWorker(agents, s).ProcessTask(t.Context(), task(t, webhook.Delivery{AgentID: hooked.ID, OrganizationID: orgID}))
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("malformed payload is not retried", func(t *testing.T) {
		err := NewWebhookWorker(agents, &fakeSender{}).ProcessTask(t.Context(), asynq.NewTask(queue.TypeWebhookDeliver, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}
