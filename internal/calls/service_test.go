package calls

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/webhook"
)

type fakeAgents map[string]*models.Agent

func (f fakeAgents) GetByAssistantID(_ context.Context, id string) (*models.Agent, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, models.ErrNotFound
}

type fakeUsage struct {
	balance  map[uuid.UUID]int64
	deducted []int64
}

func (f *fakeUsage) DeductSeconds(_ context.Context, orgID uuid.UUID, seconds int64) (int64, error) {
	f.deducted = append(f.deducted, seconds)
	f.balance[orgID] = max(0, f.balance[orgID]-seconds)
	return f.balance[orgID], nil
}

type notification struct {
	agentID uuid.UUID
	event   string
	data    any
}

type fakeNotifier struct {
	sent []notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, a *models.Agent, event string, data any) error {
	f.sent = append(f.sent, notification{a.ID, event, data})
	return f.err
}

func newTestService() (*Service, *models.Agent, *fakeUsage, *fakeNotifier) {
	a := &models.Agent{ID: uuid.New(), OrganizationID: uuid.New(), VapiAssistantID: "asst_1"}
	usage := &fakeUsage{balance: map[uuid.UUID]int64{a.OrganizationID: 100}}
	n := &fakeNotifier{}
	return NewService("topsecret", fakeAgents{"asst_1": a}, usage, n), a, usage, n
}

func TestService_Authorize(t *testing.T) {
	svc, _, _, _ := newTestService()
	assert.True(t, svc.Authorize("topsecret"))
	assert.False(t, svc.Authorize("topsecreT"))
	assert.False(t, svc.Authorize(""))

	open := NewService("", nil, nil, nil)
	assert.False(t, open.Authorize(""))
}

func TestService_EndOfCallReport(t *testing.T) {
	svc, a, usage, n := newTestService()

	err := svc.Handle(t.Context(), []byte(`{"message":{
		"type":"end-of-call-report",
		"endedReason":"customer-ended-call",
		"durationSeconds":41.2,
		"summary":"Booked a cleaning.",
		"call":{"id":"call_9","assistantId":"asst_1","customer":{"number":"+16502530000"}},
		"analysis":{"structuredData":{"booked":true}}
	}}`))
	require.NoError(t, err)

	assert.Equal(t, []int64{42}, usage.deducted)
	assert.Equal(t, int64(58), usage.balance[a.OrganizationID])

	require.Len(t, n.sent, 1)
	assert.Equal(t, a.ID, n.sent[0].agentID)
	assert.Equal(t, webhook.EventCallCompleted, n.sent[0].event)
	data := n.sent[0].data.(CallCompleted)
	assert.Equal(t, "call_9", data.CallID)
	assert.Equal(t, int64(42), data.DurationSeconds)
	assert.Equal(t, "+16502530000", data.CustomerNumber)
	assert.Equal(t, map[string]any{"booked": true}, data.StructuredData)
}

func TestService_BalanceFloorsAtZero(t *testing.T) {
	svc, a, usage, _ := newTestService()
	err := svc.Handle(t.Context(), []byte(`{"message":{"type":"end-of-call-report",
		"startedAt":"2025-01-01T10:00:00Z","endedAt":"2025-01-01T10:05:00Z",
		"assistant":{"id":"asst_1"},"call":{"id":"c"}}}`))
	require.NoError(t, err)
	assert.Equal(t, []int64{300}, usage.deducted)
	assert.Zero(t, usage.balance[a.OrganizationID])
}

func TestService_IgnoredEvents(t *testing.T) {
	svc, _, usage, n := newTestService()

	for _, body := range []string{
		`{"message":{"type":"status-update","call":{"assistantId":"asst_1"}}}`,
		`{"message":{"type":"end-of-call-report","call":{"assistantId":"asst_unknown"}}}`,
		`{"message":{"type":"end-of-call-report"}}`,
	} {
		require.NoError(t, svc.Handle(t.Context(), []byte(body)))
	}
	assert.Empty(t, usage.deducted)
	assert.Empty(t, n.sent)

	assert.ErrorIs(t, svc.Handle(t.Context(), []byte("{")), models.ErrInvalid)
}

func TestService_NotifyFailureIsNotFatal(t *testing.T) {
	svc, _, usage, n := newTestService()
	n.err = errors.New("redis down")

	err := svc.Handle(t.Context(), []byte(`{"message":{"type":"end-of-call-report","durationSeconds":5,"call":{"assistantId":"asst_1"}}}`))
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, usage.deducted)
}
