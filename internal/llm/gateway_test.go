package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceagents/internal/config"
)

type fakeProvider struct {
	name   string
	fails  int
	calls  int
	models []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(_ context.Context, req Request) (*Completion, error) {
	f.calls++
	f.models = append(f.models, req.Model)
	if f.calls <= f.fails {
		return nil, errors.New("boom")
	}
	return &Completion{Provider: f.name, Text: "ok"}, nil
}

func TestGateway_RetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{name: "openai", fails: 1}
	g := newGateway(config.LLMConfig{DefaultProvider: "openai", MaxRetries: 2}, p)
	g.backoff = 0

	c, err := g.Complete(t.Context(), Request{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "ok", c.Text)
	assert.Equal(t, 2, p.calls)
}

func TestGateway_FallsBack(t *testing.T) {
	primary := &fakeProvider{name: "openai", fails: 10}
	secondary := &fakeProvider{name: "anthropic"}
	g := newGateway(config.LLMConfig{DefaultProvider: "openai", FallbackProvider: "anthropic", MaxRetries: 1},
		primary, secondary)
	g.backoff = 0

	c, err := g.Complete(t.Context(), Request{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Provider)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, []string{""}, secondary.models)
}

func TestGateway_BothFail(t *testing.T) {
	g := newGateway(config.LLMConfig{DefaultProvider: "openai", FallbackProvider: "anthropic"},
		&fakeProvider{name: "openai", fails: 10}, &fakeProvider{name: "anthropic", fails: 10})
	g.backoff = 0

	_, err := g.Complete(t.Context(), Request{})
	assert.ErrorContains(t, err, "openai failed after 1 attempts")
	assert.ErrorContains(t, err, "anthropic failed after 1 attempts")
}

func TestGateway_SingleProviderIsPrimary(t *testing.T) {
	p := &fakeProvider{name: "anthropic"}
	g := newGateway(config.LLMConfig{DefaultProvider: "openai"}, p)

	_, err := g.Complete(t.Context(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestGateway_UnknownProvider(t *testing.T) {
	g := newGateway(config.LLMConfig{DefaultProvider: "openai"})
	_, err := g.Complete(t.Context(), Request{})
	assert.ErrorContains(t, err, `provider "openai" not configured`)
}

func TestNewGateway_NoKeys(t *testing.T) {
	assert.Nil(t, NewGateway(config.LLMConfig{}))
}

func TestSpend(t *testing.T) {
	assert.InDelta(t, 0.15+0.60, Spend(&Completion{Model: "gpt-4o-mini-2024-07-18", InputTokens: 1e6, OutputTokens: 1e6}), 1e-9)
	assert.InDelta(t, 2.50, Spend(&Completion{Model: "gpt-4o-2024-08-06", InputTokens: 1e6}), 1e-9)
	assert.Zero(t, Spend(&Completion{Model: "unknown", InputTokens: 1000}))
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini-2024-07-18",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": `{"a":1}`}, "finish_reason": "stop"}},
			"usage":   map[string]int{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	p := newOpenAIProvider(cfg)

	c, err := p.Complete(t.Context(), Request{System: "be brief", Prompt: "hi", JSON: true, MaxTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, c.Text)
	assert.Equal(t, 12, c.InputTokens)
	assert.Equal(t, openAIDefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
}

func TestAnthropicProvider_CompleteJSONPrefill(t *testing.T) {
	var got struct {
		System   []map[string]any `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-3-5-haiku-20241022",
			"content":       []map[string]string{{"type": "text", "text": `"a":1}`}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]int{"input_tokens": 9, "output_tokens": 3},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("sk-ant-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	c, err := p.Complete(t.Context(), Request{System: "be brief", Prompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, c.Text)
	assert.Equal(t, "anthropic", c.Provider)
	assert.Equal(t, 3, c.OutputTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	require.Len(t, got.System, 1)
}
