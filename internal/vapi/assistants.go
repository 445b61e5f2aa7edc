package vapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) CreateAssistant(ctx context.Context, a *Assistant) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPost, "/assistant", a, &out); err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return &out, nil
}

func (c *Client) GetAssistant(ctx context.Context, id string) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodGet, "/assistant/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get assistant: %w", err)
	}
	return &out, nil
}

// UpdateAssistant patches the assistant. Only non-empty top-level fields are
// sent; a non-nil Model replaces the remote model entirely.
func (c *Client) UpdateAssistant(ctx context.Context, id string, a *Assistant) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPatch, "/assistant/"+url.PathEscape(id), a, &out); err != nil {
		return nil, fmt.Errorf("update assistant: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/assistant/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete assistant: %w", err)
	}
	return nil
}

func (c *Client) CreateStructuredOutput(ctx context.Context, so *StructuredOutput) (*StructuredOutput, error) {
	var out StructuredOutput
	if err := c.do(ctx, http.MethodPost, "/structured-output", so, &out); err != nil {
		return nil, fmt.Errorf("create structured output: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateStructuredOutput(ctx context.Context, id string, so *StructuredOutput) (*StructuredOutput, error) {
	var out StructuredOutput
	if err := c.do(ctx, http.MethodPatch, "/structured-output/"+url.PathEscape(id), so, &out); err != nil {
		return nil, fmt.Errorf("update structured output: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteStructuredOutput(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/structured-output/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete structured output: %w", err)
	}
	return nil
}
