package vapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// ListQueryTools returns every query tool in the account. The platform has no
// server-side name filter, so callers match by function name.
func (c *Client) ListQueryTools(ctx context.Context) ([]Tool, error) {
	var all []Tool
	if err := c.do(ctx, http.MethodGet, "/tool?limit=1000", nil, &all); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	out := all[:0]
	for _, t := range all {
		if t.Type == ToolTypeQuery {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Client) CreateTool(ctx context.Context, t *Tool) (*Tool, error) {
	var out Tool
	if err := c.do(ctx, http.MethodPost, "/tool", t, &out); err != nil {
		return nil, fmt.Errorf("create tool: %w", err)
	}
	return &out, nil
}

// UpdateTool patches function and knowledge bases. The tool type cannot change.
func (c *Client) UpdateTool(ctx context.Context, id string, t *Tool) (*Tool, error) {
	patch := Tool{Function: t.Function, KnowledgeBases: t.KnowledgeBases}
	var out Tool
	if err := c.do(ctx, http.MethodPatch, "/tool/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, fmt.Errorf("update tool: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteTool(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/tool/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	return nil
}

// UploadFile sends a document as multipart form data.
func (c *Client) UploadFile(ctx context.Context, name, contentType string, data []byte) (*File, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/file", buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out File
	if err := c.send(req, &out); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteFile(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/file/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
