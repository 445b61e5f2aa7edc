package team

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"
)

type Invite struct {
	To               string
	OrganizationName string
	Role             string
	AcceptURL        string
	ExpiresAt        time.Time
}

// Mailer sends invitation emails.
type Mailer interface {
	SendInvitation(ctx context.Context, inv Invite) error
}

// ResendMailer sends through the Resend transactional email API.
type ResendMailer struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		baseURL:    "https://api.resend.com",
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

var inviteTemplate = template.Must(template.New("invite").Parse(
	`<p>You have been invited to join <strong>{{.OrganizationName}}</strong> as {{.Role}}.</p>
<p><a href="{{.AcceptURL}}">Accept the invitation</a></p>
<p>The link expires on {{.ExpiresAt.Format "January 2, 2006"}}.</p>`))

func (m *ResendMailer) SendInvitation(ctx context.Context, inv Invite) error {
	var html bytes.Buffer
	if err := inviteTemplate.Execute(&html, inv); err != nil {
		return fmt.Errorf("render invitation: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"from":    m.from,
		"to":      []string{inv.To},
		"subject": fmt.Sprintf("You're invited to join %s", inv.OrganizationName),
		"html":    html.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send email failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
