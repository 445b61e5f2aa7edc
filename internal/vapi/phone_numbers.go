package vapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ImportTwilioNumber registers a number bought on Twilio so calls to it are
// answered by assistantID (may be empty).
func (c *Client) ImportTwilioNumber(ctx context.Context, number, accountSID, authToken, assistantID string) (*PhoneNumber, error) {
	in := PhoneNumber{
		Provider:         "twilio",
		Number:           number,
		TwilioAccountSID: accountSID,
		TwilioAuthToken:  authToken,
		AssistantID:      assistantID,
	}
	var out PhoneNumber
	if err := c.do(ctx, http.MethodPost, "/phone-number", in, &out); err != nil {
		return nil, fmt.Errorf("import phone number: %w", err)
	}
	return &out, nil
}

// SetPhoneNumberAssistant binds the number to an assistant. An empty
// assistantID unbinds it.
func (c *Client) SetPhoneNumberAssistant(ctx context.Context, id, assistantID string) error {
	body := map[string]any{"assistantId": nil}
	if assistantID != "" {
		body["assistantId"] = assistantID
	}
	if err := c.do(ctx, http.MethodPatch, "/phone-number/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("update phone number: %w", err)
	}
	return nil
}

func (c *Client) DeletePhoneNumber(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/phone-number/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete phone number: %w", err)
	}
	return nil
}
