// Package telephony provisions phone numbers on Twilio.
package telephony

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type AvailableNumber struct {
	PhoneNumber  string `json:"phone_number"`
	FriendlyName string `json:"friendly_name"`
	Locality     string `json:"locality,omitempty"`
	Region       string `json:"region,omitempty"`
	Country      string `json:"country"`
}

type PurchasedNumber struct {
	SID         string
	PhoneNumber string
}

type SearchParams struct {
	Country  string
	AreaCode int
	Contains string
	Limit    int
}

// Provider is implemented by TwilioProvider and by test fakes.
type Provider interface {
	Search(ctx context.Context, p SearchParams) ([]AvailableNumber, error)
	Purchase(ctx context.Context, phoneNumber string) (*PurchasedNumber, error)
	Release(ctx context.Context, sid string) error
}

type TwilioProvider struct {
	client     *twilio.RestClient
	accountSID string
	authToken  string
}

func NewTwilioProvider(accountSID, authToken string) *TwilioProvider {
	return &TwilioProvider{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		accountSID: accountSID,
		authToken:  authToken,
	}
}

// Credentials are forwarded to the voice platform when a number is imported.
func (p *TwilioProvider) Credentials() (accountSID, authToken string) {
	return p.accountSID, p.authToken
}

// The Twilio SDK does not take a context; calls are bounded by its own
// HTTP client timeout.
func (p *TwilioProvider) Search(_ context.Context, sp SearchParams) ([]AvailableNumber, error) {
	params := &openapi.ListAvailablePhoneNumberLocalParams{}
	params.SetVoiceEnabled(true)
	if sp.AreaCode > 0 {
		params.SetAreaCode(sp.AreaCode)
	}
	if sp.Contains != "" {
		params.SetContains(sp.Contains)
	}
	limit := sp.Limit
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	params.SetLimit(limit)

	resp, err := p.client.Api.ListAvailablePhoneNumberLocal(sp.Country, params)
	if err != nil {
		return nil, fmt.Errorf("twilio search numbers: %w", err)
	}

	out := make([]AvailableNumber, 0, len(resp))
	for _, n := range resp {
		out = append(out, AvailableNumber{
			PhoneNumber:  deref(n.PhoneNumber),
			FriendlyName: deref(n.FriendlyName),
			Locality:     deref(n.Locality),
			Region:       deref(n.Region),
			Country:      deref(n.IsoCountry),
		})
	}
	return out, nil
}

func (p *TwilioProvider) Purchase(_ context.Context, phoneNumber string) (*PurchasedNumber, error) {
	params := &openapi.CreateIncomingPhoneNumberParams{}
	params.SetPhoneNumber(phoneNumber)

	n, err := p.client.Api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return nil, fmt.Errorf("twilio purchase number: %w", err)
	}
	return &PurchasedNumber{SID: deref(n.Sid), PhoneNumber: deref(n.PhoneNumber)}, nil
}

func (p *TwilioProvider) Release(_ context.Context, sid string) error {
	if err := p.client.Api.DeleteIncomingPhoneNumber(sid, nil); err != nil {
		return fmt.Errorf("twilio release number: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
