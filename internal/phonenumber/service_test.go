package phonenumber

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/telephony"
	"github.com/nikhilbhutani/voiceagents/internal/vapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	numbers map[uuid.UUID]*models.PhoneNumber
	order   []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{numbers: map[uuid.UUID]*models.PhoneNumber{}}
}

func (m *memStore) add(n *models.PhoneNumber) *models.PhoneNumber {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = models.PhoneStatusActive
	}
	m.numbers[n.ID] = n
	m.order = append(m.order, n.ID)
	return n
}

func (m *memStore) active(orgID uuid.UUID) []*models.PhoneNumber {
	var out []*models.PhoneNumber
	for _, id := range m.order {
		n := m.numbers[id]
		if n.OrganizationID == orgID && n.Status == models.PhoneStatusActive {
			out = append(out, n)
		}
	}
	return out
}

func (m *memStore) List(_ context.Context, orgID uuid.UUID) ([]models.PhoneNumber, error) {
	var out []models.PhoneNumber
	for _, n := range m.active(orgID) {
		out = append(out, *n)
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, orgID, id uuid.UUID) (*models.PhoneNumber, error) {
	n, ok := m.numbers[id]
	if !ok || n.OrganizationID != orgID || n.Status != models.PhoneStatusActive {
		return nil, models.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memStore) Counts(_ context.Context, orgID uuid.UUID) (int, int, error) {
	var active, paid int
	for _, n := range m.active(orgID) {
		active++
		if n.IsPaid() {
			paid++
		}
	}
	return active, paid, nil
}

func (m *memStore) Insert(_ context.Context, n *models.PhoneNumber) error {
	m.add(n)
	return nil
}

func (m *memStore) SetAgent(_ context.Context, _, id uuid.UUID, agentID *uuid.UUID) error {
	m.numbers[id].AgentID = agentID
	return nil
}

func (m *memStore) Release(_ context.Context, _, id uuid.UUID) error {
	n := m.numbers[id]
	n.Status = models.PhoneStatusReleased
	n.StripeSubscriptionItemID = nil
	return nil
}

func (m *memStore) FindPaid(_ context.Context, orgID, excludeID uuid.UUID) (*models.PhoneNumber, error) {
	for _, n := range m.active(orgID) {
		if n.ID != excludeID && n.IsPaid() {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ClearSubscriptionItem(_ context.Context, id uuid.UUID) error {
	m.numbers[id].StripeSubscriptionItemID = nil
	return nil
}

type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

type fakeTelephony struct {
	*recorder
	releaseErr error
}

func (f *fakeTelephony) Search(context.Context, telephony.SearchParams) ([]telephony.AvailableNumber, error) {
	return []telephony.AvailableNumber{{PhoneNumber: "+16502530000"}}, nil
}

func (f *fakeTelephony) Purchase(_ context.Context, number string) (*telephony.PurchasedNumber, error) {
	f.add("twilio.buy %s", number)
	return &telephony.PurchasedNumber{SID: "PN1", PhoneNumber: number}, nil
}

func (f *fakeTelephony) Release(_ context.Context, sid string) error {
	f.add("twilio.release %s", sid)
	return f.releaseErr
}

type fakePlatform struct {
	*recorder
	importErr error
}

func (f *fakePlatform) ImportTwilioNumber(_ context.Context, number, _, _, assistantID string) (*vapi.PhoneNumber, error) {
	f.add("vapi.import %s %s", number, assistantID)
	if f.importErr != nil {
		return nil, f.importErr
	}
	return &vapi.PhoneNumber{ID: "vpn_1"}, nil
}

func (f *fakePlatform) SetPhoneNumberAssistant(_ context.Context, id, assistantID string) error {
	f.add("vapi.bind %s %s", id, assistantID)
	return nil
}

func (f *fakePlatform) DeletePhoneNumber(_ context.Context, id string) error {
	f.add("vapi.delete %s", id)
	return nil
}

type fakeBilling struct {
	*recorder
	cancelErr error
}

func (f *fakeBilling) AddSubscriptionItem(_ context.Context, sub, price string) (string, error) {
	f.add("stripe.add %s %s", sub, price)
	return "si_new", nil
}

func (f *fakeBilling) CancelSubscriptionItem(_ context.Context, item string) error {
	f.add("stripe.cancel %s", item)
	return f.cancelErr
}

type planTable map[string]int

func (p planTable) IncludedNumbers(plan string) int { return p[plan] }

type fakeAgents map[uuid.UUID]string

func (f fakeAgents) AssistantID(_ context.Context, _, agentID uuid.UUID) (string, error) {
	if a, ok := f[agentID]; ok {
		return a, nil
	}
	return "", models.ErrNotFound
}

type fixture struct {
	svc      *Service
	store    *memStore
	rec      *recorder
	tel      *fakeTelephony
	platform *fakePlatform
	billing  *fakeBilling
	agents   fakeAgents
	org      *models.Organization
}

func newFixture() *fixture {
	rec := &recorder{}
	f := &fixture{
		store:    newMemStore(),
		rec:      rec,
		tel:      &fakeTelephony{recorder: rec},
		platform: &fakePlatform{recorder: rec},
		billing:  &fakeBilling{recorder: rec},
		agents:   fakeAgents{},
	}
	sub := "sub_1"
	f.org = &models.Organization{
		ID:                   uuid.New(),
		SubscriptionPlan:     "starter",
		SubscriptionStatus:   models.SubscriptionActive,
		StripeSubscriptionID: &sub,
	}
	f.svc = NewService(f.store, f.tel, f.platform, f.billing, planTable{"starter": 1, "pro": 3}, f.agents, Config{
		Country:          "US",
		TwilioAccountSID: "AC1",
		TwilioAuthToken:  "tok",
		ExtraNumberPrice: "price_extra",
	})
	return f
}

func strPtr(s string) *string { return &s }

func TestPurchase_IncludedSlot(t *testing.T) {
	f := newFixture()
	agentID := uuid.New()
	f.agents[agentID] = "asst_9"

	n, err := f.svc.Purchase(t.Context(), f.org, "(650) 253-0000", &agentID)
	require.NoError(t, err)

	assert.False(t, n.IsPaid())
	assert.Equal(t, "+16502530000", n.PhoneNumber)
	assert.Equal(t, "PN1", n.TwilioSID)
	assert.Equal(t, "vpn_1", n.VapiPhoneNumberID)
	assert.Equal(t, &agentID, n.AgentID)
	assert.Equal(t, []string{"twilio.buy +16502530000", "vapi.import +16502530000 asst_9"}, f.rec.calls)
}

func TestPurchase_BeyondIncludedIsPaid(t *testing.T) {
	f := newFixture()
	f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, PhoneNumber: "+16502530001"})

	n, err := f.svc.Purchase(t.Context(), f.org, "+16502530000", nil)
	require.NoError(t, err)

	assert.True(t, n.IsPaid())
	assert.Equal(t, "si_new", *n.StripeSubscriptionItemID)
	assert.Equal(t, "stripe.add sub_1 price_extra", f.rec.calls[0])
}

func TestPurchase_PaidRequiresSubscription(t *testing.T) {
	f := newFixture()
	f.org.SubscriptionPlan = models.PlanNone
	f.org.StripeSubscriptionID = nil

	_, err := f.svc.Purchase(t.Context(), f.org, "+16502530000", nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Empty(t, f.rec.calls)
}

func TestPurchase_RollsBackInReverseOrder(t *testing.T) {
	f := newFixture()
	f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, PhoneNumber: "+16502530001"})
	f.platform.importErr = errors.New("vapi down")

	_, err := f.svc.Purchase(t.Context(), f.org, "+16502530000", nil)
	require.ErrorIs(t, err, models.ErrUpstream)

	assert.Equal(t, []string{
		"stripe.add sub_1 price_extra",
		"twilio.buy +16502530000",
		"vapi.import +16502530000 ",
		"twilio.release PN1",
		"stripe.cancel si_new",
	}, f.rec.calls)
	active, _, _ := f.store.Counts(t.Context(), f.org.ID)
	assert.Equal(t, 1, active)
}

func TestPurchase_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Purchase(t.Context(), f.org, "not a number", nil)
	assert.ErrorIs(t, err, models.ErrInvalid)

	missing := uuid.New()
	_, err = f.svc.Purchase(t.Context(), f.org, "+16502530000", &missing)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.rec.calls)
}

func TestDelete_FreeNumberPromotesPaidNumber(t *testing.T) {
	f := newFixture()
	free := f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, TwilioSID: "PNfree", VapiPhoneNumberID: "vfree"})
	paid := f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, TwilioSID: "PNpaid", VapiPhoneNumberID: "vpaid",
		StripeSubscriptionItemID: strPtr("si_paid")})

	require.NoError(t, f.svc.Delete(t.Context(), f.org.ID, free.ID))

	assert.Nil(t, f.store.numbers[paid.ID].StripeSubscriptionItemID)
	assert.Equal(t, models.PhoneStatusReleased, f.store.numbers[free.ID].Status)
	assert.Equal(t, []string{"twilio.release PNfree", "vapi.delete vfree", "stripe.cancel si_paid"}, f.rec.calls)

	active, paidCount, _ := f.store.Counts(t.Context(), f.org.ID)
	assert.Equal(t, 1, active)
	assert.Equal(t, 0, paidCount)
}

func TestDelete_PaidNumberCancelsOwnItem(t *testing.T) {
	f := newFixture()
	f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, TwilioSID: "PNfree"})
	other := f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, TwilioSID: "PNa", StripeSubscriptionItemID: strPtr("si_a")})
	paid := f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, TwilioSID: "PNb", StripeSubscriptionItemID: strPtr("si_b")})

	require.NoError(t, f.svc.Delete(t.Context(), f.org.ID, paid.ID))

	assert.Equal(t, []string{"twilio.release PNb", "stripe.cancel si_b"}, f.rec.calls)
	assert.Equal(t, "si_a", *f.store.numbers[other.ID].StripeSubscriptionItemID)
}

func TestDelete_CancelFailureKeepsItem(t *testing.T) {
	f := newFixture()
	free := f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, TwilioSID: "PNfree"})
	paid := f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, TwilioSID: "PNpaid", StripeSubscriptionItemID: strPtr("si_paid")})
	f.billing.cancelErr = errors.New("stripe down")

	require.NoError(t, f.svc.Delete(t.Context(), f.org.ID, free.ID))

	assert.Equal(t, "si_paid", *f.store.numbers[paid.ID].StripeSubscriptionItemID)
	assert.Equal(t, models.PhoneStatusReleased, f.store.numbers[free.ID].Status)
}

func TestDelete_TelephonyFailureAborts(t *testing.T) {
	f := newFixture()
	n := f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, TwilioSID: "PN1"})
	f.tel.releaseErr = errors.New("twilio down")

	err := f.svc.Delete(t.Context(), f.org.ID, n.ID)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Equal(t, models.PhoneStatusActive, f.store.numbers[n.ID].Status)
}

func TestDelete_OtherOrganization(t *testing.T) {
	f := newFixture()
	n := f.store.add(&models.PhoneNumber{OrganizationID: uuid.New(), TwilioSID: "PN1"})

	err := f.svc.Delete(t.Context(), f.org.ID, n.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.rec.calls)
}

func TestAssign(t *testing.T) {
	f := newFixture()
	agentID := uuid.New()
	f.agents[agentID] = "asst_2"
	n := f.store.add(&models.PhoneNumber{OrganizationID: f.org.ID, VapiPhoneNumberID: "vpn_7"})

	got, err := f.svc.Assign(t.Context(), f.org.ID, n.ID, &agentID)
	require.NoError(t, err)
	assert.Equal(t, &agentID, got.AgentID)

	_, err = f.svc.Assign(t.Context(), f.org.ID, n.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, f.store.numbers[n.ID].AgentID)
	assert.Equal(t, []string{"vapi.bind vpn_7 asst_2", "vapi.bind vpn_7 "}, f.rec.calls)
}

func TestSearch(t *testing.T) {
	f := newFixture()

	out, err := f.svc.Search(t.Context(), telephony.SearchParams{AreaCode: 650})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = f.svc.Search(t.Context(), telephony.SearchParams{Country: "ZZ"})
	assert.ErrorIs(t, err, models.ErrInvalid)
}
