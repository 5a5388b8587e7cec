package service

import (
	"context"
	"errors"
	"testing"

	"flashcards/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	emailCustomers  map[string]string
	created         []string
	checkoutInputs  []CheckoutSessionInput
	subs            map[string][]ProviderSubscription
	cancelUpdates   map[string]bool
	portalCustomers []string
	err             error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		emailCustomers: map[string]string{},
		subs:           map[string][]ProviderSubscription{},
		cancelUpdates:  map[string]bool{},
	}
}

func (g *fakeGateway) FindCustomerByEmail(_ context.Context, email string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.emailCustomers[email], nil
}

func (g *fakeGateway) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	id := "cus_new_" + userID
	g.created = append(g.created, id)
	return id, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.checkoutInputs = append(g.checkoutInputs, in)
	return &CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}

func (g *fakeGateway) ListActiveSubscriptions(_ context.Context, customerID string) ([]ProviderSubscription, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.subs[customerID], nil
}

func (g *fakeGateway) SetCancelAtPeriodEnd(_ context.Context, subscriptionID string, cancel bool) error {
	if g.err != nil {
		return g.err
	}
	g.cancelUpdates[subscriptionID] = cancel
	return nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.portalCustomers = append(g.portalCustomers, customerID)
	return "https://billing.example/" + customerID, nil
}

var testStripeConfig = StripeConfig{
	PriceID:         "price_1",
	SuccessURL:      "https://app.example/success",
	CancelURL:       "https://app.example/cancel",
	PortalReturnURL: "https://app.example/account",
}

func newTestStripeService() (StripeService, *memoryUserStore, *fakeGateway) {
	store := newMemoryUserStore()
	gw := newFakeGateway()
	return NewStripeService(testStripeConfig, store, gw, zerolog.Nop()), store, gw
}

func withCustomer(store *memoryUserStore, userID, customerID string, status model.SubscriptionStatus) {
	id := customerID
	store.users[userID] = &model.User{UserID: userID, StripeCustomerID: &id, SubscriptionStatus: status}
}

func TestCreateCheckoutSession_NewCustomer(t *testing.T) {
	svc, store, gw := newTestStripeService()

	sess, err := svc.CreateCheckoutSession(context.Background(), "u1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_1", sess.URL)

	require.Len(t, gw.created, 1)
	assert.Equal(t, "cus_new_u1", store.users["u1"].CustomerID())
	assert.Equal(t, "a@example.com", store.users["u1"].Email)
	assert.Equal(t, model.SubscriptionStatusUnsubscribed, store.status("u1"))

	require.Len(t, gw.checkoutInputs, 1)
	in := gw.checkoutInputs[0]
	assert.Equal(t, "u1", in.ClientReferenceID)
	assert.Equal(t, "cus_new_u1", in.CustomerID)
	assert.Equal(t, "price_1", in.PriceID)
	assert.Equal(t, testStripeConfig.SuccessURL, in.SuccessURL)
	assert.Equal(t, testStripeConfig.CancelURL, in.CancelURL)
}

func TestCreateCheckoutSession_ReusesStoredCustomer(t *testing.T) {
	svc, store, gw := newTestStripeService()
	withCustomer(store, "u1", "cus_existing", model.SubscriptionStatusUnsubscribed)

	_, err := svc.CreateCheckoutSession(context.Background(), "u1", "a@example.com")
	require.NoError(t, err)
	assert.Empty(t, gw.created)
	assert.Equal(t, "cus_existing", gw.checkoutInputs[0].CustomerID)

	// a second checkout does not create or reassign anything
	_, err = svc.CreateCheckoutSession(context.Background(), "u1", "a@example.com")
	require.NoError(t, err)
	assert.Empty(t, gw.created)
	assert.Equal(t, "cus_existing", store.users["u1"].CustomerID())
}

func TestCreateCheckoutSession_FindsCustomerByEmail(t *testing.T) {
	svc, store, gw := newTestStripeService()
	gw.emailCustomers["a@example.com"] = "cus_by_email"

	_, err := svc.CreateCheckoutSession(context.Background(), "u1", "a@example.com")
	require.NoError(t, err)
	assert.Empty(t, gw.created)
	assert.Equal(t, "cus_by_email", store.users["u1"].CustomerID())
}

func TestCreateCheckoutSession_SharedEmailGetsOwnCustomer(t *testing.T) {
	svc, store, gw := newTestStripeService()
	withCustomer(store, "u1", "cus_A", model.SubscriptionStatusSubscribed)
	gw.emailCustomers["shared@example.com"] = "cus_A"

	_, err := svc.CreateCheckoutSession(context.Background(), "u2", "shared@example.com")
	require.NoError(t, err)

	assert.Equal(t, []string{"cus_new_u2"}, gw.created)
	assert.Equal(t, "cus_new_u2", store.users["u2"].CustomerID())
	assert.Equal(t, "cus_new_u2", gw.checkoutInputs[0].CustomerID)

	owner, err := store.GetUserByStripeCustomerID(context.Background(), "cus_A")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "u1", owner.UserID)
}

func TestCreateCheckoutSession_GatewayError(t *testing.T) {
	svc, _, gw := newTestStripeService()
	gw.err = errors.New("stripe down")

	_, err := svc.CreateCheckoutSession(context.Background(), "u1", "a@example.com")
	assert.ErrorIs(t, err, gw.err)
}

func TestCancelSubscription(t *testing.T) {
	t.Run("no customer", func(t *testing.T) {
		svc, _, _ := newTestStripeService()
		assert.ErrorIs(t, svc.CancelSubscription(context.Background(), "u1"), ErrNoStripeCustomer)
	})

	t.Run("no active subscription", func(t *testing.T) {
		svc, store, _ := newTestStripeService()
		withCustomer(store, "u1", "cus_1", model.SubscriptionStatusSubscribed)
		assert.ErrorIs(t, svc.CancelSubscription(context.Background(), "u1"), ErrNoActiveSubscription)
		assert.Equal(t, model.SubscriptionStatusSubscribed, store.status("u1"))
	})

	t.Run("schedules cancellation", func(t *testing.T) {
		svc, store, gw := newTestStripeService()
		withCustomer(store, "u1", "cus_1", model.SubscriptionStatusSubscribed)
		gw.subs["cus_1"] = []ProviderSubscription{{ID: "sub_1"}, {ID: "sub_2", CancelAtPeriodEnd: true}}

		require.NoError(t, svc.CancelSubscription(context.Background(), "u1"))
		assert.Equal(t, map[string]bool{"sub_1": true}, gw.cancelUpdates)
		assert.Equal(t, model.SubscriptionStatusPendingCancellation, store.status("u1"))
	})

	t.Run("gateway failure leaves status", func(t *testing.T) {
		svc, store, gw := newTestStripeService()
		withCustomer(store, "u1", "cus_1", model.SubscriptionStatusSubscribed)
		gw.err = errors.New("stripe down")
		assert.Error(t, svc.CancelSubscription(context.Background(), "u1"))
		assert.Equal(t, model.SubscriptionStatusSubscribed, store.status("u1"))
	})
}

func TestReactivateSubscription(t *testing.T) {
	t.Run("nothing pending", func(t *testing.T) {
		svc, store, gw := newTestStripeService()
		withCustomer(store, "u1", "cus_1", model.SubscriptionStatusSubscribed)
		gw.subs["cus_1"] = []ProviderSubscription{{ID: "sub_1"}}
		assert.ErrorIs(t, svc.ReactivateSubscription(context.Background(), "u1"), ErrNoPendingCancellation)
	})

	t.Run("reactivates", func(t *testing.T) {
		svc, store, gw := newTestStripeService()
		withCustomer(store, "u1", "cus_1", model.SubscriptionStatusPendingCancellation)
		gw.subs["cus_1"] = []ProviderSubscription{{ID: "sub_1", CancelAtPeriodEnd: true}}

		require.NoError(t, svc.ReactivateSubscription(context.Background(), "u1"))
		assert.Equal(t, map[string]bool{"sub_1": false}, gw.cancelUpdates)
		assert.Equal(t, model.SubscriptionStatusSubscribed, store.status("u1"))
	})
}

func TestCreatePortalSession(t *testing.T) {
	svc, store, gw := newTestStripeService()

	_, err := svc.CreatePortalSession(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoStripeCustomer)

	withCustomer(store, "u1", "cus_1", model.SubscriptionStatusSubscribed)
	url, err := svc.CreatePortalSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.example/cus_1", url)
	assert.Equal(t, []string{"cus_1"}, gw.portalCustomers)
}
