package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
)

type fakeIntents struct {
	created *stripe.PaymentIntentParams
	pi      *stripe.PaymentIntent
	err     error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = params
	return f.pi, f.err
}

func (f *fakeIntents) Get(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.pi, f.err
}

func TestStripeCreateIntent(t *testing.T) {
	intents := &fakeIntents{pi: &stripe.PaymentIntent{ID: "pi_1", Amount: 188900, Currency: "inr", ClientSecret: "pi_1_secret_x"}}
	g := newStripeGateway("sk_test", time.Second, intents)

	intent, err := g.CreateIntent(context.Background(), IntentRequest{AmountMinor: 188900, Currency: "INR", Receipt: "rcpt_9"})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.IntentID)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, "pi_1_secret_x", intent.ClientSecret)
	assert.Empty(t, g.CallbackSecret())

	assert.Equal(t, int64(188900), *intents.created.Amount)
	assert.Equal(t, "inr", *intents.created.Currency)
	assert.Equal(t, "rcpt_9", *intents.created.IdempotencyKey)
}

func TestStripeFetchPaymentStatuses(t *testing.T) {
	tests := []struct {
		pi   *stripe.PaymentIntent
		want string
	}{
		{&stripe.PaymentIntent{ID: "pi", Status: stripe.PaymentIntentStatusSucceeded, AmountReceived: 100}, models.PaymentStatusCaptured},
		{&stripe.PaymentIntent{ID: "pi", Status: stripe.PaymentIntentStatusProcessing}, models.PaymentStatusCreated},
		{&stripe.PaymentIntent{ID: "pi", Status: stripe.PaymentIntentStatusCanceled}, models.PaymentStatusFailed},
		{&stripe.PaymentIntent{ID: "pi", Status: stripe.PaymentIntentStatusRequiresPaymentMethod, LastPaymentError: &stripe.Error{}}, models.PaymentStatusFailed},
		{&stripe.PaymentIntent{ID: "pi", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, models.PaymentStatusCreated},
	}
	for _, tt := range tests {
		g := newStripeGateway("sk", time.Second, &fakeIntents{pi: tt.pi})
		got, err := g.FetchPayment(context.Background(), "pi")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Status, string(tt.pi.Status))
		assert.Equal(t, "pi", got.PaymentRef)
	}
}

func TestStripeFetchFailure(t *testing.T) {
	g := newStripeGateway("sk", time.Second, &fakeIntents{err: errors.New("api down")})
	_, err := g.FetchPayment(context.Background(), "pi")
	assert.Equal(t, apperrors.KindGatewayFetchFailed, apperrors.KindOf(err))
}

func TestFromStripeIntentMethod(t *testing.T) {
	got := FromStripeIntent(&stripe.PaymentIntent{ID: "pi", Amount: 500, PaymentMethodTypes: []string{"card"}})
	assert.Equal(t, "card", got.Method)
	assert.Equal(t, int64(500), got.AmountMinor)
}
