package providers

import (
	"context"
	"strings"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
)

type stripeIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway implements PaymentGateway with Stripe PaymentIntents. A Stripe
// payment is identified by its intent, so paymentRef and intent id coincide.
// Stripe has no signed browser callback: a client confirmation is trusted only
// after FetchPayment reads the intent back with the secret API key.
type StripeGateway struct {
	apiKey  string
	timeout time.Duration
	intents stripeIntents
}

func NewStripeGateway(apiKey string, timeout time.Duration) *StripeGateway {
	return newStripeGateway(apiKey, timeout, &paymentintent.Client{
		B:   stripe.GetBackend(stripe.APIBackend),
		Key: apiKey,
	})
}

func newStripeGateway(apiKey string, timeout time.Duration, intents stripeIntents) *StripeGateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &StripeGateway{apiKey: apiKey, timeout: timeout, intents: intents}
}

func (g *StripeGateway) Name() string           { return GatewayStripe }
func (g *StripeGateway) PublicKey() string      { return "" }
func (g *StripeGateway) CallbackSecret() string { return "" }

// CreateIntent opens a PaymentIntent keyed on the receipt, so a replayed create
// with the same receipt returns the same intent. The returned ClientSecret is
// what Stripe.js needs to confirm the payment in the browser.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*models.PaymentIntent, error) {
	pi, err := callWithTimeout(ctx, g.timeout, func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(req.AmountMinor),
			Currency: stripe.String(strings.ToLower(req.Currency)),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		params.Context = ctx
		params.SetIdempotencyKey(req.Receipt)
		params.AddMetadata("receipt", req.Receipt)
		for k, v := range req.Notes {
			params.AddMetadata(k, v)
		}
		return g.intents.New(params)
	})
	if err != nil {
		return nil, classify(err, apperrors.GatewayCreateFailed)
	}

	return &models.PaymentIntent{
		IntentID:     pi.ID,
		AmountMinor:  pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Status:       models.PaymentStatusCreated,
		Receipt:      req.Receipt,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (g *StripeGateway) FetchPayment(ctx context.Context, paymentRef string) (*models.PaymentIntent, error) {
	pi, err := callWithTimeout(ctx, g.timeout, func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		return g.intents.Get(paymentRef, params)
	})
	if err != nil {
		return nil, classify(err, apperrors.GatewayFetchFailed)
	}
	return FromStripeIntent(pi), nil
}

// FromStripeIntent converts a PaymentIntent (fetched or from a webhook) to the gateway-neutral form.
func FromStripeIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	out := &models.PaymentIntent{
		IntentID:    pi.ID,
		PaymentRef:  pi.ID,
		AmountMinor: pi.AmountReceived,
		Currency:    strings.ToUpper(string(pi.Currency)),
		Status:      stripeStatus(pi),
	}
	if out.AmountMinor == 0 {
		out.AmountMinor = pi.Amount
	}
	if pi.PaymentMethod != nil && pi.PaymentMethod.Type != "" {
		out.Method = string(pi.PaymentMethod.Type)
	} else if len(pi.PaymentMethodTypes) > 0 {
		out.Method = pi.PaymentMethodTypes[0]
	}
	return out
}

func stripeStatus(pi *stripe.PaymentIntent) string {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return models.PaymentStatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		return models.PaymentStatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return models.PaymentStatusFailed
		}
	}
	return models.PaymentStatusCreated
}
