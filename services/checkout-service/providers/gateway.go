package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
)

const (
	GatewayRazorpay = "razorpay"
	GatewayStripe   = "stripe"

	DefaultTimeout = 10 * time.Second
)

// IntentRequest asks a gateway to open a payment intent.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// PaymentGateway defines what the checkout pipeline needs from a payment provider.
// Every method is bounded by the gateway timeout.
type PaymentGateway interface {
	// Name identifies the provider ("razorpay", "stripe").
	Name() string

	// PublicKey is handed to the browser checkout widget. Empty when the
	// provider does not need one.
	PublicKey() string

	// CallbackSecret keys the HMAC a browser payment callback must carry.
	// Empty when the provider issues no signed callback; the server-side
	// FetchPayment is then the only proof of capture.
	CallbackSecret() string

	// CreateIntent opens an intent for the exact server-computed amount.
	// Not safe to retry without a fresh receipt.
	CreateIntent(ctx context.Context, req IntentRequest) (*models.PaymentIntent, error)

	// FetchPayment reads the authoritative status of a payment. Safe to retry.
	FetchPayment(ctx context.Context, paymentRef string) (*models.PaymentIntent, error)
}

var errCallTimedOut = errors.New("gateway call timed out")

// callWithTimeout runs fn under timeout. fn may ignore ctx (the Razorpay SDK
// has no context support); its result is then discarded once the deadline passes.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			var zero T
			return zero, apperrors.GatewayTimeout(r.err)
		}
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, apperrors.GatewayTimeout(fmt.Errorf("%w after %s: %v", errCallTimedOut, timeout, ctx.Err()))
	}
}

// classify leaves timeouts alone and wraps every other failure with wrap.
func classify(err error, wrap func(error) *apperrors.Error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsKind(err, apperrors.KindGatewayTimeout) {
		return err
	}
	return wrap(err)
}
