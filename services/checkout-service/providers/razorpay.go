package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	razorpay "github.com/razorpay/razorpay-go"
)

type razorpayOrders interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayPayments interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway implements PaymentGateway with the Razorpay orders and payments APIs.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	timeout   time.Duration
	orders    razorpayOrders
	payments  razorpayPayments
}

func NewRazorpayGateway(keyID, keySecret string, timeout time.Duration) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpayGateway(keyID, keySecret, timeout, client.Order, client.Payment)
}

func newRazorpayGateway(keyID, keySecret string, timeout time.Duration, orders razorpayOrders, payments razorpayPayments) *RazorpayGateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		timeout:   timeout,
		orders:    orders,
		payments:  payments,
	}
}

func (g *RazorpayGateway) Name() string          { return GatewayRazorpay }
func (g *RazorpayGateway) PublicKey() string     { return g.keyID }
func (g *RazorpayGateway) CallbackSecret() string { return g.keySecret }

func (g *RazorpayGateway) CreateIntent(ctx context.Context, req IntentRequest) (*models.PaymentIntent, error) {
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	body, err := callWithTimeout(ctx, g.timeout, func(context.Context) (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	if err != nil {
		return nil, classify(err, apperrors.GatewayCreateFailed)
	}

	intent := &models.PaymentIntent{
		IntentID:    stringField(body, "id"),
		AmountMinor: int64Field(body, "amount"),
		Currency:    stringField(body, "currency"),
		Receipt:     stringField(body, "receipt"),
		Status:      models.PaymentStatusCreated,
	}
	if intent.IntentID == "" {
		return nil, apperrors.GatewayCreateFailed(fmt.Errorf("razorpay order response has no id"))
	}
	return intent, nil
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentRef string) (*models.PaymentIntent, error) {
	body, err := callWithTimeout(ctx, g.timeout, func(context.Context) (map[string]interface{}, error) {
		return g.payments.Fetch(paymentRef, nil, nil)
	})
	if err != nil {
		return nil, classify(err, apperrors.GatewayFetchFailed)
	}

	return FromRazorpayPayment(body), nil
}

// FromRazorpayPayment converts a payment entity, as returned by Payment.Fetch
// or carried in a webhook payload, to the gateway-neutral form.
func FromRazorpayPayment(entity map[string]interface{}) *models.PaymentIntent {
	return &models.PaymentIntent{
		IntentID:    stringField(entity, "order_id"),
		PaymentRef:  stringField(entity, "id"),
		AmountMinor: int64Field(entity, "amount"),
		Currency:    stringField(entity, "currency"),
		Status:      razorpayStatus(stringField(entity, "status")),
		Method:      stringField(entity, "method"),
	}
}

// razorpayStatus maps created/authorized/captured/refunded/failed onto the
// three statuses the pipeline distinguishes. Only "captured" means money moved.
func razorpayStatus(s string) string {
	switch s {
	case "captured":
		return models.PaymentStatusCaptured
	case "failed", "refunded":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusCreated
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// int64Field reads a JSON number that the SDK decoded as float64.
func int64Field(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
