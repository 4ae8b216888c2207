package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/signature"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

const (
	razorpayHookSecret = "rzp_webhook_secret"
	stripeHookSecret   = "whsec_test_secret"
)

const capturedEvent = `{
  "event": "payment.captured",
  "payload": {"payment": {"entity": {
    "id": "pay_1", "order_id": "order_1", "amount": 377800,
    "currency": "INR", "status": "captured", "method": "upi"
  }}}
}`

func webhookRouter(svc *MockPaymentService, razorpaySecret, stripeSecret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	wc := NewWebhookController(svc, razorpaySecret, stripeSecret)
	r := gin.New()
	r.POST("/webhooks/razorpay", wc.RazorpayWebhook)
	r.POST("/webhooks/stripe", wc.StripeWebhook)
	return r
}

func postWebhook(r http.Handler, path string, body []byte, header, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(header, sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func recorded(ref string, duplicate bool) *services.RecordResult {
	return &services.RecordResult{Order: &models.Order{OrderRef: ref}, Duplicate: duplicate}
}

func TestRazorpayWebhook(t *testing.T) {
	body := []byte(capturedEvent)

	t.Run("Captured payment recorded - 200", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("ConfirmCaptured", mock.Anything, &models.PaymentIntent{
			IntentID:    "order_1",
			PaymentRef:  "pay_1",
			AmountMinor: 377800,
			Currency:    "INR",
			Status:      models.PaymentStatusCaptured,
			Method:      "upi",
		}).Return(recorded("AB-1-ABCD", false), nil).Once()

		w := postWebhook(webhookRouter(svc, razorpayHookSecret, ""), "/webhooks/razorpay", body,
			RazorpaySignatureHeader, signature.SignPayload(body, razorpayHookSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "received", resp["status"])
		assert.Equal(t, "AB-1-ABCD", resp["order_ref"])
		svc.AssertExpectations(t)
	})

	t.Run("Forged signature - 400", func(t *testing.T) {
		svc := new(MockPaymentService)

		w := postWebhook(webhookRouter(svc, razorpayHookSecret, ""), "/webhooks/razorpay", body,
			RazorpaySignatureHeader, signature.SignPayload(body, "wrong_secret"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "signature_mismatch", decode(t, w)["kind"])
		svc.AssertNotCalled(t, "ConfirmCaptured", mock.Anything, mock.Anything)
	})

	t.Run("Missing signature - 400", func(t *testing.T) {
		svc := new(MockPaymentService)

		w := postWebhook(webhookRouter(svc, razorpayHookSecret, ""), "/webhooks/razorpay", body, RazorpaySignatureHeader, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ConfirmCaptured", mock.Anything, mock.Anything)
	})

	t.Run("Other events ignored - 200", func(t *testing.T) {
		svc := new(MockPaymentService)
		other := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)

		w := postWebhook(webhookRouter(svc, razorpayHookSecret, ""), "/webhooks/razorpay", other,
			RazorpaySignatureHeader, signature.SignPayload(other, razorpayHookSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ignored", decode(t, w)["status"])
		svc.AssertNotCalled(t, "ConfirmCaptured", mock.Anything, mock.Anything)
	})

	t.Run("Recording error asks for redelivery", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("ConfirmCaptured", mock.Anything, mock.Anything).
			Return(nil, apperrors.GatewayTimeout(assert.AnError)).Once()

		w := postWebhook(webhookRouter(svc, razorpayHookSecret, ""), "/webhooks/razorpay", body,
			RazorpaySignatureHeader, signature.SignPayload(body, razorpayHookSecret))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})

	t.Run("Secret not configured - 503", func(t *testing.T) {
		svc := new(MockPaymentService)

		w := postWebhook(webhookRouter(svc, "", ""), "/webhooks/razorpay", body,
			RazorpaySignatureHeader, signature.SignPayload(body, razorpayHookSecret))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "configuration", decode(t, w)["kind"])
	})
}

func stripeEvent(eventType, status string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "api_version": %q,
  "type": %q,
  "data": {"object": {
    "id": "pi_1", "object": "payment_intent", "amount": 377800,
    "amount_received": 377800, "currency": "inr", "status": %q,
    "payment_method_types": ["card"]
  }}
}`, stripe.APIVersion, eventType, status))
}

func signStripe(body []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: secret})
	return signed.Header
}

func TestStripeWebhook(t *testing.T) {
	t.Run("Succeeded intent recorded - 200", func(t *testing.T) {
		body := stripeEvent("payment_intent.succeeded", "succeeded")
		svc := new(MockPaymentService)
		svc.On("ConfirmCaptured", mock.Anything, mock.MatchedBy(func(p *models.PaymentIntent) bool {
			return p.PaymentRef == "pi_1" && p.AmountMinor == 377800 &&
				p.Currency == "INR" && p.Status == models.PaymentStatusCaptured && p.Method == "card"
		})).Return(recorded("AB-2-BEEF", true), nil).Once()

		w := postWebhook(webhookRouter(svc, "", stripeHookSecret), "/webhooks/stripe", body,
			StripeSignatureHeader, signStripe(body, stripeHookSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "AB-2-BEEF", resp["order_ref"])
		assert.Equal(t, true, resp["duplicate"])
		svc.AssertExpectations(t)
	})

	t.Run("Bad signature - 400", func(t *testing.T) {
		body := stripeEvent("payment_intent.succeeded", "succeeded")
		svc := new(MockPaymentService)

		w := postWebhook(webhookRouter(svc, "", stripeHookSecret), "/webhooks/stripe", body,
			StripeSignatureHeader, signStripe(body, "whsec_other"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ConfirmCaptured", mock.Anything, mock.Anything)
	})

	t.Run("Other events ignored - 200", func(t *testing.T) {
		body := stripeEvent("payment_intent.created", "requires_payment_method")
		svc := new(MockPaymentService)

		w := postWebhook(webhookRouter(svc, "", stripeHookSecret), "/webhooks/stripe", body,
			StripeSignatureHeader, signStripe(body, stripeHookSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ignored", decode(t, w)["status"])
	})

	t.Run("Secret not configured - 503", func(t *testing.T) {
		body := stripeEvent("payment_intent.succeeded", "succeeded")

		w := postWebhook(webhookRouter(new(MockPaymentService), "", ""), "/webhooks/stripe", body,
			StripeSignatureHeader, signStripe(body, stripeHookSecret))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
