package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/providers"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/signature"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/ahambrahmasmi/storefront/services/common/logger"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const (
	RazorpaySignatureHeader = "X-Razorpay-Signature"
	StripeSignatureHeader   = "Stripe-Signature"

	maxWebhookBody = 1 << 20
)

type WebhookController struct {
	Payments       services.PaymentService
	RazorpaySecret string
	StripeSecret   string
}

func NewWebhookController(payments services.PaymentService, razorpaySecret, stripeSecret string) *WebhookController {
	return &WebhookController{Payments: payments, RazorpaySecret: razorpaySecret, StripeSecret: stripeSecret}
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity map[string]interface{} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// RazorpayWebhook handles POST /webhooks/razorpay.
func (wc *WebhookController) RazorpayWebhook(c *gin.Context) {
	if wc.RazorpaySecret == "" {
		respondError(c, apperrors.Configuration("razorpay webhook secret"))
		return
	}
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}
	if !signature.VerifyPayload(body, c.GetHeader(RazorpaySignatureHeader), wc.RazorpaySecret) {
		logger.Warn(c, "Razorpay webhook signature mismatch, potential forgery")
		respondError(c, apperrors.ErrSignatureMismatch)
		return
	}

	var event razorpayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(c, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Invalid webhook payload", err))
		return
	}
	logger.Info(c, "Processing Razorpay webhook", zap.String("event_type", event.Event))

	if event.Event != "payment.captured" || event.Payload.Payment.Entity == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	wc.confirm(c, providers.FromRazorpayPayment(event.Payload.Payment.Entity))
}

// StripeWebhook handles POST /webhooks/stripe.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	if wc.StripeSecret == "" {
		respondError(c, apperrors.Configuration("stripe webhook secret"))
		return
	}
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}
	event, err := webhook.ConstructEvent(body, c.GetHeader(StripeSignatureHeader), wc.StripeSecret)
	if err != nil {
		logger.Warn(c, "Stripe webhook signature verification failed", zap.Error(err))
		respondError(c, apperrors.ErrSignatureMismatch)
		return
	}
	logger.Info(c, "Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID))

	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		respondError(c, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Invalid payment intent", err))
		return
	}
	wc.confirm(c, providers.FromStripeIntent(&pi))
}

func (wc *WebhookController) confirm(c *gin.Context, payment *models.PaymentIntent) {
	result, err := wc.Payments.ConfirmCaptured(c.Request.Context(), payment)
	if err != nil {
		logFailure(c, "Webhook payment could not be recorded", err, zap.String("payment_ref", payment.PaymentRef))
		// Non-2xx makes the gateway redeliver.
		respondError(c, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "received",
		"order_ref": result.Order.OrderRef,
		"duplicate": result.Duplicate,
	})
}

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Unreadable webhook body", err))
		return nil, false
	}
	return body, true
}
