package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/pricing"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/providers"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/repository"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/signature"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/validation"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"go.uber.org/zap"
)

const SuccessMessage = "Payment verified successfully"

var errIntentMismatch = apperrors.New(http.StatusBadRequest, apperrors.KindPaymentNotCaptured,
	"Payment does not belong to this order", nil)

// PaymentService confirms payments and hands them to the recorder.
type PaymentService interface {
	// VerifyPayment checks the client callback: signature, then gateway
	// status, then records the order.
	VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error)

	// ConfirmCaptured records a payment reported by an authenticated webhook.
	// A nil result means the payment was not captured and nothing was done.
	ConfirmCaptured(ctx context.Context, payment *models.PaymentIntent) (*RecordResult, error)
}

type paymentServiceImpl struct {
	gateway   providers.PaymentGateway
	validator *validation.Validator
	intents   repository.IntentRepository
	recorder  OrderRecorder
	events    EventPublisher
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
}

// NewPaymentService wires verification. gateway nil means the payment secrets
// are absent; intents may be nil.
func NewPaymentService(
	gateway providers.PaymentGateway,
	v *validation.Validator,
	intents repository.IntentRepository,
	recorder OrderRecorder,
	events EventPublisher,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) PaymentService {
	return &paymentServiceImpl{
		gateway:   gateway,
		validator: v,
		intents:   intents,
		recorder:  recorder,
		events:    events,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *paymentServiceImpl) VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	if s.gateway == nil {
		return nil, apperrors.Configuration("payment gateway")
	}
	secret := s.gateway.CallbackSecret()
	switch {
	case req.IntentID == "":
		return nil, apperrors.MissingField("gateway_order_id")
	case req.PaymentRef == "":
		return nil, apperrors.MissingField("payment_ref")
	case secret != "" && req.Signature == "":
		return nil, apperrors.MissingField("signature")
	}

	log := s.logger.With(zap.String("intent_id", req.IntentID), zap.String("payment_ref", req.PaymentRef))

	// Without a callback secret the gateway fetch below is the only check.
	if secret != "" && !signature.Verify(req.IntentID, req.PaymentRef, req.Signature, secret) {
		log.Warn("Payment signature mismatch, potential forgery")
		s.reject("signature")
		s.events.Publish(ctx, models.OrderEvent{
			Type:       models.EventSignatureFailure,
			IntentID:   req.IntentID,
			PaymentRef: req.PaymentRef,
		})
		return nil, apperrors.ErrSignatureMismatch
	}

	started := time.Now()
	payment, err := s.gateway.FetchPayment(ctx, req.PaymentRef)
	recordLatency(s.metrics, awspkg.MetricGatewayLatency, time.Since(started), map[string]string{"Operation": "FetchPayment"})
	if err != nil {
		log.Error("Failed to fetch payment", zap.String("error_kind", string(apperrors.KindOf(err))), zap.Error(err))
		return nil, err
	}
	if payment.Status != models.PaymentStatusCaptured {
		log.Warn("Payment not captured", zap.String("status", payment.Status))
		s.reject("not_captured")
		return nil, apperrors.ErrPaymentNotCaptured
	}
	if payment.IntentID != "" && payment.IntentID != req.IntentID {
		log.Warn("Payment belongs to another intent", zap.String("payment_intent_id", payment.IntentID))
		s.reject("intent_mismatch")
		return nil, errIntentMismatch
	}
	if payment.PaymentRef == "" {
		payment.PaymentRef = req.PaymentRef
	}

	in := s.recordInput(ctx, req.IntentID, payment, req.Customer, req.Lines, models.OrderSourceVerify, log)
	result, err := s.recorder.Record(ctx, in)
	if err != nil {
		return nil, err
	}
	recordMetric(s.metrics, awspkg.MetricPaymentsVerified, map[string]string{"Gateway": s.gateway.Name()})

	return &models.VerifyPaymentResponse{
		Success:    true,
		Message:    SuccessMessage,
		OrderRef:   result.Order.OrderRef,
		PaymentRef: result.Order.PaymentRef,
		Amount:     result.Order.Totals.Total,
		Currency:   result.Order.Currency,
		Duplicate:  result.Duplicate,
	}, nil
}

func (s *paymentServiceImpl) ConfirmCaptured(ctx context.Context, payment *models.PaymentIntent) (*RecordResult, error) {
	if payment == nil || payment.PaymentRef == "" {
		return nil, apperrors.MissingField("payment_ref")
	}
	log := s.logger.With(zap.String("intent_id", payment.IntentID), zap.String("payment_ref", payment.PaymentRef))
	if payment.Status != models.PaymentStatusCaptured {
		log.Debug("Ignoring payment that is not captured", zap.String("status", payment.Status))
		return nil, nil
	}
	in := s.recordInput(ctx, payment.IntentID, payment, nil, nil, models.OrderSourceWebhook, log)
	return s.recorder.Record(ctx, in)
}

// recordInput prefers the snapshot saved at intent creation. Without one it
// re-prices whatever the client resubmitted; without that it records the bare
// payment so the money is never unaccounted for.
func (s *paymentServiceImpl) recordInput(
	ctx context.Context,
	intentID string,
	payment *models.PaymentIntent,
	customer *models.CustomerDetails,
	lines []models.CartLine,
	source string,
	log *zap.Logger,
) RecordInput {
	in := RecordInput{IntentID: intentID, Payment: payment, Source: source}

	if snap := s.snapshot(ctx, intentID, log); snap != nil {
		in.Customer, in.Lines, in.Totals = snap.Customer, snap.Items, snap.Totals
		if payment.AmountMinor != 0 && payment.AmountMinor != pricing.ToMinor(snap.Totals.Total) {
			log.Error("Captured amount differs from checkout total",
				zap.Int64("captured", payment.AmountMinor),
				zap.Int64("expected", pricing.ToMinor(snap.Totals.Total)))
		}
		return in
	}

	if customer != nil && len(lines) > 0 {
		order, err := s.validator.ValidateOrder(lines, *customer, nil)
		if err == nil {
			in.Customer, in.Lines, in.Totals = order.Customer, order.Items, order.Totals
			return in
		}
		log.Warn("Resubmitted order failed validation", zap.Error(err))
	}
	if customer != nil {
		in.Customer = *customer
	}
	total := payment.AmountMinor / pricing.MinorUnitsPerMajor
	in.Totals = models.OrderTotals{Subtotal: total, Total: total}
	log.Warn("Recording payment without order details")
	return in
}

func (s *paymentServiceImpl) snapshot(ctx context.Context, intentID string, log *zap.Logger) *validation.ValidatedOrder {
	if s.intents == nil || intentID == "" {
		return nil
	}
	snap, err := s.intents.FindByIntentID(ctx, intentID)
	if err != nil {
		if !errors.Is(err, repository.ErrIntentNotFound) {
			log.Warn("Failed to load checkout snapshot", zap.Error(err))
		}
		return nil
	}
	return &validation.ValidatedOrder{Customer: snap.Customer, Items: snap.Lines, Totals: snap.Totals}
}

func (s *paymentServiceImpl) reject(reason string) {
	recordMetric(s.metrics, awspkg.MetricPaymentsRejected, map[string]string{"Reason": reason})
}
