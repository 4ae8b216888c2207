package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/pricing"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/providers"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/repository"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/validation"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCurrency = "INR"

	snapshotTimeout = 5 * time.Second
)

// CheckoutService validates a cart and opens a gateway intent for it.
type CheckoutService interface {
	Quote(lines []models.CartLine) (*models.QuoteResponse, error)
	CreateIntent(ctx context.Context, req models.CheckoutRequest, clientKey string) (*models.CheckoutResponse, error)
}

type checkoutServiceImpl struct {
	validator *validation.Validator
	gateway   providers.PaymentGateway
	intents   repository.IntentRepository
	currency  string
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
	now       func() time.Time
}

// NewCheckoutService wires the checkout flow. gateway nil means the payment
// secrets are absent and CreateIntent answers with a configuration error.
// intents may be nil.
func NewCheckoutService(
	v *validation.Validator,
	gateway providers.PaymentGateway,
	intents repository.IntentRepository,
	currency string,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) CheckoutService {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &checkoutServiceImpl{
		validator: v,
		gateway:   gateway,
		intents:   intents,
		currency:  currency,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewReceipt builds a gateway receipt. Razorpay caps receipts at 40 characters.
func NewReceipt(now time.Time) string {
	return "rcpt_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *checkoutServiceImpl) Quote(lines []models.CartLine) (*models.QuoteResponse, error) {
	items, totals, err := s.validator.ValidateLines(lines)
	if err != nil {
		return nil, err
	}
	return &models.QuoteResponse{Totals: totals, Items: items}, nil
}

func (s *checkoutServiceImpl) CreateIntent(ctx context.Context, req models.CheckoutRequest, clientKey string) (*models.CheckoutResponse, error) {
	if s.gateway == nil {
		return nil, apperrors.Configuration("payment gateway")
	}

	order, err := s.validator.ValidateOrder(req.Lines, req.Customer, req.ClientTotals)
	if err != nil {
		return nil, err
	}

	amount := pricing.ToMinor(order.Totals.Total)
	receipt := NewReceipt(s.now())
	log := s.logger.With(
		zap.String("receipt", receipt),
		zap.String("gateway", s.gateway.Name()),
		zap.Int64("amount", amount),
	)

	started := time.Now()
	intent, err := s.gateway.CreateIntent(ctx, providers.IntentRequest{
		AmountMinor: amount,
		Currency:    s.currency,
		Receipt:     receipt,
		Notes: map[string]string{
			"customer_name":  order.Customer.Name,
			"customer_email": order.Customer.Email,
			"customer_phone": order.Customer.Phone,
			"items_count":    strconv.Itoa(len(order.Items)),
			"total":          strconv.FormatInt(order.Totals.Total, 10),
		},
	})
	recordLatency(s.metrics, awspkg.MetricGatewayLatency, time.Since(started), map[string]string{"Operation": "CreateIntent"})
	if err != nil {
		log.Error("Failed to create payment intent", zap.String("error_kind", string(apperrors.KindOf(err))), zap.Error(err))
		return nil, err
	}
	log = log.With(zap.String("intent_id", intent.IntentID))
	if intent.AmountMinor != 0 && intent.AmountMinor != amount {
		log.Warn("Gateway intent amount differs from server total", zap.Int64("gateway_amount", intent.AmountMinor))
	}

	s.saveSnapshot(ctx, intent, order, receipt, amount, clientKey, log)
	recordMetric(s.metrics, awspkg.MetricIntentsCreated, map[string]string{"Gateway": s.gateway.Name()})
	log.Info("Payment intent created", zap.Int64("total", order.Totals.Total))

	return &models.CheckoutResponse{
		IntentID:     intent.IntentID,
		Amount:       amount,
		Currency:     s.currency,
		Receipt:      receipt,
		KeyID:        s.gateway.PublicKey(),
		ClientSecret: intent.ClientSecret,
		ServerTotals: order.Totals,
		Items:        order.Items,
	}, nil
}

// saveSnapshot keeps the validated order so verification does not depend on
// what the client resubmits. Failure is logged only.
func (s *checkoutServiceImpl) saveSnapshot(ctx context.Context, intent *models.PaymentIntent, order *validation.ValidatedOrder, receipt string, amount int64, clientKey string, log *zap.Logger) {
	if s.intents == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	err := s.intents.Save(ctx, &models.CheckoutIntent{
		IntentID:    intent.IntentID,
		Receipt:     receipt,
		Gateway:     s.gateway.Name(),
		Customer:    order.Customer,
		Lines:       order.Items,
		Totals:      order.Totals,
		AmountMinor: amount,
		Currency:    s.currency,
		ClientKey:   clientKey,
	})
	if err != nil {
		log.Warn("Failed to save checkout snapshot", zap.Error(err))
	}
}
