package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ledger"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/repository"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// OrderRefPrefix starts every customer-facing order reference.
	OrderRefPrefix = "AB-"

	recordTimeout  = 15 * time.Second
	maxRefAttempts = 3
)

var errLedgerNotConfigured = errors.New("ledger not configured")

// RecordInput is a captured payment plus the order it pays for.
type RecordInput struct {
	IntentID string
	Payment  *models.PaymentIntent
	Customer models.CustomerDetails
	Lines    []models.LineItem
	Totals   models.OrderTotals
	Source   string
}

// RecordResult is what the customer is told. Failure is set when the store or
// ledger could not be written; the order ref is still valid and staff have
// been alerted.
type RecordResult struct {
	Order     *models.Order
	Duplicate bool
	Failure   error
}

// OrderRecorder turns a captured payment into exactly one order.
type OrderRecorder interface {
	Record(ctx context.Context, in RecordInput) (*RecordResult, error)
	Lookup(ctx context.Context, orderRef string) (*models.Order, error)
}

type orderRecorderImpl struct {
	repo    repository.OrderRepository
	ledger  ledger.Ledger
	retries awspkg.MessageSender
	events  EventPublisher
	metrics *awspkg.MetricsClient
	logger  *zap.Logger
	now     func() time.Time
	newRef  func(time.Time) string
}

// NewOrderRecorder wires the recorder. ledger, retries and metrics may be nil.
func NewOrderRecorder(
	repo repository.OrderRepository,
	l ledger.Ledger,
	retries awspkg.MessageSender,
	events EventPublisher,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) OrderRecorder {
	return &orderRecorderImpl{
		repo:    repo,
		ledger:  l,
		retries: retries,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newRef:  NewOrderRef,
	}
}

// NewOrderRef builds AB-<unix millis>-<4 uppercase characters>.
func NewOrderRef(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return OrderRefPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}

func (r *orderRecorderImpl) Record(ctx context.Context, in RecordInput) (*RecordResult, error) {
	if in.Payment == nil || in.Payment.PaymentRef == "" {
		return nil, apperrors.MissingField("payment_ref")
	}
	// The customer has paid; a dropped client connection must not abort the write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	paymentRef := in.Payment.PaymentRef
	log := r.logger.With(
		zap.String("payment_ref", paymentRef),
		zap.String("intent_id", in.IntentID),
		zap.String("source", in.Source),
	)

	existing, err := r.repo.FindByPaymentRef(ctx, paymentRef)
	switch {
	case err == nil:
		return r.duplicate(existing, log), nil
	case !errors.Is(err, repository.ErrOrderNotFound):
		log.Warn("Order lookup failed, attempting insert", zap.Error(err))
	}

	order := &models.Order{
		IntentID:     in.IntentID,
		PaymentRef:   paymentRef,
		Customer:     in.Customer,
		Lines:        in.Lines,
		Totals:       in.Totals,
		AmountMinor:  in.Payment.AmountMinor,
		Currency:     in.Payment.Currency,
		Method:       in.Payment.Method,
		Source:       in.Source,
		LedgerStatus: models.LedgerStatusPending,
		VerifiedAt:   r.now(),
	}

	for attempt := 1; ; attempt++ {
		order.OrderRef = r.newRef(order.VerifiedAt)
		err = r.repo.Create(ctx, order)
		if !errors.Is(err, repository.ErrDuplicateOrder) {
			break
		}
		winner, ferr := r.repo.FindByPaymentRef(ctx, paymentRef)
		if ferr == nil {
			return r.duplicate(winner, log), nil
		}
		// The conflict was on order_ref, not payment_ref.
		if attempt == maxRefAttempts {
			err = fmt.Errorf("order ref collision after %d attempts: %w", attempt, err)
			break
		}
	}
	log = log.With(zap.String("order_ref", order.OrderRef))

	if err != nil {
		failure := apperrors.RecordingFailure(err)
		log.Error("Failed to persist order", zap.Error(err))
		// Staff can still fulfil from the ledger row. An earlier attempt may
		// already have written it, in which case its ref is the one to report.
		r.appendLedger(ctx, order, false, log)
		r.escalate(ctx, order, "store", err)
		return &RecordResult{Order: order, Failure: failure}, nil
	}

	recordMetric(r.metrics, awspkg.MetricOrdersRecorded, map[string]string{"Source": in.Source})
	log.Info("Order recorded", zap.Int64("total", order.Totals.Total))

	result := &RecordResult{Order: order}
	if lerr := r.appendLedger(ctx, order, true, log); lerr != nil {
		result.Failure = apperrors.RecordingFailure(lerr)
	}

	r.events.Publish(ctx, models.OrderEvent{
		Type:       models.EventOrderRecorded,
		OrderRef:   order.OrderRef,
		IntentID:   order.IntentID,
		PaymentRef: order.PaymentRef,
		Email:      order.Customer.Email,
		Totals:     order.Totals,
		Currency:   order.Currency,
		OccurredAt: order.VerifiedAt,
	})
	return result, nil
}

func (r *orderRecorderImpl) Lookup(ctx context.Context, orderRef string) (*models.Order, error) {
	order, err := r.repo.FindByOrderRef(ctx, orderRef)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperrors.New(http.StatusNotFound, apperrors.KindNotFound, "Order not found", err)
	}
	if err != nil {
		return nil, apperrors.New(http.StatusInternalServerError, apperrors.KindInternal, "Failed to load order", err)
	}
	return order, nil
}

func (r *orderRecorderImpl) duplicate(order *models.Order, log *zap.Logger) *RecordResult {
	recordMetric(r.metrics, awspkg.MetricOrdersDuplicate, nil)
	log.Info("Payment already recorded", zap.String("order_ref", order.OrderRef))
	return &RecordResult{Order: order, Duplicate: true}
}

// appendLedger writes the ledger row and tracks the outcome on the order.
// persisted says whether the order row exists for status updates and retries.
func (r *orderRecorderImpl) appendLedger(ctx context.Context, order *models.Order, persisted bool, log *zap.Logger) error {
	err := errLedgerNotConfigured
	if r.ledger != nil {
		err = r.ledger.AppendOrder(ctx, order)
	}
	if ref, ok := ledger.ExistingOrderRef(err); ok && ref != order.OrderRef {
		if persisted {
			log.Warn("Ledger row carries a different order ref", zap.String("ledger_order_ref", ref))
		} else {
			log.Info("Reusing order ref from existing ledger row", zap.String("ledger_order_ref", ref))
			order.OrderRef = ref
		}
	}
	if err == nil || errors.Is(err, ledger.ErrDuplicate) {
		order.LedgerStatus = models.LedgerStatusAppended
		if persisted {
			r.setLedgerStatus(ctx, order, log)
		}
		return nil
	}

	order.LedgerStatus = models.LedgerStatusFailed
	log.Error("Failed to append order to ledger", zap.Error(err))
	r.escalate(ctx, order, "ledger", err)
	if persisted {
		r.setLedgerStatus(ctx, order, log)
		r.enqueueRetry(ctx, order, log)
	}
	return err
}

func (r *orderRecorderImpl) setLedgerStatus(ctx context.Context, order *models.Order, log *zap.Logger) {
	if err := r.repo.UpdateLedgerStatus(ctx, order.PaymentRef, order.LedgerStatus); err != nil {
		log.Warn("Failed to update ledger status", zap.String("ledger_status", order.LedgerStatus), zap.Error(err))
	}
}

func (r *orderRecorderImpl) enqueueRetry(ctx context.Context, order *models.Order, log *zap.Logger) {
	if r.retries == nil {
		log.Warn("No ledger retry queue configured")
		return
	}
	body, err := json.Marshal(models.LedgerRetryMessage{
		PaymentRef: order.PaymentRef,
		OrderRef:   order.OrderRef,
		Attempt:    1,
		EnqueuedAt: r.now(),
	})
	if err != nil {
		log.Error("Failed to marshal ledger retry", zap.Error(err))
		return
	}
	if err := r.retries.SendMessage(ctx, string(body)); err != nil {
		log.Error("Failed to enqueue ledger retry", zap.Error(err))
	}
}

func (r *orderRecorderImpl) escalate(ctx context.Context, order *models.Order, stage string, cause error) {
	recordMetric(r.metrics, awspkg.MetricRecordingFailures, map[string]string{"Stage": stage})
	r.events.Publish(ctx, models.OrderEvent{
		Type:       models.EventRecordingFailure,
		OrderRef:   order.OrderRef,
		IntentID:   order.IntentID,
		PaymentRef: order.PaymentRef,
		Email:      order.Customer.Email,
		Totals:     order.Totals,
		Currency:   order.Currency,
		Stage:      stage,
		Error:      cause.Error(),
	})
}
