package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ledger"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/repository"
	"go.uber.org/zap"
)

// MessagePoller delivers queue messages to a handler until ctx ends.
type MessagePoller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// LedgerRetryConsumer re-appends ledger rows that failed during recording.
type LedgerRetryConsumer struct {
	queue   MessagePoller
	repo    repository.OrderRepository
	ledger  ledger.Ledger
	metrics *awspkg.MetricsClient
	logger  *zap.Logger
}

func NewLedgerRetryConsumer(
	queue MessagePoller,
	repo repository.OrderRepository,
	l ledger.Ledger,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) *LedgerRetryConsumer {
	return &LedgerRetryConsumer{
		queue:   queue,
		repo:    repo,
		ledger:  l,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *LedgerRetryConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting LedgerRetryConsumer (SQS)")
	return c.queue.StartPolling(ctx, c.Handle)
}

// Handle processes one retry message. A nil return deletes the message;
// an error leaves it for redelivery.
func (c *LedgerRetryConsumer) Handle(ctx context.Context, body string) error {
	var msg models.LedgerRetryMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil || msg.PaymentRef == "" {
		c.logger.Warn("Dropping invalid ledger retry message", zap.String("body", body), zap.Error(err))
		return nil
	}
	log := c.logger.With(zap.String("payment_ref", msg.PaymentRef), zap.String("order_ref", msg.OrderRef))

	order, err := c.repo.FindByPaymentRef(ctx, msg.PaymentRef)
	if errors.Is(err, repository.ErrOrderNotFound) {
		log.Warn("Dropping ledger retry for unknown order")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order %s: %w", msg.PaymentRef, err)
	}
	if order.LedgerStatus == models.LedgerStatusAppended {
		log.Debug("Ledger row already appended")
		return nil
	}
	if c.ledger == nil {
		return errLedgerNotConfigured
	}

	if err := c.ledger.AppendOrder(ctx, order); err != nil && !errors.Is(err, ledger.ErrDuplicate) {
		log.Warn("Ledger retry failed", zap.Int("attempt", msg.Attempt), zap.Error(err))
		return err
	}
	if err := c.repo.UpdateLedgerStatus(ctx, order.PaymentRef, models.LedgerStatusAppended); err != nil {
		// The row exists; a redelivery will hit ErrDuplicate and try the update again.
		return fmt.Errorf("mark ledger appended: %w", err)
	}

	recordMetric(c.metrics, awspkg.MetricLedgerRetries, nil)
	log.Info("Ledger row appended on retry")
	return nil
}
