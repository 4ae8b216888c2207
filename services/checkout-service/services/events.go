package services

import (
	"context"
	"encoding/json"
	"time"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// EventPublisher emits order events and operational alerts. Publishing never
// fails the caller; errors are logged.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent)
}

type snsEventPublisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
	logger   *zap.Logger
}

// NewEventPublisher returns a publisher for topicArn. With no client or topic
// the events are only logged.
func NewEventPublisher(sns awspkg.SNSPublisher, topicArn string, logger *zap.Logger) EventPublisher {
	return &snsEventPublisher{sns: sns, topicArn: topicArn, logger: logger}
}

func (p *snsEventPublisher) Publish(ctx context.Context, event models.OrderEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	fields := []zap.Field{
		zap.String("event_type", event.Type),
		zap.String("order_ref", event.OrderRef),
		zap.String("payment_ref", event.PaymentRef),
	}
	if p.sns == nil || p.topicArn == "" {
		p.logger.Info("Event not published, no topic configured", fields...)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", append(fields, zap.Error(err))...)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.sns.Publish(ctx, p.topicArn, event.Type, body); err != nil {
		p.logger.Error("Failed to publish event", append(fields, zap.Error(err))...)
		return
	}
	p.logger.Debug("Event published", fields...)
}

// recordMetric ships a count off the request path.
func recordMetric(metrics *awspkg.MetricsClient, name string, dims map[string]string) {
	if !metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		_ = metrics.RecordCount(ctx, name, dims)
	}()
}

func recordLatency(metrics *awspkg.MetricsClient, name string, d time.Duration, dims map[string]string) {
	if !metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		_ = metrics.RecordLatency(ctx, name, d, dims)
	}()
}
