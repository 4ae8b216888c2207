package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// sliceQueue hands each body to the handler once and records the outcome.
type sliceQueue struct {
	bodies []string
	errs   []error
}

func (q *sliceQueue) StartPolling(ctx context.Context, handler awspkg.MessageHandler) error {
	for _, b := range q.bodies {
		q.errs = append(q.errs, handler(ctx, b))
	}
	return nil
}

func retryBody(t *testing.T, paymentRef string) string {
	t.Helper()
	b, err := json.Marshal(models.LedgerRetryMessage{PaymentRef: paymentRef, OrderRef: "AB-1-TEST", Attempt: 1})
	require.NoError(t, err)
	return string(b)
}

func seedOrder(t *testing.T, repo *memOrderRepo, status string) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Order{
		OrderRef:     "AB-1-TEST",
		PaymentRef:   "pay_1",
		Customer:     customer(),
		Totals:       models.OrderTotals{Subtotal: 3598, Tax: 180, Total: 3778},
		LedgerStatus: status,
	}))
}

func TestLedgerRetryAppendsFailedRow(t *testing.T) {
	repo := newMemOrderRepo()
	seedOrder(t, repo, models.LedgerStatusFailed)
	l := &fakeLedger{}
	c := services.NewLedgerRetryConsumer(nil, repo, l, nil, zap.NewNop())

	require.NoError(t, c.Handle(context.Background(), retryBody(t, "pay_1")))
	assert.Len(t, l.rows(), 1)

	stored, _ := repo.FindByPaymentRef(context.Background(), "pay_1")
	assert.Equal(t, models.LedgerStatusAppended, stored.LedgerStatus)

	// Redelivery is harmless.
	require.NoError(t, c.Handle(context.Background(), retryBody(t, "pay_1")))
	assert.Len(t, l.rows(), 1)
}

func TestLedgerRetryMarksExistingRowAppended(t *testing.T) {
	repo := newMemOrderRepo()
	seedOrder(t, repo, models.LedgerStatusFailed)
	l := &fakeLedger{}
	require.NoError(t, l.AppendOrder(context.Background(), &models.Order{PaymentRef: "pay_1"}))
	c := services.NewLedgerRetryConsumer(nil, repo, l, nil, zap.NewNop())

	require.NoError(t, c.Handle(context.Background(), retryBody(t, "pay_1")))
	assert.Len(t, l.rows(), 1)
	stored, _ := repo.FindByPaymentRef(context.Background(), "pay_1")
	assert.Equal(t, models.LedgerStatusAppended, stored.LedgerStatus)
}

func TestLedgerRetryKeepsMessageOnFailure(t *testing.T) {
	repo := newMemOrderRepo()
	seedOrder(t, repo, models.LedgerStatusFailed)

	c := services.NewLedgerRetryConsumer(nil, repo, &fakeLedger{appendErr: errors.New("quota")}, nil, zap.NewNop())
	assert.Error(t, c.Handle(context.Background(), retryBody(t, "pay_1")))

	c = services.NewLedgerRetryConsumer(nil, repo, nil, nil, zap.NewNop())
	assert.Error(t, c.Handle(context.Background(), retryBody(t, "pay_1")))

	repo.findErr = errors.New("db down")
	c = services.NewLedgerRetryConsumer(nil, repo, &fakeLedger{}, nil, zap.NewNop())
	assert.Error(t, c.Handle(context.Background(), retryBody(t, "pay_1")))
}

func TestLedgerRetryDropsUnprocessableMessages(t *testing.T) {
	repo := newMemOrderRepo()
	l := &fakeLedger{}
	c := services.NewLedgerRetryConsumer(nil, repo, l, nil, zap.NewNop())

	assert.NoError(t, c.Handle(context.Background(), "{not json"))
	assert.NoError(t, c.Handle(context.Background(), `{"order_ref":"AB-1"}`))
	assert.NoError(t, c.Handle(context.Background(), retryBody(t, "pay_unknown")))
	assert.Empty(t, l.rows())
}

func TestLedgerRetryStartPolls(t *testing.T) {
	repo := newMemOrderRepo()
	seedOrder(t, repo, models.LedgerStatusAppended)
	q := &sliceQueue{bodies: []string{retryBody(t, "pay_1")}}
	l := &fakeLedger{}
	c := services.NewLedgerRetryConsumer(q, repo, l, nil, zap.NewNop())

	require.NoError(t, c.Start(context.Background()))
	require.Len(t, q.errs, 1)
	assert.NoError(t, q.errs[0])
	assert.Empty(t, l.rows(), "already appended rows are skipped")
}
