package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordOption func(*services.RecordInput)

func captured(ref string) recordOption {
	return func(in *services.RecordInput) {
		in.Payment = &models.PaymentIntent{
			IntentID:    "order_1",
			PaymentRef:  ref,
			AmountMinor: 377800,
			Currency:    "INR",
			Status:      models.PaymentStatusCaptured,
		}
	}
}

func recordInput(opts ...recordOption) services.RecordInput {
	in := services.RecordInput{
		IntentID: "order_1",
		Customer: customer(),
		Lines:    []models.LineItem{{ProductID: 1, Name: "Sacred Hoodie", Size: "L", Quantity: 2, UnitPrice: 1799, LineTotal: 3598}},
		Totals:   models.OrderTotals{Subtotal: 3598, Tax: 180, Total: 3778},
		Source:   models.OrderSourceVerify,
	}
	captured("pay_1")(&in)
	for _, opt := range opts {
		opt(&in)
	}
	return in
}

func TestRecordConcurrentVerificationsCreateOneOrder(t *testing.T) {
	orders := newMemOrderRepo()
	l := &fakeLedger{}
	rec := services.NewOrderRecorder(orders, l, &fakeSender{}, &recordingPublisher{}, nil, zap.NewNop())

	const callers = 8
	results := make([]*services.RecordResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := rec.Record(context.Background(), recordInput())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, orders.count())
	assert.Len(t, l.rows(), 1)

	fresh := 0
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].Order.OrderRef, r.Order.OrderRef)
		if !r.Duplicate {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
}

func TestRecordLedgerFailureStillSucceeds(t *testing.T) {
	orders := newMemOrderRepo()
	l := &fakeLedger{appendErr: errors.New("sheets quota exceeded")}
	retries := &fakeSender{}
	events := &recordingPublisher{}
	rec := services.NewOrderRecorder(orders, l, retries, events, nil, zap.NewNop())

	res, err := rec.Record(context.Background(), recordInput())
	require.NoError(t, err)
	assert.True(t, apperrors.IsKind(res.Failure, apperrors.KindRecordingFailure))
	assert.NotEmpty(t, res.Order.OrderRef)

	stored, err := orders.FindByPaymentRef(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusFailed, stored.LedgerStatus)

	require.Len(t, retries.messages, 1)
	var msg models.LedgerRetryMessage
	require.NoError(t, json.Unmarshal([]byte(retries.messages[0]), &msg))
	assert.Equal(t, "pay_1", msg.PaymentRef)
	assert.Equal(t, res.Order.OrderRef, msg.OrderRef)

	assert.Contains(t, events.types(), models.EventRecordingFailure)
}

func TestRecordStoreFailureStillAppendsLedger(t *testing.T) {
	orders := newMemOrderRepo()
	orders.createErr = errors.New("connection refused")
	l := &fakeLedger{}
	retries := &fakeSender{}
	events := &recordingPublisher{}
	rec := services.NewOrderRecorder(orders, l, retries, events, nil, zap.NewNop())

	res, err := rec.Record(context.Background(), recordInput())
	require.NoError(t, err)
	assert.True(t, apperrors.IsKind(res.Failure, apperrors.KindRecordingFailure))
	assert.Len(t, l.rows(), 1)
	assert.Empty(t, retries.messages)
	assert.Equal(t, []string{models.EventRecordingFailure}, events.types())
}

func TestRecordStoreFailureRetryReportsLedgerOrderRef(t *testing.T) {
	orders := newMemOrderRepo()
	orders.createErr = errors.New("connection refused")
	l := &fakeLedger{}
	events := &recordingPublisher{}
	rec := services.NewOrderRecorder(orders, l, &fakeSender{}, events, nil, zap.NewNop())

	first, err := rec.Record(context.Background(), recordInput())
	require.NoError(t, err)
	second, err := rec.Record(context.Background(), recordInput())
	require.NoError(t, err)

	assert.Error(t, second.Failure)
	assert.Equal(t, first.Order.OrderRef, second.Order.OrderRef)
	require.Len(t, l.rows(), 1)
	assert.Equal(t, first.Order.OrderRef, l.rows()[0].OrderRef)

	events.mu.Lock()
	defer events.mu.Unlock()
	require.Len(t, events.events, 2)
	assert.Equal(t, first.Order.OrderRef, events.events[1].OrderRef)
}

func TestRecordWithoutLedger(t *testing.T) {
	orders := newMemOrderRepo()
	rec := services.NewOrderRecorder(orders, nil, nil, &recordingPublisher{}, nil, zap.NewNop())

	res, err := rec.Record(context.Background(), recordInput())
	require.NoError(t, err)
	assert.Error(t, res.Failure)

	stored, err := orders.FindByPaymentRef(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusFailed, stored.LedgerStatus)
}

func TestRecordRequiresPaymentRef(t *testing.T) {
	rec := services.NewOrderRecorder(newMemOrderRepo(), &fakeLedger{}, nil, &recordingPublisher{}, nil, zap.NewNop())

	_, err := rec.Record(context.Background(), recordInput(captured("")))
	assert.True(t, apperrors.IsKind(err, apperrors.KindMissingField))
}

func TestRecordIgnoresCallerCancellation(t *testing.T) {
	orders := newMemOrderRepo()
	rec := services.NewOrderRecorder(orders, &fakeLedger{}, nil, &recordingPublisher{}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := rec.Record(ctx, recordInput())
	require.NoError(t, err)
	assert.Nil(t, res.Failure)
	assert.Equal(t, 1, orders.count())
}

func TestLookup(t *testing.T) {
	orders := newMemOrderRepo()
	rec := services.NewOrderRecorder(orders, &fakeLedger{}, nil, &recordingPublisher{}, nil, zap.NewNop())
	res, err := rec.Record(context.Background(), recordInput())
	require.NoError(t, err)

	got, err := rec.Lookup(context.Background(), res.Order.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, "pay_1", got.PaymentRef)

	_, err = rec.Lookup(context.Background(), "AB-0-NONE")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestNewOrderRef(t *testing.T) {
	at := time.UnixMilli(1718000000123)
	ref := services.NewOrderRef(at)
	assert.Regexp(t, `^AB-1718000000123-[0-9A-F]{4}$`, ref)
}
