package models

import "time"

// SNS event types published by the checkout service.
const (
	EventOrderRecorded    = "order.recorded"
	EventRecordingFailure = "order.recording_failed"
	EventSignatureFailure = "payment.signature_mismatch"
)

// OrderEvent is published on the order events topic for downstream consumers
// (notification, fulfilment) and for operational alerts.
type OrderEvent struct {
	Type       string      `json:"type"`
	OrderRef   string      `json:"order_ref,omitempty"`
	IntentID   string      `json:"intent_id,omitempty"`
	PaymentRef string      `json:"payment_ref"`
	Email      string      `json:"email,omitempty"`
	Totals     OrderTotals `json:"totals"`
	Currency   string      `json:"currency,omitempty"`
	Stage      string      `json:"stage,omitempty"`
	Error      string      `json:"error,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// LedgerRetryMessage asks the retry consumer to append a missing ledger row.
type LedgerRetryMessage struct {
	PaymentRef string    `json:"payment_ref"`
	OrderRef   string    `json:"order_ref"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
