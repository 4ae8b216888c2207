package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger row states for an order.
const (
	LedgerStatusPending  = "pending"
	LedgerStatusAppended = "appended"
	LedgerStatusFailed   = "failed"
)

// How an order came to be recorded.
const (
	OrderSourceVerify  = "verify"
	OrderSourceWebhook = "webhook"
)

// Order is a verified, paid order. PaymentRef is the idempotency key: at most
// one Order exists per captured payment.
type Order struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderRef   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_ref"`
	IntentID   string    `gorm:"type:varchar(128);index;not null" json:"intent_id"`
	PaymentRef string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"payment_ref"`

	Customer CustomerDetails `gorm:"-" json:"customer"`
	Lines    []LineItem      `gorm:"-" json:"lines"`
	// Stored as jsonb in Postgres
	CustomerJSON string `gorm:"column:customer;type:jsonb;not null" json:"-"`
	LinesJSON    string `gorm:"column:lines;type:jsonb;not null" json:"-"`

	Totals       OrderTotals `gorm:"embedded" json:"totals"`
	AmountMinor  int64       `gorm:"not null" json:"amount_minor"`
	Currency     string      `gorm:"type:varchar(10);not null" json:"currency"`
	Method       string      `gorm:"type:varchar(32)" json:"method"`
	Source       string      `gorm:"type:varchar(16);not null" json:"source"`
	LedgerStatus string      `gorm:"type:varchar(16);not null;index" json:"ledger_status"`
	VerifiedAt   time.Time   `gorm:"not null" json:"verified_at"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeSave(tx *gorm.DB) error {
	var err error
	o.CustomerJSON, o.LinesJSON, err = encodeSnapshot(o.Customer, o.Lines)
	return err
}

func (o *Order) AfterFind(tx *gorm.DB) error {
	return decodeSnapshot(o.CustomerJSON, o.LinesJSON, &o.Customer, &o.Lines)
}

// LineSummary joins every line as "Name (Size) xQty".
func (o *Order) LineSummary() string {
	return summarize(o.Lines)
}

// CheckoutIntent is the server-side snapshot of a cart taken when its gateway
// intent was created. Verification trusts this over anything the client resends.
type CheckoutIntent struct {
	IntentID string `gorm:"type:varchar(128);primaryKey" json:"intent_id"`
	Receipt  string `gorm:"type:varchar(64);not null" json:"receipt"`
	Gateway  string `gorm:"type:varchar(16);not null" json:"gateway"`

	Customer     CustomerDetails `gorm:"-" json:"customer"`
	Lines        []LineItem      `gorm:"-" json:"lines"`
	CustomerJSON string          `gorm:"column:customer;type:jsonb;not null" json:"-"`
	LinesJSON    string          `gorm:"column:lines;type:jsonb;not null" json:"-"`

	Totals      OrderTotals `gorm:"embedded" json:"totals"`
	AmountMinor int64       `gorm:"not null" json:"amount_minor"`
	Currency    string      `gorm:"type:varchar(10);not null" json:"currency"`
	ClientKey   string      `gorm:"type:varchar(64)" json:"client_key"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func (c *CheckoutIntent) BeforeSave(tx *gorm.DB) error {
	var err error
	c.CustomerJSON, c.LinesJSON, err = encodeSnapshot(c.Customer, c.Lines)
	return err
}

func (c *CheckoutIntent) AfterFind(tx *gorm.DB) error {
	return decodeSnapshot(c.CustomerJSON, c.LinesJSON, &c.Customer, &c.Lines)
}

func encodeSnapshot(customer CustomerDetails, lines []LineItem) (string, string, error) {
	c, err := json.Marshal(customer)
	if err != nil {
		return "", "", fmt.Errorf("encode customer: %w", err)
	}
	if lines == nil {
		lines = []LineItem{}
	}
	l, err := json.Marshal(lines)
	if err != nil {
		return "", "", fmt.Errorf("encode lines: %w", err)
	}
	return string(c), string(l), nil
}

func decodeSnapshot(customerJSON, linesJSON string, customer *CustomerDetails, lines *[]LineItem) error {
	if customerJSON != "" {
		if err := json.Unmarshal([]byte(customerJSON), customer); err != nil {
			return fmt.Errorf("decode customer: %w", err)
		}
	}
	if linesJSON != "" {
		if err := json.Unmarshal([]byte(linesJSON), lines); err != nil {
			return fmt.Errorf("decode lines: %w", err)
		}
	}
	return nil
}

func summarize(lines []LineItem) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += ", "
		}
		out += l.Summary()
	}
	return out
}
