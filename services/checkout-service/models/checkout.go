package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProductID accepts either a JSON number or a JSON string.
type ProductID string

func (p *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("product id must be a number or string: %w", err)
	}
	*p = ProductID(n.String())
	return nil
}

// Int returns the numeric form of the id, or false when it is not an integer.
func (p ProductID) Int() (int, bool) {
	n, err := strconv.Atoi(string(p))
	return n, err == nil
}

// CartLine is one entry of the client-held cart. Nothing here is trusted.
type CartLine struct {
	ProductID ProductID `json:"id"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
}

// CustomerDetails is the shipping and contact data captured at checkout.
type CustomerDetails struct {
	Name        string `json:"name" validate:"required" dynamodbav:"name"`
	Email       string `json:"email" validate:"required" dynamodbav:"email"`
	Phone       string `json:"phone" validate:"required" dynamodbav:"phone"`
	Address     string `json:"address" validate:"required" dynamodbav:"address"`
	City        string `json:"city" validate:"required" dynamodbav:"city"`
	State       string `json:"state" validate:"required" dynamodbav:"state"`
	PostalCode  string `json:"postal_code" validate:"required" dynamodbav:"postal_code"`
	DateOfBirth string `json:"date_of_birth,omitempty" dynamodbav:"date_of_birth,omitempty"`
	ZodiacSign  string `json:"zodiac_sign,omitempty" dynamodbav:"zodiac_sign,omitempty"`
	Note        string `json:"note,omitempty" dynamodbav:"note,omitempty"`
}

// FullAddress joins the address parts the way the fulfilment sheet shows them.
func (c CustomerDetails) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s - %s", c.Address, c.City, c.State, c.PostalCode)
}

// OrderTotals are in major currency units (rupees).
type OrderTotals struct {
	Subtotal int64 `json:"subtotal" gorm:"not null" dynamodbav:"subtotal"`
	Tax      int64 `json:"tax" gorm:"not null" dynamodbav:"tax"`
	Shipping int64 `json:"shipping" gorm:"not null" dynamodbav:"shipping"`
	Total    int64 `json:"total" gorm:"not null" dynamodbav:"total"`
}

// LineItem is a cart line priced against the catalog.
type LineItem struct {
	ProductID int    `json:"id" dynamodbav:"id"`
	Name      string `json:"name" dynamodbav:"name"`
	Size      string `json:"size" dynamodbav:"size"`
	Quantity  int    `json:"quantity" dynamodbav:"quantity"`
	UnitPrice int64  `json:"price" dynamodbav:"price"`
	LineTotal int64  `json:"total" dynamodbav:"total"`
}

// Summary renders "Sacred Hoodie (L) x2".
func (l LineItem) Summary() string {
	return fmt.Sprintf("%s (%s) x%d", l.Name, l.Size, l.Quantity)
}

// Payment statuses reported by a gateway.
const (
	PaymentStatusCreated  = "created"
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
)

// PaymentIntent is the gateway-side view of an intent or a payment against it.
type PaymentIntent struct {
	IntentID    string `json:"intent_id"`
	PaymentRef  string `json:"payment_ref,omitempty"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Method      string `json:"method,omitempty"`
	Receipt     string `json:"receipt,omitempty"`
	// ClientSecret is only set by gateways that confirm on the client (Stripe).
	ClientSecret string `json:"client_secret,omitempty"`
}

// CheckoutRequest is the body of POST /checkout-intent.
type CheckoutRequest struct {
	Lines        []CartLine      `json:"lines"`
	Customer     CustomerDetails `json:"customer"`
	ClientTotals *OrderTotals    `json:"client_totals,omitempty"`
}

// CheckoutResponse is returned once an intent exists at the gateway.
type CheckoutResponse struct {
	IntentID     string      `json:"intent_id"`
	Amount       int64       `json:"amount"`
	Currency     string      `json:"currency"`
	Receipt      string      `json:"receipt"`
	KeyID        string      `json:"key_id,omitempty"`
	ClientSecret string      `json:"client_secret,omitempty"`
	ServerTotals OrderTotals `json:"server_totals"`
	Items        []LineItem  `json:"items"`
}

// QuoteRequest is the body of POST /cart/totals.
type QuoteRequest struct {
	Lines []CartLine `json:"lines"`
}

// QuoteResponse carries display totals for a cart.
type QuoteResponse struct {
	Totals OrderTotals `json:"totals"`
	Items  []LineItem  `json:"items"`
}

// VerifyPaymentRequest is the body of POST /verify-payment.
type VerifyPaymentRequest struct {
	IntentID   string           `json:"gateway_order_id"`
	PaymentRef string           `json:"payment_ref"`
	Signature  string           `json:"signature"`
	Customer   *CustomerDetails `json:"customer,omitempty"`
	Lines      []CartLine       `json:"lines,omitempty"`
}

// VerifyPaymentResponse is the success body of POST /verify-payment.
type VerifyPaymentResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	OrderRef   string `json:"order_ref"`
	PaymentRef string `json:"payment_ref"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Duplicate  bool   `json:"duplicate"`
}
