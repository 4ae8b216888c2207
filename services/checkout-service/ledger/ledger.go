// Package ledger appends orders and design requests to the fulfilment spreadsheet.
package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
)

// ErrDuplicate is returned by AppendOrder when a row for the payment already exists.
var ErrDuplicate = errors.New("ledger row already exists for payment")

// DuplicateError carries the order ref found in the existing row. It matches
// ErrDuplicate under errors.Is.
type DuplicateError struct {
	OrderRef string
}

func (e *DuplicateError) Error() string { return ErrDuplicate.Error() + ": " + e.OrderRef }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// ExistingOrderRef returns the order ref of the row a duplicate error points at.
func ExistingOrderRef(err error) (string, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) && dup.OrderRef != "" {
		return dup.OrderRef, true
	}
	return "", false
}

// Ledger is the append-only record operations staff work from.
type Ledger interface {
	// AppendOrder writes one row per payment. A second call for the same
	// PaymentRef writes nothing and returns an error matching ErrDuplicate,
	// a *DuplicateError when the existing row's order ref is known.
	AppendOrder(ctx context.Context, order *models.Order) error
	AppendDesignRequest(ctx context.Context, sub *models.DesignSubmission) error
}

const (
	RowTypeOrder         = "E-commerce Order - PAID"
	RowTypeDesignRequest = "Custom Design Request"
)

// Column layout, A through Q.
const (
	colName = iota
	colEmail
	colPhone
	colAddress
	colDateOfBirth
	colZodiac
	colNote
	colItems
	colSubmittedAt
	colType
	colSubtotal
	colTax
	colShipping
	colTotal
	colOrderRef
	colPaymentRef
	colImages
	columnCount
)

// OrderRow renders an order as a sheet row.
func OrderRow(o *models.Order) []interface{} {
	row := make([]interface{}, columnCount)
	row[colName] = o.Customer.Name
	row[colEmail] = o.Customer.Email
	row[colPhone] = o.Customer.Phone
	row[colAddress] = o.Customer.FullAddress()
	row[colDateOfBirth] = o.Customer.DateOfBirth
	row[colZodiac] = o.Customer.ZodiacSign
	row[colNote] = o.Customer.Note
	row[colItems] = o.LineSummary()
	row[colSubmittedAt] = o.VerifiedAt.UTC().Format(time.RFC3339)
	row[colType] = RowTypeOrder
	row[colSubtotal] = o.Totals.Subtotal
	row[colTax] = o.Totals.Tax
	row[colShipping] = o.Totals.Shipping
	row[colTotal] = o.Totals.Total
	row[colOrderRef] = o.OrderRef
	// Leading apostrophe keeps USER_ENTERED from reinterpreting the id.
	row[colPaymentRef] = "'" + o.PaymentRef
	row[colImages] = ""
	return row
}

// DesignRequestRow renders a design request as a sheet row.
func DesignRequestRow(s *models.DesignSubmission) []interface{} {
	r := s.Request
	row := make([]interface{}, columnCount)
	row[colName] = r.Name
	row[colEmail] = r.Email
	row[colPhone] = r.Phone
	row[colAddress] = r.Address
	row[colDateOfBirth] = r.DateOfBirth
	row[colZodiac] = r.ZodiacSign
	row[colNote] = r.Idea
	row[colItems] = sizeLabel(r.Size)
	row[colSubmittedAt] = s.SubmittedAt.UTC().Format(time.RFC3339)
	row[colType] = RowTypeDesignRequest
	for _, c := range []int{colSubtotal, colTax, colShipping, colTotal, colPaymentRef} {
		row[c] = ""
	}
	row[colOrderRef] = r.OrderRef
	row[colImages] = imageCell(s.Images)
	return row
}

func sizeLabel(size string) string {
	if size == "" {
		return ""
	}
	return "Size: " + size
}

// imageCell lists each image as its URL or as "name (upload failed: reason)".
func imageCell(images []models.UploadedImage) string {
	if len(images) == 0 {
		return "No images"
	}
	parts := make([]string, 0, len(images))
	for i, img := range images {
		if img.Error != "" {
			parts = append(parts, img.FileName+" (upload failed: "+img.Error+")")
			continue
		}
		parts = append(parts, "Image "+strconv.Itoa(i+1)+": "+img.URL)
	}
	return strings.Join(parts, "\n")
}
