// Package validation checks client-submitted carts and customer details
// against the catalog before any money moves.
package validation

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/catalog"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/pricing"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/go-playground/validator/v10"
)

const (
	MinQuantity = 1
	MaxQuantity = 10
	// TotalTolerance absorbs client-side rounding drift, in rupees.
	TotalTolerance = 1
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^[6-9]\d{9}$`)
	postalPattern = regexp.MustCompile(`^\d{6}$`)
)

// ValidatedOrder is the trusted result: normalized customer, priced lines and
// the server totals that the gateway intent must use.
type ValidatedOrder struct {
	Customer models.CustomerDetails
	Items    []models.LineItem
	Totals   models.OrderTotals
}

type Validator struct {
	catalog  *catalog.Catalog
	validate *validator.Validate
}

func New(cat *catalog.Catalog) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return &Validator{catalog: cat, validate: v}
}

// ValidateOrder runs every check in a fixed order: cart shape, each line,
// customer presence, customer formats, then the client total. The first
// failure is returned.
func (v *Validator) ValidateOrder(lines []models.CartLine, customer models.CustomerDetails, clientTotals *models.OrderTotals) (*ValidatedOrder, error) {
	items, totals, err := v.ValidateLines(lines)
	if err != nil {
		return nil, err
	}

	normalized, err := v.ValidateCustomer(customer)
	if err != nil {
		return nil, err
	}

	if clientTotals != nil {
		if err := CheckTotals(totals, *clientTotals); err != nil {
			return nil, err
		}
	}

	return &ValidatedOrder{Customer: normalized, Items: items, Totals: totals}, nil
}

// ValidateLines checks product, size and quantity of each line and prices the cart.
func (v *Validator) ValidateLines(lines []models.CartLine) ([]models.LineItem, models.OrderTotals, error) {
	if len(lines) == 0 {
		return nil, models.OrderTotals{}, apperrors.EmptyCart()
	}
	for _, line := range lines {
		product, ok := v.catalog.Lookup(line.ProductID)
		if !ok {
			return nil, models.OrderTotals{}, apperrors.UnknownProduct(string(line.ProductID))
		}
		if !product.HasSize(line.Size) {
			return nil, models.OrderTotals{}, apperrors.InvalidSize(line.Size, product.Name)
		}
		if line.Quantity < MinQuantity || line.Quantity > MaxQuantity {
			return nil, models.OrderTotals{}, apperrors.InvalidQuantity(line.Quantity, product.Name)
		}
	}
	return pricing.PriceLines(lines, v.catalog)
}

// ValidateCustomer trims every field, checks required presence and then formats.
func (v *Validator) ValidateCustomer(c models.CustomerDetails) (models.CustomerDetails, error) {
	c = normalizeCustomer(c)

	if err := v.validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return c, apperrors.MissingField(verrs[0].Field())
		}
		return c, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Invalid customer details", err)
	}

	switch {
	case !emailPattern.MatchString(c.Email):
		return c, apperrors.InvalidFormat("email")
	case !phonePattern.MatchString(c.Phone):
		return c, apperrors.InvalidFormat("phone")
	case !postalPattern.MatchString(c.PostalCode):
		return c, apperrors.InvalidFormat("postal_code")
	}
	return c, nil
}

// ValidateDesignRequest trims the request and checks name, email and address.
func (v *Validator) ValidateDesignRequest(r models.DesignRequest) (models.DesignRequest, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = stripSpaces(r.Phone)
	r.Size = strings.TrimSpace(r.Size)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.ZodiacSign = strings.TrimSpace(r.ZodiacSign)
	r.Address = strings.TrimSpace(r.Address)
	r.Idea = strings.TrimSpace(r.Idea)
	r.OrderRef = strings.TrimSpace(r.OrderRef)

	if err := v.validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			if verrs[0].Tag() == "required" {
				return r, apperrors.MissingField(verrs[0].Field())
			}
			return r, apperrors.InvalidFormat(verrs[0].Field())
		}
		return r, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Invalid design request", err)
	}
	if !emailPattern.MatchString(r.Email) {
		return r, apperrors.InvalidFormat("email")
	}
	return r, nil
}

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// CheckTotals rejects a client total further than TotalTolerance from the server's.
func CheckTotals(server, client models.OrderTotals) error {
	diff := server.Total - client.Total
	if diff < 0 {
		diff = -diff
	}
	if diff > TotalTolerance {
		return apperrors.TotalMismatch(server.Total, client.Total)
	}
	return nil
}

func normalizeCustomer(c models.CustomerDetails) models.CustomerDetails {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = stripSpaces(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.State = strings.TrimSpace(c.State)
	c.PostalCode = strings.TrimSpace(c.PostalCode)
	c.DateOfBirth = strings.TrimSpace(c.DateOfBirth)
	c.ZodiacSign = strings.TrimSpace(c.ZodiacSign)
	c.Note = strings.TrimSpace(c.Note)
	return c
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
