// Package pricing derives order totals from cart lines and the catalog.
// All arithmetic is integer; amounts are rupees unless named Minor.
package pricing

import (
	"github.com/ahambrahmasmi/storefront/services/checkout-service/catalog"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
)

const (
	// TaxBasisPoints is 5% GST.
	TaxBasisPoints = 500
	// FreeShippingAbove is the subtotal above which shipping is free.
	FreeShippingAbove = 1499
	ShippingFee       = 59
	// MinorUnitsPerMajor converts rupees to paise.
	MinorUnitsPerMajor = 100
)

// Tax rounds subtotal*5% half-up.
func Tax(subtotal int64) int64 {
	return (subtotal*TaxBasisPoints + 5000) / 10000
}

func Shipping(subtotal int64) int64 {
	if subtotal > FreeShippingAbove {
		return 0
	}
	return ShippingFee
}

// Totals builds the full breakdown for a subtotal.
func Totals(subtotal int64) models.OrderTotals {
	tax := Tax(subtotal)
	shipping := Shipping(subtotal)
	return models.OrderTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
	}
}

// PriceLines prices each line from the catalog. Quantities are taken as given;
// range checks belong to the validator.
func PriceLines(lines []models.CartLine, cat *catalog.Catalog) ([]models.LineItem, models.OrderTotals, error) {
	items := make([]models.LineItem, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		product, ok := cat.Lookup(line.ProductID)
		if !ok {
			return nil, models.OrderTotals{}, apperrors.UnknownProduct(string(line.ProductID))
		}
		lineTotal := product.UnitPrice * int64(line.Quantity)
		subtotal += lineTotal
		items = append(items, models.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: product.UnitPrice,
			LineTotal: lineTotal,
		})
	}
	return items, Totals(subtotal), nil
}

// ComputeTotals is PriceLines without the per-line breakdown.
func ComputeTotals(lines []models.CartLine, cat *catalog.Catalog) (models.OrderTotals, error) {
	_, totals, err := PriceLines(lines, cat)
	return totals, err
}

// ToMinor converts a rupee amount to paise for the gateway.
func ToMinor(major int64) int64 {
	return major * MinorUnitsPerMajor
}
