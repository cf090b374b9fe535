// Package billing holds the invoice money math and the line-item
// reconciliation engine. Everything here is pure: no database, no clock.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yourusername/invoicely/apperr"
)

// LineItem is the calculator's view of one invoice line.
type LineItem struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Totals is the authoritative financial summary of an invoice. All values
// are rounded half-up to 2 decimal places; Total is derived from the rounded
// components so the stored invariant total == subtotal + tax - discount
// holds exactly.
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// CalculateTotals derives subtotal, tax amount, discount amount and grand
// total from the line items. TaxRate and discount are percentages in
// [0,100]; they are applied, never re-derived or stored as amounts. A
// discount that would push the grand total below zero is rejected.
func CalculateTotals(items []LineItem, taxRate, discount decimal.Decimal) (Totals, error) {
	fields := map[string]string{}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		fields["tax_rate"] = "must be between 0 and 100"
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		fields["discount"] = "must be between 0 and 100"
	}
	for i, item := range items {
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items.%d.quantity", i)] = "must be at least 1"
		}
		if item.UnitPrice.IsNegative() {
			fields[fmt.Sprintf("items.%d.unit_price", i)] = "must not be negative"
		}
	}
	if len(fields) > 0 {
		return Totals{}, apperr.Validation(fields)
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	disc := subtotal.Mul(discount).Div(hundred).Round(2)
	subtotal = subtotal.Round(2)
	total := subtotal.Add(tax).Sub(disc)

	if total.IsNegative() {
		return Totals{}, apperr.ValidationField("discount", "discount exceeds taxed subtotal")
	}

	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: disc,
		Total:          total,
	}, nil
}
