package pricing

import (
	"checkout-reconciler/internal/money"
	"strings"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodStandard  Method = "standard"
	MethodExpedited Method = "expedited"
	MethodOvernight Method = "overnight"
)

// NormalizeMethod lower-cases the method and defaults an empty value to standard.
func NormalizeMethod(s string) Method {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MethodStandard
	}
	return Method(s)
}

// LineItem is an immutable cart snapshot line. UnitPrice keeps the catalogue
// precision; rounding happens once on the subtotal.
type LineItem struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int64
}

func (l LineItem) LineTotal() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

type ShippingSelection struct {
	Method     Method
	Country    string
	State      string
	PostalCode string
}

// Breakdown is the authoritative monetary result of pricing an order.
type Breakdown struct {
	Subtotal money.Money
	Discount money.Money
	Shipping money.Money
	TaxRate  decimal.Decimal
	Tax      money.Money
	Total    money.Money

	// Warnings lists non-fatal pricing anomalies such as an unknown shipping method.
	Warnings []string
}

// MerchandiseAfterDiscount is subtotal minus discount, clamped at zero.
func (b Breakdown) MerchandiseAfterDiscount() money.Money {
	return b.Subtotal.Sub(b.Discount).ClampZero()
}

// Equal compares the six persisted fields; warnings are ignored.
func (b Breakdown) Equal(o Breakdown) bool {
	return b.Subtotal == o.Subtotal &&
		b.Discount == o.Discount &&
		b.Shipping == o.Shipping &&
		b.TaxRate.Equal(o.TaxRate) &&
		b.Tax == o.Tax &&
		b.Total == o.Total
}
