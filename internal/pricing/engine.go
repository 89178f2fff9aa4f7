package pricing

import (
	"checkout-reconciler/internal/money"
	"errors"

	"github.com/shopspring/decimal"
)

// Engine prices orders. It holds only immutable rate tables, so one Engine is
// shared by every request.
type Engine struct {
	rates *RateTables
}

func NewEngine(cfg Config) *Engine {
	return &Engine{rates: NewRateTables(cfg)}
}

func (e *Engine) Rates() *RateTables {
	return e.rates
}

// Price computes the full breakdown. Every term is rounded to cents before it
// feeds the next step, and the total is the sum of those rounded terms.
func (e *Engine) Price(lines []LineItem, discountPercent int, sel ShippingSelection) Breakdown {
	var b Breakdown

	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal())
	}
	b.Subtotal = money.FromDecimal(sum).ClampZero()

	b.Discount = b.Subtotal.PercentageOf(decimal.New(int64(clampPercent(discountPercent)), -2))
	merchandise := b.MerchandiseAfterDiscount()

	shipping, err := e.rates.QuoteShipping(sel, merchandise)
	if err != nil {
		if errors.Is(err, ErrUnknownShippingMethod) {
			b.Warnings = append(b.Warnings, err.Error())
		}
		shipping = money.Zero()
	}
	b.Shipping = shipping

	b.TaxRate = e.rates.TaxRateFor(sel.Country, sel.State)
	taxable := merchandise
	if e.rates.TaxOnShipping() {
		taxable = taxable.Add(b.Shipping)
	}
	b.Tax = taxable.PercentageOf(b.TaxRate)

	b.Total = merchandise.Add(b.Shipping).Add(b.Tax)
	return b
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
