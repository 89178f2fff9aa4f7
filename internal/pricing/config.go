package pricing

import (
	"checkout-reconciler/internal/money"

	"github.com/shopspring/decimal"
)

// Config is the immutable pricing configuration built once at start-up and
// passed to the engine explicitly.
type Config struct {
	// TaxRates maps US state codes to fractional rates.
	TaxRates              map[string]decimal.Decimal
	FreeShippingThreshold money.Money
	StandardFee           money.Money
	ExpeditedFee          money.Money
	OvernightFee          money.Money
	TaxOnShipping         bool
	Rules                 []ShippingRule
}

// ShippingRule overrides the method table for matching destinations.
// Empty State, PostalPrefix or Method match anything.
type ShippingRule struct {
	Country      string
	State        string
	PostalPrefix string
	Method       Method
	MinSubtotal  money.Money
	MaxSubtotal  *money.Money
	Price        money.Money
	Priority     int
	Active       bool
}

func DefaultConfig() Config {
	return Config{
		TaxRates: map[string]decimal.Decimal{
			"NY": decimal.RequireFromString("0.08875"),
			"NJ": decimal.RequireFromString("0.06625"),
			"CA": decimal.RequireFromString("0.0725"),
		},
		FreeShippingThreshold: money.FromMinorUnits(5000),
		StandardFee:           money.FromMinorUnits(795),
		ExpeditedFee:          money.FromMinorUnits(1995),
		OvernightFee:          money.FromMinorUnits(3495),
		TaxOnShipping:         false,
	}
}

func (c Config) clone() Config {
	out := c
	out.TaxRates = make(map[string]decimal.Decimal, len(c.TaxRates))
	for k, v := range c.TaxRates {
		out.TaxRates[k] = v
	}
	out.Rules = append([]ShippingRule(nil), c.Rules...)
	return out
}
