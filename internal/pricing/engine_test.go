package pricing

import (
	"checkout-reconciler/internal/money"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(price string, qty int64) LineItem {
	return LineItem{ProductID: "p", UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func usShip(method Method, state string) ShippingSelection {
	return ShippingSelection{Method: method, Country: "US", State: state}
}

func TestPrice_SubtotalRoundedBeforeDiscount(t *testing.T) {
	e := NewEngine(DefaultConfig())

	b := e.Price([]LineItem{line("3.335", 3)}, 0, usShip(MethodStandard, ""))
	assert.Equal(t, int64(1001), b.Subtotal.MinorUnits())

	// 10.01 * 50% = 5.005 -> 5.01, computed on the rounded subtotal.
	b = e.Price([]LineItem{line("3.335", 3)}, 50, usShip(MethodStandard, ""))
	assert.Equal(t, int64(501), b.Discount.MinorUnits())
	assert.Equal(t, int64(500), b.MerchandiseAfterDiscount().MinorUnits())
}

func TestPrice_FreeShippingThreshold(t *testing.T) {
	e := NewEngine(DefaultConfig())

	at := e.Price([]LineItem{line("50.00", 1)}, 0, usShip(MethodStandard, ""))
	assert.True(t, at.Shipping.IsZero())

	below := e.Price([]LineItem{line("49.99", 1)}, 0, usShip(MethodStandard, ""))
	assert.Equal(t, "7.95", below.Shipping.String())
	assert.Equal(t, "57.94", below.Total.String())

	// threshold applies after discount
	discounted := e.Price([]LineItem{line("55.00", 1)}, 10, usShip(MethodStandard, ""))
	assert.Equal(t, "49.50", discounted.MerchandiseAfterDiscount().String())
	assert.Equal(t, "7.95", discounted.Shipping.String())
}

func TestPrice_FlatFees(t *testing.T) {
	e := NewEngine(DefaultConfig())
	lines := []LineItem{line("500.00", 1)}

	assert.Equal(t, "19.95", e.Price(lines, 0, usShip(MethodExpedited, "")).Shipping.String())
	assert.Equal(t, "34.95", e.Price(lines, 0, usShip(MethodOvernight, "")).Shipping.String())
	assert.Equal(t, "19.95", e.Price(lines, 0, usShip("EXPEDITED", "")).Shipping.String())
}

func TestPrice_NewYorkTaxIgnoresShipping(t *testing.T) {
	e := NewEngine(DefaultConfig())

	for _, method := range []Method{MethodStandard, MethodExpedited, MethodOvernight} {
		b := e.Price([]LineItem{line("100.00", 1)}, 0, usShip(method, "NY"))
		assert.Equal(t, "0.08875", b.TaxRate.String())
		assert.Equal(t, "8.88", b.Tax.String(), method)
	}

	b := e.Price([]LineItem{line("100.00", 1)}, 0, usShip(MethodOvernight, "ny"))
	assert.Equal(t, "143.83", b.Total.String())
}

func TestPrice_TaxOnShipping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TaxOnShipping = true
	e := NewEngine(cfg)

	b := e.Price([]LineItem{line("100.00", 1)}, 0, usShip(MethodExpedited, "NY"))
	// (100.00 + 19.95) * 0.08875 = 10.6455625
	assert.Equal(t, "10.65", b.Tax.String())
}

func TestPrice_NonUSIsUntaxed(t *testing.T) {
	e := NewEngine(DefaultConfig())

	b := e.Price([]LineItem{line("100.00", 1)}, 0, ShippingSelection{Method: MethodStandard, Country: "CA", State: "NY"})
	assert.True(t, b.TaxRate.IsZero())
	assert.True(t, b.Tax.IsZero())

	b = e.Price([]LineItem{line("100.00", 1)}, 0, usShip(MethodStandard, "TX"))
	assert.True(t, b.Tax.IsZero())
}

func TestPrice_UnknownMethodWarns(t *testing.T) {
	e := NewEngine(DefaultConfig())

	b := e.Price([]LineItem{line("10.00", 1)}, 0, usShip("teleport", ""))
	assert.True(t, b.Shipping.IsZero())
	require.Len(t, b.Warnings, 1)
	assert.Contains(t, b.Warnings[0], "teleport")
	assert.Equal(t, "10.00", b.Total.String())
}

func TestPrice_DiscountClamped(t *testing.T) {
	e := NewEngine(DefaultConfig())

	full := e.Price([]LineItem{line("20.00", 2)}, 150, usShip(MethodExpedited, "NJ"))
	assert.Equal(t, "40.00", full.Discount.String())
	assert.True(t, full.Tax.IsZero())
	assert.Equal(t, "19.95", full.Total.String())

	none := e.Price([]LineItem{line("20.00", 2)}, -5, usShip(MethodExpedited, "NJ"))
	assert.True(t, none.Discount.IsZero())
}

func TestPrice_EmptyAndZeroQuantity(t *testing.T) {
	e := NewEngine(DefaultConfig())

	b := e.Price(nil, 0, usShip(MethodStandard, "CA"))
	assert.True(t, b.Subtotal.IsZero())
	assert.Equal(t, "7.95", b.Total.String())

	b = e.Price([]LineItem{line("99.99", 0)}, 0, usShip(MethodExpedited, "CA"))
	assert.True(t, b.Subtotal.IsZero())
}

func TestPrice_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	lines := []LineItem{line("3.335", 3), line("19.99", 2), line("0.01", 7)}
	sel := usShip(MethodStandard, "NJ")

	first := e.Price(lines, 15, sel)
	for i := 0; i < 10; i++ {
		again := e.Price(lines, 15, sel)
		assert.True(t, first.Equal(again))
		assert.Equal(t, first, again)
	}
}

func TestPrice_TotalIsSumOfRoundedTerms(t *testing.T) {
	e := NewEngine(DefaultConfig())
	rng := rand.New(rand.NewSource(20240601))
	methods := []Method{MethodStandard, MethodExpedited, MethodOvernight, "bogus"}
	states := []string{"NY", "NJ", "CA", "TX", ""}
	countries := []string{"US", "US", "US", "CA", "GB"}

	for i := 0; i < 2000; i++ {
		n := rng.Intn(6)
		lines := make([]LineItem, 0, n)
		for j := 0; j < n; j++ {
			// unit prices with up to 3 decimals to exercise sub-cent rounding
			price := decimal.New(rng.Int63n(200000), -3)
			lines = append(lines, LineItem{ProductID: "p", UnitPrice: price, Quantity: rng.Int63n(5)})
		}
		sel := ShippingSelection{
			Method:  methods[rng.Intn(len(methods))],
			Country: countries[rng.Intn(len(countries))],
			State:   states[rng.Intn(len(states))],
		}
		b := e.Price(lines, rng.Intn(101), sel)

		want := b.Subtotal.Sub(b.Discount).Add(b.Shipping).Add(b.Tax)
		require.Equal(t, want, b.Total, "iteration %d", i)
		require.False(t, b.Total.Cmp(money.Zero()) < 0)
	}
}
