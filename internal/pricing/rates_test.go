package pricing

import (
	"checkout-reconciler/internal/money"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxRateFor(t *testing.T) {
	rates := NewRateTables(DefaultConfig())

	assert.Equal(t, "0.08875", rates.TaxRateFor("US", "NY").String())
	assert.Equal(t, "0.06625", rates.TaxRateFor("us", " nj ").String())
	assert.True(t, rates.TaxRateFor("US", "WA").IsZero())
	assert.True(t, rates.TaxRateFor("CA", "NY").IsZero())
	assert.True(t, rates.TaxRateFor("", "NY").IsZero())
}

func TestShippingPriceFor_UnknownMethod(t *testing.T) {
	rates := NewRateTables(DefaultConfig())

	price, err := rates.ShippingPriceFor("drone", money.FromMinorUnits(100))
	require.ErrorIs(t, err, ErrUnknownShippingMethod)
	assert.True(t, price.IsZero())

	price, err = rates.ShippingPriceFor("", money.FromMinorUnits(100))
	require.NoError(t, err)
	assert.Equal(t, "7.95", price.String())
}

func TestQuoteShipping_Rules(t *testing.T) {
	max := money.FromMinorUnits(9999)
	cfg := DefaultConfig()
	cfg.Rules = []ShippingRule{
		{Country: "US", State: "AK", Price: money.FromMinorUnits(2500), Priority: 1, Active: true},
		{Country: "US", State: "AK", PostalPrefix: "995", Price: money.FromMinorUnits(1500), Priority: 5, Active: true},
		{Country: "US", Method: MethodStandard, MaxSubtotal: &max, Price: money.FromMinorUnits(500), Active: true},
		{Country: "US", State: "HI", Price: money.FromMinorUnits(100), Priority: 99, Active: false},
	}
	rates := NewRateTables(cfg)

	got, err := rates.QuoteShipping(ShippingSelection{Method: MethodExpedited, Country: "US", State: "AK", PostalCode: "99501"}, money.FromMinorUnits(1000))
	require.NoError(t, err)
	assert.Equal(t, "15.00", got.String())

	got, err = rates.QuoteShipping(ShippingSelection{Method: MethodExpedited, Country: "US", State: "AK"}, money.FromMinorUnits(1000))
	require.NoError(t, err)
	assert.Equal(t, "25.00", got.String())

	got, err = rates.QuoteShipping(ShippingSelection{Method: MethodStandard, Country: "US", State: "NY"}, money.FromMinorUnits(1000))
	require.NoError(t, err)
	assert.Equal(t, "5.00", got.String())

	// above max_subtotal the rule stops matching and the free threshold applies
	got, err = rates.QuoteShipping(ShippingSelection{Method: MethodStandard, Country: "US", State: "NY"}, money.FromMinorUnits(10000))
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	// inactive rule ignored
	got, err = rates.QuoteShipping(ShippingSelection{Method: MethodOvernight, Country: "US", State: "HI"}, money.FromMinorUnits(1000))
	require.NoError(t, err)
	assert.Equal(t, "34.95", got.String())
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	table := `
tax_rates:
  ny: "0.08875"
  wa: "0.065"
free_shipping_threshold: "75.00"
fees:
  expedited: "21.50"
tax_on_shipping: true
shipping_rules:
  - country: us
    state: ak
    price: "30"
    priority: 2
  - state: hi
    price: "1"
    active: false
`
	cfg, err := LoadConfig(strings.NewReader(table), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "0.065", cfg.TaxRates["WA"].String())
	assert.Equal(t, "0.0725", cfg.TaxRates["CA"].String())
	assert.Equal(t, "75.00", cfg.FreeShippingThreshold.String())
	assert.Equal(t, "21.50", cfg.ExpeditedFee.String())
	assert.Equal(t, "7.95", cfg.StandardFee.String())
	assert.True(t, cfg.TaxOnShipping)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "AK", cfg.Rules[0].State)
	assert.True(t, cfg.Rules[0].Active)
	assert.Equal(t, "US", cfg.Rules[1].Country)
	assert.False(t, cfg.Rules[1].Active)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("tax_rates:\n  ny: \"1.5\"\n"), DefaultConfig())
	require.Error(t, err)

	_, err = LoadConfig(strings.NewReader("fees:\n  standard: \"cheap\"\n"), DefaultConfig())
	require.ErrorIs(t, err, money.ErrInvalidFormat)
}

func TestLoadConfigFile_EmptyPath(t *testing.T) {
	cfg, err := LoadConfigFile("", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().StandardFee, cfg.StandardFee)
}
