package pricing

import (
	"checkout-reconciler/internal/money"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnknownShippingMethod = errors.New("unknown shipping method")

// RateTables answers tax and shipping lookups from a Config. It never mutates.
type RateTables struct {
	cfg Config
}

func NewRateTables(cfg Config) *RateTables {
	cfg = cfg.clone()
	normalized := make(map[string]decimal.Decimal, len(cfg.TaxRates))
	for state, rate := range cfg.TaxRates {
		normalized[strings.ToUpper(strings.TrimSpace(state))] = rate
	}
	cfg.TaxRates = normalized
	return &RateTables{cfg: cfg}
}

func (t *RateTables) TaxOnShipping() bool {
	return t.cfg.TaxOnShipping
}

// TaxRateFor returns the configured state rate for US destinations and zero
// for every other country or unknown state.
func (t *RateTables) TaxRateFor(country, state string) decimal.Decimal {
	if strings.ToUpper(strings.TrimSpace(country)) != "US" {
		return decimal.Zero
	}
	rate, ok := t.cfg.TaxRates[strings.ToUpper(strings.TrimSpace(state))]
	if !ok {
		return decimal.Zero
	}
	return rate
}

// ShippingPriceFor prices a method against the merchandise total after
// discount. Unknown methods price at zero and return ErrUnknownShippingMethod,
// which callers treat as a warning.
func (t *RateTables) ShippingPriceFor(method Method, merchandise money.Money) (money.Money, error) {
	switch NormalizeMethod(string(method)) {
	case MethodStandard:
		if merchandise.Cmp(t.cfg.FreeShippingThreshold) >= 0 {
			return money.Zero(), nil
		}
		return t.cfg.StandardFee, nil
	case MethodExpedited:
		return t.cfg.ExpeditedFee, nil
	case MethodOvernight:
		return t.cfg.OvernightFee, nil
	default:
		return money.Zero(), fmt.Errorf("%w: %q", ErrUnknownShippingMethod, method)
	}
}

// QuoteShipping consults the destination rules first and falls back to the
// method table when nothing matches.
func (t *RateTables) QuoteShipping(sel ShippingSelection, merchandise money.Money) (money.Money, error) {
	if rule, ok := t.matchRule(sel, merchandise); ok {
		return rule.Price, nil
	}
	return t.ShippingPriceFor(sel.Method, merchandise)
}

func (t *RateTables) matchRule(sel ShippingSelection, merchandise money.Money) (ShippingRule, bool) {
	if len(t.cfg.Rules) == 0 {
		return ShippingRule{}, false
	}
	country := strings.ToUpper(strings.TrimSpace(sel.Country))
	if country == "" {
		country = "US"
	}
	state := strings.ToUpper(strings.TrimSpace(sel.State))
	postal := strings.TrimSpace(sel.PostalCode)
	method := NormalizeMethod(string(sel.Method))

	var matches []ShippingRule
	for _, r := range t.cfg.Rules {
		if !r.Active || !strings.EqualFold(r.Country, country) {
			continue
		}
		if r.State != "" && !strings.EqualFold(r.State, state) {
			continue
		}
		if r.Method != "" && NormalizeMethod(string(r.Method)) != method {
			continue
		}
		if merchandise.Cmp(r.MinSubtotal) < 0 {
			continue
		}
		if r.MaxSubtotal != nil && merchandise.Cmp(*r.MaxSubtotal) > 0 {
			continue
		}
		if !postalMatches(r.PostalPrefix, postal) {
			continue
		}
		matches = append(matches, r)
	}
	if len(matches) == 0 {
		return ShippingRule{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].MinSubtotal.Cmp(matches[j].MinSubtotal) < 0
	})
	return matches[0], true
}

// postalMatches compares the rule prefix against the first 3 or 5 characters
// of the postal code. Without a postal code only catch-all rules match.
func postalMatches(prefix, postal string) bool {
	if prefix == "" {
		return true
	}
	if postal == "" {
		return false
	}
	for _, n := range []int{3, 5} {
		if len(postal) >= n && strings.EqualFold(prefix, postal[:n]) {
			return true
		}
	}
	return false
}
