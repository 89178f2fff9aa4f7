package pricing

import (
	"checkout-reconciler/internal/money"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// rateTableFile is the on-disk layout of PRICING_TABLE_PATH. Amounts are
// decimal strings; omitted fields keep the defaults.
type rateTableFile struct {
	TaxRates              map[string]string `yaml:"tax_rates"`
	FreeShippingThreshold string            `yaml:"free_shipping_threshold"`
	Fees                  struct {
		Standard  string `yaml:"standard"`
		Expedited string `yaml:"expedited"`
		Overnight string `yaml:"overnight"`
	} `yaml:"fees"`
	TaxOnShipping *bool              `yaml:"tax_on_shipping"`
	Rules         []shippingRuleFile `yaml:"shipping_rules"`
}

type shippingRuleFile struct {
	Country      string `yaml:"country"`
	State        string `yaml:"state"`
	PostalPrefix string `yaml:"postal_prefix"`
	Method       string `yaml:"method"`
	MinSubtotal  string `yaml:"min_subtotal"`
	MaxSubtotal  string `yaml:"max_subtotal"`
	Price        string `yaml:"price"`
	Priority     int    `yaml:"priority"`
	Active       *bool  `yaml:"active"`
}

// LoadConfigFile overlays the YAML table at path onto base. An empty path
// returns base unchanged.
func LoadConfigFile(path string, base Config) (Config, error) {
	if path == "" {
		return base, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open rate table: %w", err)
	}
	defer f.Close()
	return LoadConfig(f, base)
}

func LoadConfig(r io.Reader, base Config) (Config, error) {
	var file rateTableFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("decode rate table: %w", err)
	}

	cfg := base.clone()
	for state, raw := range file.TaxRates {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("tax rate for %s: %w", state, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return Config{}, fmt.Errorf("tax rate for %s out of range: %s", state, raw)
		}
		cfg.TaxRates[strings.ToUpper(state)] = rate
	}

	amounts := []struct {
		name string
		raw  string
		dst  *money.Money
	}{
		{"free_shipping_threshold", file.FreeShippingThreshold, &cfg.FreeShippingThreshold},
		{"fees.standard", file.Fees.Standard, &cfg.StandardFee},
		{"fees.expedited", file.Fees.Expedited, &cfg.ExpeditedFee},
		{"fees.overnight", file.Fees.Overnight, &cfg.OvernightFee},
	}
	for _, a := range amounts {
		if a.raw == "" {
			continue
		}
		m, err := money.Parse(a.raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", a.name, err)
		}
		*a.dst = m
	}

	if file.TaxOnShipping != nil {
		cfg.TaxOnShipping = *file.TaxOnShipping
	}

	if len(file.Rules) > 0 {
		cfg.Rules = cfg.Rules[:0]
		for i, rf := range file.Rules {
			rule, err := rf.toRule()
			if err != nil {
				return Config{}, fmt.Errorf("shipping_rules[%d]: %w", i, err)
			}
			cfg.Rules = append(cfg.Rules, rule)
		}
	}
	return cfg, nil
}

func (rf shippingRuleFile) toRule() (ShippingRule, error) {
	rule := ShippingRule{
		Country:      strings.ToUpper(strings.TrimSpace(rf.Country)),
		State:        strings.ToUpper(strings.TrimSpace(rf.State)),
		PostalPrefix: strings.TrimSpace(rf.PostalPrefix),
		Priority:     rf.Priority,
		Active:       rf.Active == nil || *rf.Active,
	}
	if rule.Country == "" {
		rule.Country = "US"
	}
	if rf.Method != "" {
		rule.Method = NormalizeMethod(rf.Method)
	}
	price, err := money.Parse(rf.Price)
	if err != nil {
		return ShippingRule{}, fmt.Errorf("price: %w", err)
	}
	rule.Price = price
	if rf.MinSubtotal != "" {
		if rule.MinSubtotal, err = money.Parse(rf.MinSubtotal); err != nil {
			return ShippingRule{}, fmt.Errorf("min_subtotal: %w", err)
		}
	}
	if rf.MaxSubtotal != "" {
		max, err := money.Parse(rf.MaxSubtotal)
		if err != nil {
			return ShippingRule{}, fmt.Errorf("max_subtotal: %w", err)
		}
		rule.MaxSubtotal = &max
	}
	return rule, nil
}
