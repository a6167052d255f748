package subscription

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultCatalogYAML []byte

// PlanInfo is the static, displayable description of a plan.
type PlanInfo struct {
	Plan     Plan            `yaml:"-"`
	Name     string          `yaml:"name"`
	Price    Money           `yaml:"price"`
	Billing  BillingInterval `yaml:"billing"`
	Savings  string          `yaml:"savings"`
	Features []string        `yaml:"features"`
}

// PriceLabel formats the price for display, e.g. "$ 9.99".
func (p PlanInfo) PriceLabel() string {
	unit, err := currency.ParseISO(p.Price.Currency)
	if err != nil {
		return fmt.Sprintf("%.2f %s", p.Price.Units(), p.Price.Currency)
	}
	return message.NewPrinter(language.AmericanEnglish).Sprint(currency.Symbol(unit.Amount(p.Price.Units())))
}

// Catalog holds plan metadata shown to users. Pricing shown here is
// informational; the provider price IDs in Config are what gets charged.
type Catalog struct {
	plans map[Plan]PlanInfo
}

type catalogFile struct {
	Plans map[string]PlanInfo `yaml:"plans"`
}

// DefaultCatalog returns the embedded catalog.
// Panics if the embedded file is invalid, which is a build defect.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Errorf("subscription: embedded plan catalog: %w", err))
	}
	return c
}

// LoadCatalog reads a catalog from path, or returns the embedded default
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses YAML catalog content. Every paid plan must be present
// with a positive price in a valid ISO 4217 currency.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}

	c := &Catalog{plans: make(map[Plan]PlanInfo, len(f.Plans))}
	for name, info := range f.Plans {
		plan, err := ParsePlan(name)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidCatalog, name)
		}
		if info.Price.Amount <= 0 {
			return nil, fmt.Errorf("%w: plan %s must have a positive price", ErrInvalidCatalog, plan)
		}
		if _, err := currency.ParseISO(info.Price.Currency); err != nil {
			return nil, fmt.Errorf("%w: plan %s has invalid currency %q", ErrInvalidCatalog, plan, info.Price.Currency)
		}
		if info.Billing != BillingIntervalMonth && info.Billing != BillingIntervalYear {
			return nil, fmt.Errorf("%w: plan %s has invalid billing interval %q", ErrInvalidCatalog, plan, info.Billing)
		}
		info.Plan = plan
		c.plans[plan] = info
	}

	for _, plan := range Plans {
		if _, ok := c.plans[plan]; !ok {
			return nil, fmt.Errorf("%w: missing plan %s", ErrInvalidCatalog, plan)
		}
	}
	return c, nil
}

// Get returns the description of plan.
func (c *Catalog) Get(plan Plan) (PlanInfo, bool) {
	info, ok := c.plans[plan]
	return info, ok
}

// All returns every plan in display order.
func (c *Catalog) All() []PlanInfo {
	out := make([]PlanInfo, 0, len(Plans))
	for _, plan := range Plans {
		if info, ok := c.plans[plan]; ok {
			out = append(out, info)
		}
	}
	return out
}
