package shop

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Default pricing rules
const (
	TaxRate               = 0.08
	FreeShippingThreshold = 100
	ShippingCost          = 10
)

// DefaultDiscountCodes maps the discount codes to the percentage off
var DefaultDiscountCodes = map[string]float64{
	"WELCOME10": 10,
	"SAVE20":    20,
	"VIP30":     30,
}

// Pricing defines tax, shipping and discount rules
type Pricing struct {
	// TaxRate is the fraction applied to the discounted subtotal
	TaxRate float64 `json:"tax_rate" yaml:"tax_rate"`
	// FreeShippingThreshold is the subtotal from which shipping is free
	FreeShippingThreshold float64 `json:"free_shipping_threshold" yaml:"free_shipping_threshold"`
	// ShippingCost is charged below the threshold
	ShippingCost float64 `json:"shipping_cost" yaml:"shipping_cost"`
	// DiscountCodes maps upper case codes to the percentage off
	DiscountCodes map[string]float64 `json:"discount_codes" yaml:"discount_codes"`
}

// DefaultPricing returns the default pricing rules
func DefaultPricing() *Pricing {
	codes := make(map[string]float64, len(DefaultDiscountCodes))
	for k, v := range DefaultDiscountCodes {
		codes[k] = v
	}
	return &Pricing{
		TaxRate:               TaxRate,
		FreeShippingThreshold: FreeShippingThreshold,
		ShippingCost:          ShippingCost,
		DiscountCodes:         codes,
	}
}

// NormalizeCode returns the trimmed upper case code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DiscountPercent returns the percentage off for the code
func (p *Pricing) DiscountPercent(code string) (float64, bool) {
	pct, ok := p.DiscountCodes[NormalizeCode(code)]
	return pct, ok
}

// Codes returns the sorted discount codes
func (p *Pricing) Codes() []string {
	codes := make([]string, 0, len(p.DiscountCodes))
	for k := range p.DiscountCodes {
		codes = append(codes, k)
	}
	sort.Strings(codes)
	return codes
}

// CodesText returns the codes with the percentage, as `WELCOME10 (10%)`
func (p *Pricing) CodesText() string {
	var list []string
	for _, code := range p.Codes() {
		list = append(list, fmt.Sprintf("%s (%s)", code, Percent(p.DiscountCodes[code])))
	}
	return strings.Join(list, ", ")
}

// Money formats the amount as dollars with thousand separators, as `$1,234.56`
func Money(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

// MoneyFloat formats the amount as dollars
func MoneyFloat(f float64) string {
	return Money(decimal.NewFromFloat(f))
}

// Percent formats the percentage without trailing zeros, as `8%`
func Percent(pct float64) string {
	return decimal.NewFromFloat(pct).Round(2).String() + "%"
}
