// Package calculator provides pure arithmetic tools for prices and percentages.
package calculator

import (
	"context"
	"math"

	"github.com/effective-security/shopagent/tools"
	"github.com/shopspring/decimal"
)

// Tool names
const (
	PercentageToolName      = "percentage"
	DiscountedPriceToolName = "discounted_price"
)

// PercentageRequest is the input of the percentage tool
type PercentageRequest struct {
	Value   float64 `json:"value" yaml:"value" jsonschema:"description=The base value."`
	Percent float64 `json:"percent" yaml:"percent" jsonschema:"description=The percentage to take of the value (15 for 15%)."`
}

// PercentageResponse is the output of the percentage tool
type PercentageResponse struct {
	tools.Result
	Value   float64 `json:"value" yaml:"value"`
	Percent float64 `json:"percent" yaml:"percent"`
	Amount  float64 `json:"result" yaml:"result"`
}

// DiscountRequest is the input of the discounted_price tool
type DiscountRequest struct {
	Price   float64 `json:"price" yaml:"price" jsonschema:"description=The original price that must not be negative."`
	Percent float64 `json:"percent" yaml:"percent" jsonschema:"description=The discount percentage between 0 and 100."`
}

// DiscountResponse is the output of the discounted_price tool
type DiscountResponse struct {
	tools.Result
	Original float64 `json:"original" yaml:"original"`
	Discount float64 `json:"discount" yaml:"discount"`
	Final    float64 `json:"final" yaml:"final"`
}

// NewPercentage returns the percentage tool
func NewPercentage() *tools.Function[PercentageRequest, PercentageResponse] {
	return tools.MustFunction(PercentageToolName,
		"Calculates the given percent of a value, rounded to 2 decimals. Pure function, no state.",
		percentage).WithReadOnly()
}

// NewDiscountedPrice returns the discounted_price tool
func NewDiscountedPrice() *tools.Function[DiscountRequest, DiscountResponse] {
	return tools.MustFunction(DiscountedPriceToolName,
		"Applies a percentage discount to a price and returns the original price, the discount amount and the final price. Pure function, no state.",
		discountedPrice).WithReadOnly()
}

// Tools returns all calculator tools
func Tools() []tools.ITool {
	return []tools.ITool{
		NewPercentage(),
		NewDiscountedPrice(),
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func percentage(_ context.Context, req *PercentageRequest) (*PercentageResponse, error) {
	// NaN and Inf can not be encoded to JSON
	if !finite(req.Value) || !finite(req.Percent) {
		return &PercentageResponse{
			Result: tools.Errorf("value and percent must be finite numbers"),
		}, nil
	}

	res := &PercentageResponse{
		Value:   req.Value,
		Percent: req.Percent,
	}

	v := decimal.NewFromFloat(req.Value).Mul(decimal.NewFromFloat(req.Percent)).Div(decimal.NewFromInt(100))
	res.Amount = round2(v)
	res.Result = tools.Successf("%s%% of %s is %s",
		decimal.NewFromFloat(req.Percent).String(),
		decimal.NewFromFloat(req.Value).String(),
		v.Round(2).String())
	return res, nil
}

func discountedPrice(_ context.Context, req *DiscountRequest) (*DiscountResponse, error) {
	if !finite(req.Price) || !finite(req.Percent) {
		return &DiscountResponse{
			Result: tools.Errorf("price and percent must be finite numbers"),
		}, nil
	}

	res := &DiscountResponse{
		Original: req.Price,
	}
	switch {
	case req.Price < 0:
		res.Result = tools.Errorf("price must not be negative")
		return res, nil
	case req.Percent < 0 || req.Percent > 100:
		res.Result = tools.Errorf("percent must be between 0 and 100")
		return res, nil
	}

	price := decimal.NewFromFloat(req.Price)
	discount := price.Mul(decimal.NewFromFloat(req.Percent)).Div(decimal.NewFromInt(100)).Round(2)
	final := price.Sub(discount)

	res.Discount = round2(discount)
	res.Final = round2(final)
	res.Result = tools.Successf("final price is %s", final.Round(2).StringFixed(2))
	return res, nil
}
