package agent

import (
	_ "embed"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/pkg/prompts"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/tools/websearch"
)

//go:embed instructions.tmpl
var defaultInstructions string

// InstructionsInputs are the variables of the instructions template
var InstructionsInputs = []string{
	"name",
	"tax_rate",
	"shipping_cost",
	"free_shipping_threshold",
	"discount_codes",
	"categories",
	"web_search",
	"websearch_tool",
}

// NewInstructions returns the instructions template,
// the file of the config or the built-in one.
func NewInstructions(cfg *Config) (prompts.PromptTemplate, error) {
	format, err := prompts.ParseTemplateFormat(cfg.TemplateFormat)
	if err != nil {
		return prompts.PromptTemplate{}, err
	}

	tmpl := defaultInstructions
	if cfg.Instructions != "" {
		b, err := os.ReadFile(cfg.Instructions)
		if err != nil {
			return prompts.PromptTemplate{}, errors.WithMessagef(err, "failed to read instructions")
		}
		tmpl = string(b)
	}

	return prompts.PromptTemplate{
		Template:       tmpl,
		InputVariables: InstructionsInputs,
		TemplateFormat: format,
	}, nil
}

// InstructionsValues returns the values of the instructions template
func InstructionsValues(name string, catalog *shop.Catalog, pricing *shop.Pricing, webSearch bool) map[string]any {
	return map[string]any{
		"name":                    name,
		"tax_rate":                shop.Percent(pricing.TaxRate * 100),
		"shipping_cost":           shop.MoneyFloat(pricing.ShippingCost),
		"free_shipping_threshold": shop.MoneyFloat(pricing.FreeShippingThreshold),
		"discount_codes":          pricing.CodesText(),
		"categories":              catalog.Categories(),
		"web_search":              webSearch,
		"websearch_tool":          websearch.ToolName,
	}
}
