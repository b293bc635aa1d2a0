package agent

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/encoding"
	"github.com/effective-security/shopagent/pkg/llmfactory"
	"github.com/effective-security/shopagent/pkg/prompts"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/store"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
)

// Defaults of the shopping assistant
const (
	DefaultName        = "ecommerce_assistant"
	DefaultDescription = "E-commerce assistant with flexible product search, cart management and personalized recommendations."
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 800
	DefaultTopP        = 0.9
	DefaultTenant      = "shop"
	DefaultListenAddr  = "localhost:8080"
)

// Config of the shopping assistant
type Config struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Tenant of the chat sessions
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	// Model is the preferred model, the provider default is used
	// when no configured provider lists it
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Temperature, MaxTokens and TopP use the defaults when zero
	Temperature  float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TopP         float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	MaxToolCalls int     `json:"max_tool_calls,omitempty" yaml:"max_tool_calls,omitempty"`

	// OutputMode is json_schema|yaml|toml|plain_text
	OutputMode string `json:"output_mode,omitempty" yaml:"output_mode,omitempty"`
	// Instructions is the path to the instructions template,
	// the built-in template is used when empty
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	// TemplateFormat of the instructions: go-template|jinja2
	TemplateFormat string `json:"template_format,omitempty" yaml:"template_format,omitempty"`

	// Catalog is the path to the products file,
	// the built-in catalog is used when empty
	Catalog string        `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Pricing *shop.Pricing `json:"pricing,omitempty" yaml:"pricing,omitempty"`

	Store store.Config `json:"store" yaml:"store"`

	// WebSearch registers the websearch tool when TAVILY_API_KEY is set
	WebSearch bool `json:"web_search,omitempty" yaml:"web_search,omitempty"`

	// LLMConfig is the path to the LLM providers file
	LLMConfig string `json:"llm_config,omitempty" yaml:"llm_config,omitempty"`
	// LLM specifies the providers inline,
	// GOOGLEAI with GOOGLE_API_KEY is used when neither is set
	LLM *llmfactory.Config `json:"llm,omitempty" yaml:"llm,omitempty"`

	// ListenAddr of the web server
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// DefaultConfig returns the config with the defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// LoadConfig loads the config file, the ${ENV} values are expanded
func LoadConfig(file string) (*Config, error) {
	cfg := &Config{}
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %q", file)
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults populates the empty values
func (c *Config) SetDefaults() {
	c.Name = values.StringsCoalesce(c.Name, DefaultName)
	c.Description = values.StringsCoalesce(c.Description, DefaultDescription)
	c.Tenant = values.StringsCoalesce(c.Tenant, DefaultTenant)
	c.Model = values.StringsCoalesce(c.Model, DefaultModel)
	c.MaxTokens = values.NumbersCoalesce(c.MaxTokens, DefaultMaxTokens)
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = DefaultTopP
	}
	c.OutputMode = values.StringsCoalesce(c.OutputMode, encoding.ModeJSONSchema)
	c.ListenAddr = values.StringsCoalesce(c.ListenAddr, DefaultListenAddr)
}

// Validate returns an error when the config can not be used
func (c *Config) Validate() error {
	switch c.OutputMode {
	case encoding.ModeJSONSchema, encoding.ModeYAML, encoding.ModeTOML, encoding.ModePlainText:
	default:
		return errors.Newf("unsupported output mode %q: use json_schema, yaml, toml or plain_text", c.OutputMode)
	}
	if _, err := prompts.ParseTemplateFormat(c.TemplateFormat); err != nil {
		return err
	}
	if _, err := c.Store.GetTTL(); err != nil {
		return err
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.Newf("invalid temperature %v", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return errors.Newf("invalid top_p %v", c.TopP)
	}
	if c.MaxTokens < 0 || c.MaxToolCalls < 0 {
		return errors.New("max_tokens and max_tool_calls must not be negative")
	}
	return nil
}

// GetLLMConfig returns the providers config
func (c *Config) GetLLMConfig() (*llmfactory.Config, error) {
	if c.LLMConfig != "" {
		return llmfactory.LoadConfig(c.LLMConfig)
	}
	if c.LLM != nil && len(c.LLM.Providers) > 0 {
		return c.LLM, nil
	}
	return llmfactory.DefaultConfig(), nil
}
