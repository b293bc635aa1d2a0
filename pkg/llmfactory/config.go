package llmfactory

import (
	"os"
	"slices"

	"github.com/effective-security/shopagent/pkg/llms/googleai"
	"github.com/effective-security/x/configloader"
)

// Config specifies the LLM providers
type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// AssistantModels specifies the mapping of assistants to models.
	// key is the assistant name, value is the model name.
	// Use `default: <model_name>` as the default model for assistants.
	AssistantModels map[string][]string `json:"assistant_models" yaml:"assistant_models"`
}

// ProviderConfig for the LLM provider
type ProviderConfig struct {
	Name            string       `json:"name" yaml:"name"`
	Token           string       `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string       `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string     `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	OpenAI          OpenAIConfig `json:"open_ai" yaml:"open_ai"`
}

// OpenAIConfig specifies options config
type OpenAIConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// APIType specifies the type of API to use:
	// OPENAI|OPEN_AI|ANTHROPIC|GOOGLEAI|BEDROCK
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	// OrgID specifies which organization's quota and billing should be used when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	// Region is the AWS region for BEDROCK
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// FindModel returns the first available model from the list,
// or the default model.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the config with a single GOOGLEAI provider,
// with the token from GOOGLE_API_KEY environment.
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "GOOGLEAI",
		Providers: []*ProviderConfig{
			{
				Name:         "GOOGLEAI",
				Token:        os.Getenv("GOOGLE_API_KEY"),
				DefaultModel: googleai.DefaultModel,
				AvailableModels: []string{
					googleai.DefaultModel,
					"gemini-2.5-pro",
					"gemini-2.5-flash-lite",
				},
				OpenAI: OpenAIConfig{
					APIType: "GOOGLEAI",
				},
			},
		},
	}
}
