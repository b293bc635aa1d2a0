package assistants

import (
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/encoding"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/effective-security/shopagent/store"
)

// Limits of a single run
const (
	DefaultMaxMessages    = 100
	DefaultMaxContentSize = 512 * 1024
	DefaultMaxToolCalls   = 25
	DefaultMaxRetries     = 3
	// MaxToolsNotFound is the number of unknown tool calls in one round
	// above which the run fails.
	MaxToolsNotFound = 3
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// TopP is the cumulative probability for top-p sampling in an LLM call.
	TopP    float64
	toppSet bool

	// TopK is the number of tokens to consider for top-k sampling in an LLM call.
	TopK    int
	topkSet bool

	// Seed is a seed for deterministic sampling in an LLM call.
	Seed    int
	seedSet bool

	// StopWords is a list of words to stop on to use in an LLM call.
	StopWords    []string
	stopWordsSet bool

	// ResponseFormat is set when the provider supports json_schema output
	ResponseFormat *schema.ResponseFormat

	//
	// Below are the options of the run loop, not related to LLM call
	//

	CallbackHandler Callback
	Store           store.MessageStore

	PromptInput map[string]any
	Examples    chatmodel.FewShotExamples
	Mode        encoding.Mode

	// IsGeneric stores the run messages as generic comments,
	// used when the assistant is called by another assistant.
	IsGeneric          bool
	SkipMessageHistory bool
	SkipToolHistory    bool

	// MaxMessages is the limit of messages sent to the LLM
	MaxMessages int
	// MaxLength is the limit of the content size in bytes sent to the LLM
	MaxLength int
	// MaxToolCalls is the limit of tool calls in a run
	MaxToolCalls int
}

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Mode: encoding.ModeDefault,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the options applied
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMode is an option that allows to specify the encoding mode.
func WithMode(mode encoding.Mode) Option {
	return func(o *Config) {
		o.Mode = mode
	}
}

// WithExamples is an option that allows to specify the few-shot examples for the system prompt.
func WithExamples(examples chatmodel.FewShotExamples) Option {
	return func(o *Config) {
		o.Examples = examples
	}
}

// WithStore sets the message store of the conversation history.
func WithStore(st store.MessageStore) Option {
	return func(o *Config) {
		o.Store = st
	}
}

// WithSkipMessageHistory is an option that allows to skip adding Assistant messages to History.
func WithSkipMessageHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipMessageHistory = skip
	}
}

// WithSkipToolHistory skips the tool calls and responses in the stored history.
func WithSkipToolHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipToolHistory = skip
	}
}

// WithGeneric stores the run messages as generic comments.
func WithGeneric(generic bool) Option {
	return func(o *Config) {
		o.IsGeneric = generic
	}
}

// WithPromptInput is an option that allows the user to specify the system prompt input.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = input
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithMaxMessages sets the limit of messages sent to the LLM.
func WithMaxMessages(limit int) Option {
	return func(o *Config) {
		o.MaxMessages = limit
	}
}

// WithMaxLength sets the limit of the content size sent to the LLM.
func WithMaxLength(limit int) Option {
	return func(o *Config) {
		o.MaxLength = limit
	}
}

// WithMaxToolCalls sets the limit of tool calls in a run.
func WithMaxToolCalls(limit int) Option {
	return func(o *Config) {
		o.MaxToolCalls = limit
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = model != ""
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithTopP	will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithTopK will add an option to use top-k sampling for LLM.Call.
func WithTopK(topK int) Option {
	return func(o *Config) {
		o.TopK = topK
		o.topkSet = true
	}
}

// WithSeed will add an option to use deterministic sampling for LLM.Call.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithStopWords is an option for setting the stop words for LLM.Call.
func WithStopWords(stopWords []string) Option {
	return func(o *Config) {
		o.StopWords = stopWords
		o.stopWordsSet = true
	}
}

// WithResponseFormat sets the json_schema response format.
func WithResponseFormat(rf *schema.ResponseFormat) Option {
	return func(o *Config) {
		o.ResponseFormat = rf
	}
}

// GetCallOptions returns the LLM call options of the config,
// extra options are appended.
func (c *Config) GetCallOptions(extra ...llms.CallOption) []llms.CallOption {
	var opts []llms.CallOption
	if c.modelSet {
		opts = append(opts, llms.WithModel(c.Model))
	}
	if c.maxTokensSet {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}
	if c.temperatureSet {
		opts = append(opts, llms.WithTemperature(c.Temperature))
	}
	if c.toppSet {
		opts = append(opts, llms.WithTopP(c.TopP))
	}
	if c.topkSet {
		opts = append(opts, llms.WithTopK(c.TopK))
	}
	if c.seedSet {
		opts = append(opts, llms.WithSeed(c.Seed))
	}
	if c.stopWordsSet {
		opts = append(opts, llms.WithStopWords(c.StopWords))
	}
	if c.ResponseFormat != nil {
		opts = append(opts, llms.WithResponseFormat(c.ResponseFormat))
	}
	return append(opts, extra...)
}
