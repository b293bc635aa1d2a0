// Package agent builds the shopping assistant:
// the shop tools over the session store, the LLM from the providers config,
// and the assistant loop with the store instructions.
package agent

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/assistants"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/encoding"
	"github.com/effective-security/shopagent/pkg/llmfactory"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/metricskey"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/store"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/shopagent/tools/calculator"
	"github.com/effective-security/shopagent/tools/shoptools"
	"github.com/effective-security/shopagent/tools/websearch"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent", "agent")

// Response of a chat turn
type Response struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	// Output is the structured reply, nil in plain_text mode
	Output *ShopReply `json:"output,omitempty"`
	// Usage of the tokens of the turn
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Option of the agent builder
type Option func(*options)

type options struct {
	llm      llms.Model
	stores   *store.Stores
	callback assistants.Callback
	tools    []tools.ITool
}

// WithLLM uses the model instead of the providers config
func WithLLM(model llms.Model) Option {
	return func(o *options) {
		o.llm = model
	}
}

// WithStores uses the stores instead of opening the configured ones,
// the stores are not closed by the agent.
func WithStores(stores *store.Stores) Option {
	return func(o *options) {
		o.stores = stores
	}
}

// WithCallback sets the handler of the assistant events
func WithCallback(cb assistants.Callback) Option {
	return func(o *options) {
		o.callback = cb
	}
}

// WithTools registers extra tools
func WithTools(list ...tools.ITool) Option {
	return func(o *options) {
		o.tools = append(o.tools, list...)
	}
}

// runFunc returns the response, the reply text and the structured reply
type runFunc func(ctx context.Context, input *assistants.CallInput) (*llms.ContentResponse, string, *ShopReply, error)

// Agent is the shopping assistant
type Agent struct {
	cfg       *Config
	shop      *shoptools.Shop
	stores    *store.Stores
	ownStores bool
	registry  *tools.Registry
	assistant assistants.IAssistant
	run       runFunc
}

// New returns the shopping assistant for the config
func New(ctx context.Context, cfg *Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	catalog := shop.DefaultCatalog()
	if cfg.Catalog != "" {
		c, err := shop.LoadCatalog(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		catalog = c
	}
	pricing := cfg.Pricing
	if pricing == nil {
		pricing = shop.DefaultPricing()
	}

	model := o.llm
	if model == nil {
		llmCfg, err := cfg.GetLLMConfig()
		if err != nil {
			return nil, errors.WithMessage(err, "failed to load LLM config")
		}
		model, err = llmfactory.New(llmCfg).AssistantModel(cfg.Name, cfg.Model)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create LLM")
		}
	}

	a := &Agent{
		cfg:    cfg,
		stores: o.stores,
	}
	if a.stores == nil {
		stores, err := store.Open(ctx, &cfg.Store)
		if err != nil {
			return nil, err
		}
		a.stores = stores
		a.ownStores = true
	}

	a.shop = shoptools.New(catalog, pricing, a.stores.Sessions)
	a.registry = tools.NewRegistry(a.shop.Tools()...).Add(calculator.Tools()...)

	webSearch := false
	if cfg.WebSearch {
		if websearch.Enabled() {
			ws, err := websearch.New("")
			if err != nil {
				_ = a.Close()
				return nil, err
			}
			a.registry.Add(ws)
			webSearch = true
		} else {
			logger.KV(xlog.WARNING, "reason", "websearch_disabled", "env", websearch.EnvAPIKey)
		}
	}
	a.registry.Add(o.tools...)

	instructions, err := NewInstructions(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	aopts := []assistants.Option{
		assistants.WithMode(cfg.OutputMode),
		assistants.WithStore(a.stores.Messages),
		assistants.WithTemperature(cfg.Temperature),
		assistants.WithMaxTokens(cfg.MaxTokens),
		assistants.WithTopP(cfg.TopP),
		assistants.WithPromptInput(InstructionsValues(cfg.Name, catalog, pricing, webSearch)),
	}
	if cfg.MaxToolCalls > 0 {
		aopts = append(aopts, assistants.WithMaxToolCalls(cfg.MaxToolCalls))
	}
	if o.callback != nil {
		aopts = append(aopts, assistants.WithCallback(o.callback))
	}

	if encoding.IsStructured(cfg.OutputMode) {
		as, err := assistants.NewAssistant[ShopReply](model, instructions, aopts...)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		as.WithName(cfg.Name).WithDescription(cfg.Description).WithTools(a.registry.List()...)
		a.assistant = as
		a.run = func(ctx context.Context, input *assistants.CallInput) (*llms.ContentResponse, string, *ShopReply, error) {
			var out ShopReply
			resp, err := as.Run(ctx, input, &out)
			if err != nil {
				return nil, "", nil, err
			}
			return resp, out.GetContent(), &out, nil
		}
	} else {
		as, err := assistants.NewAssistant[chatmodel.String](model, instructions, aopts...)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		as.WithName(cfg.Name).WithDescription(cfg.Description).WithTools(a.registry.List()...)
		a.assistant = as
		a.run = func(ctx context.Context, input *assistants.CallInput) (*llms.ContentResponse, string, *ShopReply, error) {
			var out chatmodel.String
			resp, err := as.Run(ctx, input, &out)
			if err != nil {
				return nil, "", nil, err
			}
			return resp, out.GetContent(), nil, nil
		}
	}

	logger.KV(xlog.INFO,
		"status", "agent_created",
		"name", cfg.Name,
		"model", model.GetName(),
		"mode", cfg.OutputMode,
		"tools", a.registry.Len(),
	)
	return a, nil
}

// Config returns the agent config
func (a *Agent) Config() *Config {
	return a.cfg
}

// Assistant returns the assistant loop
func (a *Agent) Assistant() assistants.IAssistant {
	return a.assistant
}

// Registry returns the tools of the agent
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// Shop returns the shop tools
func (a *Agent) Shop() *shoptools.Shop {
	return a.shop
}

// Close releases the stores opened by the agent
func (a *Agent) Close() error {
	if a.ownStores && a.stores != nil {
		return a.stores.Close()
	}
	return nil
}

// WithSession returns the context with the chat context of the session,
// ctx is returned as is when it already carries the session.
func (a *Agent) WithSession(ctx context.Context, sessionID string) context.Context {
	if cc := chatmodel.GetChatContext(ctx); cc != nil && sessionID != "" && cc.GetChatID() == sessionID {
		return ctx
	}
	if sessionID == "" {
		sessionID = chatmodel.NewChatID()
	}
	return chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(a.cfg.Tenant, sessionID, nil))
}

// Chat runs a turn of the session, a new session is started when sessionID is empty
func (a *Agent) Chat(ctx context.Context, sessionID, message string) (*Response, error) {
	if message == "" {
		return nil, errors.New("message is required")
	}
	ctx = a.WithSession(ctx, sessionID)
	sessionID = chatmodel.GetChatID(ctx)

	started := time.Now()
	defer metricskey.PerfChatRun.MeasureSince(started, a.cfg.Tenant)

	resp, reply, out, err := a.run(ctx, &assistants.CallInput{Input: message})
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "chat",
			"session", sessionID,
			"err", err.Error(),
		)
		return nil, err
	}

	res := &Response{
		SessionID: sessionID,
		Reply:     reply,
		Output:    out,
	}
	res.InputTokens, res.OutputTokens = resp.GetUsage()

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "chat",
		"session", sessionID,
		"reply", slices.StringUpto(res.Reply, 64),
		"elapsed", time.Since(started).String(),
	)
	return res, nil
}

// Cart returns the cart totals of the session
func (a *Agent) Cart(ctx context.Context, sessionID string) (*shoptools.CalculateTotalResponse, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}
	return a.shop.CartView(a.WithSession(ctx, sessionID))
}

// History returns the stored messages of the session
func (a *Agent) History(ctx context.Context, sessionID string) ([]llms.Message, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}
	return a.stores.Messages.Messages(a.WithSession(ctx, sessionID)), nil
}

// Reset removes the cart, the searches and the history of the session
func (a *Agent) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID is required")
	}
	ctx = a.WithSession(ctx, sessionID)
	if err := a.stores.Sessions.Reset(ctx); err != nil {
		return errors.WithMessage(err, "failed to reset session")
	}
	if err := a.stores.Messages.Reset(ctx); err != nil {
		return errors.WithMessage(err, "failed to reset messages")
	}
	logger.ContextKV(ctx, xlog.DEBUG, "status", "reset", "session", sessionID)
	return nil
}

// Sessions returns the IDs of the sessions with history
func (a *Agent) Sessions(ctx context.Context) ([]string, error) {
	return a.stores.Messages.ListChats(a.WithSession(ctx, ""))
}
