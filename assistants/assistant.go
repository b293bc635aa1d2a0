package assistants

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/encoding"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/llmutils"
	"github.com/effective-security/shopagent/pkg/metricskey"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// Assistant runs the tool calling loop of a chat with the LLM.
// It builds the system prompt, calls the model with the tool definitions,
// executes the requested tools, and parses the final response into O.
// The Assistant is safe for concurrent runs.
type Assistant[O chatmodel.ContentProvider] struct {
	LLM          llms.Model
	OutputParser chatmodel.OutputParser[O]

	tools       *tools.Registry
	cfg         *Config
	name        string
	description string
	sysprompt   PromptFormatter
	onPrompt    ProvidePromptInputsFunc
	inputParser func(string) (string, error)
}

var _ TypeableAssistant[chatmodel.String] = (*Assistant[chatmodel.String])(nil)

// NewAssistant returns the assistant with the system prompt template.
// The output parser is selected by the configured mode, and the json_schema
// response format is used when the provider supports it.
func NewAssistant[O chatmodel.ContentProvider](
	llmModel llms.Model,
	sysprompt PromptFormatter,
	options ...Option) (*Assistant[O], error) {
	ret := &Assistant[O]{
		cfg:         NewConfig(options...),
		LLM:         llmModel,
		sysprompt:   sysprompt,
		tools:       tools.NewRegistry(),
		name:        "Generic Assistant",
		description: "An AI assistant that can perform various tasks.",
	}

	var output O
	if !encoding.IsStructured(ret.cfg.Mode) {
		if p, ok := any(encoding.NewTextOutputParser()).(chatmodel.OutputParser[O]); ok {
			ret.OutputParser = p
		}
	}
	if ret.OutputParser == nil {
		p, err := encoding.NewTypedOutputParser(output, ret.cfg.Mode)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create output parser")
		}
		ret.OutputParser = p
	}

	prov := llmModel.GetProviderType()
	if ret.cfg.Mode == encoding.ModeJSONSchema && prov.Supports(llms.CapabilityJSONSchema) {
		rf, err := schema.NewResponseFormat(reflect.TypeOf(output), prov.Supports(llms.CapabilityJSONSchemaStrict))
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create response format")
		}
		ret.cfg.ResponseFormat = rf
	}

	return ret, nil
}

// WithOutputParser sets the output parser.
func (a *Assistant[O]) WithOutputParser(outputParser chatmodel.OutputParser[O]) *Assistant[O] {
	a.OutputParser = outputParser
	return a
}

// WithInputParser sets the input parser for the Assistant.
func (a *Assistant[O]) WithInputParser(inputParser func(string) (string, error)) *Assistant[O] {
	a.inputParser = inputParser
	return a
}

// WithPromptInputProvider sets the provider of extra prompt inputs.
func (a *Assistant[O]) WithPromptInputProvider(cb ProvidePromptInputsFunc) *Assistant[O] {
	a.onPrompt = cb
	return a
}

// GetCallConfig returns the config of a call with the options applied.
func (a *Assistant[O]) GetCallConfig(opts ...Option) *Config {
	return a.cfg.Apply(opts...)
}

// WithName sets the name of the Assistant.
func (a *Assistant[O]) WithName(name string) *Assistant[O] {
	a.name = name
	return a
}

// WithDescription sets the description of the Assistant.
func (a *Assistant[O]) WithDescription(description string) *Assistant[O] {
	a.description = description
	return a
}

func (a *Assistant[O]) Name() string {
	return a.name
}

func (a *Assistant[O]) Description() string {
	return a.description
}

// GetTools returns the registered tools in registration order.
func (a *Assistant[O]) GetTools() []tools.ITool {
	return a.tools.List()
}

// WithTools adds new tools to the Assistant,
// existing tools are not replaced.
func (a *Assistant[O]) WithTools(list ...tools.ITool) *Assistant[O] {
	a.tools.Add(list...)
	return a
}

func (a *Assistant[O]) FormatPrompt(promptInputs map[string]any) (string, error) {
	return a.sysprompt.Format(llmutils.MergeInputs(a.cfg.PromptInput, promptInputs))
}

func (a *Assistant[O]) GetPromptInputVariables() []string {
	return a.sysprompt.GetInputVariables()
}

// GetSystemPrompt renders the system prompt for the input.
// The output schema is appended when the provider does not enforce the response format.
func (a *Assistant[O]) GetSystemPrompt(ctx context.Context, cfg *Config, input string, promptInputs map[string]any) (string, error) {
	if a.onPrompt != nil {
		extra, err := a.onPrompt(ctx, input)
		if err != nil {
			return "", errors.WithMessage(err, "failed to get prompt inputs")
		}
		if len(extra) > 0 {
			promptInputs = llmutils.MergeInputs(promptInputs, extra)
		}
	}

	systemPrompt, err := a.sysprompt.Format(llmutils.MergeInputs(cfg.PromptInput, promptInputs))
	if err != nil {
		return "", err
	}
	systemPrompt = strings.TrimRight(systemPrompt, "\n")

	if cfg.ResponseFormat == nil {
		outputSchema := strings.TrimRight(a.OutputParser.GetFormatInstructions(), "\n")
		if outputSchema != "" {
			systemPrompt = fmt.Sprintf("%s\n\n# OUTPUT SCHEMA\n%s", systemPrompt, outputSchema)
		}
	}
	return systemPrompt, nil
}

// Call runs the assistant and discards the typed output.
func (a *Assistant[O]) Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error) {
	var output O
	return a.Run(ctx, input, &output)
}

// Run executes the loop, the final response is parsed into output when it is not nil.
func (a *Assistant[O]) Run(ctx context.Context, input *CallInput, output *O) (*llms.ContentResponse, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.Name())

	cfg := a.GetCallConfig(input.Options...)

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, input.Input)
	}

	resp, messages, err := a.run(ctx, cfg, input, output)
	if err != nil {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.Name())
		if callback != nil {
			callback.OnAssistantError(ctx, a, input.Input, err, messages)
		}
		return nil, err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.Name())
	if callback != nil {
		callback.OnAssistantEnd(ctx, a, input.Input, resp, messages)
	}
	return resp, nil
}

// runState holds the messages of a single run
type runState struct {
	// history is sent to the LLM
	history []llms.Message
	// messages are added to the store
	messages []llms.Message
}

func (a *Assistant[O]) run(ctx context.Context, cfg *Config, input *CallInput, output *O) (*llms.ContentResponse, []llms.Message, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, nil, err
	}

	systemPrompt, err := a.GetSystemPrompt(ctx, cfg, input.Input, input.PromptInputs)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "failed to format system prompt")
	}

	st := &runState{
		history: []llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, systemPrompt),
		},
	}
	for _, example := range cfg.Examples {
		st.history = append(st.history,
			llms.MessageFromTextParts(llms.RoleHuman, example.Prompt),
			llms.MessageFromTextParts(llms.RoleAI, example.Completion),
		)
	}
	if cfg.Store != nil {
		prevMessages := cfg.Store.Messages(ctx)
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"tenant_id", tenantID,
			"chat_id", chatID,
			"message_history", len(prevMessages))
		st.history = append(st.history, prevMessages...)
	}

	parsedInput := input.Input
	if parsedInput != "" {
		if a.inputParser != nil {
			parsedInput, err = a.inputParser(parsedInput)
			if err != nil {
				return nil, st.history, errors.WithMessage(err, "failed to parse input")
			}
		}

		if cfg.IsGeneric {
			st.messages = append(st.messages, llms.MessageFromTextParts(llms.RoleGeneric, llmutils.AddComment("assistant", a.name, "question", parsedInput)))
		} else {
			st.messages = append(st.messages, llms.MessageFromTextParts(llms.RoleHuman, parsedInput))
		}
		st.history = append(st.history, llms.MessageFromTextParts(llms.RoleHuman, parsedInput))
	}
	st.history = append(st.history, input.Messages...)

	var extraOptions []llms.CallOption
	if a.tools.Len() > 0 {
		if !a.LLM.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, st.history, errors.Newf("assistant %s: the LLM does not support function calling", a.name)
		}
		extraOptions = append(extraOptions, llms.WithTools(a.tools.Definitions()))
	}
	callOpts := cfg.GetCallOptions(extraOptions...)

	assistantName := a.Name()
	modelName := a.LLM.GetName()

	var resp *llms.ContentResponse
	totalToolExecuted := 0
	retryCount := 0

	messagesLimit := values.NumbersCoalesce(cfg.MaxMessages, DefaultMaxMessages)
	bytesLimit := uint64(values.NumbersCoalesce(cfg.MaxLength, DefaultMaxContentSize))
	toolsLimit := values.NumbersCoalesce(cfg.MaxToolCalls, DefaultMaxToolCalls)
	for {
		if len(st.history) >= messagesLimit {
			return nil, st.history, errors.Newf("assistant %s: the messages count exceeded limit", assistantName)
		}
		bytesSent := llmutils.CountMessagesContentSize(st.history)
		if bytesSent > bytesLimit {
			return nil, st.history, errors.Newf("assistant %s: the content size exceeded limit", assistantName)
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallStart(ctx, a, a.LLM, st.history)
		}

		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(st.history)), assistantName, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), assistantName, modelName)

		resp, err = a.LLM.GenerateContent(ctx, st.history, callOpts...)
		if err != nil {
			return nil, st.history, errors.WithMessage(err, "failed to generate content from LLM")
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallEnd(ctx, a, a.LLM, resp)
		}

		bytesReceived := llmutils.CountResponseContentSize(resp)
		metricskey.StatsLLMBytesReceived.IncrCounter(float64(bytesReceived), assistantName, modelName)
		metricskey.StatsLLMBytesTotal.IncrCounter(float64(bytesSent+bytesReceived), assistantName, modelName)

		tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), assistantName, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), assistantName, modelName)
		metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), assistantName, modelName)

		if isEmptyResponse(resp) {
			retryCount++
			metricskey.StatsAssistantCallsRetried.IncrCounter(1, assistantName)
			if retryCount >= DefaultMaxRetries {
				logger.ContextKV(ctx, xlog.ERROR,
					"assistant", assistantName,
					"status", "max_retries_exceeded",
					"input", slices.StringUpto(parsedInput, 64),
					"retry_count", retryCount,
				)
				return nil, st.history, errors.Newf("assistant %s: LLM returned empty response after %d retries", assistantName, retryCount)
			}
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", assistantName,
				"status", "retrying_empty_response",
				"retry_count", retryCount,
			)
			continue
		}

		toolExecuted, notFoundCount := a.executeToolCalls(ctx, cfg, st, resp)
		if toolExecuted == 0 {
			break
		}
		if notFoundCount > MaxToolsNotFound {
			return nil, st.history, errors.Newf("assistant %s: the number of not found tools is exceeded", assistantName)
		}
		totalToolExecuted += toolExecuted
		if totalToolExecuted >= toolsLimit {
			return nil, st.history, errors.Newf("assistant %s: the tool calls limit is exceeded", assistantName)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", assistantName,
		"status", "response",
		"choices_count", len(resp.Choices),
		"tool_calls", totalToolExecuted,
	)

	result := combinedContent(resp)

	if output != nil {
		finalOutput, err := a.OutputParser.Parse(result)
		if err != nil {
			metricskey.StatsAssistantLLMParseErrors.IncrCounter(1, assistantName)
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", assistantName,
				"status", "failed_to_parse_llm_response",
				"err", err.Error(),
				"output_parser", a.OutputParser.Type(),
				"result", slices.StringUpto(result, 256),
			)

			if cfg.CallbackHandler != nil {
				cfg.CallbackHandler.OnAssistantLLMParseError(ctx, a, input.Input, result, err)
			}
			return nil, st.history, err
		}
		*output = *finalOutput
		result = (*finalOutput).GetContent()
	}

	st.history = append(st.history, llms.MessageFromTextParts(llms.RoleAI, result))
	if cfg.IsGeneric {
		st.messages = append(st.messages, llms.MessageFromTextParts(llms.RoleGeneric, llmutils.AddComment("assistant", assistantName, "observation", result)))
	} else {
		st.messages = append(st.messages, llms.MessageFromTextParts(llms.RoleAI, result))
	}

	if cfg.Store != nil && !cfg.SkipMessageHistory && len(st.messages) > 0 {
		if err = cfg.Store.Add(ctx, st.messages...); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"assistant", assistantName,
				"chat_id", chatID,
				"status", "failed_to_add_message_history",
				"err", err.Error(),
			)
			return nil, st.history, errors.WithMessage(err, "failed to store messages")
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", assistantName,
			"chat_id", chatID,
			"status", "added_message_history",
			"message_history", len(st.messages),
			"human", slices.StringUpto(parsedInput, 64),
			"ai", slices.StringUpto(result, 64),
		)
	}

	return resp, st.history, nil
}

func isEmptyResponse(resp *llms.ContentResponse) bool {
	if resp == nil {
		return true
	}
	for _, c := range resp.Choices {
		if c != nil && (strings.TrimSpace(c.Content) != "" || len(c.ToolCalls) > 0) {
			return false
		}
	}
	return true
}

func combinedContent(resp *llms.ContentResponse) string {
	var parts []string
	for _, c := range resp.Choices {
		if c != nil && c.Content != "" {
			parts = append(parts, c.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

type toolCallResult struct {
	toolCall llms.ToolCall
	response string
}

// executeToolCalls runs the tool calls of the response in their order.
// Consecutive calls of read-only tools run in parallel.
// The responses are appended to the history in the order of the calls.
// It returns the number of calls and the number of unknown tools.
func (a *Assistant[O]) executeToolCalls(ctx context.Context, cfg *Config, st *runState, resp *llms.ContentResponse) (int, int) {
	var toolCalls []llms.ToolCall
	for _, choice := range resp.Choices {
		if choice == nil || len(choice.ToolCalls) == 0 {
			continue
		}

		choiceToolCalls := make([]llms.ToolCall, 0, len(choice.ToolCalls))
		for i, toolCall := range choice.ToolCalls {
			if toolCall.FunctionCall == nil {
				continue
			}
			if toolCall.ID == "" {
				toolCall.ID = fmt.Sprintf("%s_%d", toolCall.FunctionCall.Name, len(toolCalls)+i)
			}
			toolCall.Type = values.StringsCoalesce(toolCall.Type, "function")
			choiceToolCalls = append(choiceToolCalls, toolCall)

			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", a.name,
				"status", "tool_call_found",
				"tool_call_id", toolCall.ID,
				"tool_call_name", toolCall.FunctionCall.Name,
			)
		}
		if len(choiceToolCalls) == 0 {
			continue
		}

		toolCalls = append(toolCalls, choiceToolCalls...)
		assistantResponse := llms.MessageFromToolCalls(llms.RoleAI, choiceToolCalls...)
		st.history = append(st.history, assistantResponse)
		if !cfg.SkipToolHistory {
			st.messages = append(st.messages, assistantResponse)
		}
	}

	if len(toolCalls) == 0 {
		return 0, 0
	}

	var notFound atomic.Int32
	results := make([]toolCallResult, len(toolCalls))
	call := func(index int) {
		tc := toolCalls[index]
		res, found := a.callTool(ctx, cfg, tc)
		if !found {
			notFound.Add(1)
		}
		results[index] = toolCallResult{toolCall: tc, response: res}
	}

	for start := 0; start < len(toolCalls); {
		if !a.isReadOnly(toolCalls[start]) {
			call(start)
			start++
			continue
		}

		end := start + 1
		for end < len(toolCalls) && a.isReadOnly(toolCalls[end]) {
			end++
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				call(index)
			}(i)
		}
		wg.Wait()
		start = end
	}

	for _, result := range results {
		toolCallResponse := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: result.toolCall.ID,
			Name:       result.toolCall.FunctionCall.Name,
			Content:    result.response,
		})

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"status", "tool_call_response",
			"tool_call_id", result.toolCall.ID,
			"tool_name", result.toolCall.FunctionCall.Name,
			"content_length", len(result.response),
		)

		st.history = append(st.history, toolCallResponse)
		if !cfg.SkipToolHistory {
			st.messages = append(st.messages, toolCallResponse)
		}
	}

	return len(toolCalls), int(notFound.Load())
}

func (a *Assistant[O]) isReadOnly(tc llms.ToolCall) bool {
	tool, ok := a.tools.Get(tc.FunctionCall.Name)
	return ok && tools.IsReadOnly(tool)
}

// callTool executes the tool call and returns the content for the LLM,
// the failures are reported in-band.
func (a *Assistant[O]) callTool(ctx context.Context, cfg *Config, tc llms.ToolCall) (string, bool) {
	toolName := tc.FunctionCall.Name
	toolArgs := tc.FunctionCall.Arguments

	tool, ok := a.tools.Get(toolName)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolNotFound(ctx, a, toolName)
		}

		availableTools := strings.Join(a.tools.Names(), ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_not_found",
			"tool_name", toolName,
			"available_tools", availableTools,
		)
		return fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", toolName, availableTools), false
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolStart(ctx, tool, a.name, toolArgs)
	}

	started := time.Now()
	res, err := tool.Call(ctx, toolArgs)
	metricskey.PerfToolCall.MeasureSince(started, tool.Name())

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, tool.Name())
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolError(ctx, tool, a.name, toolArgs, err)
		}

		if errors.Is(err, chatmodel.ErrFailedUnmarshalInput) {
			return llmutils.JSONComment("error", "Failed to unmarshal input, check the JSON schema and try again."), true
		}

		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_call_failed",
			"tool", tool.Name(),
			"err", err.Error(),
		)
		return fmt.Sprintf("Tool call failed: %s", err.Error()), true
	}
	metricskey.StatsToolCallsSucceeded.IncrCounter(1, tool.Name())

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolEnd(ctx, tool, a.name, toolArgs, res)
	}
	return res, true
}
