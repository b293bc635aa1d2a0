package openai

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var (
	ErrEmptyResponse = errors.New("openai: no response")
	ErrMissingToken  = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")
)

// DefaultModel is the model used when none is configured
const DefaultModel = "gpt-4o-mini"

type LLM struct {
	client *openai.Client
	opts   *options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		token:        os.Getenv(tokenEnvVarName),
		model:        values.StringsCoalesce(os.Getenv(modelEnvVarName), DefaultModel),
		baseURL:      os.Getenv(baseURLEnvVarName),
		organization: os.Getenv(organizationEnvVarName),
		httpClient:   http.DefaultClient,
		maxRetries:   2,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.token == "" {
		return nil, ErrMissingToken
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.baseURL))
	}
	if o.organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	client := openai.NewClient(sdkOpts...)
	return &LLM{
		client: &client,
		opts:   o,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.opts.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: o.opts.model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	params, err := NewChatParams(messages, &opts)
	if err != nil {
		return nil, err
	}
	if params.ResponseFormat.OfJSONSchema == nil && o.opts.responseFormat != nil {
		params.ResponseFormat = toResponseFormat(o.opts.responseFormat)
	}

	result, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	return ToContentResponse(result)
}

// NewChatParams returns the chat completion request for the messages
func NewChatParams(messages []llms.Message, opts *llms.CallOptions) (*openai.ChatCompletionNewParams, error) {
	chatMsgs, err := ConvertMessages(messages)
	if err != nil {
		return nil, err
	}

	params := &openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: chatMsgs,
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Seed != 0 {
		params.Seed = openai.Int(int64(opts.Seed))
	}
	if opts.CandidateCount > 1 {
		params.N = openai.Int(int64(opts.CandidateCount))
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.StopWords}
	}
	for _, tool := range opts.Tools {
		if tool.Function == nil {
			return nil, errors.Newf("openai: unsupported tool type %q", tool.Type)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openai.String(tool.Function.Description),
			Parameters:  shared.FunctionParameters(schema.ToMap(tool.Function.Parameters)),
		}))
	}
	if opts.ResponseFormat != nil {
		params.ResponseFormat = toResponseFormat(opts.ResponseFormat)
	}
	return params, nil
}

func toResponseFormat(rf *schema.ResponseFormat) openai.ChatCompletionNewParamsResponseFormatUnion {
	switch {
	case rf.Type == "json_schema" && rf.JSONSchema != nil:
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   rf.JSONSchema.Name,
					Strict: openai.Bool(rf.JSONSchema.Strict),
					Schema: rf.JSONSchema.Schema,
				},
			},
		}
	case rf.Type == "json_object" || rf.Type == "json_schema":
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{}
}

// ConvertMessages converts messages to the chat completion messages
func ConvertMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	res := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		switch mc.Role {
		case llms.RoleSystem:
			res = append(res, openai.SystemMessage(textOf(mc.Parts)))
		case llms.RoleHuman, llms.RoleGeneric:
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(mc.Parts))
			for _, p := range mc.Parts {
				switch pp := p.(type) {
				case llms.TextContent:
					parts = append(parts, openai.TextContentPart(pp.Text))
				case llms.ImageURLContent:
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: pp.URL}))
				case llms.BinaryContent:
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: pp.String()}))
				default:
					return nil, errors.Newf("openai: unsupported human message part %T", p)
				}
			}
			res = append(res, openai.UserMessage(parts))
		case llms.RoleAI:
			asst := openai.ChatCompletionAssistantMessageParam{}
			if text := textOf(mc.Parts); text != "" {
				asst.Content.OfString = openai.String(text)
			}
			for _, p := range mc.Parts {
				if tc, ok := p.(llms.ToolCall); ok {
					asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: tc.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      tc.FunctionCall.Name,
								Arguments: values.StringsCoalesce(tc.FunctionCall.Arguments, "{}"),
							},
						},
					})
				}
			}
			res = append(res, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case llms.RoleTool:
			for _, p := range mc.Parts {
				resp, ok := p.(llms.ToolCallResponse)
				if !ok {
					return nil, errors.Newf("openai: expected ToolCallResponse for tool message, got %T", p)
				}
				res = append(res, openai.ToolMessage(resp.Content, resp.ToolCallID))
			}
		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "openai: role %v not supported", mc.Role)
		}
	}
	return res, nil
}

func textOf(parts []llms.ContentPart) string {
	var texts []string
	for _, p := range parts {
		if t, ok := p.(llms.TextContent); ok {
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// ToContentResponse converts the chat completion to ContentResponse
func ToContentResponse(result *openai.ChatCompletion) (*llms.ContentResponse, error) {
	if result == nil || len(result.Choices) == 0 {
		return nil, errors.WithStack(ErrEmptyResponse)
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				llms.InputTokens:  result.Usage.PromptTokens,
				llms.OutputTokens: result.Usage.CompletionTokens,
				llms.TotalTokens:  result.Usage.TotalTokens,
				"ID":              result.ID,
			},
		}
		for _, tool := range c.Message.ToolCalls {
			choices[i].ToolCalls = append(choices[i].ToolCalls, llms.ToolCall{
				ID:   tool.ID,
				Type: values.StringsCoalesce(tool.Type, "function"),
				FunctionCall: &llms.FunctionCall{
					Name:      tool.Function.Name,
					Arguments: tool.Function.Arguments,
				},
			})
		}
		if len(choices[i].ToolCalls) > 0 {
			choices[i].FuncCall = choices[i].ToolCalls[0].FunctionCall
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}
