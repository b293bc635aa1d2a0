package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent/pkg/llms", "bedrock")

// ErrEmptyResponse is returned when the model returned no message
var ErrEmptyResponse = errors.New("bedrock: no response")

// ConverseAPI is the subset of bedrockruntime.Client used by the LLM
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// LLM is a Bedrock LLM implementation.
type LLM struct {
	modelID string
	client  ConverseAPI
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Bedrock LLM implementation.
func New(ctx context.Context, opts ...Option) (*LLM, error) {
	o := &options{
		modelID: defaultModel,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		var cfgOpts []func(*config.LoadOptions) error
		if o.region != "" {
			cfgOpts = append(cfgOpts, config.WithRegion(o.region))
		}
		if o.credentials != nil {
			cfgOpts = append(cfgOpts, config.WithCredentialsProvider(o.credentials))
		}
		cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "bedrock: failed to load AWS config")
		}
		o.client = bedrockruntime.NewFromConfig(cfg)
	}

	return &LLM{
		client:  o.client,
		modelID: o.modelID,
	}, nil
}

// GetName implements the Model interface.
func (l *LLM) GetName() string {
	return l.modelID
}

// GetProviderType implements the Model interface.
func (l *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderBedrock
}

// GenerateContent implements llms.Model.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: l.modelID,
	}
	for _, opt := range options {
		opt(&opts)
	}

	input, err := NewConverseInput(messages, &opts)
	if err != nil {
		return nil, err
	}

	out, err := l.client.Converse(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: converse failed")
	}
	return ToContentResponse(out)
}

// NewConverseInput returns the Converse request for the messages
func NewConverseInput(messages []llms.Message, opts *llms.CallOptions) (*bedrockruntime.ConverseInput, error) {
	msgs, system, err := ProcessMessages(messages)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(opts.Model),
		Messages: msgs,
	}
	if system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}

	inf := &types.InferenceConfiguration{}
	if opts.MaxTokens > 0 {
		inf.MaxTokens = aws.Int32(int32(opts.MaxTokens)) // #nosec G115
	}
	if opts.Temperature > 0 {
		inf.Temperature = aws.Float32(float32(opts.Temperature))
	}
	if opts.TopP > 0 {
		inf.TopP = aws.Float32(float32(opts.TopP))
	}
	if len(opts.StopWords) > 0 {
		inf.StopSequences = opts.StopWords
	}
	input.InferenceConfig = inf

	if len(opts.Tools) > 0 {
		tc := &types.ToolConfiguration{}
		for _, tool := range opts.Tools {
			if tool.Function == nil {
				return nil, errors.Newf("bedrock: unsupported tool type %q", tool.Type)
			}
			tc.Tools = append(tc.Tools, &types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        aws.String(tool.Function.Name),
					Description: aws.String(tool.Function.Description),
					InputSchema: &types.ToolInputSchemaMemberJson{
						Value: document.NewLazyDocument(schema.ToMap(tool.Function.Parameters)),
					},
				},
			})
		}
		input.ToolConfig = tc
	}

	return input, nil
}

// ProcessMessages converts messages to Converse messages,
// and returns the system prompt separately.
// Consecutive tool responses are merged in one user message.
func ProcessMessages(messages []llms.Message) ([]types.Message, string, error) {
	var (
		res      []types.Message
		system   []string
		lastTool bool
	)

	for _, msg := range messages {
		switch msg.Role {
		case llms.RoleSystem:
			for _, p := range msg.Parts {
				if t, ok := p.(llms.TextContent); ok && t.Text != "" {
					system = append(system, t.Text)
				}
			}
			lastTool = false
		case llms.RoleHuman, llms.RoleGeneric:
			var blocks []types.ContentBlock
			for _, p := range msg.Parts {
				switch pp := p.(type) {
				case llms.TextContent:
					if pp.Text != "" {
						blocks = append(blocks, &types.ContentBlockMemberText{Value: pp.Text})
					}
				case llms.BinaryContent:
					blocks = append(blocks, &types.ContentBlockMemberImage{
						Value: types.ImageBlock{
							Format: imageFormat(pp.MIMEType),
							Source: &types.ImageSourceMemberBytes{Value: pp.Data},
						},
					})
				default:
					return nil, "", errors.Newf("bedrock: unsupported human message part %T", p)
				}
			}
			if len(blocks) == 0 {
				continue
			}
			res = append(res, types.Message{Role: types.ConversationRoleUser, Content: blocks})
			lastTool = false
		case llms.RoleAI:
			var blocks []types.ContentBlock
			for _, p := range msg.Parts {
				switch pp := p.(type) {
				case llms.TextContent:
					if pp.Text != "" {
						blocks = append(blocks, &types.ContentBlockMemberText{Value: pp.Text})
					}
				case llms.ToolCall:
					args, err := parseArgs(pp.FunctionCall.Arguments)
					if err != nil {
						return nil, "", errors.WithMessagef(err, "bedrock: invalid arguments for tool %q", pp.FunctionCall.Name)
					}
					blocks = append(blocks, &types.ContentBlockMemberToolUse{
						Value: types.ToolUseBlock{
							ToolUseId: aws.String(pp.ID),
							Name:      aws.String(pp.FunctionCall.Name),
							Input:     document.NewLazyDocument(args),
						},
					})
				default:
					return nil, "", errors.Newf("bedrock: unsupported AI message part %T", p)
				}
			}
			if len(blocks) == 0 {
				continue
			}
			res = append(res, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})
			lastTool = false
		case llms.RoleTool:
			var blocks []types.ContentBlock
			for _, p := range msg.Parts {
				resp, ok := p.(llms.ToolCallResponse)
				if !ok {
					return nil, "", errors.Newf("bedrock: expected ToolCallResponse for tool message, got %T", p)
				}
				blocks = append(blocks, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(resp.ToolCallID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{Value: resp.Content},
						},
					},
				})
			}
			if lastTool && len(res) > 0 {
				res[len(res)-1].Content = append(res[len(res)-1].Content, blocks...)
			} else {
				res = append(res, types.Message{Role: types.ConversationRoleUser, Content: blocks})
			}
			lastTool = true
		default:
			return nil, "", errors.Wrapf(llms.ErrUnexpectedRole, "bedrock: role %v not supported", msg.Role)
		}
	}
	return res, strings.Join(system, "\n"), nil
}

func parseArgs(s string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(s) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, errors.WithStack(err)
	}
	return args, nil
}

func imageFormat(mime string) types.ImageFormat {
	switch strings.TrimPrefix(mime, "image/") {
	case "jpeg", "jpg":
		return types.ImageFormatJpeg
	case "gif":
		return types.ImageFormatGif
	case "webp":
		return types.ImageFormatWebp
	}
	return types.ImageFormatPng
}

// ToContentResponse converts the Converse output to ContentResponse
func ToContentResponse(out *bedrockruntime.ConverseOutput) (*llms.ContentResponse, error) {
	if out == nil {
		return nil, errors.WithStack(ErrEmptyResponse)
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.WithStack(ErrEmptyResponse)
	}

	choice := &llms.ContentChoice{
		StopReason:     string(out.StopReason),
		GenerationInfo: map[string]any{},
	}
	var texts []string
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			texts = append(texts, b.Value)
		case *types.ContentBlockMemberToolUse:
			args := "{}"
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return nil, errors.Wrap(err, "bedrock: failed to marshal tool input")
				}
				if s := string(raw); s != "null" && s != "" {
					args = s
				}
			}
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   aws.ToString(b.Value.ToolUseId),
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      aws.ToString(b.Value.Name),
					Arguments: args,
				},
			})
		default:
			logger.KV(xlog.DEBUG, "reason", "skip_block", "type", fmt.Sprintf("%T", block))
		}
	}
	choice.Content = strings.Join(texts, "")
	if len(choice.ToolCalls) > 0 {
		choice.FuncCall = choice.ToolCalls[0].FunctionCall
	}
	if out.Usage != nil {
		choice.GenerationInfo[llms.InputTokens] = aws.ToInt32(out.Usage.InputTokens)
		choice.GenerationInfo[llms.OutputTokens] = aws.ToInt32(out.Usage.OutputTokens)
		choice.GenerationInfo[llms.TotalTokens] = aws.ToInt32(out.Usage.TotalTokens)
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}
