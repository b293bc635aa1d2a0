package googleai

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/llms/googleai/internal/genaiutils"
	"github.com/effective-security/shopagent/pkg/llmutils"
	"google.golang.org/genai"
)

var (
	ErrNoContentInResponse   = errors.New("no content in generation response")
	ErrUnknownPartInResponse = errors.New("unknown part type in generation response")
)

const (
	CITATIONS            = "citations"
	SAFETY               = "safety"
	RoleModel            = "model"
	RoleUser             = "user"
	ResponseMIMETypeJson = "application/json"
)

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.opts.DefaultModel
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// GenerateContent implements the [llms.Model] interface.
func (g *GoogleAI) GenerateContent(
	ctx context.Context,
	messages []llms.Message,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:          g.opts.DefaultModel,
		CandidateCount: g.opts.DefaultCandidateCount,
		MaxTokens:      g.opts.DefaultMaxTokens,
		Temperature:    g.opts.DefaultTemperature,
		TopP:           g.opts.DefaultTopP,
		TopK:           g.opts.DefaultTopK,
	}
	for _, opt := range options {
		opt(&opts)
	}

	callCfg, err := g.buildConfig(&opts)
	if err != nil {
		return nil, err
	}

	history, err := convertMessages(ctx, messages, callCfg)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, opts.Model, history, callCfg)
	if err != nil {
		return nil, errors.WithMessage(err, "googleai: generate content")
	}

	if len(resp.Candidates) == 0 {
		return nil, errors.WithStack(ErrNoContentInResponse)
	}
	return convertCandidates(resp.Candidates, resp.UsageMetadata)
}

func (g *GoogleAI) buildConfig(opts *llms.CallOptions) (*genai.GenerateContentConfig, error) {
	callCfg := &genai.GenerateContentConfig{
		StopSequences:   opts.StopWords,
		CandidateCount:  int32(opts.CandidateCount),
		MaxOutputTokens: int32(opts.MaxTokens),
		Temperature:     genaiutils.Float32Ptr(float32(opts.Temperature)),
		TopP:            genaiutils.Float32Ptr(float32(opts.TopP)),
		TopK:            genaiutils.Float32Ptr(float32(opts.TopK)),
		Seed:            genaiutils.Int32Ptr(int32(opts.Seed)),
	}

	for _, category := range []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
	} {
		callCfg.SafetySettings = append(callCfg.SafetySettings, &genai.SafetySetting{
			Category:  category,
			Threshold: g.opts.HarmThreshold,
		})
	}

	var err error
	if callCfg.Tools, err = genaiutils.ConvertTools(opts.Tools); err != nil {
		return nil, err
	}

	// Gemini does not allow a response schema together with function calling
	rf := opts.ResponseFormat
	if len(callCfg.Tools) == 0 && rf != nil && (rf.Type == "json_object" || rf.Type == "json_schema") {
		callCfg.ResponseMIMEType = ResponseMIMETypeJson
		if rf.JSONSchema != nil {
			callCfg.ResponseSchema = genaiutils.ConvertResponseFormatJSONSchema(rf.JSONSchema)
		}
	}
	return callCfg, nil
}

// convertCandidates converts a sequence of genai.Candidate to a response.
func convertCandidates(candidates []*genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata) (*llms.ContentResponse, error) {
	var contentResponse llms.ContentResponse

	for _, candidate := range candidates {
		buf := strings.Builder{}
		var toolCalls []llms.ToolCall

		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				switch {
				case part.FunctionCall != nil:
					args := "{}"
					if len(part.FunctionCall.Args) > 0 {
						b, err := json.Marshal(part.FunctionCall.Args)
						if err != nil {
							return nil, errors.WithStack(err)
						}
						args = string(b)
					}
					id := part.FunctionCall.ID
					if id == "" {
						id = "call_" + strconv.Itoa(len(toolCalls))
					}
					toolCalls = append(toolCalls, llms.ToolCall{
						ID:   id,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: args,
						},
					})
				case part.Thought:
					// thoughts are not part of the answer
				case part.Text != "":
					buf.WriteString(part.Text)
				case part.InlineData != nil, part.ExecutableCode != nil, part.CodeExecutionResult != nil:
					return nil, errors.Wrapf(ErrUnknownPartInResponse, "unsupported part")
				}
			}
		}

		metadata := make(map[string]any)
		metadata[CITATIONS] = candidate.CitationMetadata
		metadata[SAFETY] = candidate.SafetyRatings

		if usage != nil {
			metadata[llms.InputTokens] = usage.PromptTokenCount
			metadata["CacheReadTokens"] = usage.CachedContentTokenCount
			metadata[llms.OutputTokens] = usage.CandidatesTokenCount + usage.ToolUsePromptTokenCount + usage.ThoughtsTokenCount
			metadata[llms.TotalTokens] = usage.TotalTokenCount
		}

		contentResponse.Choices = append(contentResponse.Choices,
			&llms.ContentChoice{
				Content:        buf.String(),
				StopReason:     string(candidate.FinishReason),
				GenerationInfo: metadata,
				ToolCalls:      toolCalls,
			})
	}
	return &contentResponse, nil
}

// convertParts converts between a sequence of llms parts and genai parts.
func convertParts(ctx context.Context, parts []llms.ContentPart) ([]*genai.Part, error) {
	convertedParts := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		out := new(genai.Part)

		switch p := part.(type) {
		case llms.TextContent:
			out.Text = p.Text
		case llms.BinaryContent:
			out.InlineData = &genai.Blob{MIMEType: p.MIMEType, Data: p.Data}
		case llms.ImageURLContent:
			typ, data, err := llmutils.DownloadImageData(ctx, p.URL)
			if err != nil {
				return nil, err
			}
			out.InlineData = &genai.Blob{MIMEType: typ, Data: data}
		case llms.ToolCall:
			fc := p.FunctionCall
			argsMap := map[string]any{}
			if fc.Arguments != "" {
				if err := json.Unmarshal([]byte(fc.Arguments), &argsMap); err != nil {
					return nil, errors.Wrapf(err, "invalid arguments for tool call %s", fc.Name)
				}
			}
			out.FunctionCall = &genai.FunctionCall{
				Name: fc.Name,
				Args: argsMap,
			}
		case llms.ToolCallResponse:
			out.FunctionResponse = &genai.FunctionResponse{
				Name: p.Name,
				Response: map[string]any{
					"response": p.Content,
				},
			}
		default:
			return nil, errors.Newf("unsupported part type: %T", part)
		}

		convertedParts = append(convertedParts, out)
	}
	return convertedParts, nil
}

// convertMessages returns the chat history,
// the system message is set as the system instruction of cfg.
func convertMessages(ctx context.Context, messages []llms.Message, cfg *genai.GenerateContentConfig) ([]*genai.Content, error) {
	history := make([]*genai.Content, 0, len(messages))
	for _, mc := range messages {
		parts, err := convertParts(ctx, mc.Parts)
		if err != nil {
			return nil, err
		}
		c := &genai.Content{
			Parts: parts,
		}

		switch mc.Role {
		case llms.RoleSystem:
			cfg.SystemInstruction = c
			continue
		case llms.RoleAI:
			c.Role = RoleModel
		case llms.RoleHuman, llms.RoleGeneric, llms.RoleTool:
			// function responses are sent on behalf of the user
			c.Role = RoleUser
		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
		}
		history = append(history, c)
	}
	return history, nil
}
