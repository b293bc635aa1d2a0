package agent_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/agent"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/encoding"
	"github.com/effective-security/shopagent/mocks/mockllms"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/store"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/shopagent/tools/websearch"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newLLM(ctrl *gomock.Controller) *mockllms.MockModel {
	m := mockllms.NewMockModel(ctrl)
	m.EXPECT().GetName().Return("gemini-2.5-flash").AnyTimes()
	m.EXPECT().GetProviderType().Return(llms.ProviderGoogleAI).AnyTimes()
	return m
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:    content,
			StopReason: "stop",
			GenerationInfo: map[string]any{
				llms.InputTokens:  100,
				llms.OutputTokens: 20,
			},
		}},
	}
}

func toolsResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{ToolCalls: calls}},
	}
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

func memoryStores() *store.Stores {
	return &store.Stores{
		Messages: store.NewMemoryStore(),
		Sessions: store.NewMemorySessionStore(store.DefaultTTL),
	}
}

func Test_Config(t *testing.T) {
	cfg := agent.DefaultConfig()
	assert.Equal(t, agent.DefaultName, cfg.Name)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, 800, cfg.MaxTokens)
	assert.Equal(t, 0.9, cfg.TopP)
	assert.Equal(t, encoding.ModeJSONSchema, cfg.OutputMode)
	assert.Equal(t, "localhost:8080", cfg.ListenAddr)
	require.NoError(t, cfg.Validate())

	t.Setenv("SHOPAGENT_TEST_REDIS", "redis://localhost:6379/1")
	dir := t.TempDir()
	file := filepath.Join(dir, "shopagent.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
name: techstore
output_mode: plain_text
temperature: 0.5
web_search: true
store:
  type: redis
  url: ${SHOPAGENT_TEST_REDIS}
  ttl: 2h
pricing:
  tax_rate: 0.1
  free_shipping_threshold: 50
  shipping_cost: 5
  discount_codes:
    HALF: 50
`), 0o600))

	cfg, err := agent.LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "techstore", cfg.Name)
	assert.Equal(t, encoding.ModePlainText, cfg.OutputMode)
	assert.Equal(t, 0.5, cfg.Temperature)
	assert.Equal(t, 800, cfg.MaxTokens)
	assert.True(t, cfg.WebSearch)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Store.URL)
	require.NotNil(t, cfg.Pricing)
	assert.Equal(t, "HALF (50%)", cfg.Pricing.CodesText())

	llmCfg, err := cfg.GetLLMConfig()
	require.NoError(t, err)
	assert.Equal(t, "GOOGLEAI", llmCfg.DefaultProvider)

	_, err = agent.LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	for _, bad := range []*agent.Config{
		{OutputMode: "xml"},
		{TemplateFormat: "mustache"},
		{Store: store.Config{TTL: "forever"}},
		{Temperature: 3},
		{TopP: 2},
		{MaxToolCalls: -1},
	} {
		bad.SetDefaults()
		assert.Error(t, bad.Validate())
	}
}

func Test_Instructions(t *testing.T) {
	t.Parallel()

	cfg := agent.DefaultConfig()
	tmpl, err := agent.NewInstructions(cfg)
	require.NoError(t, err)
	assert.Equal(t, agent.InstructionsInputs, tmpl.GetInputVariables())

	text, err := tmpl.Format(agent.InstructionsValues("TechBot", shop.DefaultCatalog(), shop.DefaultPricing(), false))
	require.NoError(t, err)
	assert.Contains(t, text, "You are TechBot,")
	assert.Contains(t, text, "- Tax: 8% of the subtotal after the discount.")
	assert.Contains(t, text, "- Shipping: $10.00, free for a subtotal from $100.00.")
	assert.Contains(t, text, "- Discount codes: SAVE20 (20%), VIP30 (30%), WELCOME10 (10%). One code per cart.")
	assert.Contains(t, text, "- Categories: Audio, Computadoras, Monitores, Periféricos.")
	assert.NotContains(t, text, websearch.ToolName)

	text, err = tmpl.Format(agent.InstructionsValues("TechBot", shop.DefaultCatalog(), shop.DefaultPricing(), true))
	require.NoError(t, err)
	assert.Contains(t, text, "- Use websearch only for information that is not in the catalog")

	// custom jinja2 template
	file := filepath.Join(t.TempDir(), "instructions.j2")
	require.NoError(t, os.WriteFile(file, []byte("{{ name }} sells in {{ categories | join(\", \") }}"), 0o600))
	tmpl, err = agent.NewInstructions(&agent.Config{Instructions: file, TemplateFormat: "jinja2"})
	require.NoError(t, err)
	text, err = tmpl.Format(agent.InstructionsValues("TechBot", shop.DefaultCatalog(), shop.DefaultPricing(), false))
	require.NoError(t, err)
	assert.Equal(t, "TechBot sells in Audio, Computadoras, Monitores, Periféricos", text)

	_, err = agent.NewInstructions(&agent.Config{Instructions: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func Test_New(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	a, err := agent.New(ctx, nil, agent.WithLLM(newLLM(ctrl)))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, agent.DefaultName, a.Assistant().Name())
	assert.Equal(t, agent.DefaultDescription, a.Assistant().Description())
	assert.Equal(t, []string{
		"search_product",
		"add_to_cart",
		"view_cart",
		"apply_discount",
		"remove_from_cart",
		"clear_cart",
		"calculate_total",
		"recommend_products",
		"search_history",
		"percentage",
		"discounted_price",
	}, a.Registry().Names())
	assert.Equal(t, 5, len(a.Shop().Catalog().Products()))

	extra := tools.MustFunction("ping", "Returns pong",
		func(context.Context, *struct{}) (*tools.Result, error) {
			r := tools.Success("pong")
			return &r, nil
		})
	t.Setenv(websearch.EnvAPIKey, "tvly-test")
	cfg := agent.DefaultConfig()
	cfg.WebSearch = true
	b, err := agent.New(ctx, cfg, agent.WithLLM(newLLM(ctrl)), agent.WithStores(memoryStores()), agent.WithTools(extra))
	require.NoError(t, err)
	_, ok := b.Registry().Get(websearch.ToolName)
	assert.True(t, ok)
	_, ok = b.Registry().Get("PING")
	assert.True(t, ok)

	_, err = agent.New(ctx, &agent.Config{Catalog: "/not/found.yaml"}, agent.WithLLM(newLLM(ctrl)))
	assert.Error(t, err)
	_, err = agent.New(ctx, &agent.Config{Store: store.Config{Type: "etcd"}}, agent.WithLLM(newLLM(ctrl)))
	assert.EqualError(t, err, "unsupported store type: etcd")
}

func Test_Chat(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	llm := newLLM(ctrl)

	a, err := agent.New(ctx, nil, agent.WithLLM(llm), agent.WithStores(memoryStores()))
	require.NoError(t, err)

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
				co := llms.NewCallOptions(opts...)
				assert.Equal(t, 0.3, co.Temperature)
				assert.Equal(t, 800, co.MaxTokens)
				assert.Equal(t, 0.9, co.TopP)
				assert.Len(t, co.Tools, 11)

				require.Len(t, msgs, 2)
				assert.Contains(t, msgs[0].GetContent(), "# OUTPUT SCHEMA")
				assert.Contains(t, msgs[0].GetContent(), "WELCOME10 (10%)")
				assert.Equal(t, "add two gaming mice\n", msgs[1].GetContent())
				return toolsResponse(toolCall("c1", "add_to_cart", `{"product":"mouse gaming pro","quantity":2}`)), nil
			}),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				last := msgs[len(msgs)-1]
				require.Equal(t, llms.RoleTool, last.Role)
				assert.Contains(t, last.Parts[0].(llms.ToolCallResponse).Content, `"status":"success"`)
				return textResponse(`{"reply":"Added 2 x Mouse Gaming Pro","products":["Mouse Gaming Pro"],"cart_total":"$172.80"}`), nil
			}),
	)

	res, err := a.Chat(ctx, "", "add two gaming mice")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	assert.Equal(t, "Added 2 x Mouse Gaming Pro", res.Reply)
	assert.Equal(t, 100, res.InputTokens)
	assert.Equal(t, 20, res.OutputTokens)
	exp := &agent.ShopReply{
		Reply:     "Added 2 x Mouse Gaming Pro",
		Products:  []string{"Mouse Gaming Pro"},
		CartTotal: "$172.80",
	}
	if diff := cmp.Diff(exp, res.Output); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}

	cart, err := a.Cart(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, tools.StatusSuccess, cart.Status)
	require.Len(t, cart.Products, 1)
	assert.Equal(t, 2, cart.Products[0].Quantity)
	assert.Equal(t, "$172.80", cart.Total)

	history, err := a.History(ctx, res.SessionID)
	require.NoError(t, err)
	// human, tool call, tool response, reply
	require.Len(t, history, 4)
	assert.Equal(t, llms.RoleHuman, history[0].Role)
	assert.Equal(t, llms.RoleTool, history[2].Role)
	assert.Equal(t, llms.RoleAI, history[3].Role)
	assert.Equal(t, "Added 2 x Mouse Gaming Pro\n", history[3].GetContent())

	sessions, err := a.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{res.SessionID}, sessions)

	require.NoError(t, a.Reset(ctx, res.SessionID))
	cart, err = a.Cart(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, tools.StatusEmpty, cart.Status)
	history, err = a.History(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = a.Chat(ctx, "", "")
	assert.EqualError(t, err, "message is required")
	_, err = a.Cart(ctx, "")
	assert.Error(t, err)
	assert.Error(t, a.Reset(ctx, ""))
}

func Test_Chat_AddThenRemoveInOneTurn(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	llm := newLLM(ctrl)

	a, err := agent.New(ctx, nil, agent.WithLLM(llm), agent.WithStores(memoryStores()))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		sessionID := fmt.Sprintf("add-remove-%d", i)
		gomock.InOrder(
			llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(toolsResponse(
					toolCall("c1", "add_to_cart", `{"product":"mouse gaming pro","quantity":2}`),
					toolCall("c2", "remove_from_cart", `{"product":"mouse gaming pro"}`),
				), nil),
			llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
					require.Greater(t, len(msgs), 2)
					add := msgs[len(msgs)-2].Parts[0].(llms.ToolCallResponse)
					remove := msgs[len(msgs)-1].Parts[0].(llms.ToolCallResponse)
					assert.Equal(t, "c1", add.ToolCallID)
					assert.Contains(t, add.Content, `"status":"success"`)
					assert.Equal(t, "c2", remove.ToolCallID)
					assert.Contains(t, remove.Content, `"status":"success"`)
					return textResponse(`{"reply":"The mouse was removed, your cart is empty"}`), nil
				}),
		)

		res, err := a.Chat(ctx, sessionID, "add two mice, then remove them")
		require.NoError(t, err)
		assert.Equal(t, "The mouse was removed, your cart is empty", res.Reply)

		cart, err := a.Cart(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, tools.StatusEmpty, cart.Status, sessionID)
		assert.Empty(t, cart.Products, sessionID)
	}
}

func Test_Chat_PlainText(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	llm := newLLM(ctrl)

	cfg := agent.DefaultConfig()
	cfg.OutputMode = encoding.ModePlainText
	a, err := agent.New(ctx, cfg, agent.WithLLM(llm), agent.WithStores(memoryStores()))
	require.NoError(t, err)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			assert.NotContains(t, msgs[0].GetContent(), "# OUTPUT SCHEMA")
			return textResponse("  Hola! The Monitor 4K HDR costs $400.\n"), nil
		})

	res, err := a.Chat(ctx, "s-1", "monitor price?")
	require.NoError(t, err)
	assert.Equal(t, "s-1", res.SessionID)
	assert.Nil(t, res.Output)
	assert.Equal(t, "Hola! The Monitor 4K HDR costs $400.", res.Reply)
}

func Test_Chat_YAMLAndTOML(t *testing.T) {
	tcases := []struct {
		mode   string
		format []string
		reply  string
	}{
		{
			mode: encoding.ModeYAML,
			format: []string{
				"```yaml\n",
				"# The answer to the customer in the language of the customer\nreply: ",
				"# The formatted cart total when it is known (for example $1,234.56)\n",
			},
			reply: "```yaml\nreply: Added 2 x Mouse Gaming Pro\nproducts:\n  - Mouse Gaming Pro\ncart_total: $172.80\n```",
		},
		{
			mode: encoding.ModeTOML,
			format: []string{
				"```toml\n",
				"- reply (string, required): The answer to the customer in the language of the customer\n",
				"- cart_total (string): The formatted cart total when it is known (for example $1,234.56)\n",
			},
			reply: "reply = \"Added 2 x Mouse Gaming Pro\"\nproducts = [\"Mouse Gaming Pro\"]\ncart_total = \"$172.80\"\n",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.mode, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ctx := context.Background()
			llm := newLLM(ctrl)

			cfg := agent.DefaultConfig()
			cfg.OutputMode = tc.mode
			require.NoError(t, cfg.Validate())
			a, err := agent.New(ctx, cfg, agent.WithLLM(llm), agent.WithStores(memoryStores()))
			require.NoError(t, err)

			gomock.InOrder(
				llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, msgs []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
						co := llms.NewCallOptions(opts...)
						assert.Nil(t, co.ResponseFormat)
						sys := msgs[0].GetContent()
						assert.Contains(t, sys, "# OUTPUT SCHEMA")
						for _, exp := range tc.format {
							assert.Contains(t, sys, exp)
						}
						return toolsResponse(toolCall("c1", "add_to_cart", `{"product":"mouse gaming pro","quantity":2}`)), nil
					}),
				llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(textResponse(tc.reply), nil),
			)

			res, err := a.Chat(ctx, "", "add two gaming mice")
			require.NoError(t, err)
			exp := &agent.ShopReply{
				Reply:     "Added 2 x Mouse Gaming Pro",
				Products:  []string{"Mouse Gaming Pro"},
				CartTotal: "$172.80",
			}
			if diff := cmp.Diff(exp, res.Output); diff != "" {
				t.Errorf("reply mismatch (-want +got):\n%s", diff)
			}

			cart, err := a.Cart(ctx, res.SessionID)
			require.NoError(t, err)
			assert.Equal(t, "$172.80", cart.Total)
		})
	}
}

func Test_Chat_MissingReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	llm := newLLM(ctrl)

	a, err := agent.New(ctx, nil, agent.WithLLM(llm), agent.WithStores(memoryStores()))
	require.NoError(t, err)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse(`{"products":["Monitor 4K HDR"]}`), nil)

	_, err = a.Chat(ctx, "s-2", "monitor?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalOutput))
}
