// Package mcp exposes the tools and the shopping assistant
// over the Model Context Protocol.
//
// Every call runs in the session given by the `session_id` argument,
// or in the session of the MCP connection when it is omitted.
package mcp

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/agent"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/pkg/metricskey"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent", "mcp")

// SessionArg is the argument added to every tool schema
const SessionArg = "session_id"

// ChatToolName is the name of the tool that talks to the assistant
const ChatToolName = "chat"

// Chatter is the assistant exposed as the chat tool
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string) (*agent.Response, error)
}

// ChatRequest is the input of the chat tool
type ChatRequest struct {
	Message string `json:"message" jsonschema:"description=The message of the customer to the shopping assistant."`
}

// Server serves the tools over MCP
type Server struct {
	server *sdk.Server
	tenant string
	// session is used when neither the arguments nor the connection have one
	session string
}

// New returns the server, tenant is used for the chat context of the calls
func New(name, version, tenant string) *Server {
	return &Server{
		server: sdk.NewServer(&sdk.Implementation{
			Name:    name,
			Version: version,
		}, nil),
		tenant:  tenant,
		session: chatmodel.NewChatID(),
	}
}

// Register adds the tools to the server
func (s *Server) Register(list ...tools.ITool) error {
	for _, t := range list {
		schema, err := inputSchema(t)
		if err != nil {
			return errors.WithMessagef(err, "tool %s", t.Name())
		}
		s.server.AddTool(&sdk.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: schema,
		}, s.toolHandler(t))
	}
	return nil
}

// RegisterChat adds the chat tool, which runs a turn of the assistant
func (s *Server) RegisterChat(c Chatter) error {
	t, err := tools.NewFunction(ChatToolName,
		"Sends a message to the shopping assistant of the store and returns the reply. The assistant keeps the cart and the conversation of the session.",
		func(ctx context.Context, req *ChatRequest) (*agent.Response, error) {
			if req.Message == "" {
				return nil, errors.New("message is required")
			}
			return c.Chat(ctx, chatmodel.GetChatID(ctx), req.Message)
		})
	if err != nil {
		return err
	}
	return s.Register(t)
}

// Serve runs the server over the streams until ctx is canceled
// or the input is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.Run(ctx, &sdk.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

// Run runs the server over the transport
func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	logger.KV(xlog.INFO, "status", "mcp_serving", "tenant", s.tenant)
	return s.server.Run(ctx, transport)
}

// inputSchema returns the tool schema with the session argument
func inputSchema(t tools.ITool) (json.RawMessage, error) {
	b := []byte(`{"type":"object"}`)
	if params := t.Parameters(); params != nil {
		js, err := json.Marshal(params)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		b = js
	}
	if !gjson.GetBytes(b, "type").Exists() {
		b, _ = sjson.SetBytes(b, "type", "object")
	}
	b, err := sjson.SetBytes(b, "properties."+SessionArg, map[string]any{
		"type":        "string",
		"description": "Shopping session ID. The session of the connection is used when omitted.",
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

func (s *Server) sessionID(req *sdk.CallToolRequest, args []byte) string {
	if id := gjson.GetBytes(args, SessionArg).String(); id != "" {
		return id
	}
	if req.Session != nil {
		if id := req.Session.ID(); id != "" {
			return id
		}
	}
	return s.session
}

func (s *Server) toolHandler(t tools.ITool) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		args := []byte(req.Params.Arguments)
		if len(args) == 0 || string(args) == "null" {
			args = []byte("{}")
		}

		sessionID := s.sessionID(req, args)
		if gjson.GetBytes(args, SessionArg).Exists() {
			args, _ = sjson.DeleteBytes(args, SessionArg)
		}
		ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(s.tenant, sessionID, nil))

		started := time.Now()
		output, err := t.Call(ctx, string(args))
		metricskey.PerfToolCall.MeasureSince(started, t.Name())
		if err != nil {
			metricskey.StatsToolCallsFailed.IncrCounter(1, t.Name())
			logger.ContextKV(ctx, xlog.ERROR,
				"tool", t.Name(),
				"session", sessionID,
				"err", err.Error(),
			)
			return &sdk.CallToolResult{
				Content: []sdk.Content{&sdk.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, t.Name())

		logger.ContextKV(ctx, xlog.DEBUG,
			"tool", t.Name(),
			"session", sessionID,
			"output", slices.StringUpto(output, 128),
		)
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: output}},
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
