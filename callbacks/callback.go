// Package callbacks provides the handlers of the assistant loop events:
// a console printer for the CLI, a package logger for the servers,
// a fanout, and the per-run scratchpad with statistics.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/effective-security/shopagent/assistants"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"sigs.k8s.io/yaml"
)

var (
	_ assistants.Callback = (*Printer)(nil)
	_ assistants.Callback = (*PackageLogger)(nil)
	_ assistants.Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault prints the events
	ModeDefault Mode = iota
	// ModeVerbose prints the events with the tool outputs and the responses
	ModeVerbose
)

// Fanout forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []assistants.Callback
}

func NewFanout(callbacks ...assistants.Callback) *Fanout {
	f := &Fanout{}
	for _, cb := range callbacks {
		f.Add(cb)
	}
	return f
}

// Add appends the callback, nil is ignored
func (l *Fanout) Add(callback assistants.Callback) {
	if callback != nil {
		l.callbacks = append(l.callbacks, callback)
	}
}

func (l *Fanout) OnAssistantStart(ctx context.Context, a assistants.IAssistant, input string) {
	for _, cb := range l.callbacks {
		cb.OnAssistantStart(ctx, a, input)
	}
}

func (l *Fanout) OnAssistantEnd(ctx context.Context, a assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	for _, cb := range l.callbacks {
		cb.OnAssistantEnd(ctx, a, input, resp, messages)
	}
}

func (l *Fanout) OnAssistantError(ctx context.Context, a assistants.IAssistant, input string, err error, messages []llms.Message) {
	for _, cb := range l.callbacks {
		cb.OnAssistantError(ctx, a, input, err, messages)
	}
}

func (l *Fanout) OnAssistantLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	for _, cb := range l.callbacks {
		cb.OnAssistantLLMCallStart(ctx, a, llm, payload)
	}
}

func (l *Fanout) OnAssistantLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	for _, cb := range l.callbacks {
		cb.OnAssistantLLMCallEnd(ctx, a, llm, resp)
	}
}

func (l *Fanout) OnAssistantLLMParseError(ctx context.Context, a assistants.IAssistant, input string, response string, err error) {
	for _, cb := range l.callbacks {
		cb.OnAssistantLLMParseError(ctx, a, input, response, err)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	for _, cb := range l.callbacks {
		cb.OnToolStart(ctx, tool, assistantName, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	for _, cb := range l.callbacks {
		cb.OnToolEnd(ctx, tool, assistantName, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	for _, cb := range l.callbacks {
		cb.OnToolError(ctx, tool, assistantName, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, a assistants.IAssistant, tool string) {
	for _, cb := range l.callbacks {
		cb.OnToolNotFound(ctx, a, tool)
	}
}

// Printer writes the events to the Writer, it is used by the CLI.
// In verbose mode the tool outputs are rendered as YAML.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) printf(format string, args ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, format, args...)
}

func (l *Printer) OnAssistantStart(_ context.Context, a assistants.IAssistant, input string) {
	l.printf("Assistant Start: %s\nInput: %s\n", a.Name(), input)
}

func (l *Printer) OnAssistantEnd(_ context.Context, a assistants.IAssistant, _ string, resp *llms.ContentResponse, _ []llms.Message) {
	l.printf("Assistant End: %s\n", a.Name())
	if l.Mode == ModeVerbose && resp != nil {
		for _, choice := range resp.Choices {
			if choice.Content != "" {
				l.printf("%s\n", choice.Content)
			}
		}
	}
}

func (l *Printer) OnAssistantError(_ context.Context, a assistants.IAssistant, _ string, err error, _ []llms.Message) {
	l.printf("Assistant Error: %s: %s\n", a.Name(), err.Error())
}

func (l *Printer) OnAssistantLLMCallStart(_ context.Context, a assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	l.printf("LLM Call: %s: %s model, %d messages\n", a.Name(), llm.GetName(), len(payload))
}

func (l *Printer) OnAssistantLLMCallEnd(_ context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	l.printf("LLM Call End: %s: %s model, %d tool calls\n", a.Name(), llm.GetName(), len(resp.GetToolCalls()))
}

func (l *Printer) OnAssistantLLMParseError(_ context.Context, a assistants.IAssistant, _ string, response string, err error) {
	l.printf("Assistant LLM Parse Error: %s: %s\nResponse: %s\n", a.Name(), err.Error(), slices.StringUpto(response, 512))
}

func (l *Printer) OnToolStart(_ context.Context, tool tools.ITool, _ string, input string) {
	l.printf("Tool Start: %s %s\n", tool.Name(), input)
}

func (l *Printer) OnToolEnd(_ context.Context, tool tools.ITool, _ string, _ string, output string) {
	if l.Mode != ModeVerbose {
		l.printf("Tool End: %s\n", tool.Name())
		return
	}
	l.printf("Tool End: %s\n%s\n", tool.Name(), toYAML(output))
}

func (l *Printer) OnToolError(_ context.Context, tool tools.ITool, _ string, _ string, err error) {
	l.printf("Tool Error: %s: %s\n", tool.Name(), err.Error())
}

func (l *Printer) OnToolNotFound(_ context.Context, _ assistants.IAssistant, tool string) {
	l.printf("Tool Not Found: %s\n", tool)
}

// toYAML renders the JSON output of a tool,
// the output that is not JSON is returned as is.
func toYAML(output string) string {
	y, err := yaml.JSONToYAML([]byte(output))
	if err != nil {
		return output
	}
	return strings.TrimRight(string(y), "\n")
}

// PackageLogger writes the events to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnAssistantStart(ctx context.Context, a assistants.IAssistant, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_start",
		"assistant", a.Name(),
		"input", slices.StringUpto(input, 128),
	)
}

func (l *PackageLogger) OnAssistantEnd(ctx context.Context, a assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	in, out := resp.GetUsage()
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_end",
		"assistant", a.Name(),
		"messages", len(messages),
		"input_tokens", in,
		"output_tokens", out,
	)
}

func (l *PackageLogger) OnAssistantError(ctx context.Context, a assistants.IAssistant, _ string, err error, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "assistant_error",
		"assistant", a.Name(),
		"messages", len(messages),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnAssistantLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"assistant", a.Name(),
		"model", llm.GetName(),
		"messages", len(payload),
	)
}

func (l *PackageLogger) OnAssistantLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"assistant", a.Name(),
		"model", llm.GetName(),
		"tool_calls", len(resp.GetToolCalls()),
	)
}

func (l *PackageLogger) OnAssistantLLMParseError(ctx context.Context, a assistants.IAssistant, _ string, response string, err error) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "llm_parse_error",
		"assistant", a.Name(),
		"err", err.Error(),
		"response", slices.StringUpto(response, 256),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"assistant", assistantName,
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"assistant", assistantName,
		"tool", tool.Name(),
		"output", slices.StringUpto(output, 256),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"assistant", assistantName,
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, a assistants.IAssistant, tool string) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"assistant", a.Name(),
		"tool", tool,
	)
}
