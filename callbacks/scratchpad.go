package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/effective-security/shopagent/assistants"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/llmutils"
	"github.com/effective-security/shopagent/tools"
)

var _ assistants.Callback = (*Scratchpad)(nil)

// TimeNowFn is used for the transcript timestamps
var TimeNowFn = time.Now

// RunStats are the counters of a chat run
type RunStats struct {
	ChatID string
	RunID  string

	Duration         time.Duration
	LLMCalls         uint32
	MessagesSent     uint32
	LLMBytesOut      uint64
	LLMBytesIn       uint64
	LLMInputTokens   uint64
	LLMOutputTokens  uint64
	AssistantFailed  uint32
	ParseErrors      uint32
	ToolCalls        uint32
	ToolCallsFailed  uint32
	ToolsNotFound    uint32
	ToolCallsPerName map[string]uint32
}

// Scratchpad records the transcript and the statistics of the runs,
// a run is keyed by the chat ID of the context.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// StartRun starts recording the chat of the context
func (l *Scratchpad) StartRun(ctx context.Context) {
	chatCtx := chatmodel.GetChatContext(ctx)
	if chatCtx == nil {
		return
	}

	r := &run{
		stats: RunStats{
			ChatID:           chatCtx.GetChatID(),
			RunID:            chatCtx.RunID(),
			ToolCallsPerName: make(map[string]uint32),
		},
		chatCtx: chatCtx,
		started: TimeNowFn(),
	}

	l.lock.Lock()
	l.runs[chatCtx.GetChatID()] = r
	l.lock.Unlock()

	r.print("*** Run Started ***")
}

// EndRun stops recording and returns the statistics and the transcript
func (l *Scratchpad) EndRun(ctx context.Context) (*RunStats, []byte) {
	r := l.getRun(ctx)
	if r == nil {
		return nil, nil
	}

	l.lock.Lock()
	delete(l.runs, r.chatCtx.GetChatID())
	l.lock.Unlock()

	r.update(func(s *RunStats) {
		s.Duration = TimeNowFn().Sub(r.started)
	})
	stats := r.snapshot()

	r.print(fmt.Sprintf("LLM calls: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Input Tokens: %d, Output Tokens: %d",
		stats.LLMCalls, stats.MessagesSent, stats.LLMBytesOut, stats.LLMBytesIn, stats.LLMInputTokens, stats.LLMOutputTokens))
	r.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d", stats.ToolCalls, stats.ToolCallsFailed, stats.ToolsNotFound))
	if len(stats.ToolCallsPerName) > 0 {
		names := make([]string, 0, len(stats.ToolCallsPerName))
		for name := range stats.ToolCallsPerName {
			names = append(names, name)
		}
		sort.Strings(names)
		var sb strings.Builder
		for i, name := range names {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%d", name, stats.ToolCallsPerName[name])
		}
		r.print("Tools:", sb.String())
	}
	r.print(fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	return stats, r.bytes()
}

func (l *Scratchpad) getRun(ctx context.Context) *run {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[chatID]
}

func (l *Scratchpad) OnAssistantStart(ctx context.Context, a assistants.IAssistant, input string) {
	if r := l.getRun(ctx); r != nil {
		r.print(a.Name(), "*** Assistant Start ***", "Input:", input)
	}
}

func (l *Scratchpad) OnAssistantEnd(ctx context.Context, a assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	if l.mode == ModeVerbose {
		for _, choice := range resp.Choices {
			if choice.Content != "" {
				r.print(a.Name(), "Output:", choice.Content)
			}
		}
		r.print(a.Name(), printMessages(messages))
	}
	r.print(a.Name(), "*** Assistant End ***")
}

func (l *Scratchpad) OnAssistantError(ctx context.Context, a assistants.IAssistant, _ string, err error, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) { s.AssistantFailed++ })
	r.print(a.Name(), "*** Error ***", err.Error())
	r.print(a.Name(), printMessages(messages))
}

func (l *Scratchpad) OnAssistantLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) {
		s.LLMCalls++
		s.MessagesSent += uint32(len(payload))
		s.LLMBytesOut += llmutils.CountMessagesContentSize(payload)
	})
	r.print(a.Name(), "*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), len(payload)))
}

func (l *Scratchpad) OnAssistantLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
	r.update(func(s *RunStats) {
		s.LLMBytesIn += llmutils.CountResponseContentSize(resp)
		s.LLMInputTokens += uint64(tokensIn)
		s.LLMOutputTokens += uint64(tokensOut)
	})
	r.print(a.Name(), "*** LLM Call End ***", fmt.Sprintf("%s model, %d input tokens, %d output tokens", llm.GetName(), tokensIn, tokensOut))
}

func (l *Scratchpad) OnAssistantLLMParseError(ctx context.Context, a assistants.IAssistant, _ string, response string, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) { s.ParseErrors++ })
	r.print(a.Name(), "*** LLM Parse Error ***", err.Error())
	r.print("Response:", response)
}

func (l *Scratchpad) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) {
		s.ToolCalls++
		s.ToolCallsPerName[tool.Name()]++
	})
	r.print(assistantName, tool.Name(), "*** Tool Start ***", "Input:", input)
}

func (l *Scratchpad) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	if l.mode == ModeVerbose {
		r.print(assistantName, tool.Name(), "Output:", output)
	}
	r.print(assistantName, tool.Name(), "*** Tool End ***")
}

func (l *Scratchpad) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) { s.ToolCallsFailed++ })
	r.print(assistantName, tool.Name(), "*** Tool Error ***", err.Error())
}

func (l *Scratchpad) OnToolNotFound(ctx context.Context, a assistants.IAssistant, tool string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) { s.ToolsNotFound++ })
	r.print(a.Name(), "*** Tool Not Found ***", tool)
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		texts, calls, responses := 0, 0, 0
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				texts++
			case llms.ToolCall:
				calls++
				fmt.Fprintf(&buf, "  - %s\n", typ.String())
			case llms.ToolCallResponse:
				responses++
				fmt.Fprintf(&buf, "  - %s\n", typ.String())
			}
		}
		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", texts, calls, responses)
	}
	return buf.String()
}

type run struct {
	chatCtx chatmodel.ChatContext
	started time.Time

	lock  sync.Mutex
	w     bytes.Buffer
	stats RunStats
}

func (r *run) update(fn func(s *RunStats)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	fn(&r.stats)
}

func (r *run) snapshot() *RunStats {
	r.lock.Lock()
	defer r.lock.Unlock()
	s := r.stats
	s.ToolCallsPerName = make(map[string]uint32, len(r.stats.ToolCallsPerName))
	for k, v := range r.stats.ToolCallsPerName {
		s.ToolCallsPerName[k] = v
	}
	return &s
}

func (r *run) bytes() []byte {
	r.lock.Lock()
	defer r.lock.Unlock()
	return bytes.Clone(r.w.Bytes())
}

// print writes the entries to the transcript:
// [timestamp chatID.runID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	fmt.Fprintf(&r.w, "%s %s.%s %s\n",
		TimeNowFn().Format("2006-01-02 15:04:05"),
		r.chatCtx.GetChatID(),
		r.chatCtx.RunID(),
		strings.Join(entries, " "),
	)
}
