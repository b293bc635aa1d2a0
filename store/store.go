package store

import (
	"context"
	"time"

	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent", "store")

// MaxMessages is the number of messages kept per chat
const MaxMessages = 50

// DefaultTTL is the lifetime of an idle session
const DefaultTTL = 24 * time.Hour

// MessageStore keeps the conversation history of the chat identified by the
// chat context in ctx.
type MessageStore interface {
	// Messages returns the history, or nil when the chat context is missing.
	Messages(ctx context.Context) []llms.Message
	// Add appends the messages, only the last MaxMessages are kept.
	Add(ctx context.Context, msgs ...llms.Message) error
	// Reset deletes the history and the chat info.
	Reset(ctx context.Context) error
	// UpdateChat creates or updates the chat info.
	UpdateChat(ctx context.Context, title string, metadata map[string]any) error
	// ListChats returns the chat IDs of the tenant.
	ListChats(ctx context.Context) ([]string, error)
	// GetChatInfo returns the chat info with messages,
	// empty id uses the chat ID of the context.
	GetChatInfo(ctx context.Context, id string) (*ChatInfo, error)
}

// SessionStore keeps the shopping session of the chat identified by the
// chat context in ctx. Sessions expire after the store TTL.
type SessionStore interface {
	// Load returns the session, a new session is returned when none is stored.
	Load(ctx context.Context) (*shop.Session, error)
	// Save stores the session and refreshes its TTL.
	Save(ctx context.Context, s *shop.Session) error
	// Reset deletes the session.
	Reset(ctx context.Context) error
}

// ChatInfo describes a chat
type ChatInfo struct {
	TenantID  string         `json:"tenant_id"`
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Messages  []llms.Message `json:"messages,omitempty"`
}

func trimMessages(msgs []llms.Message) []llms.Message {
	if over := len(msgs) - MaxMessages; over > 0 {
		return append([]llms.Message(nil), msgs[over:]...)
	}
	return msgs
}
