package store

import (
	"context"
	"encoding/json"
	"maps"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/shop"
)

type memoryChat struct {
	info     ChatInfo
	messages []llms.Message
}

type inMemory struct {
	mu    sync.RWMutex
	chats map[string]*memoryChat
}

// NewMemoryStore returns MessageStore that keeps the history in memory
func NewMemoryStore() MessageStore {
	return &inMemory{
		chats: make(map[string]*memoryChat),
	}
}

func chatKey(tenantID, chatID string) string {
	return path.Join(tenantID, chatID)
}

func (m *inMemory) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.chats[chatKey(tenantID, chatID)]; c != nil {
		return append([]llms.Message(nil), c.messages...)
	}
	return nil
}

func (m *inMemory) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(tenantID, chatID)
	c.messages = trimMessages(append(c.messages, msgs...))
	c.info.UpdatedAt = time.Now()
	return nil
}

// getOrCreate must be called under the lock
func (m *inMemory) getOrCreate(tenantID, chatID string) *memoryChat {
	key := chatKey(tenantID, chatID)
	c := m.chats[key]
	if c == nil {
		now := time.Now()
		c = &memoryChat{
			info: ChatInfo{
				TenantID:  tenantID,
				ChatID:    chatID,
				Title:     "New Chat",
				CreatedAt: now,
				UpdatedAt: now,
				Metadata:  make(map[string]any),
			},
		}
		m.chats[key] = c
	}
	return c
}

func (m *inMemory) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chatKey(tenantID, chatID))
	return nil
}

func (m *inMemory) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(tenantID, chatID)
	if title != "" {
		c.info.Title = title
	}
	maps.Copy(c.info.Metadata, metadata)
	c.info.UpdatedAt = time.Now()
	return nil
}

func (m *inMemory) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []string
	for _, c := range m.chats {
		if c.info.TenantID == tenantID {
			list = append(list, c.info.ChatID)
		}
	}
	sort.Strings(list)
	return list, nil
}

func (m *inMemory) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(tenantID, id)
	info := c.info
	info.Metadata = maps.Clone(c.info.Metadata)
	info.Messages = append([]llms.Message(nil), c.messages...)
	return &info, nil
}

type sessionEntry struct {
	data    []byte
	expires time.Time
}

type memorySessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]sessionEntry
	now      func() time.Time
}

// NewMemorySessionStore returns SessionStore that keeps the sessions in memory,
// expired sessions are removed on access.
func NewMemorySessionStore(ttl time.Duration) SessionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memorySessions{
		ttl:      ttl,
		sessions: make(map[string]sessionEntry),
		now:      time.Now,
	}
}

func (m *memorySessions) Load(ctx context.Context) (*shop.Session, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	e, ok := m.sessions[chatKey(tenantID, chatID)]
	if ok && !m.now().Before(e.expires) {
		delete(m.sessions, chatKey(tenantID, chatID))
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return shop.NewSession(chatID), nil
	}
	s := new(shop.Session)
	if err := json.Unmarshal(e.data, s); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session")
	}
	return s, nil
}

func (m *memorySessions) Save(ctx context.Context, s *shop.Session) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	s.ChatID = chatID
	s.Touch()
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sessions[chatKey(tenantID, chatID)] = sessionEntry{
		data:    data,
		expires: now.Add(m.ttl),
	}
	m.cleanup(now)
	return nil
}

// cleanup must be called under the lock
func (m *memorySessions) cleanup(now time.Time) {
	for k, e := range m.sessions {
		if !now.Before(e.expires) {
			delete(m.sessions, k)
		}
	}
}

func (m *memorySessions) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatKey(tenantID, chatID))
	return nil
}
