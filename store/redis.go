package store

import (
	"context"
	"encoding/json"
	"maps"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis store implements the MessageStore interface using Redis as the backend.
// The keys namespace is organized as follows:
// - `<prefix>/chatstore/<tenantID>/messages/<chatID>` for storing chat messages
// - `<prefix>/chatstore/<tenantID>/info/<chatID>` for storing chat metadata
// - `<prefix>/chatstore/<tenantID>/chats` for storing a set of chat IDs associated with a tenant
// - `<prefix>/shopstore/<tenantID>/session/<chatID>` for storing the shopping session

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns MessageStore backed by Redis
func NewRedisStore(client *redis.Client, prefix string) MessageStore {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) getRedisMessagesKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "messages", chatID)
}

func (m *redisStore) getRedisChatInfoKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "info", chatID)
}

func (m *redisStore) getRedisChatListKey(tenantID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "chats")
}

func (m *redisStore) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "GetTenantAndChatID", "err", err.Error())
		return nil
	}

	key := m.getRedisMessagesKey(tenantID, chatID)
	data, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "GetRedisMessages", "err", err.Error())
		return nil
	}

	var messages []llms.Message
	for _, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal message", "err", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

func (m *redisStore) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		values = append(values, data)
	}

	key := m.getRedisMessagesKey(tenantID, chatID)
	pipe := m.client.Pipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -MaxMessages, -1)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store message in Redis")
	}

	// Update the time
	return m.UpdateChat(ctx, "", nil)
}

func (m *redisStore) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.getRedisMessagesKey(tenantID, chatID))
	pipe.Del(ctx, m.getRedisChatInfoKey(tenantID, chatID))
	pipe.SRem(ctx, m.getRedisChatListKey(tenantID), chatID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}
	return nil
}

// UpdateChat creates or updates a chat with the title, and metadata for a tenant and chat ID from context.
func (m *redisStore) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	_, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	chat, err := m.getChatInfo(ctx, chatID)
	if err != nil {
		return errors.Wrap(err, "failed to get chat info")
	}

	if title != "" {
		chat.Title = title
	}
	if metadata != nil {
		if chat.Metadata == nil {
			chat.Metadata = make(map[string]any)
		}
		maps.Copy(chat.Metadata, metadata)
	}
	chat.UpdatedAt = time.Now()

	return m.updateChat(ctx, chat, false)
}

func (m *redisStore) updateChat(ctx context.Context, chat *ChatInfo, isNew bool) error {
	chatData, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.getRedisChatInfoKey(chat.TenantID, chat.ChatID), chatData, 0)
	if isNew {
		pipe.SAdd(ctx, m.getRedisChatListKey(chat.TenantID), chat.ChatID)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store chat info in Redis")
	}
	return nil
}

func (m *redisStore) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	chatIDs, err := m.client.SMembers(ctx, m.getRedisChatListKey(tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	return chatIDs, nil
}

func (m *redisStore) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	info, err := m.getChatInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	info.Messages = m.Messages(chatContextFor(ctx, info.ChatID))
	return info, nil
}

// returns the chat information for a tenant and chat ID from context,
// without messages
func (m *redisStore) getChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	data, err := m.client.Get(ctx, m.getRedisChatInfoKey(tenantID, id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, errors.Wrap(err, "failed to get chat info from Redis")
		}
		now := time.Now()
		chat := &ChatInfo{
			TenantID:  tenantID,
			ChatID:    id,
			Title:     "New Chat",
			CreatedAt: now,
			UpdatedAt: now,
			Metadata:  make(map[string]any),
		}
		if err = m.updateChat(ctx, chat, true); err != nil {
			return nil, errors.Wrap(err, "failed to initialize new chat info")
		}
		return chat, nil
	}

	chat := &ChatInfo{}
	if err = json.Unmarshal([]byte(data), chat); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat, nil
}

// chatContextFor returns ctx when it refers to chatID,
// otherwise a child context for chatID of the same tenant.
func chatContextFor(ctx context.Context, chatID string) context.Context {
	cc := chatmodel.GetChatContext(ctx)
	if cc == nil || cc.GetChatID() == chatID {
		return ctx
	}
	return chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(cc.GetTenantID(), chatID, cc.AppData()))
}

type redisSessions struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore returns SessionStore backed by Redis,
// sessions are stored as JSON with the TTL.
func NewRedisSessionStore(client *redis.Client, prefix string, ttl time.Duration) SessionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisSessions{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (m *redisSessions) getRedisSessionKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "shopstore", tenantID, "session", chatID)
}

func (m *redisSessions) Load(ctx context.Context) (*shop.Session, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	data, err := m.client.Get(ctx, m.getRedisSessionKey(tenantID, chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shop.NewSession(chatID), nil
		}
		logger.ContextKV(ctx, xlog.ERROR, "reason", "GetRedisSession", "err", err.Error())
		return nil, errors.Wrap(err, "failed to get session from Redis")
	}

	s := new(shop.Session)
	if err = json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session")
	}
	return s, nil
}

func (m *redisSessions) Save(ctx context.Context, s *shop.Session) error {
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
	if err = m.client.Set(ctx, m.getRedisSessionKey(tenantID, chatID), data, m.ttl).Err(); err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "SetRedisSession", "err", err.Error())
		return errors.Wrap(err, "failed to store session in Redis")
	}
	return nil
}

func (m *redisSessions) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	if err = m.client.Del(ctx, m.getRedisSessionKey(tenantID, chatID)).Err(); err != nil {
		return errors.Wrap(err, "failed to reset session in Redis")
	}
	return nil
}
