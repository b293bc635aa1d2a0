package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MemoryStore(t *testing.T) {
	testMessageStore(t, store.NewMemoryStore())
}

func Test_MemorySessionStore(t *testing.T) {
	testSessionStore(t, store.NewMemorySessionStore(time.Hour))
}

func Test_MemorySessionStore_TTL(t *testing.T) {
	st := store.NewMemorySessionStore(time.Hour)
	now := time.Now()
	store.SetSessionClock(st, func() time.Time { return now })

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("t1", "c1", nil))
	s, err := st.Load(ctx)
	require.NoError(t, err)
	_, err = s.Cart.Add(&shop.Product{ID: "P1", Name: "Widget", Price: 1, Stock: 5}, 2)
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, s))

	now = now.Add(59 * time.Minute)
	s, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Cart.Units())

	now = now.Add(2 * time.Minute)
	s, err = st.Load(ctx)
	require.NoError(t, err)
	assert.True(t, s.Cart.IsEmpty())
	assert.Equal(t, "c1", s.ChatID)
}

func testMessageStore(t *testing.T, st store.MessageStore) {
	tenantID := "tenant1"
	chatID := "chat1"
	appData := map[string]string{"key": "value"}
	msg1 := llms.MessageFromTextParts(llms.RoleHuman, "Hello")
	msg2 := llms.MessageFromTextParts(llms.RoleAI, "Hi there!")

	ctx := context.Background()
	expErr := "invalid chat context"
	assert.EqualError(t, st.Reset(ctx), expErr)
	assert.EqualError(t, st.Add(ctx, msg1), expErr)
	assert.EqualError(t, st.UpdateChat(ctx, "", nil), expErr)
	_, err := st.ListChats(ctx)
	assert.EqualError(t, err, expErr)
	_, err = st.GetChatInfo(ctx, "")
	assert.EqualError(t, err, expErr)
	assert.Empty(t, st.Messages(ctx))

	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(tenantID, chatID, appData))

	require.NoError(t, st.Add(ctx, msg1))
	require.NoError(t, st.Add(ctx, msg2))

	messages := st.Messages(ctx)
	require.Len(t, messages, 2)
	assert.Equal(t, llms.RoleHuman, messages[0].Role)
	assert.Equal(t, "Hello\n", messages[0].GetContent())
	assert.Equal(t, "Hi there!\n", messages[1].GetContent())

	chi, err := st.GetChatInfo(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, tenantID, chi.TenantID)
	assert.Equal(t, chatID, chi.ChatID)
	assert.Equal(t, "New Chat", chi.Title)
	assert.Len(t, chi.Messages, 2)

	require.NoError(t, st.UpdateChat(ctx, "Shopping", map[string]any{"k": "v"}))
	chi, err = st.GetChatInfo(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping", chi.Title)
	assert.Equal(t, "v", chi.Metadata["k"])

	// another chat of the same tenant
	ctx2 := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext(tenantID, "chat2", nil))
	require.NoError(t, st.Add(ctx2, msg1))
	assert.Len(t, st.Messages(ctx2), 1)
	assert.Len(t, st.Messages(ctx), 2)

	// other tenant does not see the chats
	ctx3 := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("tenant2", chatID, nil))
	assert.Empty(t, st.Messages(ctx3))

	list, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chat1", "chat2"}, list)

	// history is trimmed
	for i := 0; i < store.MaxMessages+5; i++ {
		require.NoError(t, st.Add(ctx2, llms.MessageFromTextParts(llms.RoleHuman, fmt.Sprintf("m%d", i))))
	}
	messages = st.Messages(ctx2)
	require.Len(t, messages, store.MaxMessages)
	assert.Equal(t, "m5\n", messages[0].GetContent())
	assert.Equal(t, fmt.Sprintf("m%d\n", store.MaxMessages+4), messages[len(messages)-1].GetContent())

	require.NoError(t, st.Reset(ctx))
	assert.Empty(t, st.Messages(ctx))
	list, err = st.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat2"}, list)
}

func testSessionStore(t *testing.T, st store.SessionStore) {
	ctx := context.Background()
	expErr := "invalid chat context"
	_, err := st.Load(ctx)
	assert.EqualError(t, err, expErr)
	assert.EqualError(t, st.Save(ctx, shop.NewSession("x")), expErr)
	assert.EqualError(t, st.Reset(ctx), expErr)

	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("tenant1", "chat1", nil))
	s, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat1", s.ChatID)
	assert.True(t, s.Cart.IsEmpty())

	catalog := shop.DefaultCatalog()
	mouse, _ := catalog.Get("MOU002")
	_, err = s.Cart.Add(mouse, 2)
	require.NoError(t, err)
	_, err = s.Cart.ApplyDiscount(shop.DefaultPricing(), "welcome10")
	require.NoError(t, err)
	s.RecordSearch("mouse")
	require.NoError(t, st.Save(ctx, s))

	// changes after Save are not visible until saved again
	_, err = s.Cart.Add(mouse, 1)
	require.NoError(t, err)

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Cart.Units())
	assert.Equal(t, "WELCOME10", got.Cart.DiscountCode)
	assert.Equal(t, []string{"mouse"}, got.SearchHistory)
	assert.False(t, got.UpdatedAt.IsZero())

	// sessions are isolated per chat
	ctx2 := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("tenant1", "chat2", nil))
	other, err := st.Load(ctx2)
	require.NoError(t, err)
	assert.True(t, other.Cart.IsEmpty())

	require.NoError(t, st.Reset(ctx))
	got, err = st.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Cart.IsEmpty())
	assert.Empty(t, got.SearchHistory)
}

func Test_Open(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, s.Messages)
	require.NotNil(t, s.Sessions)
	assert.NoError(t, s.Close())

	_, err = store.Open(ctx, &store.Config{Type: "bolt"})
	assert.EqualError(t, err, "unsupported store type: bolt")
	_, err = store.Open(ctx, &store.Config{Type: "redis"})
	assert.EqualError(t, err, "redis store requires URL")
	_, err = store.Open(ctx, &store.Config{TTL: "forever"})
	assert.ErrorContains(t, err, `invalid store TTL "forever"`)
	_, err = store.Open(ctx, &store.Config{TTL: "-1h"})
	assert.EqualError(t, err, `invalid store TTL "-1h": must be positive`)

	cfg := &store.Config{TTL: "30m"}
	ttl, err := cfg.GetTTL()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, ttl)
}
