package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) (*redis.Client, string) {
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7",
		testcontainers.WithConfigModifier(func(config *container.Config) {
			config.Env = []string{
				"ALLOW_EMPTY_PASSWORD=yes",
				"REDIS_PASSWORD=redis",
				"REDIS_TLS_PORT=16379",
			}
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, redisContainer.Terminate(ctx))
	})

	state, err := redisContainer.State(ctx)
	require.NoError(t, err)
	require.True(t, state.Running)

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)
	t.Cleanup(func() {
		_ = client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err(), "failed to connect to Redis")

	return client, host
}

func Test_RedisStore(t *testing.T) {
	client, host := startRedis(t)
	root := fmt.Sprintf("test-%d", time.Now().Unix())

	t.Run("messages", func(t *testing.T) {
		testMessageStore(t, store.NewRedisStore(client, root))
	})

	t.Run("sessions", func(t *testing.T) {
		testSessionStore(t, store.NewRedisSessionStore(client, root, time.Hour))
	})

	t.Run("keys", func(t *testing.T) {
		ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("tenant9", "chat9", nil))
		st := store.NewRedisSessionStore(client, root, time.Minute)
		require.NoError(t, st.Save(ctx, shop.NewSession("")))

		key := root + "/shopstore/tenant9/session/chat9"
		ttl, err := client.TTL(ctx, key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)

		ms := store.NewRedisStore(client, root)
		require.NoError(t, ms.UpdateChat(ctx, "Cart", nil))
		n, err := client.Exists(ctx, root+"/chatstore/tenant9/info/chat9").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("open", func(t *testing.T) {
		ctx := context.Background()
		s, err := store.Open(ctx, &store.Config{Type: "redis", URL: host, Prefix: root, TTL: "10m"})
		require.NoError(t, err)
		defer s.Close()

		ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("tenant1", "open1", nil))
		sess, err := s.Sessions.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "open1", sess.ChatID)

		_, err = store.Open(context.Background(), &store.Config{Type: "redis", URL: "http://bad"})
		assert.ErrorContains(t, err, "invalid redis URL")
	})
}
