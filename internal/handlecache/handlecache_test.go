package handlecache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, c Cache, user string) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, user, "1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Put(ctx, user, "1", "users/u/tasks/a"))
	h, ok, err := c.Get(ctx, user, "1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "users/u/tasks/a", h)

	require.NoError(t, c.Replace(ctx, user, map[string]string{"2": "users/u/tasks/b"}))
	_, ok, _ = c.Get(ctx, user, "1")
	require.False(t, ok, "replace drops previous entries")
	h, ok, _ = c.Get(ctx, user, "2")
	require.True(t, ok)
	require.Equal(t, "users/u/tasks/b", h)

	_, ok, _ = c.Get(ctx, user+"-other", "2")
	require.False(t, ok, "entries are per user")

	require.NoError(t, c.Delete(ctx, user, "2"))
	_, ok, _ = c.Get(ctx, user, "2")
	require.False(t, ok)

	require.NoError(t, c.Replace(ctx, user, nil))
}

func TestMemory(t *testing.T) {
	t.Parallel()
	exercise(t, NewMemory(), "u1")
}

func TestMemory_ReplaceCopiesInput(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	in := map[string]string{"1": "h1"}
	require.NoError(t, m.Replace(context.Background(), "u", in))
	in["1"] = "changed"
	h, _, _ := m.Get(context.Background(), "u", "1")
	require.Equal(t, "h1", h)
}

// Requires a Redis server; set TASKKEEPER_TEST_REDIS_ADDR (e.g. localhost:6379).
func TestRedis(t *testing.T) {
	addr := os.Getenv("TASKKEEPER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TASKKEEPER_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	c := NewRedis(client, "taskkeeper:test:", time.Minute)
	user := "u-" + time.Now().Format("150405.000000")
	defer client.Del(context.Background(), c.key(user))
	exercise(t, c, user)
}
