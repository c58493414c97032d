package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type entry struct {
	Summary string `json:"summary"`
}

func newStore(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb, NewRedisStore(rdb, "mp:", zap.NewNop())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "email:abc:full_analysis", Key("abc", OpFullAnalysis))
	assert.Equal(t, "email:abc:summary", Key("abc", OpSummary))
}

func TestRedisStore_SetGetWithTTL(t *testing.T) {
	mr, _, s := newStore(t)
	ctx := context.Background()

	require.True(t, s.Set(ctx, Key("m1", OpSummary), entry{Summary: "hi"}, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("mp:email:m1:summary"))

	var got entry
	require.True(t, s.Get(ctx, Key("m1", OpSummary), &got))
	assert.Equal(t, "hi", got.Summary)

	mr.FastForward(time.Hour + time.Second)
	assert.False(t, s.Get(ctx, Key("m1", OpSummary), &got))
}

func TestRedisStore_MissAndDelete(t *testing.T) {
	_, _, s := newStore(t)
	ctx := context.Background()

	var got entry
	assert.False(t, s.Get(ctx, "nope", &got))

	require.True(t, s.Set(ctx, "k", entry{Summary: "x"}, time.Minute))
	require.True(t, s.Delete(ctx, "k"))
	assert.False(t, s.Get(ctx, "k", &got))
}

func TestRedisStore_UndecodableIsMiss(t *testing.T) {
	mr, _, s := newStore(t)
	require.NoError(t, mr.Set("mp:k", "{not json"))

	var got entry
	assert.False(t, s.Get(context.Background(), "k", &got))
}

func TestRedisStore_FlushAllOnlyOwnPrefix(t *testing.T) {
	mr, _, s := newStore(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "keep"))
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, s.Set(ctx, Key(id, OpFullAnalysis), entry{}, time.Hour))
	}

	st := s.Stats(ctx)
	assert.True(t, st.Available)
	assert.Equal(t, int64(3), st.Keys)

	require.True(t, s.FlushAll(ctx))
	assert.Equal(t, int64(0), s.Stats(ctx).Keys)
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisStore_FailsSoftWhenDown(t *testing.T) {
	mr, _, s := newStore(t)
	mr.Close()
	ctx := context.Background()

	var got entry
	assert.False(t, s.Get(ctx, "k", &got))
	assert.False(t, s.Set(ctx, "k", entry{}, time.Minute))
	assert.False(t, s.Delete(ctx, "k"))
	assert.False(t, s.FlushAll(ctx))
	assert.False(t, s.Stats(ctx).Available)
}
