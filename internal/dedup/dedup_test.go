package dedup_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ounols/jekyll-news/internal/dedup"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/store"
)

func newTracker(t *testing.T, ttl time.Duration) (*dedup.Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := dedup.NewRedisClient(context.Background(), dedup.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return dedup.NewTracker(client, ttl, logger.NewNop()), mr
}

func TestTracker_MarkAndHas(t *testing.T) {
	t.Parallel()

	tr, mr := newTracker(t, time.Hour)
	ctx := context.Background()

	assert.False(t, tr.Has(ctx, "investing-1"))
	require.NoError(t, tr.Mark(ctx, "investing-1"))
	assert.True(t, tr.Has(ctx, "investing-1"))
	assert.True(t, mr.Exists("posted:article:investing-1"))

	mr.FastForward(2 * time.Hour)
	assert.False(t, tr.Has(ctx, "investing-1"), "key expires after ttl")
}

func TestTracker_ClearAndFlush(t *testing.T) {
	t.Parallel()

	tr, mr := newTracker(t, 0)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, tr.Mark(ctx, k))
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, tr.Clear(ctx, "a"))
	assert.False(t, tr.Has(ctx, "a"))

	n, err := tr.FlushAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, tr.Has(ctx, "b"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestTracker_RedisDownIsNotPublished(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tr := dedup.NewTracker(client, 0, logger.NewNop())

	mr.Close()

	assert.False(t, tr.Has(context.Background(), "x"))
	assert.Error(t, tr.Mark(context.Background(), "x"))
}

func TestNewRedisClient_Errors(t *testing.T) {
	t.Parallel()

	_, err := dedup.NewRedisClient(context.Background(), dedup.RedisConfig{})
	assert.ErrorIs(t, err, dedup.ErrEmptyAddress)

	_, err = dedup.NewRedisClient(context.Background(), dedup.RedisConfig{Address: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestLoad_FromStore(t *testing.T) {
	t.Parallel()

	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.WriteAtomic("2026-01-01-a.md", []byte("---\narticle_id: investing-1\n---\n")))
	require.NoError(t, s.WriteAtomic("2026-01-01-b.md", []byte("---\ntitle: no marker\n---\n")))

	idx, err := dedup.Load(s, logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, idx.Has(ctx, "investing-1"))
	assert.False(t, idx.Has(ctx, "investing-2"))
	assert.Equal(t, 1, idx.Len())

	file, ok := idx.File("investing-1")
	assert.True(t, ok)
	assert.Equal(t, "2026-01-01-a.md", file)

	require.NoError(t, idx.Mark(ctx, "investing-2"))
	assert.True(t, idx.Has(ctx, "investing-2"))
	_, ok = idx.File("investing-2")
	assert.False(t, ok)
}

func TestChain(t *testing.T) {
	t.Parallel()

	tr, _ := newTracker(t, 0)
	mem := dedup.NewMemory()
	chain := dedup.Chain{mem, tr}
	ctx := context.Background()

	require.NoError(t, tr.Mark(ctx, "from-redis"))
	assert.True(t, chain.Has(ctx, "from-redis"))
	assert.False(t, chain.Has(ctx, "new"))

	require.NoError(t, chain.Mark(ctx, "new"))
	assert.True(t, mem.Has(ctx, "new"))
	assert.True(t, tr.Has(ctx, "new"))
}
