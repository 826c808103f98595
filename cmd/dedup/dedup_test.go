package dedup_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmdcommon "github.com/ounols/jekyll-news/cmd/common"
	"github.com/ounols/jekyll-news/cmd/dedup"
	"github.com/ounols/jekyll-news/internal/config"
)

const post = "---\nlayout: post\narticle_id: inv-1\n---\n\nbody\n"

func newApp(t *testing.T, redisAddr string) *cmdcommon.App {
	t.Helper()

	dir := t.TempDir()
	posts := filepath.Join(dir, "_posts")
	require.NoError(t, os.MkdirAll(posts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(posts, "2026-03-04-nvidia.md"), []byte(post), 0o644))

	cfg := config.Default()
	cfg.Publisher.OutputDir = posts
	cfg.Catalog.CachePath = ""
	cfg.SourcesFile = filepath.Join(dir, "sources.yml")
	if redisAddr != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Address = redisAddr
	}

	app, err := cmdcommon.NewApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestStatusAndLookup(t *testing.T) {
	t.Parallel()

	app := newApp(t, "")

	var buf bytes.Buffer
	dedup.Status(app, &buf)
	assert.Contains(t, buf.String(), "marked:    1")
	assert.Contains(t, buf.String(), "redis:     off")

	buf.Reset()
	dedup.Lookup(context.Background(), app, &buf, "inv-1")
	assert.Contains(t, buf.String(), "file:  2026-03-04-nvidia.md")

	buf.Reset()
	dedup.Lookup(context.Background(), app, &buf, "inv-2")
	assert.Contains(t, buf.String(), "file:  -")
}

func TestClearAndFlush(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	app := newApp(t, mr.Addr())
	ctx := context.Background()
	require.NotNil(t, app.Tracker)

	require.NoError(t, app.Tracker.Mark(ctx, "inv-1"))
	require.NoError(t, app.Tracker.Mark(ctx, "inv-2"))
	require.NoError(t, app.Tracker.Mark(ctx, "inv-3"))
	require.NoError(t, mr.Set("unrelated", "keep"))

	var buf bytes.Buffer
	dedup.Lookup(ctx, app, &buf, "inv-2")
	assert.Contains(t, buf.String(), "redis: true")

	buf.Reset()
	require.NoError(t, dedup.Clear(ctx, app, &buf, "inv-2"))
	assert.False(t, mr.Exists("posted:article:inv-2"))

	buf.Reset()
	require.NoError(t, dedup.Flush(ctx, app, &buf))
	assert.Contains(t, buf.String(), "deleted 2 keys")
	assert.True(t, mr.Exists("unrelated"))
}

func TestRedisCommandsNeedRedis(t *testing.T) {
	t.Parallel()

	app := newApp(t, "")
	var buf bytes.Buffer

	require.ErrorIs(t, dedup.Flush(context.Background(), app, &buf), cmdcommon.ErrRedisUnavailable)
	require.ErrorIs(t, dedup.Clear(context.Background(), app, &buf, "inv-1"), cmdcommon.ErrRedisUnavailable)
}
