package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ounols/jekyll-news/internal/store"
)

func TestFileStore_WriteAtomicNeverOverwrites(t *testing.T) {
	t.Parallel()

	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "_posts"))
	require.NoError(t, err)

	name := "2026-01-02-nvidia.md"
	require.NoError(t, s.WriteAtomic(name, []byte("first")))

	err = s.WriteAtomic(name, []byte("second"))
	require.ErrorIs(t, err, store.ErrExists)

	data, err := os.ReadFile(s.Path(name))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	exists, err := s.Exists(name)
	require.NoError(t, err)
	assert.True(t, exists)

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names, "temp files are cleaned up")
}

func TestFileStore_InvalidName(t *testing.T) {
	t.Parallel()

	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.md", "sub/dir.md", ".hidden.md"} {
		err := s.WriteAtomic(name, []byte("x"))
		assert.ErrorIs(t, err, store.ErrInvalidName, name)
	}
}

func TestFileStore_List(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.WriteAtomic("b.md", []byte("b")))
	require.NoError(t, s.WriteAtomic("a.md", []byte("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts.md"), 0o755))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, names)
}

func TestParseMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		post string
		want string
	}{
		{
			name: "yaml front matter",
			post: "---\nlayout: post\ntitle: \"엔비디아\"\narticle_id: \"investing-123\"\n---\nbody\narticle_id: other\n",
			want: "investing-123",
		},
		{
			name: "numeric id",
			post: "---\narticle_id: 4567\n---\n",
			want: "4567",
		},
		{
			name: "no marker",
			post: "---\ntitle: hello\n---\nbody",
			want: "",
		},
		{
			name: "no front matter",
			post: "article_id: 1\n",
			want: "",
		},
		{
			name: "broken yaml falls back to line match",
			post: "---\ntitle: [unclosed\narticle_id: 'cnbc/2026-01-02/slug'\n---\n",
			want: "cnbc/2026-01-02/slug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := store.ParseMarker(strings.NewReader(tt.post))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileStore_ReadHeader(t *testing.T) {
	t.Parallel()

	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.WriteAtomic("p.md", []byte("---\narticle_id: abc\n---\n")))

	marker, err := s.ReadHeader("p.md")
	require.NoError(t, err)
	assert.Equal(t, "abc", marker)

	_, err = s.ReadHeader("missing.md")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
