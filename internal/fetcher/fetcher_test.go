package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/fetcher"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/retry"
)

func fastRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Sleep = func(context.Context, time.Duration) error { return nil }
	return cfg
}

func TestHTTPFetcher_SendsHeadersAndFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://example.com/", r.Header.Get("Referer"))
		_, _ = w.Write([]byte("<html>ok</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetcher.New(fetcher.Config{UserAgent: "test-agent", Retry: fastRetry()}, nil, logger.NewNop())
	resp, err := f.Fetch(context.Background(), srv.URL+"/old", map[string]string{"Referer": "https://example.com/"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, srv.URL+"/new", resp.URL)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("third time"))
	}))
	defer srv.Close()

	f := fetcher.New(fetcher.Config{Retry: fastRetry()}, nil, logger.NewNop())
	resp, err := f.Fetch(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, "third time", string(resp.Body))
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPFetcher_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := fetcher.New(fetcher.Config{Retry: fastRetry()}, nil, logger.NewNop())
	_, err := f.Fetch(context.Background(), srv.URL, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}
