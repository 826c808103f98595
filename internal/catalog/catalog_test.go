package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ounols/jekyll-news/internal/catalog"
	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
)

const snapshotJSON = `{
  "tickers": {
    "NVDA": {"instrument_id": "6497"},
    "aapl": {"id": 6408, "exchange_id": 2},
    "TSLA": "13994",
    "MSFT": 252,
    "NASDAQ:AMD": {"instrument_id": 8274},
    "BROKEN": {"name": "no id"}
  }
}`

func TestParseSnapshot(t *testing.T) {
	t.Parallel()

	s, err := catalog.ParseSnapshot(strings.NewReader(snapshotJSON))
	require.NoError(t, err)

	tests := []struct {
		key      string
		id       string
		symbol   string
		exchange string
	}{
		{"NVDA", "6497", "NVDA", ""},
		{"AAPL", "6408", "AAPL", ""},
		{"tsla", "13994", "TSLA", ""},
		{"MSFT", "252", "MSFT", ""},
		{"NASDAQ:AMD", "8274", "AMD", "NASDAQ"},
	}
	for _, tt := range tests {
		rec, ok := s.Lookup(tt.key)
		require.True(t, ok, tt.key)
		assert.Equal(t, tt.id, rec.InstrumentID, tt.key)
		assert.Equal(t, tt.symbol, rec.Symbol, tt.key)
		assert.Equal(t, tt.exchange, rec.Exchange, tt.key)
	}

	aapl, _ := s.Lookup("AAPL")
	assert.Equal(t, "2", aapl.ExchangeID)

	_, ok := s.Lookup("BROKEN")
	assert.False(t, ok, "entries without an id are dropped")
	assert.Equal(t, 5, s.Len())
}

func TestParseSnapshot_Unwrapped(t *testing.T) {
	t.Parallel()

	s, err := catalog.ParseSnapshot(strings.NewReader(`{"KO": "8894"}`))
	require.NoError(t, err)
	rec, ok := s.Lookup("KO")
	require.True(t, ok)
	assert.Equal(t, "8894", rec.InstrumentID)
}

func TestParseSnapshot_Malformed(t *testing.T) {
	t.Parallel()

	_, err := catalog.ParseSnapshot(strings.NewReader(`[1,2]`))
	assert.ErrorIs(t, err, catalog.ErrMalformedSnapshot)
}

func TestLoadSnapshot_Degrades(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := catalog.LoadSnapshot(filepath.Join(dir, "missing.json"), logger.NewNop())
	assert.Zero(t, missing.Len())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	assert.Zero(t, catalog.LoadSnapshot(bad, logger.NewNop()).Len())

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(snapshotJSON), 0o600))
	assert.Equal(t, 5, catalog.LoadSnapshot(good, logger.NewNop()).Len())

	var nilSnapshot *catalog.Snapshot
	_, ok := nilSnapshot.Lookup("NVDA")
	assert.False(t, ok)
}

func TestSearch_SearchBySymbol(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Equal(t, "0", r.PostForm.Get("country_id"))
		assert.Equal(t, "All", r.PostForm.Get("tab_id"))

		switch r.PostForm.Get("search_text") {
		case "NVDA":
			_, _ = w.Write([]byte(`{"All":[
				{"symbol": "NVDA.SN", "exchange_popular_symbol": "SN"},
				{"pair_ID": "6497", "symbol": "NVDA", "exchange_popular_symbol": "NASDAQ", "name": "NVIDIA Corp"},
				{"pair_ID": 100, "symbol": "NVDA.MX", "exchange_popular_symbol": "BMV"}
			]}`))
		case "KO":
			_, _ = w.Write([]byte(`{"All":[{"pair_ID": 8894, "symbol": "KO.BA", "exchange_popular_symbol": "BA"}]}`))
		case "AAPL":
			_, _ = w.Write([]byte(`{"All":[
				{"pair_ID": 21, "symbol": "AAPL.MX", "exchange_popular_symbol": "BMV"},
				{"pair_ID": 6408, "symbol": "AAPL", "exchange_popular_symbol": "NASDAQ"}
			]}`))
		case "FAIL":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"All":[]}`))
		}
	}))
	defer srv.Close()

	s := catalog.NewSearch(catalog.ClientConfig{URL: srv.URL}, logger.NewNop())
	ctx := context.Background()

	rec, err := s.SearchBySymbol(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, &domain.InstrumentRecord{Symbol: "NVDA", InstrumentID: "6497", Exchange: "NASDAQ", Name: "NVIDIA Corp"}, rec)

	rec, err = s.SearchBySymbol(ctx, "KO")
	require.NoError(t, err)
	assert.Equal(t, "8894", rec.InstrumentID, "first quote is taken even when its symbol differs")

	rec, err = s.SearchBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "21", rec.InstrumentID, "later exact symbol match does not outrank the first candidate")

	rec, err = s.SearchBySymbol(ctx, "NONE")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = s.SearchBySymbol(ctx, "FAIL")
	assert.ErrorIs(t, err, domain.ErrCatalogLookup)
}

func TestInstruments_Lookup(t *testing.T) {
	t.Parallel()

	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("instrument_ids")
		requested = append(requested, id)
		switch id {
		case "6497":
			_, _ = w.Write([]byte(`[{"id": 6497, "symbol": "NVDA", "exchange_id": 2, "long_name": "NVIDIA Corporation"}]`))
		case "6408":
			_, _ = w.Write([]byte(`[{"id": "6408", "symbol": "AAPL", "exchange_id": null, "short_name": "Apple"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := catalog.NewInstruments(catalog.ClientConfig{URL: srv.URL}, nil, logger.NewNop())
	got, err := c.Lookup(context.Background(), []string{"6497", "404", "6408", "999"})

	require.NoError(t, err)
	assert.Equal(t, []string{"6497", "404", "6408"}, requested, "at most three lookups")
	assert.Equal(t, []domain.InstrumentRecord{
		{Symbol: "NVDA", InstrumentID: "6497", ExchangeID: "2", Name: "NVIDIA Corporation"},
		{Symbol: "AAPL", InstrumentID: "6408", Name: "Apple"},
	}, got)
}
