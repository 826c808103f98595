package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
)

// InstrumentCatalog resolves free text to an instrument. (nil, nil) means
// no match.
type InstrumentCatalog interface {
	SearchBySymbol(ctx context.Context, text string) (*domain.InstrumentRecord, error)
}

// ClientConfig configures the Investing.com clients.
type ClientConfig struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Search queries the Investing.com quote search endpoint.
type Search struct {
	client *resty.Client
	url    string
	log    logger.Logger
}

var _ InstrumentCatalog = (*Search)(nil)

// NewSearch creates a Search client.
func NewSearch(cfg ClientConfig, log logger.Logger) *Search {
	return &Search{
		client: newClient(cfg),
		url:    cfg.URL,
		log:    log,
	}
}

func newClient(cfg ClientConfig) *resty.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := resty.New().SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.UserAgent)
	}
	return c
}

type searchResponse struct {
	All []searchQuote `json:"All"`
}

type searchQuote struct {
	PairID   flexID `json:"pair_ID"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange_popular_symbol"`
	Name     string `json:"name"`
}

// SearchBySymbol returns the first quote that carries an instrument id, in
// the order the endpoint ranked them.
func (s *Search) SearchBySymbol(ctx context.Context, text string) (*domain.InstrumentRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"X-Requested-With": "XMLHttpRequest",
			"Accept":           "application/json, text/javascript, */*; q=0.01",
		}).
		SetFormData(map[string]string{
			"search_text": text,
			"term":        text,
			"country_id":  "0",
			"tab_id":      "All",
		}).
		Post(s.url)
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %w", domain.ErrCatalogLookup, text, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: search %q: status %d", domain.ErrCatalogLookup, text, resp.StatusCode())
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: search %q: decode: %w", domain.ErrCatalogLookup, text, err)
	}

	quote := pickQuote(parsed.All)
	if quote == nil {
		s.log.Debug("Instrument search found nothing", logger.String("symbol", text))
		return nil, nil
	}

	return &domain.InstrumentRecord{
		Symbol:       quote.Symbol,
		InstrumentID: string(quote.PairID),
		Exchange:     quote.Exchange,
		Name:         quote.Name,
	}, nil
}

// pickQuote takes the first candidate that carries an instrument id.
func pickQuote(quotes []searchQuote) *searchQuote {
	for i := range quotes {
		if quotes[i].PairID != "" {
			return &quotes[i]
		}
	}
	return nil
}
