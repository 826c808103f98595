package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/ratelimit"
)

// MaxInstrumentLookups caps instrument detail lookups per article.
const MaxInstrumentLookups = 3

// Instruments fetches instrument details by id from the instruments API.
type Instruments struct {
	client *resty.Client
	url    string
	pacer  *ratelimit.Pacer
	log    logger.Logger
}

// NewInstruments creates an Instruments client. pacer may be nil.
func NewInstruments(cfg ClientConfig, pacer *ratelimit.Pacer, log logger.Logger) *Instruments {
	return &Instruments{
		client: newClient(cfg),
		url:    cfg.URL,
		pacer:  pacer,
		log:    log,
	}
}

type instrumentPayload struct {
	ID         flexID `json:"id"`
	Symbol     string `json:"symbol"`
	ExchangeID flexID `json:"exchange_id"`
	LongName   string `json:"long_name"`
	ShortName  string `json:"short_name"`
}

// Lookup resolves up to MaxInstrumentLookups ids, one request each. Ids
// that fail are logged and skipped; the error is only set when ctx ends.
func (c *Instruments) Lookup(ctx context.Context, ids []string) ([]domain.InstrumentRecord, error) {
	if len(ids) > MaxInstrumentLookups {
		ids = ids[:MaxInstrumentLookups]
	}

	var out []domain.InstrumentRecord
	for _, id := range ids {
		if err := c.pacer.Wait(ctx); err != nil {
			return out, err
		}

		rec, err := c.lookupOne(ctx, id)
		if err != nil {
			c.log.Warn("Instrument lookup failed",
				logger.String("instrument_id", id),
				logger.Error(err),
			)
			continue
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (c *Instruments) lookupOne(ctx context.Context, id string) (*domain.InstrumentRecord, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("instrument_ids", id).
		SetHeader("Accept", "application/json").
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: instrument %s: %w", domain.ErrCatalogLookup, id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: instrument %s: status %d", domain.ErrCatalogLookup, id, resp.StatusCode())
	}

	var payload []instrumentPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("%w: instrument %s: decode: %w", domain.ErrCatalogLookup, id, err)
	}
	if len(payload) == 0 || payload[0].Symbol == "" {
		return nil, nil
	}

	p := payload[0]
	name := p.LongName
	if name == "" {
		name = p.ShortName
	}
	instrumentID := string(p.ID)
	if instrumentID == "" {
		instrumentID = id
	}
	return &domain.InstrumentRecord{
		Symbol:       p.Symbol,
		InstrumentID: instrumentID,
		ExchangeID:   string(p.ExchangeID),
		Name:         name,
	}, nil
}
