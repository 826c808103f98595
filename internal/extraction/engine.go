// Package extraction turns fetched pages into clean article text through an
// ordered cascade of strategies.
package extraction

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
)

// ErrNoContent is returned by a strategy that found nothing usable. The
// engine moves on to the next strategy.
var ErrNoContent = errors.New("strategy found no content")

// Format is the media type of a page body.
type Format int

const (
	FormatHTML Format = iota
	FormatJSON
)

// Page is the input to every strategy.
type Page struct {
	URL    string
	Body   []byte
	Format Format
}

// Strategy is one extraction technique.
type Strategy interface {
	Kind() domain.Strategy
	Extract(page Page) (*domain.ExtractionResult, error)
}

// Acceptor gates a candidate body; the content validator satisfies it.
type Acceptor interface {
	IsValid(text string) bool
}

// DefaultMinBodyLength is the shortest body, in runes, the engine accepts.
const DefaultMinBodyLength = 200

// Engine runs strategies in order and returns the first acceptable result.
type Engine struct {
	strategies []Strategy
	minBody    int
	gate       Acceptor
	log        logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMinBodyLength overrides DefaultMinBodyLength.
func WithMinBodyLength(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.minBody = n
		}
	}
}

// WithGate rejects results the acceptor does not accept, continuing the chain.
func WithGate(a Acceptor) EngineOption {
	return func(e *Engine) { e.gate = a }
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine builds an engine over strategies, tried in slice order.
func NewEngine(strategies []Strategy, opts ...EngineOption) *Engine {
	e := &Engine{
		strategies: strategies,
		minBody:    DefaultMinBodyLength,
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the first result whose body is long enough and passes the
// gate. When nothing qualifies the error wraps domain.ErrExtractionNotFound,
// and also domain.ErrValidationRejected if any candidate was rejected.
func (e *Engine) Extract(page Page) (*domain.ExtractionResult, error) {
	rejected := false

	for _, s := range e.strategies {
		res, err := s.Extract(page)
		if err != nil {
			if !errors.Is(err, ErrNoContent) {
				e.log.Debug("Extraction strategy failed",
					logger.String("strategy", s.Kind().String()),
					logger.String("url", page.URL),
					logger.Error(err),
				)
			}
			continue
		}

		length := utf8.RuneCountInString(res.Body)
		if length < e.minBody {
			e.log.Debug("Extraction result too short",
				logger.String("strategy", s.Kind().String()),
				logger.String("url", page.URL),
				logger.Int("length", length),
			)
			continue
		}

		if e.gate != nil && !e.gate.IsValid(res.Body) {
			rejected = true
			e.log.Debug("Extraction result rejected by validator",
				logger.String("strategy", s.Kind().String()),
				logger.String("url", page.URL),
			)
			continue
		}

		res.Strategy = s.Kind()
		return res, nil
	}

	if rejected {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionNotFound, domain.ErrValidationRejected)
	}
	return nil, domain.ErrExtractionNotFound
}
