// Package sources adapts news sites to the pipeline: each Source lists
// article candidates and extracts article bodies with its own policy.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/extraction"
	"github.com/ounols/jekyll-news/internal/fetcher"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/validator"
)

// Adapter kinds.
const (
	KindInvesting = "investing"
	KindCNBC      = "cnbc"
)

// ErrUnknownSource is returned for ids with no definition or adapter.
var ErrUnknownSource = errors.New("unknown source")

// Source is one news site.
type Source interface {
	ID() string
	Profile() domain.SourceProfile
	// List returns at most limit articles in listing order.
	List(ctx context.Context, limit int) ([]domain.Article, error)
	// Extract fetches and extracts the article body. Failures wrap
	// domain.ErrFetch or domain.ErrExtractionNotFound.
	Extract(ctx context.Context, article domain.Article) (*domain.ExtractionResult, error)
	// Instruments resolves the instrument hints attached by the listing.
	Instruments(ctx context.Context, article domain.Article) ([]domain.InstrumentRecord, error)
}

// InstrumentLookup resolves instrument ids to records.
type InstrumentLookup interface {
	Lookup(ctx context.Context, ids []string) ([]domain.InstrumentRecord, error)
}

// Deps are the collaborators shared by every source.
type Deps struct {
	Fetcher     fetcher.Fetcher
	Validator   *validator.Validator
	Instruments InstrumentLookup
	Log         logger.Logger
	// MinBodyLength is passed to the extraction engines.
	MinBodyLength int
	// MaxDepth bounds the embedded JSON search.
	MaxDepth  int
	UserAgent string
	// ListingDelay spaces listing page requests of crawled sources.
	ListingDelay time.Duration
}

// New builds the adapter for def.
func New(id string, def Definition, deps Deps) (Source, error) {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("source %s: %w", id, err)
	}
	kind := def.Kind
	if kind == "" {
		kind = id
	}
	log := deps.Log.With(logger.String("source", id))

	switch kind {
	case KindInvesting:
		return newInvesting(id, def, deps, log), nil
	case KindCNBC:
		return newCNBC(id, def, deps, log), nil
	default:
		return nil, fmt.Errorf("%w: %s (kind %q)", ErrUnknownSource, id, kind)
	}
}

// Build creates the sources named by ids, in order.
func Build(ids []string, defs map[string]Definition, deps Deps) ([]Source, error) {
	out := make([]Source, 0, len(ids))
	for _, id := range ids {
		def, ok := defs[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
		src, err := New(id, def, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func paragraphRules(sel Selectors) extraction.ParagraphRules {
	rules := extraction.ParagraphRules{
		Selectors:          sel.Paragraphs,
		MinLength:          sel.MinParagraph,
		SkipPhrases:        sel.SkipPhrases,
		UnwantedClassWords: extraction.DefaultUnwantedClassWords,
	}
	if rules.Selectors == "" {
		rules.Selectors = "p, h2, h3"
	}
	return rules
}

// notFound builds the extraction failure, noting validator rejections.
func notFound(rejected bool, url string) error {
	if rejected {
		return fmt.Errorf("%w: %w: %s", domain.ErrExtractionNotFound, domain.ErrValidationRejected, url)
	}
	return fmt.Errorf("%w: %s", domain.ErrExtractionNotFound, url)
}

var htmlHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}
