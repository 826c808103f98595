package ticker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ounols/jekyll-news/internal/circuitbreaker"
	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/ratelimit"
)

// Lookup is the read-only local instrument cache.
type Lookup interface {
	Lookup(key string) (domain.InstrumentRecord, bool)
}

// Searcher is the remote instrument search. A nil record with a nil error
// means no match.
type Searcher interface {
	SearchBySymbol(ctx context.Context, text string) (*domain.InstrumentRecord, error)
}

// Resolution sources reported to the observer.
const (
	ViaHint       = "hint"
	ViaCache      = "cache"
	ViaRemote     = "remote"
	ViaUnresolved = "unresolved"
)

// Linker resolves tickers against article hints, the local cache and the
// remote search, in that order. Remote answers are kept for the lifetime of
// the Linker and never written to the cache.
type Linker struct {
	cache   Lookup
	search  Searcher
	breaker *circuitbreaker.Breaker
	pacer   *ratelimit.Pacer
	log     logger.Logger
	observe func(via string)

	mu      sync.Mutex
	overlay map[string]*domain.InstrumentRecord
}

// Option configures a Linker.
type Option func(*Linker)

// WithBreaker guards remote searches.
func WithBreaker(b *circuitbreaker.Breaker) Option { return func(l *Linker) { l.breaker = b } }

// WithPacer spaces remote searches.
func WithPacer(p *ratelimit.Pacer) Option { return func(l *Linker) { l.pacer = p } }

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option { return func(l *Linker) { l.log = log } }

// WithObserver is told how each ticker was resolved.
func WithObserver(fn func(via string)) Option { return func(l *Linker) { l.observe = fn } }

// NewLinker creates a Linker. cache and search may be nil.
func NewLinker(cache Lookup, search Searcher, opts ...Option) *Linker {
	l := &Linker{
		cache:   cache,
		search:  search,
		log:     logger.NewNop(),
		observe: func(string) {},
		overlay: make(map[string]*domain.InstrumentRecord),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve maps ticker keys to instruments. Unresolved tickers are absent.
// hints are instruments the source already attached to the article.
func (l *Linker) Resolve(ctx context.Context, tickers []Ticker, hints []domain.InstrumentRecord) map[string]domain.InstrumentRecord {
	bySymbol := make(map[string]domain.InstrumentRecord, len(hints))
	for _, h := range hints {
		if h.Symbol != "" && h.InstrumentID != "" {
			bySymbol[strings.ToUpper(h.Symbol)] = h
		}
	}

	resolved := make(map[string]domain.InstrumentRecord, len(tickers))
	for _, t := range tickers {
		rec, via := l.resolveOne(ctx, t, bySymbol)
		l.observe(via)
		if rec == nil {
			l.log.Debug("Ticker unresolved", logger.String("ticker", t.Key()))
			continue
		}
		out := *rec
		out.Symbol = t.Symbol
		if out.Exchange == "" {
			out.Exchange = t.Exchange
		}
		resolved[t.Key()] = out
	}
	return resolved
}

func (l *Linker) resolveOne(ctx context.Context, t Ticker, hints map[string]domain.InstrumentRecord) (*domain.InstrumentRecord, string) {
	if h, ok := hints[t.Symbol]; ok {
		return &h, ViaHint
	}

	if l.cache != nil {
		if t.Exchange != "" {
			if rec, ok := l.cache.Lookup(t.Key()); ok {
				return &rec, ViaCache
			}
		}
		if rec, ok := l.cache.Lookup(t.Symbol); ok {
			return &rec, ViaCache
		}
	}

	rec, err := l.remote(ctx, t.Symbol)
	if err != nil {
		l.log.Warn("Instrument search failed",
			logger.String("ticker", t.Key()),
			logger.Error(err),
		)
		return nil, ViaUnresolved
	}
	if rec == nil {
		return nil, ViaUnresolved
	}
	return rec, ViaRemote
}

func (l *Linker) remote(ctx context.Context, symbol string) (*domain.InstrumentRecord, error) {
	if l.search == nil {
		return nil, nil
	}

	l.mu.Lock()
	cached, ok := l.overlay[symbol]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	var rec *domain.InstrumentRecord
	call := func(ctx context.Context) error {
		if err := l.pacer.Wait(ctx); err != nil {
			return err
		}
		var err error
		rec, err = l.search.SearchBySymbol(ctx, symbol)
		return err
	}

	var err error
	if l.breaker != nil {
		err = l.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, domain.ErrCatalogLookup) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogLookup, err)
	}
	if rec != nil && rec.InstrumentID == "" {
		rec = nil
	}

	l.mu.Lock()
	l.overlay[symbol] = rec
	l.mu.Unlock()
	return rec, nil
}

// Ordered returns the resolved instruments in mention order, one per symbol.
func Ordered(tickers []Ticker, resolved map[string]domain.InstrumentRecord) []domain.InstrumentRecord {
	var out []domain.InstrumentRecord
	seen := make(map[string]struct{})
	for _, t := range tickers {
		rec, ok := resolved[t.Key()]
		if !ok {
			continue
		}
		if _, dup := seen[rec.Symbol]; dup {
			continue
		}
		seen[rec.Symbol] = struct{}{}
		out = append(out, rec)
	}
	return out
}
