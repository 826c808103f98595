// Package pipeline drives each article through extraction, validation,
// ticker linking, translation and publishing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/publisher"
	"github.com/ounols/jekyll-news/internal/sources"
	"github.com/ounols/jekyll-news/internal/ticker"
	"github.com/ounols/jekyll-news/internal/translation"
)

// Validator classifies extracted text.
type Validator interface {
	IsValid(text string) bool
}

// Translator translates titles and bodies.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
	TranslateTitle(ctx context.Context, title, source, target string) string
}

// Linker resolves recognized tickers.
type Linker interface {
	Resolve(ctx context.Context, tickers []ticker.Ticker, hints []domain.InstrumentRecord) map[string]domain.InstrumentRecord
}

// Publisher writes the finished post.
type Publisher interface {
	Publish(ctx context.Context, post publisher.Post) domain.Outcome
}

// Config holds the processing policy.
type Config struct {
	SourceLang string
	TargetLang string
	// MinSummaryLength is the shortest listing summary usable as a body.
	MinSummaryLength int
	// MaxTickers caps the tickers linked per article.
	MaxTickers int
}

// Processor runs the per-article state machine.
type Processor struct {
	validator  Validator
	translator Translator
	linker     Linker
	publisher  Publisher
	cfg        Config

	mu       sync.Mutex
	cleaners map[string]*publisher.TitleCleaner
}

// NewProcessor creates a Processor. A nil translator publishes the
// extracted text untranslated.
func NewProcessor(v Validator, tr Translator, l Linker, pub Publisher, cfg Config) *Processor {
	if cfg.MinSummaryLength <= 0 {
		cfg.MinSummaryLength = 100
	}
	return &Processor{
		validator:  v,
		translator: tr,
		linker:     l,
		publisher:  pub,
		cfg:        cfg,
		cleaners:   make(map[string]*publisher.TitleCleaner),
	}
}

// Process returns the terminal outcome for article. It never retries.
func (p *Processor) Process(ctx context.Context, src sources.Source, article domain.Article) domain.Outcome {
	log := logger.FromContext(ctx)
	state := domain.StateFetched

	if strings.TrimSpace(article.Title) == "" || article.URL == "" {
		return domain.Skipped(domain.ReasonInvalidArticle, state, errors.New("article has no title or url"))
	}

	res, outcome, ok := p.extract(ctx, src, article)
	if !ok {
		return outcome
	}
	state = domain.StateExtracted
	log.Debug("Article extracted",
		logger.String("strategy", res.Strategy.String()),
		logger.Int("length", utf8.RuneCountInString(res.Body)),
	)

	if !p.validator.IsValid(res.Body) {
		if summary, usable := p.summaryFallback(article); usable && res.Strategy != domain.StrategySummary {
			log.Info("Extracted body rejected, using listing summary")
			res = summary
		} else {
			return domain.Skipped(domain.ReasonValidationRejected, state,
				fmt.Errorf("%w: %s", domain.ErrValidationRejected, article.URL))
		}
	}
	state = domain.StateValidated

	hints, err := src.Instruments(ctx, article)
	if err != nil {
		log.Warn("Instrument lookup failed", logger.Error(err))
	}
	tickers := ticker.Limit(ticker.Find(res.Body), p.cfg.MaxTickers)
	resolved := p.resolve(ctx, tickers, hints)
	state = domain.StateLinkedPre

	originalTitle := article.Title
	if res.Strategy != domain.StrategySummary && strings.TrimSpace(res.Title) != "" {
		originalTitle = res.Title
	}

	title, body, err := p.translate(ctx, originalTitle, res.Body)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Skipped(domain.ReasonCancelled, state, ctx.Err())
		}
		return domain.Failed(domain.ReasonEmptyTranslation, state, err)
	}
	title = p.cleaner(src.Profile()).Clean(title)
	state = domain.StateTranslated

	excerpt := publisher.Excerpt(body)
	rendered := ticker.Render(body, resolved)
	state = domain.StateLinkedPost

	if ctx.Err() != nil {
		return domain.Skipped(domain.ReasonCancelled, state, ctx.Err())
	}

	post := publisher.Post{
		Article:       article,
		Title:         title,
		OriginalTitle: article.Title,
		Body:          rendered,
		Excerpt:       excerpt,
		StockTags:     publisher.StockTags(hints, ticker.Ordered(tickers, resolved)),
		Date:          article.PublishedAt,
		Profile:       src.Profile(),
	}
	return p.publisher.Publish(ctx, post)
}

// extract applies the source's summary policy around Source.Extract.
func (p *Processor) extract(ctx context.Context, src sources.Source, article domain.Article) (*domain.ExtractionResult, domain.Outcome, bool) {
	log := logger.FromContext(ctx)
	summary, usable := p.summaryFallback(article)

	if src.Profile().SummaryFirst && usable {
		log.Debug("Using listing summary", logger.Int("length", utf8.RuneCountInString(summary.Body)))
		return summary, domain.Outcome{}, true
	}

	res, err := src.Extract(ctx, article)
	if err == nil {
		// A short crawl never replaces a longer summary.
		if usable && utf8.RuneCountInString(res.Body) <= utf8.RuneCountInString(summary.Body) {
			return summary, domain.Outcome{}, true
		}
		return res, domain.Outcome{}, true
	}

	if ctx.Err() != nil {
		return nil, domain.Skipped(domain.ReasonCancelled, domain.StateFetched, ctx.Err()), false
	}
	if usable {
		log.Info("Extraction failed, using listing summary", logger.Error(err))
		return summary, domain.Outcome{}, true
	}

	switch {
	case errors.Is(err, domain.ErrFetch):
		return nil, domain.Failed(domain.ReasonFetchFailed, domain.StateFetched, err), false
	case errors.Is(err, domain.ErrValidationRejected):
		return nil, domain.Skipped(domain.ReasonValidationRejected, domain.StateExtracted, err), false
	case errors.Is(err, domain.ErrExtractionNotFound):
		return nil, domain.Skipped(domain.ReasonExtractionNotFound, domain.StateExtracted, err), false
	default:
		return nil, domain.Failed(domain.ReasonFetchFailed, domain.StateFetched, err), false
	}
}

// summaryFallback wraps the listing summary as a result; usable reports
// whether it is long enough and passes the validator.
func (p *Processor) summaryFallback(article domain.Article) (*domain.ExtractionResult, bool) {
	body := strings.TrimSpace(article.Summary)
	res := &domain.ExtractionResult{Title: article.Title, Body: body, Strategy: domain.StrategySummary}
	if utf8.RuneCountInString(body) < p.cfg.MinSummaryLength {
		return res, false
	}
	return res, p.validator.IsValid(body)
}

func (p *Processor) resolve(ctx context.Context, tickers []ticker.Ticker, hints []domain.InstrumentRecord) map[string]domain.InstrumentRecord {
	if p.linker == nil || len(tickers) == 0 {
		return map[string]domain.InstrumentRecord{}
	}
	return p.linker.Resolve(ctx, tickers, hints)
}

func (p *Processor) translate(ctx context.Context, title, body string) (string, string, error) {
	if p.translator == nil {
		return title, body, nil
	}
	log := logger.FromContext(ctx)

	translatedTitle := p.translator.TranslateTitle(ctx, title, p.cfg.SourceLang, p.cfg.TargetLang)

	translated, err := p.translator.Translate(ctx, body, p.cfg.SourceLang, p.cfg.TargetLang)
	var partial *translation.PartialError
	switch {
	case errors.As(err, &partial):
		log.Warn("Translation incomplete, publishing surviving chunks",
			logger.Ints("failed_chunks", partial.Failed),
			logger.Int("chunks", partial.Total),
		)
	case err != nil:
		return "", "", err
	}

	if strings.TrimSpace(translated) == "" {
		return "", "", fmt.Errorf("%w: empty translated body", domain.ErrTranslationFailed)
	}
	return translatedTitle, translated, nil
}

func (p *Processor) cleaner(profile domain.SourceProfile) *publisher.TitleCleaner {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.cleaners[profile.ID]; ok {
		return c
	}
	// Patterns are checked by sources.Definition.Validate; a bad one
	// leaves titles uncleaned.
	c, _ := publisher.NewTitleCleaner(profile.TitleCleanups)
	p.cleaners[profile.ID] = c
	return c
}
