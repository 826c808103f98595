// Package common wires the components shared by the commands.
package common

import (
	"context"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/ounols/jekyll-news/internal/catalog"
	"github.com/ounols/jekyll-news/internal/circuitbreaker"
	"github.com/ounols/jekyll-news/internal/config"
	"github.com/ounols/jekyll-news/internal/dedup"
	"github.com/ounols/jekyll-news/internal/fetcher"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/pipeline"
	"github.com/ounols/jekyll-news/internal/publisher"
	"github.com/ounols/jekyll-news/internal/ratelimit"
	"github.com/ounols/jekyll-news/internal/retry"
	"github.com/ounols/jekyll-news/internal/sources"
	"github.com/ounols/jekyll-news/internal/store"
	"github.com/ounols/jekyll-news/internal/telemetry"
	"github.com/ounols/jekyll-news/internal/ticker"
	"github.com/ounols/jekyll-news/internal/translation"
	"github.com/ounols/jekyll-news/internal/validator"
)

// SourceAll selects every configured source.
const SourceAll = "all"

// App holds the wired components of one command invocation.
type App struct {
	Config      *config.Config
	Logger      logger.Logger
	Metrics     *telemetry.Metrics
	Validator   *validator.Validator
	Linker      *ticker.Linker
	Publisher   *publisher.Publisher
	Definitions map[string]sources.Definition
	// Published indexes the article_id markers found in the output directory.
	Published   *dedup.Memory
	// Tracker is the Redis index; nil when Redis is disabled or unreachable.
	Tracker     *dedup.Tracker

	translator  pipeline.Translator
	sourceDeps  sources.Deps
	redisClient *redis.Client
}

// NewApp builds every component from cfg. It opens the output directory
// and, when enabled, connects to Redis; an unreachable Redis only logs a
// warning since the published files stay authoritative.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	app := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: telemetry.NewMetrics(),
		Validator: validator.New(validator.Config{
			Phrases:          cfg.Validation.Phrases,
			LeadingWindow:    cfg.Validation.LeadingWindow,
			LeadingDistinct:  cfg.Validation.LeadingDistinct,
			ShortTextLength:  cfg.Validation.ShortTextLength,
			ShortTextMinHits: cfg.Validation.ShortTextMinHits,
		}),
	}

	app.Definitions, err = sources.LoadDefinitions(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	app.Linker = app.newLinker()
	app.translator = app.newTranslator()

	if err = app.initPublisher(ctx); err != nil {
		return nil, err
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Fetcher.MaxAttempts
	app.sourceDeps = sources.Deps{
		Fetcher: fetcher.New(fetcher.Config{
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   cfg.Fetcher.Timeout,
			Interval:  cfg.Fetcher.Interval,
			Retry:     retryCfg,
		}, ratelimit.New(cfg.Fetcher.Interval), log),
		Validator: app.Validator,
		Instruments: catalog.NewInstruments(catalog.ClientConfig{
			URL:       cfg.Catalog.InstrumentsURL,
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   cfg.Fetcher.Timeout,
		}, ratelimit.New(cfg.Catalog.Interval), log),
		Log:           log,
		MinBodyLength: cfg.Extraction.MinBodyLength,
		MaxDepth:      cfg.Extraction.MaxDepth,
		UserAgent:     cfg.Fetcher.UserAgent,
		ListingDelay:  cfg.Fetcher.Interval,
	}

	return app, nil
}

func (a *App) newLinker() *ticker.Linker {
	cfg := a.Config.Catalog
	cache := catalog.LoadSnapshot(cfg.CachePath, a.Logger)
	search := catalog.NewSearch(catalog.ClientConfig{
		URL:       cfg.SearchURL,
		UserAgent: a.Config.Fetcher.UserAgent,
		Timeout:   a.Config.Fetcher.Timeout,
	}, a.Logger)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: 1,
		Timeout:          cfg.CoolDown,
		OnStateChange: func(from, to circuitbreaker.State) {
			a.Logger.Warn("Instrument search circuit changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	return ticker.NewLinker(cache, search,
		ticker.WithBreaker(breaker),
		ticker.WithPacer(ratelimit.New(cfg.Interval)),
		ticker.WithLogger(a.Logger),
		ticker.WithObserver(a.Metrics.ObserveResolution),
	)
}

// newTranslator returns nil when translation is disabled.
func (a *App) newTranslator() pipeline.Translator {
	cfg := a.Config.Translation
	if !cfg.Enabled {
		return nil
	}
	google := translation.NewGoogleTranslator(cfg.Endpoint, a.Config.Fetcher.UserAgent, cfg.Timeout)
	return translation.New(google, translation.Config{
		ChunkSize: cfg.ChunkSize,
		MaxChunks: cfg.MaxChunks,
		Threshold: cfg.Threshold,
	},
		translation.WithPacer(ratelimit.New(cfg.Interval)),
		translation.WithLogger(a.Logger),
		translation.WithObserver(a.Metrics.ObserveChunk),
	)
}

func (a *App) initPublisher(ctx context.Context) error {
	cfg := a.Config

	st, err := store.NewFileStore(cfg.Publisher.OutputDir)
	if err != nil {
		return fmt.Errorf("open output dir: %w", err)
	}

	mem, err := dedup.Load(st, a.Logger)
	if err != nil {
		return fmt.Errorf("load published markers: %w", err)
	}
	a.Published = mem
	var index dedup.Index = mem

	if cfg.Redis.Enabled {
		client, redisErr := dedup.NewRedisClient(ctx, dedup.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if redisErr != nil {
			a.Logger.Warn("Redis unavailable, using published files only", logger.Error(redisErr))
		} else {
			a.redisClient = client
			a.Tracker = dedup.NewTracker(client, cfg.Redis.TTL, a.Logger)
			index = dedup.Chain{mem, a.Tracker}
		}
	}

	a.Publisher = publisher.New(st, index,
		publisher.WithLayout(cfg.Publisher.Layout),
		publisher.WithLocation(cfg.Publisher.Location()),
		publisher.WithLogger(a.Logger),
	)
	return nil
}

// SourceIDs expands the --source flag value.
func (a *App) SourceIDs(selection string) []string {
	if selection == "" || selection == SourceAll {
		return slices.Clone(a.Config.Pipeline.Sources)
	}
	return []string{selection}
}

// Sources builds the adapters named by ids.
func (a *App) Sources(ids []string) ([]sources.Source, error) {
	if len(ids) == 0 {
		return nil, ErrNoSources
	}
	return sources.Build(ids, a.Definitions, a.sourceDeps)
}

// Processor builds the per-article processor.
func (a *App) Processor() *pipeline.Processor {
	return pipeline.NewProcessor(a.Validator, a.translator, a.Linker, a.Publisher, pipeline.Config{
		SourceLang:       a.Config.Translation.SourceLang,
		TargetLang:       a.Config.Translation.TargetLang,
		MinSummaryLength: a.Config.Extraction.MinSummaryLength,
		MaxTickers:       a.Config.Catalog.MaxTickers,
	})
}

// Close releases connections and flushes the logger.
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Warn("Failed to close redis client", logger.Error(err))
		}
	}
	_ = a.Logger.Sync()
	return nil
}
