// Package config defines the application configuration and its defaults.
// Values are layered by viper: compiled defaults, config.yml, then the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ounols/jekyll-news/internal/logger"
)

// Config is the root configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logger      logger.Config     `mapstructure:"logger"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Fetcher     FetcherConfig     `mapstructure:"fetcher"`
	Extraction  ExtractionConfig  `mapstructure:"extraction"`
	Validation  ValidationConfig  `mapstructure:"validation"`
	Translation TranslationConfig `mapstructure:"translation"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Publisher   PublisherConfig   `mapstructure:"publisher"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	// SourcesFile points at the optional selector catalog (sources.yml).
	SourcesFile string `mapstructure:"sources_file"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

type PipelineConfig struct {
	// Limit caps the number of articles taken from each listing.
	Limit int `mapstructure:"limit"`
	// Sources lists the source ids run by "crawl --source all".
	Sources []string `mapstructure:"sources"`
}

type FetcherConfig struct {
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type ExtractionConfig struct {
	MinBodyLength int `mapstructure:"min_body_length"`
	MaxDepth      int `mapstructure:"max_depth"`
	// MinSummaryLength is the shortest listing summary usable as a body.
	MinSummaryLength int `mapstructure:"min_summary_length"`
}

type ValidationConfig struct {
	Phrases          []string `mapstructure:"phrases"`
	LeadingWindow    int      `mapstructure:"leading_window"`
	LeadingDistinct  int      `mapstructure:"leading_distinct"`
	ShortTextLength  int      `mapstructure:"short_text_length"`
	ShortTextMinHits int      `mapstructure:"short_text_min_hits"`
}

type TranslationConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"`
	SourceLang string        `mapstructure:"source_lang"`
	TargetLang string        `mapstructure:"target_lang"`
	ChunkSize  int           `mapstructure:"chunk_size"`
	MaxChunks  int           `mapstructure:"max_chunks"`
	Interval   time.Duration `mapstructure:"interval"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// Threshold is the target-script ratio above which text counts as translated.
	Threshold float64 `mapstructure:"threshold"`
}

type CatalogConfig struct {
	CachePath        string        `mapstructure:"cache_path"`
	SearchURL        string        `mapstructure:"search_url"`
	InstrumentsURL   string        `mapstructure:"instruments_url"`
	Interval         time.Duration `mapstructure:"interval"`
	MaxTickers       int           `mapstructure:"max_tickers"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	CoolDown         time.Duration `mapstructure:"cool_down"`
}

type PublisherConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Layout    string `mapstructure:"layout"`
	// Timezone is used for post dates and filenames.
	Timezone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	// Textfile is a node-exporter textfile path; empty disables the export.
	Textfile string `mapstructure:"textfile"`
}

// DefaultPhrases is the legal and boilerplate denylist used by the validator.
var DefaultPhrases = []string{
	"risk warning",
	"disclaimer",
	"리스크 고지",
	"면책 조항",
	"fusion media",
	"판권소유",
	"all rights reserved",
	"terms and conditions",
	"이용약관",
	"privacy policy",
	"개인정보 보호정책",
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        "jekyll-news",
		"environment": "production",
		"debug":       false,
	})
	v.SetDefault("logger", map[string]any{
		"level":        "info",
		"encoding":     "json",
		"development":  false,
		"output_paths": []string{"stderr"},
	})
	v.SetDefault("pipeline", map[string]any{
		"limit":   5,
		"sources": []string{"investing", "cnbc"},
	})
	v.SetDefault("fetcher", map[string]any{
		"user_agent":   DefaultUserAgent,
		"timeout":      "30s",
		"interval":     "1s",
		"max_attempts": 3,
	})
	v.SetDefault("extraction", map[string]any{
		"min_body_length":    200,
		"max_depth":          10,
		"min_summary_length": 100,
	})
	v.SetDefault("validation", map[string]any{
		"phrases":             DefaultPhrases,
		"leading_window":      500,
		"leading_distinct":    2,
		"short_text_length":   1000,
		"short_text_min_hits": 5,
	})
	v.SetDefault("translation", map[string]any{
		"enabled":     true,
		"endpoint":    "https://translate.googleapis.com",
		"source_lang": "en",
		"target_lang": "ko",
		"chunk_size":  4500,
		"max_chunks":  3,
		"interval":    "500ms",
		"timeout":     "30s",
		"threshold":   0.3,
	})
	v.SetDefault("catalog", map[string]any{
		"cache_path":        "_data/ticker_cache.json",
		"search_url":        "https://kr.investing.com/search/service/search",
		"instruments_url":   "https://endpoints.investing.com/pd-instruments/v1/instruments",
		"interval":          "300ms",
		"max_tickers":       5,
		"failure_threshold": 3,
		"cool_down":         "1m",
	})
	v.SetDefault("publisher", map[string]any{
		"output_dir": "_posts",
		"layout":     "post",
		"timezone":   "Asia/Seoul",
	})
	v.SetDefault("redis", map[string]any{
		"enabled":  false,
		"address":  "localhost:6379",
		"password": "",
		"db":       0,
		"ttl":      "720h",
	})
	v.SetDefault("metrics", map[string]any{
		"textfile": "",
	})
	v.SetDefault("sources_file", "sources.yml")
}

// DefaultUserAgent is a desktop browser identity; the source sites reject
// obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration produced by the compiled defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Location resolves the publisher timezone, falling back to a fixed +09:00 zone.
func (c PublisherConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}
