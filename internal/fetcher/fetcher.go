// Package fetcher retrieves pages over HTTP for the extraction stages.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/ratelimit"
	"github.com/ounols/jekyll-news/internal/retry"
)

// Response is a fetched page.
type Response struct {
	StatusCode int
	Body       []byte
	// URL is the final URL after redirects.
	URL    string
	Header http.Header
}

// Fetcher retrieves one URL. Non-2xx responses are returned as *domain.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// Config configures the HTTP fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Interval is the minimum spacing between requests.
	Interval time.Duration
	Retry    retry.Config
}

// HTTPFetcher is the resty-backed Fetcher.
type HTTPFetcher struct {
	client *resty.Client
	pacer  *ratelimit.Pacer
	retry  retry.Config
	log    logger.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// DefaultHeaders are sent with every request unless overridden per call.
var DefaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9,ko;q=0.8",
}

// New creates an HTTPFetcher. A nil pacer is built from cfg.Interval.
func New(cfg Config, pacer *ratelimit.Pacer, log logger.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if pacer == nil {
		pacer = ratelimit.New(cfg.Interval)
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeaders(DefaultHeaders)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &HTTPFetcher{
		client: client,
		pacer:  pacer,
		retry:  cfg.Retry,
		log:    log,
	}
}

// Fetch performs a paced GET with retries on transient failures.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	var out *Response
	attempt := 0

	err := retry.Do(ctx, f.retry, func(ctx context.Context) error {
		attempt++
		if err := f.pacer.Wait(ctx); err != nil {
			return err
		}

		resp, err := f.client.R().
			SetContext(ctx).
			SetHeaders(headers).
			Get(url)
		if err != nil {
			f.log.Debug("Fetch attempt failed",
				logger.String("url", url),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
			return &domain.FetchError{URL: url, Err: err}
		}

		if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
			f.log.Debug("Fetch returned non-success status",
				logger.String("url", url),
				logger.Int("status", resp.StatusCode()),
				logger.Int("attempt", attempt),
			)
			return &domain.FetchError{URL: url, StatusCode: resp.StatusCode()}
		}

		out = &Response{
			StatusCode: resp.StatusCode(),
			Body:       resp.Body(),
			URL:        finalURL(resp, url),
			Header:     resp.Header(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	f.log.Debug("Fetched page",
		logger.String("url", out.URL),
		logger.Int("bytes", len(out.Body)),
	)
	return out, nil
}

func finalURL(resp *resty.Response, fallback string) string {
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		return resp.RawResponse.Request.URL.String()
	}
	return fallback
}
