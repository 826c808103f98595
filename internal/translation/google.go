package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrMalformedResponse is returned when the translator reply cannot be read.
var ErrMalformedResponse = errors.New("malformed translation response")

// GoogleTranslator calls the public Google Translate web endpoint.
type GoogleTranslator struct {
	client *resty.Client
}

var _ Translator = (*GoogleTranslator)(nil)

// NewGoogleTranslator creates a client for endpoint, e.g.
// https://translate.googleapis.com.
func NewGoogleTranslator(endpoint, userAgent string, timeout time.Duration) *GoogleTranslator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(timeout)
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}
	return &GoogleTranslator{client: c}
}

// Translate sends text as form data so long chunks are not limited by URL length.
func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     source,
			"tl":     target,
			"dt":     "t",
		}).
		SetFormData(map[string]string{"q": text}).
		Post("/translate_a/single")
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("translate request: status %d", resp.StatusCode())
	}

	return parseGoogleResponse(resp.Body())
}

// parseGoogleResponse concatenates the translated segments of
// [[["translated","source",...],...],...].
func parseGoogleResponse(body []byte) (string, error) {
	var root []any
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if len(root) == 0 {
		return "", ErrMalformedResponse
	}
	segments, ok := root[0].([]any)
	if !ok {
		return "", ErrMalformedResponse
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), nil
}
