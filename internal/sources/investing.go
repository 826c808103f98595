package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/extraction"
	"github.com/ounols/jekyll-news/internal/logger"
)

const minTokenLength = 100

// Investing lists breaking news through the site's JSON API and extracts
// bodies from the Next.js state embedded in article pages.
type Investing struct {
	id          string
	def         Definition
	deps        Deps
	log         logger.Logger
	dataEngine  *extraction.Engine
	pageEngine  *extraction.Engine
	tokenOnce   sync.Once
	bearerToken string
}

var _ Source = (*Investing)(nil)

func newInvesting(id string, def Definition, deps Deps, log logger.Logger) *Investing {
	dataCfg := extraction.DefaultStructuredDataConfig()
	if deps.MaxDepth > 0 {
		dataCfg.MaxDepth = deps.MaxDepth
	}

	opts := []extraction.EngineOption{
		extraction.WithMinBodyLength(deps.MinBodyLength),
		extraction.WithLogger(log),
	}
	if deps.Validator != nil {
		opts = append(opts, extraction.WithGate(deps.Validator))
	}

	return &Investing{
		id:   id,
		def:  def,
		deps: deps,
		log:  log,
		dataEngine: extraction.NewEngine([]extraction.Strategy{
			extraction.NewStructuredData(dataCfg),
		}, opts...),
		pageEngine: extraction.NewEngine([]extraction.Strategy{
			extraction.NewReadability(paragraphRules(def.Selectors)),
		}, opts...),
	}
}

func (s *Investing) ID() string { return s.id }

func (s *Investing) Profile() domain.SourceProfile { return s.def.Profile(s.id) }

type newsResponse struct {
	Articles []newsArticle `json:"articles"`
}

type newsArticle struct {
	ID    jsonID `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
	Body  string `json:"body"`
	Media []struct {
		Purpose string `json:"purpose"`
		URL     string `json:"url"`
	} `json:"media"`
	Instruments []*struct {
		ID         jsonID `json:"id"`
		PrimaryTag bool   `json:"primary_tag"`
	} `json:"instruments"`
	PublishedAt string `json:"published_at"`
}

// List calls the breaking-news API, authenticating with the page token
// when one can be found.
func (s *Investing) List(ctx context.Context, limit int) ([]domain.Article, error) {
	s.tokenOnce.Do(func() { s.bearerToken = s.discoverToken(ctx) })

	headers := map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9,ko;q=0.8",
		"Origin":          s.def.BaseURL,
		"Referer":         s.def.BaseURL + "/",
	}
	if s.bearerToken != "" {
		headers["Authorization"] = "Bearer " + s.bearerToken
	}

	resp, err := s.deps.Fetcher.Fetch(ctx, s.def.ListingURL, headers)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.id, err)
	}

	var payload newsResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode %s listing: %w", s.id, err)
	}

	articles := make([]domain.Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		if limit > 0 && len(articles) >= limit {
			break
		}
		article, ok := s.toArticle(a)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	s.log.Info("Fetched listing",
		logger.Int("received", len(payload.Articles)),
		logger.Int("articles", len(articles)),
	)
	return articles, nil
}

func (s *Investing) toArticle(a newsArticle) (domain.Article, bool) {
	title := strings.TrimSpace(a.Title)
	if title == "" || a.Link == "" {
		return domain.Article{}, false
	}

	link := a.Link
	if strings.HasPrefix(link, "/") {
		link = strings.TrimRight(s.def.BaseURL, "/") + link
	}

	var image string
	for _, m := range a.Media {
		if m.Purpose == "main_image" {
			image = m.URL
			break
		}
	}

	maxHints := s.def.MaxInstruments
	if maxHints <= 0 {
		maxHints = 5
	}
	var hints []string
	for _, inst := range a.Instruments {
		if inst == nil || !inst.PrimaryTag || inst.ID == "" {
			continue
		}
		if len(hints) == maxHints {
			break
		}
		hints = append(hints, string(inst.ID))
	}

	summary := a.Body
	if strings.Contains(summary, "<") {
		summary = extraction.StripTags(summary)
	}

	return domain.Article{
		Source:          s.id,
		SourceID:        string(a.ID),
		Title:           title,
		URL:             link,
		ImageURL:        image,
		Summary:         strings.TrimSpace(summary),
		InstrumentHints: hints,
		PublishedAt:     parseTime(a.PublishedAt),
	}, true
}

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"accessToken"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
	regexp.MustCompile(`(?i)"token"\s*:\s*"(eyJ[^"]+)"`),
	regexp.MustCompile(`(?i)Bearer\s+([A-Za-z0-9\-_.]+)`),
	regexp.MustCompile(`(?i)token["']?\s*[:=]\s*["']([A-Za-z0-9\-_.]+)`),
}

// discoverToken returns "" when no token is found; the API is then called
// anonymously.
func (s *Investing) discoverToken(ctx context.Context) string {
	if s.def.TokenPage == "" {
		return ""
	}
	pageURL := strings.TrimRight(s.def.BaseURL, "/") + s.def.TokenPage

	resp, err := s.deps.Fetcher.Fetch(ctx, pageURL, htmlHeaders)
	if err != nil {
		s.log.Warn("Token page unavailable, continuing without token", logger.Error(err))
		return ""
	}

	token := ExtractToken(resp.Body)
	if token == "" {
		s.log.Warn("No bearer token found, continuing without token")
		return ""
	}
	s.log.Debug("Bearer token found", logger.Int("length", len(token)))
	return token
}

// ExtractToken finds the API bearer token in a page: first the Next.js
// props.pageProps.accessToken, then pattern matches, preferring JWT-shaped
// tokens.
func ExtractToken(page []byte) string {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page)); err == nil {
		if raw := doc.Find("script#__NEXT_DATA__").First().Text(); raw != "" {
			var next struct {
				Props struct {
					PageProps struct {
						AccessToken string `json:"accessToken"`
					} `json:"pageProps"`
				} `json:"props"`
			}
			if json.Unmarshal([]byte(raw), &next) == nil {
				if t := next.Props.PageProps.AccessToken; len(t) > minTokenLength && strings.Contains(t, ".") {
					return t
				}
			}
		}
	}

	var candidates []string
	for _, re := range tokenPatterns {
		for _, m := range re.FindAllSubmatch(page, -1) {
			if len(m) > 1 {
				candidates = append(candidates, string(m[1]))
			} else {
				candidates = append(candidates, string(m[0]))
			}
		}
	}
	for _, t := range candidates {
		if len(t) > minTokenLength && strings.Contains(t, ".") {
			return t
		}
	}
	for _, t := range candidates {
		if len(t) > minTokenLength {
			return t
		}
	}
	return ""
}

// Extract tries each page host with the embedded-state strategy and falls
// back to readability on the last page fetched.
func (s *Investing) Extract(ctx context.Context, article domain.Article) (*domain.ExtractionResult, error) {
	var (
		lastPage *extraction.Page
		lastErr  error
		rejected bool
	)

	for _, pageURL := range hostVariants(article.URL, s.def.PageHosts) {
		resp, err := s.deps.Fetcher.Fetch(ctx, pageURL, htmlHeaders)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Debug("Article page unavailable", logger.String("url", pageURL), logger.Error(err))
			lastErr = err
			continue
		}

		page := extraction.Page{URL: resp.URL, Body: resp.Body, Format: extraction.FormatHTML}
		lastPage = &page

		res, err := s.dataEngine.Extract(page)
		if err == nil {
			return res, nil
		}
		rejected = rejected || errors.Is(err, domain.ErrValidationRejected)
	}

	if lastPage == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: no page url for %q", domain.ErrFetch, article.URL)
		}
		return nil, lastErr
	}

	res, err := s.pageEngine.Extract(*lastPage)
	if err == nil {
		return res, nil
	}
	rejected = rejected || errors.Is(err, domain.ErrValidationRejected)
	return nil, notFound(rejected, article.URL)
}

// Instruments looks up the hinted instrument ids.
func (s *Investing) Instruments(ctx context.Context, article domain.Article) ([]domain.InstrumentRecord, error) {
	if s.deps.Instruments == nil || len(article.InstrumentHints) == 0 {
		return nil, nil
	}
	return s.deps.Instruments.Lookup(ctx, article.InstrumentHints)
}

// hostVariants rewrites raw onto each host, in order and without repeats.
// Without hosts, or for an unparsable URL, raw is the only variant.
func hostVariants(raw string, hosts []string) []string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || len(hosts) == 0 {
		if raw == "" {
			return nil
		}
		return []string{raw}
	}

	seen := make(map[string]struct{}, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		v := *u
		v.Host = h
		s := v.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// jsonID accepts ids encoded as JSON strings or numbers.
type jsonID string

func (j *jsonID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*j = jsonID(s)
		return nil
	}
	if string(b) == "null" {
		*j = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*j = jsonID(n.String())
	return nil
}
