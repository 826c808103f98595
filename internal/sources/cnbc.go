package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/extraction"
	"github.com/ounols/jekyll-news/internal/logger"
)

const minCardTitleRunes = 10

var (
	cardClass        = regexp.MustCompile(`Card-|RiverCard`)
	fallbackCard     = regexp.MustCompile(`LatestNews|FeaturedCard`)
	cardTitleClass   = regexp.MustCompile(`Card-title|headline`)
	cardSummaryClass = regexp.MustCompile(`Card-description|summary`)
)

// CNBC crawls section pages for article cards and extracts bodies from the
// article markup, falling back to readability.
type CNBC struct {
	id     string
	def    Definition
	deps   Deps
	log    logger.Logger
	engine *extraction.Engine
}

var _ Source = (*CNBC)(nil)

func newCNBC(id string, def Definition, deps Deps, log logger.Logger) *CNBC {
	rules := paragraphRules(def.Selectors)
	structured := extraction.NewStructured(extraction.StructuredConfig{
		Containers:     def.Selectors.Containers,
		Unwanted:       def.Selectors.Unwanted,
		TitleSelectors: def.Selectors.Title,
		Paragraphs:     rules,
	})

	return &CNBC{
		id:   id,
		def:  def,
		deps: deps,
		log:  log,
		engine: extraction.NewEngine([]extraction.Strategy{
			structured,
			extraction.NewReadability(rules),
		}, extraction.WithMinBodyLength(deps.MinBodyLength), extraction.WithLogger(log)),
	}
}

func (s *CNBC) ID() string { return s.id }

func (s *CNBC) Profile() domain.SourceProfile { return s.def.Profile(s.id) }

func (s *CNBC) newCollector(ctx context.Context) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.MaxDepth(1),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	}
	if s.deps.UserAgent != "" {
		opts = append(opts, colly.UserAgent(s.deps.UserAgent))
	}
	c := colly.NewCollector(opts...)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       s.deps.ListingDelay,
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("failed to set rate limit: %w", err)
	}

	c.OnRequest(func(r *colly.Request) {
		for k, v := range htmlHeaders {
			r.Headers.Set(k, v)
		}
	})
	return c, nil
}

// List visits every section page in order and collects unique article cards.
func (s *CNBC) List(ctx context.Context, limit int) ([]domain.Article, error) {
	c, err := s.newCollector(ctx)
	if err != nil {
		return nil, err
	}

	var articles []domain.Article
	seen := make(map[string]struct{})

	c.OnHTML("body", func(e *colly.HTMLElement) {
		for _, a := range s.parseCards(e.DOM) {
			if _, dup := seen[a.URL]; dup {
				continue
			}
			seen[a.URL] = struct{}{}
			articles = append(articles, a)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		s.log.Warn("Section page failed",
			logger.String("url", r.Request.URL.String()),
			logger.Int("status", r.StatusCode),
			logger.Error(err),
		)
	})

	base := strings.TrimRight(s.def.BaseURL, "/")
	visited := 0
	for _, section := range s.def.Sections {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if limit > 0 && len(articles) >= limit {
			break
		}
		if err := c.Visit(base + section); err != nil {
			s.log.Warn("Section page skipped", logger.String("section", section), logger.Error(err))
			continue
		}
		visited++
	}
	c.Wait()

	if visited == 0 && len(s.def.Sections) > 0 {
		return nil, fmt.Errorf("list %s: %w: no section page reachable", s.id, domain.ErrFetch)
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	s.log.Info("Fetched listing", logger.Int("articles", len(articles)))
	return articles, nil
}

// parseCards applies the card cascade: card divs, then article tags, then
// news-list divs.
func (s *CNBC) parseCards(dom *goquery.Selection) []domain.Article {
	items := classMatch(dom.Find("div"), cardClass)
	if items.Length() == 0 {
		items = dom.Find("article")
	}
	if items.Length() == 0 {
		items = classMatch(dom.Find("div"), fallbackCard)
	}

	var out []domain.Article
	items.Each(func(_ int, item *goquery.Selection) {
		if a, ok := s.parseCard(item); ok {
			out = append(out, a)
		}
	})
	return out
}

func (s *CNBC) parseCard(item *goquery.Selection) (domain.Article, bool) {
	link := item.Find("a[href]").First()
	if link.Length() == 0 {
		return domain.Article{}, false
	}
	href, _ := link.Attr("href")

	title := strings.TrimSpace(classMatch(item.Find("h2, h3, span"), cardTitleClass).First().Text())
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}
	if utf8.RuneCountInString(title) < minCardTitleRunes {
		return domain.Article{}, false
	}

	var full string
	switch {
	case strings.HasPrefix(href, "/"):
		full = strings.TrimRight(s.def.BaseURL, "/") + href
	case strings.HasPrefix(href, "http"):
		full = href
	default:
		return domain.Article{}, false
	}
	if s.def.HostFilter != "" && !strings.Contains(full, s.def.HostFilter) {
		return domain.Article{}, false
	}
	for _, skip := range s.def.SkipPaths {
		if strings.Contains(full, skip) {
			return domain.Article{}, false
		}
	}

	var image string
	if img := item.Find("img").First(); img.Length() > 0 {
		image = img.AttrOr("src", "")
		if image == "" {
			image = img.AttrOr("data-src", "")
		}
	}

	summary := strings.TrimSpace(classMatch(item.Find("div"), cardSummaryClass).First().Text())

	return domain.Article{
		Source:   s.id,
		Title:    title,
		URL:      full,
		ImageURL: image,
		Summary:  summary,
	}, true
}

// classMatch keeps the elements with a class name matching re.
func classMatch(sel *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	return sel.FilterFunction(func(_ int, el *goquery.Selection) bool {
		for _, class := range strings.Fields(el.AttrOr("class", "")) {
			if re.MatchString(class) {
				return true
			}
		}
		return false
	})
}

func (s *CNBC) Extract(ctx context.Context, article domain.Article) (*domain.ExtractionResult, error) {
	resp, err := s.deps.Fetcher.Fetch(ctx, article.URL, htmlHeaders)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Extract(extraction.Page{URL: resp.URL, Body: resp.Body, Format: extraction.FormatHTML})
	if err != nil {
		return nil, notFound(false, article.URL)
	}
	return res, nil
}

// Instruments returns nothing; CNBC listings carry no instrument ids.
func (s *CNBC) Instruments(context.Context, domain.Article) ([]domain.InstrumentRecord, error) {
	return nil, nil
}
