package extraction_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/extraction"
)

const para1 = "Nvidia shares climbed more than five percent on Tuesday after the chipmaker reported revenue above estimates."
const para2 = "Analysts said demand for data center processors remained strong heading into the second half of the year."
const para3 = "The company also raised its guidance for the current quarter, citing continued orders from cloud providers."

var articleHTML = `<html><head><title>Doc title</title>
<meta property="og:title" content="OG title"></head>
<body>
<h1 class="ArticleHeader-headline">Nvidia rallies on earnings</h1>
<div class="ArticleBody-articleBody">
  <p>` + para1 + `</p>
  <div class="InlineAd-container"><p>This paragraph sits inside an inline ad wrapper and must go.</p></div>
  <aside class="RelatedContent"><p>Related coverage that should be removed from the body.</p></aside>
  <p>Short one.</p>
  <h2>` + para2 + `</h2>
  <p>Subscribe to our newsletter for the latest market coverage every day.</p>
  <div class="header-block"><p>` + para3 + `</p></div>
</div>
</body></html>`

func structured() *extraction.StructuredStrategy {
	cfg := extraction.DefaultStructuredConfig()
	cfg.Containers = []string{"div[class*='ArticleBody-articleBody']", "article"}
	cfg.TitleSelectors = []string{"h1.ArticleHeader-headline", "h1"}
	return extraction.NewStructured(cfg)
}

func TestStructured_FiltersAndOrders(t *testing.T) {
	t.Parallel()

	res, err := structured().Extract(extraction.Page{URL: "https://www.cnbc.com/a", Body: []byte(articleHTML)})

	require.NoError(t, err)
	assert.Equal(t, "Nvidia rallies on earnings", res.Title)
	assert.Equal(t, strings.Join([]string{para1, para2, para3}, "\n\n"), res.Body)
	assert.Equal(t, domain.StrategyStructured, res.Strategy)
}

func TestStructured_NoContainer(t *testing.T) {
	t.Parallel()

	_, err := structured().Extract(extraction.Page{Body: []byte("<html><body><div>nothing</div></body></html>")})
	assert.ErrorIs(t, err, extraction.ErrNoContent)

	_, err = structured().Extract(extraction.Page{Body: []byte(`{"a":1}`), Format: extraction.FormatJSON})
	assert.ErrorIs(t, err, extraction.ErrNoContent)
}

func TestPageTitleFallbacks(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Doc title</title><meta property="og:title" content="OG title"></head>
<body><article><p>` + para1 + `</p></article></body></html>`
	res, err := structured().Extract(extraction.Page{Body: []byte(html)})
	require.NoError(t, err)
	assert.Equal(t, "OG title", res.Title)
}

type countingStrategy struct {
	extraction.Strategy
	calls int
}

func (c *countingStrategy) Extract(page extraction.Page) (*domain.ExtractionResult, error) {
	c.calls++
	return c.Strategy.Extract(page)
}

type stubStrategy struct {
	kind domain.Strategy
	body string
	err  error
}

func (s stubStrategy) Kind() domain.Strategy { return s.kind }

func (s stubStrategy) Extract(extraction.Page) (*domain.ExtractionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ExtractionResult{Body: s.body}, nil
}

func TestEngine_StructuredWinsWithoutReadability(t *testing.T) {
	t.Parallel()

	fallback := &countingStrategy{Strategy: extraction.NewReadability(extraction.DefaultStructuredConfig().Paragraphs)}
	engine := extraction.NewEngine([]extraction.Strategy{structured(), fallback})

	res, err := engine.Extract(extraction.Page{URL: "https://www.cnbc.com/a", Body: []byte(articleHTML)})

	require.NoError(t, err)
	assert.Equal(t, domain.StrategyStructured, res.Strategy)
	assert.GreaterOrEqual(t, len([]rune(res.Body)), extraction.DefaultMinBodyLength)
	assert.Zero(t, fallback.calls, "readability must not run when the structured body is long enough")
}

func TestEngine_ShortResultFallsThrough(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 250)
	engine := extraction.NewEngine([]extraction.Strategy{
		stubStrategy{kind: domain.StrategyStructured, body: "too short"},
		stubStrategy{kind: domain.StrategyReadability, err: extraction.ErrNoContent},
		stubStrategy{kind: domain.StrategyStructuredData, body: long},
	})

	res, err := engine.Extract(extraction.Page{})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyStructuredData, res.Strategy)
	assert.Equal(t, long, res.Body)
}

func TestEngine_NotFound(t *testing.T) {
	t.Parallel()

	engine := extraction.NewEngine([]extraction.Strategy{
		stubStrategy{kind: domain.StrategyStructured, err: extraction.ErrNoContent},
		stubStrategy{kind: domain.StrategyReadability, body: "short"},
	})
	res, err := engine.Extract(extraction.Page{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrExtractionNotFound)
	assert.NotErrorIs(t, err, domain.ErrValidationRejected)
}

type rejectAll struct{}

func (rejectAll) IsValid(string) bool { return false }

func TestEngine_GateRejection(t *testing.T) {
	t.Parallel()

	engine := extraction.NewEngine(
		[]extraction.Strategy{stubStrategy{kind: domain.StrategyStructured, body: strings.Repeat("b", 300)}},
		extraction.WithGate(rejectAll{}),
	)
	_, err := engine.Extract(extraction.Page{})
	assert.ErrorIs(t, err, domain.ErrExtractionNotFound)
	assert.ErrorIs(t, err, domain.ErrValidationRejected)
}

func longBody() string {
	return "<p>" + para1 + "</p><p>" + para2 + "</p><ul><li>" + para3 + "</li></ul>" +
		"<p>Sign up for our newsletter to get more stories like this one.</p>" +
		"<p>" + strings.Repeat("Markets were mixed as investors weighed rates. ", 8) + "</p>"
}

func nextDataPage(t *testing.T, tree any) []byte {
	t.Helper()
	raw, err := json.Marshal(tree)
	require.NoError(t, err)
	return []byte(`<html><head><script id="__NEXT_DATA__" type="application/json">` + string(raw) +
		`</script></head><body></body></html>`)
}

func TestStructuredData_PrefersGroupedCandidate(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				// "a..." sorts before "state" so the bare match is visited first.
				"aside": map[string]any{"title": "Bare", "body": strings.Repeat("x ", 300)},
				"state": map[string]any{
					"articleStore": map[string]any{
						"article": map[string]any{"title": "Grouped headline", "body": longBody()},
					},
				},
			},
		},
	}

	s := extraction.NewStructuredData(extraction.DefaultStructuredDataConfig())
	res, err := s.Extract(extraction.Page{Body: nextDataPage(t, tree)})

	require.NoError(t, err)
	assert.Equal(t, "Grouped headline", res.Title)
	assert.True(t, strings.HasPrefix(res.Body, para1+"\n\n"+para2+"\n\n"+para3))
	assert.NotContains(t, res.Body, "newsletter")
	assert.Equal(t, domain.StrategyStructuredData, res.Strategy)
}

func TestStructuredData_BareFallbackAndJSONFormat(t *testing.T) {
	t.Parallel()

	plain := strings.Repeat("Shares of the company rose sharply in afternoon trading.\n", 12)
	raw, err := json.Marshal(map[string]any{"data": []any{map[string]any{"headline": "Plain", "articleBody": plain}}})
	require.NoError(t, err)

	s := extraction.NewStructuredData(extraction.DefaultStructuredDataConfig())
	res, err := s.Extract(extraction.Page{Body: raw, Format: extraction.FormatJSON})

	require.NoError(t, err)
	assert.Equal(t, "Plain", res.Title)
	assert.Equal(t, 12, strings.Count(res.Body, "Shares of the company"))
}

func TestStructuredData_DepthBound(t *testing.T) {
	t.Parallel()

	cfg := extraction.DefaultStructuredDataConfig()
	s := extraction.NewStructuredData(cfg)

	nest := func(levels int) any {
		var node any = map[string]any{"title": "Deep", "body": longBody()}
		for range levels {
			node = map[string]any{"n": node}
		}
		return node
	}

	within := s.Find(nest(cfg.MaxDepth))
	require.NotNil(t, within)
	assert.Equal(t, "Deep", within.Title)

	assert.Nil(t, s.Find(nest(cfg.MaxDepth+1)))
}

func TestStructuredData_ShortBodyIgnored(t *testing.T) {
	t.Parallel()

	s := extraction.NewStructuredData(extraction.DefaultStructuredDataConfig())
	assert.Nil(t, s.Find(map[string]any{"title": "t", "body": strings.Repeat("y", 500)}))
	assert.NotNil(t, s.Find(map[string]any{"title": "t", "body": strings.Repeat("y", 501)}))

	_, err := s.Extract(extraction.Page{Body: []byte("<html><body>no scripts</body></html>")})
	assert.ErrorIs(t, err, extraction.ErrNoContent)
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AT&T rose 3% today", extraction.StripTags("<p>AT&amp;T <b>rose</b>\n 3% today</p>"))
}
