package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ounols/jekyll-news/internal/catalog"
	"github.com/ounols/jekyll-news/internal/dedup"
	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/pipeline"
	"github.com/ounols/jekyll-news/internal/publisher"
	"github.com/ounols/jekyll-news/internal/sources"
	"github.com/ounols/jekyll-news/internal/store"
	"github.com/ounols/jekyll-news/internal/ticker"
	"github.com/ounols/jekyll-news/internal/translation"
	"github.com/ounols/jekyll-news/internal/validator"
)

const articleBody = "Nvidia $NVDA shares rose 5% on Wednesday after the chipmaker beat estimates.\n\n" +
	"Analysts at several banks raised their price targets following the report."

type fakeSource struct {
	id       string
	profile  domain.SourceProfile
	articles []domain.Article
	listErr  error
	extract  func(ctx context.Context, a domain.Article) (*domain.ExtractionResult, error)

	mu    sync.Mutex
	calls int
}

func (s *fakeSource) ID() string                    { return s.id }
func (s *fakeSource) Profile() domain.SourceProfile { return s.profile }

func (s *fakeSource) List(context.Context, int) ([]domain.Article, error) {
	return s.articles, s.listErr
}

func (s *fakeSource) Extract(ctx context.Context, a domain.Article) (*domain.ExtractionResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.extract(ctx, a)
}

func (s *fakeSource) Instruments(context.Context, domain.Article) ([]domain.InstrumentRecord, error) {
	return nil, nil
}

func extracted(body string) func(context.Context, domain.Article) (*domain.ExtractionResult, error) {
	return func(context.Context, domain.Article) (*domain.ExtractionResult, error) {
		return &domain.ExtractionResult{Title: "Nvidia shares rise", Body: body, Strategy: domain.StrategyStructured}, nil
	}
}

func failing(err error) func(context.Context, domain.Article) (*domain.ExtractionResult, error) {
	return func(context.Context, domain.Article) (*domain.ExtractionResult, error) { return nil, err }
}

// koTranslator prefixes Korean so the result reads as translated.
type koTranslator struct {
	fail bool
}

func (k koTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	if k.fail {
		return "", errors.New("service unavailable")
	}
	return "번역된 기사 내용입니다: " + text, nil
}

type harness struct {
	processor *pipeline.Processor
	store     *store.FileStore
}

func newHarness(t *testing.T, tr translation.Translator) harness {
	t.Helper()
	return newHarnessWithCache(t, tr, map[string]domain.InstrumentRecord{
		"NVDA": {Symbol: "NVDA", InstrumentID: "6497"},
	})
}

func newHarnessWithCache(t *testing.T, tr translation.Translator, cache map[string]domain.InstrumentRecord) harness {
	t.Helper()

	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	pub := publisher.New(st, dedup.NewMemory(),
		publisher.WithLocation(time.UTC),
		publisher.WithClock(func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }),
	)
	linker := ticker.NewLinker(catalog.NewSnapshot(cache), nil)
	val := validator.New(validator.Config{Phrases: []string{"risk warning", "disclaimer", "all rights reserved"}})

	proc := pipeline.NewProcessor(val, translation.New(tr, translation.Config{ChunkSize: 4500, MaxChunks: 3}), linker, pub,
		pipeline.Config{SourceLang: "en", TargetLang: "ko", MinSummaryLength: 100, MaxTickers: 5})
	return harness{processor: proc, store: st}
}

func cnbcSource(extract func(context.Context, domain.Article) (*domain.ExtractionResult, error), articles ...domain.Article) *fakeSource {
	return &fakeSource{
		id:       "cnbc",
		profile:  domain.SourceProfile{ID: "cnbc", Author: "CNBC", Category: "Financial"},
		articles: articles,
		extract:  extract,
	}
}

func article(id string) domain.Article {
	return domain.Article{
		Source:   "cnbc",
		SourceID: id,
		Title:    "Nvidia shares rise after earnings",
		URL:      "https://www.cnbc.com/2026/03/04/nvidia-" + id + ".html",
	}
}

func TestProcess_PublishesWithBadges(t *testing.T) {
	t.Parallel()

	h := newHarness(t, koTranslator{})
	src := cnbcSource(extracted(articleBody))

	out := h.processor.Process(context.Background(), src, article("n1"))
	require.Equal(t, domain.StatusPublished, out.Status, out.Err)
	assert.Equal(t, domain.StateDone, out.State)

	data, err := os.ReadFile(h.store.Path(out.Record.FilePath))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, `data-instrument-id="6497"`)
	assert.Contains(t, content, "symbol: NVDA")
	assert.Contains(t, content, "번역된 기사 내용입니다")
	assert.Contains(t, content, "article_id: n1")
}

func TestProcess_LinksEveryExchangeQualifiedTicker(t *testing.T) {
	t.Parallel()

	symbols := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG"}
	cache := make(map[string]domain.InstrumentRecord, len(symbols))
	var body strings.Builder
	for _, sym := range symbols {
		cache[sym] = domain.InstrumentRecord{Symbol: sym, InstrumentID: "id-" + sym}
		fmt.Fprintf(&body, "Shares of the company (NASDAQ:%s) moved after the quarterly report.\n\n", sym)
	}

	h := newHarnessWithCache(t, koTranslator{}, cache)
	out := h.processor.Process(context.Background(), cnbcSource(extracted(body.String())), article("many"))
	require.Equal(t, domain.StatusPublished, out.Status, out.Err)

	data, err := os.ReadFile(h.store.Path(out.Record.FilePath))
	require.NoError(t, err)
	for _, sym := range symbols {
		assert.Contains(t, string(data), `data-instrument-id="id-`+sym+`"`, sym)
	}
}

// cancellingTranslator ends the run while a body chunk is in flight.
type cancellingTranslator struct {
	cancel context.CancelFunc
}

func (c cancellingTranslator) Translate(ctx context.Context, _, _, _ string) (string, error) {
	c.cancel()
	return "", ctx.Err()
}

func TestProcess_CancelledDuringTranslation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, cancellingTranslator{cancel: cancel})
	out := h.processor.Process(ctx, cnbcSource(extracted(articleBody)), article("c1"))

	assert.Equal(t, domain.StatusSkipped, out.Status)
	assert.Equal(t, domain.ReasonCancelled, out.Reason)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestProcess_SecondRunSkipsDuplicate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, koTranslator{})
	src := cnbcSource(extracted(articleBody))

	first := h.processor.Process(context.Background(), src, article("n1"))
	require.Equal(t, domain.StatusPublished, first.Status)

	second := h.processor.Process(context.Background(), src, article("n1"))
	assert.Equal(t, domain.StatusSkipped, second.Status)
	assert.Equal(t, domain.ReasonDuplicate, second.Reason)
	assert.Equal(t, domain.StatePublishChecked, second.State)
}

func TestProcess_OutcomeMapping(t *testing.T) {
	t.Parallel()

	longSummary := strings.Repeat("Chipmaker results topped estimates. ", 5)
	legal := "Risk Warning: trading is risky. Disclaimer: all rights reserved. " + strings.Repeat("x", 200)

	tests := []struct {
		name       string
		extract    func(context.Context, domain.Article) (*domain.ExtractionResult, error)
		summary    string
		translator translation.Translator
		wantStatus domain.Status
		wantReason string
		wantState  domain.State
	}{
		{
			name:       "fetch error",
			extract:    failing(fmt.Errorf("fetch: %w", &domain.FetchError{URL: "u", StatusCode: 503})),
			wantStatus: domain.StatusFailed,
			wantReason: domain.ReasonFetchFailed,
			wantState:  domain.StateFetched,
		},
		{
			name:       "nothing extracted",
			extract:    failing(domain.ErrExtractionNotFound),
			wantStatus: domain.StatusSkipped,
			wantReason: domain.ReasonExtractionNotFound,
			wantState:  domain.StateExtracted,
		},
		{
			name:       "source rejected every candidate",
			extract:    failing(fmt.Errorf("%w: %w", domain.ErrExtractionNotFound, domain.ErrValidationRejected)),
			wantStatus: domain.StatusSkipped,
			wantReason: domain.ReasonValidationRejected,
			wantState:  domain.StateExtracted,
		},
		{
			name:       "extracted legal notice",
			extract:    extracted(legal),
			wantStatus: domain.StatusSkipped,
			wantReason: domain.ReasonValidationRejected,
			wantState:  domain.StateExtracted,
		},
		{
			name:       "summary rescues failed extraction",
			extract:    failing(domain.ErrExtractionNotFound),
			summary:    longSummary,
			wantStatus: domain.StatusPublished,
			wantReason: domain.ReasonPublished,
			wantState:  domain.StateDone,
		},
		{
			name:       "short summary does not rescue",
			extract:    failing(domain.ErrExtractionNotFound),
			summary:    "Too short.",
			wantStatus: domain.StatusSkipped,
			wantReason: domain.ReasonExtractionNotFound,
			wantState:  domain.StateExtracted,
		},
		{
			name:       "translation fails",
			extract:    extracted(articleBody),
			translator: koTranslator{fail: true},
			wantStatus: domain.StatusFailed,
			wantReason: domain.ReasonEmptyTranslation,
			wantState:  domain.StateLinkedPre,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := tt.translator
			if tr == nil {
				tr = koTranslator{}
			}
			h := newHarness(t, tr)
			a := article("x")
			a.Summary = tt.summary

			out := h.processor.Process(context.Background(), cnbcSource(tt.extract), a)
			assert.Equal(t, tt.wantStatus, out.Status, out.Err)
			assert.Equal(t, tt.wantReason, out.Reason)
			assert.Equal(t, tt.wantState, out.State)
		})
	}
}

func TestProcess_SummaryFirstSkipsCrawl(t *testing.T) {
	t.Parallel()

	h := newHarness(t, koTranslator{})
	src := cnbcSource(extracted(articleBody))
	src.profile.SummaryFirst = true

	a := article("s1")
	a.Summary = strings.Repeat("Nvidia shares climbed on strong demand. ", 4)

	out := h.processor.Process(context.Background(), src, a)
	require.Equal(t, domain.StatusPublished, out.Status, out.Err)
	assert.Zero(t, src.calls)
}

func TestProcess_InvalidArticle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, koTranslator{})
	out := h.processor.Process(context.Background(), cnbcSource(extracted(articleBody)), domain.Article{URL: "https://x"})
	assert.Equal(t, domain.StatusSkipped, out.Status)
	assert.Equal(t, domain.ReasonInvalidArticle, out.Reason)
}

type recorder struct {
	mu       sync.Mutex
	observed []string
}

func (r *recorder) ObserveArticle(source string, o domain.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed = append(r.observed, source+"/"+o.Reason)
}

func (r *recorder) ObserveListingError(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed = append(r.observed, source+"/listing")
}

func TestRunner_RecoversPanicsAndContinues(t *testing.T) {
	t.Parallel()

	h := newHarness(t, koTranslator{})
	src := cnbcSource(func(_ context.Context, a domain.Article) (*domain.ExtractionResult, error) {
		if a.SourceID == "boom" {
			panic("selector exploded")
		}
		return extracted(articleBody)(context.Background(), a)
	}, article("boom"), article("ok"))

	broken := &fakeSource{id: "investing", listErr: errors.New("api down")}

	rec := &recorder{}
	runner := pipeline.NewRunner(h.processor, pipeline.WithRecorder(rec))

	summary, err := runner.Run(context.Background(), []sources.Source{broken, src}, 5)
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, domain.ReasonPanic, summary.Results[0].Outcome.Reason)
	assert.Equal(t, domain.StatusPublished, summary.Results[1].Outcome.Status)
	assert.Equal(t, 1, summary.Count(domain.StatusFailed))
	assert.Equal(t, map[string]int{domain.ReasonPanic: 1, domain.ReasonPublished: 1}, summary.Reasons())
	assert.Contains(t, summary.ListErrors, "investing")
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, []string{"investing/listing", "cnbc/panic", "cnbc/published"}, rec.observed)
}

func TestRunner_StopsWhenCancelled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, koTranslator{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := cnbcSource(func(_ context.Context, a domain.Article) (*domain.ExtractionResult, error) {
		cancel()
		return extracted(articleBody)(context.Background(), a)
	}, article("a1"), article("a2"), article("a3"))

	summary, err := pipeline.NewRunner(h.processor).Run(ctx, []sources.Source{src}, 5)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 1, src.calls)
}
