package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/sources"
)

// Recorder receives run measurements.
type Recorder interface {
	ObserveArticle(source string, outcome domain.Outcome, d time.Duration)
	ObserveListingError(source string)
}

// Result is the outcome of one article in a run.
type Result struct {
	Source   string
	Article  domain.Article
	Outcome  domain.Outcome
	Duration time.Duration
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Results  []Result
	// ListErrors holds the listing failure of each source that had one.
	ListErrors map[string]error
}

// Count returns the number of results with status.
func (s *Summary) Count(status domain.Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome.Status == status {
			n++
		}
	}
	return n
}

// Reasons counts results by reason label.
func (s *Summary) Reasons() map[string]int {
	out := make(map[string]int)
	for _, r := range s.Results {
		out[r.Outcome.Reason]++
	}
	return out
}

// Runner processes the listings of several sources sequentially.
type Runner struct {
	processor *Processor
	log       logger.Logger
	recorder  Recorder
	now       func() time.Time
	newID     func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithRecorder(r Recorder) RunnerOption { return func(rn *Runner) { rn.recorder = r } }

func WithRunnerLogger(l logger.Logger) RunnerOption { return func(rn *Runner) { rn.log = l } }

// WithRunnerClock replaces the clock used for durations.
func WithRunnerClock(now func() time.Time) RunnerOption { return func(rn *Runner) { rn.now = now } }

func NewRunner(p *Processor, opts ...RunnerOption) *Runner {
	r := &Runner{
		processor: p,
		log:       logger.NewNop(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run lists each source and processes its articles in listing order. It
// returns early with ctx.Err() when ctx ends; the summary covers the
// articles finished so far. A listing failure skips only that source.
func (r *Runner) Run(ctx context.Context, srcs []sources.Source, limit int) (*Summary, error) {
	summary := &Summary{
		RunID:      r.newID(),
		Started:    r.now(),
		ListErrors: make(map[string]error),
	}
	runLog := r.log.With(logger.String("run_id", summary.RunID))
	defer func() { summary.Duration = r.now().Sub(summary.Started) }()

	runLog.Info("Run started", logger.Int("sources", len(srcs)), logger.Int("limit", limit))

	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		srcLog := runLog.With(logger.String("source", src.ID()))
		articles, err := src.List(ctx, limit)
		if err != nil {
			srcLog.Error("Listing failed", logger.Error(err))
			summary.ListErrors[src.ID()] = err
			if r.recorder != nil {
				r.recorder.ObserveListingError(src.ID())
			}
			continue
		}
		srcLog.Info("Processing listing", logger.Int("articles", len(articles)))

		for i, article := range articles {
			if err := ctx.Err(); err != nil {
				srcLog.Warn("Run cancelled", logger.Int("remaining", len(articles)-i))
				return summary, err
			}
			summary.Results = append(summary.Results, r.runOne(ctx, srcLog, src, article))
		}
	}

	runLog.Info("Run finished",
		logger.Int("published", summary.Count(domain.StatusPublished)),
		logger.Int("skipped", summary.Count(domain.StatusSkipped)),
		logger.Int("failed", summary.Count(domain.StatusFailed)),
	)
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, log logger.Logger, src sources.Source, article domain.Article) Result {
	articleLog := log.With(logger.String("article_url", article.URL))
	started := r.now()

	outcome := r.safeProcess(logger.WithContext(ctx, articleLog), src, article)
	elapsed := r.now().Sub(started)

	fields := []logger.Field{
		logger.String("status", outcome.Status.String()),
		logger.String("reason", outcome.Reason),
		logger.String("state", outcome.State.String()),
		logger.Duration("duration", elapsed),
	}
	if outcome.Record != nil {
		fields = append(fields, logger.String("file", outcome.Record.FilePath))
	}
	if outcome.Err != nil {
		fields = append(fields, logger.Error(outcome.Err))
	}
	switch outcome.Status {
	case domain.StatusFailed:
		articleLog.Error("Article failed", fields...)
	case domain.StatusSkipped:
		articleLog.Info("Article skipped", fields...)
	default:
		articleLog.Info("Article published", fields...)
	}

	if r.recorder != nil {
		r.recorder.ObserveArticle(src.ID(), outcome, elapsed)
	}
	return Result{Source: src.ID(), Article: article, Outcome: outcome, Duration: elapsed}
}

// safeProcess turns a panic in one article into a failed outcome.
func (r *Runner) safeProcess(ctx context.Context, src sources.Source, article domain.Article) (out domain.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.FromContext(ctx).Error("Recovered panic while processing article",
				logger.Any("panic", rec),
				logger.String("stack", string(debug.Stack())),
			)
			out = domain.Failed(domain.ReasonPanic, domain.StateFetched, fmt.Errorf("panic: %v", rec))
		}
	}()
	return r.processor.Process(ctx, src, article)
}
