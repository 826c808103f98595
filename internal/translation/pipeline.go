// Package translation translates article text through an external
// Translator in bounded, paced chunks.
package translation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/ratelimit"
)

// Translator is the external translation service.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// PartialError reports the chunks skipped from a translation.
type PartialError struct {
	Failed []int
	Total  int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of %d chunks failed: %v", len(e.Failed), e.Total, e.Failed)
}

func (e *PartialError) Unwrap() error { return domain.ErrTranslationPartial }

// Config controls chunking.
type Config struct {
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int
	// MaxChunks truncates longer texts; 0 keeps every chunk.
	MaxChunks int
	// Threshold is passed to the script detector.
	Threshold float64
}

// Chunk results reported to the observer.
const (
	ChunkTranslated = "translated"
	ChunkSkipped    = "skipped"
	ChunkFailed     = "failed"
)

// Pipeline translates text chunk by chunk, sequentially.
type Pipeline struct {
	translator Translator
	cfg        Config
	pacer      *ratelimit.Pacer
	log        logger.Logger
	observe    func(result string)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPacer spaces translator calls.
func WithPacer(p *ratelimit.Pacer) Option { return func(tp *Pipeline) { tp.pacer = p } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(tp *Pipeline) { tp.log = l } }

// WithObserver is told the result of every chunk.
func WithObserver(fn func(result string)) Option { return func(tp *Pipeline) { tp.observe = fn } }

// New creates a Pipeline.
func New(translator Translator, cfg Config, opts ...Option) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4500
	}
	p := &Pipeline{
		translator: translator,
		cfg:        cfg,
		log:        logger.NewNop(),
		observe:    func(string) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TranslateChunks splits text and translates each chunk in order. Chunks
// already in the target script map to themselves without a call. A failed
// chunk carries its error and the rest continue. The returned error is
// only set when ctx ended.
func (p *Pipeline) TranslateChunks(ctx context.Context, text, source, target string) ([]domain.TranslatedChunk, error) {
	detector := DetectorFor(target, p.cfg.Threshold)
	pieces := Chunk(text, p.cfg.ChunkSize)

	if detector.IsTarget(text) {
		p.log.Debug("Text already in target language", logger.String("target", target))
		chunks := make([]domain.TranslatedChunk, len(pieces))
		for i, piece := range pieces {
			chunks[i] = domain.TranslatedChunk{Index: i, Source: piece, Translated: piece}
			p.observe(ChunkSkipped)
		}
		return chunks, nil
	}

	if p.cfg.MaxChunks > 0 && len(pieces) > p.cfg.MaxChunks {
		p.log.Warn("Truncating text before translation",
			logger.Int("chunks", len(pieces)),
			logger.Int("max_chunks", p.cfg.MaxChunks),
		)
		pieces = pieces[:p.cfg.MaxChunks]
	}

	chunks := make([]domain.TranslatedChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunk := domain.TranslatedChunk{Index: i, Source: piece}

		if detector.IsTarget(piece) {
			chunk.Translated = piece
			chunks = append(chunks, chunk)
			p.observe(ChunkSkipped)
			continue
		}

		if err := p.pacer.Wait(ctx); err != nil {
			return chunks, err
		}

		translated, err := p.translator.Translate(ctx, piece, source, target)
		if err == nil && strings.TrimSpace(translated) == "" {
			err = errors.New("empty translation")
		}
		if err != nil {
			if ctx.Err() != nil {
				return chunks, ctx.Err()
			}
			p.log.Warn("Chunk translation failed, skipping chunk",
				logger.Int("chunk", i),
				logger.Int("chunks", len(pieces)),
				logger.Error(err),
			)
			chunk.Err = err
			p.observe(ChunkFailed)
		} else {
			chunk.Translated = translated
			p.observe(ChunkTranslated)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Translate returns the surviving chunk translations joined by blank lines
// in chunk order. Some failures yield the text with a *PartialError; if
// every chunk fails the error wraps domain.ErrTranslationFailed.
func (p *Pipeline) Translate(ctx context.Context, text, source, target string) (string, error) {
	chunks, err := p.TranslateChunks(ctx, text, source, target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranslationFailed, err)
	}
	return Assemble(chunks)
}

// TranslateTitle translates a single chunk and falls back to title on failure.
func (p *Pipeline) TranslateTitle(ctx context.Context, title, source, target string) string {
	if strings.TrimSpace(title) == "" || DetectorFor(target, p.cfg.Threshold).IsTarget(title) {
		return title
	}
	if err := p.pacer.Wait(ctx); err != nil {
		return title
	}

	translated, err := p.translator.Translate(ctx, title, source, target)
	if err != nil || strings.TrimSpace(translated) == "" {
		p.log.Warn("Title translation failed, keeping original", logger.Error(err))
		p.observe(ChunkFailed)
		return title
	}
	p.observe(ChunkTranslated)
	return strings.TrimSpace(translated)
}

// Assemble joins chunks by Index, skipping failed ones.
func Assemble(chunks []domain.TranslatedChunk) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}

	ordered := slices.Clone(chunks)
	slices.SortStableFunc(ordered, func(a, b domain.TranslatedChunk) int {
		return cmp.Compare(a.Index, b.Index)
	})

	parts := make([]string, 0, len(ordered))
	var failed []int
	for _, c := range ordered {
		if c.Err != nil {
			failed = append(failed, c.Index)
			continue
		}
		parts = append(parts, c.Translated)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: all %d chunks failed", domain.ErrTranslationFailed, len(ordered))
	}
	joined := strings.Join(parts, "\n\n")
	if len(failed) > 0 {
		return joined, &PartialError{Failed: failed, Total: len(ordered)}
	}
	return joined, nil
}
