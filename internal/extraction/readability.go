package extraction

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/ounols/jekyll-news/internal/domain"
)

// ReadabilityStrategy runs a generic readability extractor over the whole
// page, then applies the paragraph filters to its output.
type ReadabilityStrategy struct {
	rules ParagraphRules
}

// NewReadability creates a ReadabilityStrategy.
func NewReadability(rules ParagraphRules) *ReadabilityStrategy {
	return &ReadabilityStrategy{rules: rules}
}

func (s *ReadabilityStrategy) Kind() domain.Strategy { return domain.StrategyReadability }

func (s *ReadabilityStrategy) Extract(page Page) (*domain.ExtractionResult, error) {
	if page.Format != FormatHTML || len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, ErrNoContent
	}

	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: readability: %w", ErrNoContent, err)
	}

	var paragraphs []string
	if content := strings.TrimSpace(article.Content); content != "" {
		doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(content))
		if parseErr == nil {
			paragraphs = collectParagraphs(doc.Selection, s.rules)
		}
	}
	if len(paragraphs) == 0 {
		paragraphs = splitPlainText(article.TextContent, s.rules)
	}
	if len(paragraphs) == 0 {
		return nil, ErrNoContent
	}

	return &domain.ExtractionResult{
		Title:    collapseSpace(article.Title),
		Body:     strings.Join(paragraphs, "\n\n"),
		Strategy: domain.StrategyReadability,
	}, nil
}
