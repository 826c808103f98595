package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ounols/jekyll-news/internal/domain"
)

// StructuredConfig describes a site's article markup.
type StructuredConfig struct {
	// Containers are tried in order; the first that yields text wins.
	Containers []string
	// Unwanted nodes are removed from the region before collecting text.
	Unwanted       []string
	TitleSelectors []string
	Paragraphs     ParagraphRules
}

// DefaultStructuredConfig fits common article markup.
func DefaultStructuredConfig() StructuredConfig {
	return StructuredConfig{
		Containers:     []string{"[itemprop='articleBody']", "article", "main"},
		Unwanted:       []string{"script", "style", "aside", "figure", "nav", "form"},
		TitleSelectors: []string{"h1"},
		Paragraphs: ParagraphRules{
			Selectors:          "p, h2, h3",
			MinLength:          20,
			SkipPhrases:        []string{"subscribe", "newsletter", "sign up", "click here", "read more", "advertisement", "sponsored"},
			UnwantedClassWords: DefaultUnwantedClassWords,
		},
	}
}

// StructuredStrategy extracts text from known content containers.
type StructuredStrategy struct {
	cfg StructuredConfig
}

// NewStructured creates a StructuredStrategy.
func NewStructured(cfg StructuredConfig) *StructuredStrategy {
	return &StructuredStrategy{cfg: cfg}
}

func (s *StructuredStrategy) Kind() domain.Strategy { return domain.StrategyStructured }

func (s *StructuredStrategy) Extract(page Page) (*domain.ExtractionResult, error) {
	if page.Format != FormatHTML {
		return nil, ErrNoContent
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	for _, sel := range s.cfg.Containers {
		region := doc.Find(sel).First()
		if region.Length() == 0 {
			continue
		}
		for _, unwanted := range s.cfg.Unwanted {
			region.Find(unwanted).Remove()
		}

		paragraphs := collectParagraphs(region, s.cfg.Paragraphs)
		if len(paragraphs) == 0 {
			continue
		}

		return &domain.ExtractionResult{
			Title:    PageTitle(doc, s.cfg.TitleSelectors),
			Body:     strings.Join(paragraphs, "\n\n"),
			Strategy: domain.StrategyStructured,
		}, nil
	}

	return nil, ErrNoContent
}

// PageTitle returns the first non-empty title from selectors, then the
// og:title meta tag, then the document title.
func PageTitle(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if title := collapseSpace(doc.Find(sel).First().Text()); title != "" {
			return title
		}
	}
	if og, ok := doc.Find("meta[property='og:title']").First().Attr("content"); ok {
		if title := collapseSpace(og); title != "" {
			return title
		}
	}
	return collapseSpace(doc.Find("title").First().Text())
}
