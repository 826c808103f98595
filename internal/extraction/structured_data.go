package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/ounols/jekyll-news/internal/domain"
)

// StructuredDataConfig controls the search through embedded JSON state.
type StructuredDataConfig struct {
	// MaxDepth bounds the traversal; nodes deeper than this are not visited.
	MaxDepth int
	// MinBodyLength is the rune length a raw body must exceed.
	MinBodyLength int
	TitleKeys     []string
	BodyKeys      []string
	// GroupKeys mark subtrees whose candidates win over any bare match.
	GroupKeys  []string
	Paragraphs ParagraphRules
}

// DefaultStructuredDataConfig fits Next.js article stores and JSON-LD.
func DefaultStructuredDataConfig() StructuredDataConfig {
	return StructuredDataConfig{
		MaxDepth:      10,
		MinBodyLength: 500,
		TitleKeys:     []string{"title", "headline"},
		BodyKeys:      []string{"body", "bodyHtml", "articleBody"},
		GroupKeys:     []string{"articleStore", "article"},
		Paragraphs: ParagraphRules{
			Selectors:   "p, h2, h3, li",
			MinLength:   15,
			SkipPhrases: []string{"subscribe", "newsletter", "sign up", "click here", "구독", "뉴스레터", "가입"},
		},
	}
}

// StructuredDataStrategy reads articles out of JSON embedded in the page
// (__NEXT_DATA__, JSON-LD) or out of a JSON response body.
type StructuredDataStrategy struct {
	cfg StructuredDataConfig
}

// NewStructuredData creates a StructuredDataStrategy.
func NewStructuredData(cfg StructuredDataConfig) *StructuredDataStrategy {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	return &StructuredDataStrategy{cfg: cfg}
}

func (s *StructuredDataStrategy) Kind() domain.Strategy { return domain.StrategyStructuredData }

func (s *StructuredDataStrategy) Extract(page Page) (*domain.ExtractionResult, error) {
	payloads, err := s.payloads(page)
	if err != nil {
		return nil, err
	}

	for _, payload := range payloads {
		var tree any
		if err := json.Unmarshal(payload, &tree); err != nil {
			continue
		}

		found := s.Find(tree)
		if found == nil {
			continue
		}

		paragraphs := s.paragraphs(found.Body)
		if len(paragraphs) == 0 {
			continue
		}
		return &domain.ExtractionResult{
			Title:    found.Title,
			Body:     strings.Join(paragraphs, "\n\n"),
			Strategy: domain.StrategyStructuredData,
		}, nil
	}
	return nil, ErrNoContent
}

func (s *StructuredDataStrategy) payloads(page Page) ([][]byte, error) {
	if page.Format == FormatJSON {
		return [][]byte{page.Body}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out [][]byte
	doc.Find("script#__NEXT_DATA__, script[type='application/ld+json']").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			out = append(out, []byte(text))
		}
	})
	if len(out) == 0 {
		return nil, ErrNoContent
	}
	return out, nil
}

// Candidate is an article found in a JSON tree. Body is the raw value.
type Candidate struct {
	Title   string
	Body    string
	Grouped bool
}

// Find searches tree depth-first with map keys in sorted order, so the
// result is deterministic. A candidate under a group key beats a bare one;
// among equals the first visited wins.
func (s *StructuredDataStrategy) Find(tree any) *Candidate {
	search := jsonSearch{cfg: &s.cfg}
	search.walk(tree, 0, false)
	if search.grouped != nil {
		return search.grouped
	}
	return search.bare
}

type jsonSearch struct {
	cfg     *StructuredDataConfig
	bare    *Candidate
	grouped *Candidate
}

func (j *jsonSearch) walk(node any, depth int, inGroup bool) {
	if j.grouped != nil || depth > j.cfg.MaxDepth {
		return
	}

	switch v := node.(type) {
	case map[string]any:
		if c := j.candidate(v); c != nil {
			if inGroup {
				c.Grouped = true
				j.grouped = c
				return
			}
			if j.bare == nil {
				j.bare = c
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			j.walk(v[k], depth+1, inGroup || slices.Contains(j.cfg.GroupKeys, k))
		}
	case []any:
		for _, item := range v {
			j.walk(item, depth+1, inGroup)
		}
	}
}

func (j *jsonSearch) candidate(m map[string]any) *Candidate {
	title, hasTitle := firstString(m, j.cfg.TitleKeys)
	if !hasTitle {
		return nil
	}
	for _, key := range j.cfg.BodyKeys {
		body, ok := m[key].(string)
		if ok && utf8.RuneCountInString(body) > j.cfg.MinBodyLength {
			return &Candidate{Title: collapseSpace(title), Body: body}
		}
	}
	return nil
}

func firstString(m map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

func (s *StructuredDataStrategy) paragraphs(body string) []string {
	if looksLikeMarkup(body) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err == nil {
			if paragraphs := collectParagraphs(doc.Selection, s.cfg.Paragraphs); len(paragraphs) > 0 {
				return paragraphs
			}
		}
		body = stripPolicy.Sanitize(body)
	}
	return splitPlainText(unescape(body), s.cfg.Paragraphs)
}
