package sources

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ounols/jekyll-news/internal/domain"
)

// Definition is the per-site configuration of a source adapter.
type Definition struct {
	// Kind selects the adapter; it defaults to the source id.
	Kind         string `yaml:"kind"`
	Author       string `yaml:"author"`
	Category     string `yaml:"category"`
	FilePrefix   string `yaml:"file_prefix"`
	SummaryFirst bool   `yaml:"summary_first"`
	BaseURL      string `yaml:"base_url"`
	// ListingURL is the news API for API-listed sources.
	ListingURL string `yaml:"listing_url"`
	// TokenPage is fetched to discover the API bearer token.
	TokenPage string `yaml:"token_page"`
	// PageHosts are tried in order when fetching an article page.
	PageHosts []string `yaml:"page_hosts"`
	// Sections are listing pages crawled for article cards.
	Sections []string `yaml:"sections"`
	// HostFilter keeps only listing links whose URL contains it.
	HostFilter     string    `yaml:"host_filter"`
	SkipPaths      []string  `yaml:"skip_paths"`
	MaxInstruments int       `yaml:"max_instruments"`
	TitleCleanups  []string  `yaml:"title_cleanups"`
	Selectors      Selectors `yaml:"selectors"`
}

// Selectors describe the article markup of a site.
type Selectors struct {
	Containers   []string `yaml:"containers"`
	Unwanted     []string `yaml:"unwanted"`
	Title        []string `yaml:"title"`
	Paragraphs   string   `yaml:"paragraphs"`
	MinParagraph int      `yaml:"min_paragraph"`
	SkipPhrases  []string `yaml:"skip_phrases"`
}

// Profile derives the publishing profile of source id.
func (d Definition) Profile(id string) domain.SourceProfile {
	return domain.SourceProfile{
		ID:            id,
		Author:        d.Author,
		Category:      d.Category,
		FilePrefix:    d.FilePrefix,
		TitleCleanups: slices.Clone(d.TitleCleanups),
		SummaryFirst:  d.SummaryFirst,
	}
}

// Validate checks the fields every adapter relies on.
func (d Definition) Validate() error {
	if d.BaseURL == "" {
		return errors.New("base_url is required")
	}
	for _, p := range d.TitleCleanups {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("title_cleanups: %w", err)
		}
	}
	return nil
}

// DefaultDefinitions returns the compiled-in source catalog.
func DefaultDefinitions() map[string]Definition {
	return map[string]Definition{
		KindInvesting: {
			Kind:         KindInvesting,
			Author:       "Investing.com",
			Category:     "Financial",
			SummaryFirst: true,
			BaseURL:      "https://www.investing.com",
			ListingURL: "https://endpoints.investing.com/news-delivery/api/v2/articles/delivery/" +
				"domains/18/news/lists/breaking-news",
			TokenPage:      "/news/latest-news",
			PageHosts:      []string{"kr.investing.com", "www.investing.com"},
			MaxInstruments: 5,
			TitleCleanups: []string{
				`\s*By\s+Investing\.com\s*$`,
				`\s*By\s+InvestingPro\s*$`,
				`\s*-\s*Investing\.com\s*$`,
				`\s*-\s*InvestingPro\s*$`,
			},
			Selectors: Selectors{
				Paragraphs:   "p, h2, h3",
				MinParagraph: 20,
			},
		},
		KindCNBC: {
			Kind:       KindCNBC,
			Author:     "CNBC",
			Category:   "Financial",
			BaseURL:    "https://www.cnbc.com",
			Sections:   []string{"/markets/", "/investing/", "/technology/"},
			HostFilter: "cnbc.com",
			SkipPaths:  []string{"/video/", "/audio/"},
			Selectors: Selectors{
				Containers: []string{
					"div[class*='ArticleBody-articleBody']",
					"div[data-module='ArticleBody']",
					"article",
				},
				Unwanted:     []string{"script", "style", "aside", "figure"},
				Title:        []string{"h1[class*='ArticleHeader-headline']", "h1"},
				Paragraphs:   "p, h2, h3",
				MinParagraph: 20,
				SkipPhrases: []string{
					"subscribe", "newsletter", "sign up", "click here", "read more",
					"advertisement", "sponsored", "cnbc pro", "watch video", "related:",
				},
			},
		},
	}
}

// LoadDefinitions merges the catalog file at path over the defaults. A
// missing file yields the defaults.
func LoadDefinitions(path string) (map[string]Definition, error) {
	defs := DefaultDefinitions()
	if path == "" {
		return defs, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open source catalog: %w", err)
	}
	defer f.Close()

	return MergeDefinitions(defs, f)
}

// MergeDefinitions decodes a catalog document of the form
// {"sources": {id: Definition}}. Fields present in the document override
// the base definition of the same id; unknown ids are added.
func MergeDefinitions(base map[string]Definition, r io.Reader) (map[string]Definition, error) {
	var doc struct {
		Sources map[string]yaml.Node `yaml:"sources"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode source catalog: %w", err)
	}

	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]Definition)
	}
	for id, node := range doc.Sources {
		def := out[id]
		if err := node.Decode(&def); err != nil {
			return nil, fmt.Errorf("decode source %q: %w", id, err)
		}
		out[id] = def
	}
	return out, nil
}
