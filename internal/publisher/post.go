package publisher

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ounols/jekyll-news/internal/domain"
)

const frontMatterDate = "2006-01-02 15:04:05 -0700"

// Post is everything needed to render one article.
type Post struct {
	Article domain.Article
	// Title is the translated, cleaned title.
	Title         string
	OriginalTitle string
	// Body is the translated body with ticker badges rendered.
	Body      string
	Excerpt   string
	StockTags []StockTag
	// Date defaults to the publisher clock when zero.
	Date    time.Time
	Profile domain.SourceProfile
}

// StockTag links a post to an instrument.
type StockTag struct {
	Symbol       string `yaml:"symbol"`
	InstrumentID string `yaml:"instrument_id"`
	ExchangeID   string `yaml:"exchange_id,omitempty"`
}

// StockTags converts records, keeping the first record per symbol and
// dropping records without an instrument id.
func StockTags(records ...[]domain.InstrumentRecord) []StockTag {
	seen := make(map[string]struct{})
	var tags []StockTag
	for _, group := range records {
		for _, r := range group {
			if r.Symbol == "" || r.InstrumentID == "" {
				continue
			}
			sym := strings.ToUpper(r.Symbol)
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			tags = append(tags, StockTag{Symbol: r.Symbol, InstrumentID: r.InstrumentID, ExchangeID: r.ExchangeID})
		}
	}
	return tags
}

type frontMatter struct {
	Layout     string     `yaml:"layout"`
	Title      string     `yaml:"title"`
	Date       string     `yaml:"date"`
	Categories []string   `yaml:"categories,flow"`
	Author     string     `yaml:"author"`
	ArticleID  string     `yaml:"article_id"`
	Image      string     `yaml:"image,omitempty"`
	Excerpt    string     `yaml:"excerpt"`
	StockTags  []StockTag `yaml:"stock_tags,omitempty"`
	SourceURL  string     `yaml:"source_url"`
}

// Render produces the Jekyll post: YAML front matter, body, and the
// attribution footer.
func Render(post Post, key, layout string) ([]byte, error) {
	fm := frontMatter{
		Layout:    layout,
		Title:     post.Title,
		Date:      post.Date.Format(frontMatterDate),
		Author:    post.Profile.Author,
		ArticleID: key,
		Image:     post.Article.ImageURL,
		Excerpt:   post.Excerpt,
		StockTags: post.StockTags,
		SourceURL: post.Article.URL,
	}
	if post.Profile.Category != "" {
		fm.Categories = []string{post.Profile.Category}
	}

	var header bytes.Buffer
	enc := yaml.NewEncoder(&header)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("---\n")
	out.Write(header.Bytes())
	out.WriteString("---\n\n")
	out.WriteString(strings.TrimSpace(post.Body))
	out.WriteString("\n\n---\n\n")
	fmt.Fprintf(&out, "*출처: [%s](%s)*\n", post.Profile.Author, post.Article.URL)
	return out.Bytes(), nil
}
