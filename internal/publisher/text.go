package publisher

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ounols/jekyll-news/internal/ticker"
)

// ExcerptRunes is the excerpt length before the ellipsis.
const ExcerptRunes = 200

var whitespace = regexp.MustCompile(`\s+`)

// Excerpt takes the first ExcerptRunes runes of body, drops exchange codes
// such as "(NASDAQ:NVDA)" and collapses whitespace. "..." is appended when
// body was longer.
func Excerpt(body string) string {
	runes := []rune(body)
	truncated := len(runes) > ExcerptRunes
	if truncated {
		runes = runes[:ExcerptRunes]
	}

	s := ticker.StripExchangeCodes(string(runes))
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if truncated {
		s += "..."
	}
	return s
}

// TitleCleaner removes source attributions from translated titles.
type TitleCleaner struct {
	patterns []*regexp.Regexp
}

// NewTitleCleaner compiles case-insensitive patterns. Invalid patterns are
// returned as an error.
func NewTitleCleaner(patterns []string) (*TitleCleaner, error) {
	c := &TitleCleaner{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

func (c *TitleCleaner) Clean(title string) string {
	if c == nil {
		return strings.TrimSpace(title)
	}
	for _, re := range c.patterns {
		title = re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(title)
}

// truncateRunes is used for log fields.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
