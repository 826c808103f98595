package extraction

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// ParagraphRules selects and filters the text blocks of a content region.
type ParagraphRules struct {
	// Selectors is a goquery selector list, e.g. "p, h2, h3".
	Selectors string
	// MinLength drops blocks whose trimmed text has this many runes or fewer.
	MinLength int
	// SkipPhrases drops blocks containing any phrase, case-insensitively.
	SkipPhrases []string
	// UnwantedClassWords drops blocks inside an element whose class names
	// contain one of these words.
	UnwantedClassWords []string
}

// DefaultUnwantedClassWords flags related-content, ad and promo wrappers.
var DefaultUnwantedClassWords = []string{"related", "ad", "ads", "advertisement", "promo", "sidebar", "newsletter"}

var stripPolicy = bluemonday.StrictPolicy()

// collectParagraphs returns the filtered text of every block under root, in
// document order, without repeats.
func collectParagraphs(root *goquery.Selection, rules ParagraphRules) []string {
	skip := lowerAll(rules.SkipPhrases)
	var out []string
	seen := make(map[string]struct{})

	root.Find(rules.Selectors).Each(func(_ int, node *goquery.Selection) {
		text := collapseSpace(node.Text())
		if !keepParagraph(text, rules.MinLength, skip) {
			return
		}
		if hasUnwantedClass(node, root, rules.UnwantedClassWords) {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	})
	return out
}

// splitPlainText treats text without markup as blank-line or newline
// separated paragraphs and applies the same length and phrase filters.
func splitPlainText(text string, rules ParagraphRules) []string {
	skip := lowerAll(rules.SkipPhrases)
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = collapseSpace(line)
		if keepParagraph(line, rules.MinLength, skip) {
			out = append(out, line)
		}
	}
	return out
}

func keepParagraph(text string, minLength int, lowerSkip []string) bool {
	if utf8.RuneCountInString(text) <= minLength {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range lowerSkip {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

func hasUnwantedClass(node, root *goquery.Selection, words []string) bool {
	if len(words) == 0 {
		return false
	}
	unwanted := false
	node.ParentsUntilSelection(root).AddSelection(node).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		class, ok := el.Attr("class")
		if !ok {
			return true
		}
		for _, w := range classWords(class) {
			for _, target := range words {
				if w == target {
					unwanted = true
					return false
				}
			}
		}
		return true
	})
	return unwanted
}

// classWords splits class names into lower-case words on non-letters and on
// lower-to-upper case transitions: "InlineAd-wrapper" gives inline, ad, wrapper.
func classWords(class string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = current[:0]
		}
	}

	var prev rune
	for _, r := range class {
		switch {
		case !unicode.IsLetter(r):
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
		prev = r
	}
	flush()
	return words
}

// StripTags converts an HTML fragment into plain text.
func StripTags(fragment string) string {
	return collapseSpace(html.UnescapeString(stripPolicy.Sanitize(fragment)))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func looksLikeMarkup(s string) bool {
	return strings.Contains(s, "<") && strings.Contains(s, ">")
}

func unescape(s string) string {
	return html.UnescapeString(s)
}
