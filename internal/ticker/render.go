package ticker

import (
	"html"
	"regexp"
	"strings"

	"github.com/ounols/jekyll-news/internal/domain"
)

// renderPattern matches every rewritable form in one pass. Group 1-2 is
// (EXCH:SYM), group 3 is $SYM, group 4 is (SYM).
var renderPattern = regexp.MustCompile(`\(([A-Z]+):([A-Z0-9]+)\)|\$([A-Z]{1,5})\b|\(([A-Z]{1,5})\)`)

// Render rewrites ticker mentions in text. Resolved mentions become badges.
// An unresolved exchange-qualified mention is removed along with the space
// before it; other unresolved mentions and all bare words stay as written.
func Render(text string, resolved map[string]domain.InstrumentRecord) string {
	matches := renderPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		original := text[start:end]

		var t Ticker
		switch {
		case m[2] >= 0:
			t = Ticker{Exchange: text[m[2]:m[3]], Symbol: text[m[4]:m[5]], Kind: KindExchange}
		case m[6] >= 0:
			t = Ticker{Symbol: text[m[6]:m[7]], Kind: KindDollar}
		default:
			t = Ticker{Symbol: text[m[8]:m[9]], Kind: KindParen}
		}

		rec, ok := resolved[t.Key()]
		switch {
		case ok:
			b.WriteString(text[prev:start])
			b.WriteString(badge(original, t, rec))
		case t.Kind == KindExchange:
			segment := text[prev:start]
			if end == len(text) || !isWordByte(text[end]) {
				segment = strings.TrimRight(segment, " \t")
			}
			b.WriteString(segment)
		default:
			b.WriteString(text[prev:end])
		}
		prev = end
	}
	b.WriteString(text[prev:])
	return b.String()
}

func badge(display string, t Ticker, rec domain.InstrumentRecord) string {
	var b strings.Builder
	b.WriteString(`<span class="stock-ticker" data-ticker="`)
	b.WriteString(html.EscapeString(t.Key()))
	b.WriteString(`"`)
	if t.Exchange != "" {
		b.WriteString(` data-exchange="`)
		b.WriteString(html.EscapeString(t.Exchange))
		b.WriteString(`"`)
	}
	b.WriteString(` data-symbol="`)
	b.WriteString(html.EscapeString(t.Symbol))
	b.WriteString(`" data-instrument-id="`)
	b.WriteString(html.EscapeString(rec.InstrumentID))
	b.WriteString(`">`)
	b.WriteString(html.EscapeString(display))
	b.WriteString(`</span>`)
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// StripExchangeCodes removes every (EXCH:SYM) mention.
func StripExchangeCodes(text string) string {
	return exchangePattern.ReplaceAllString(text, "")
}
