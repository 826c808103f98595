// Package ticker recognizes stock tickers in article text, resolves them to
// catalog instruments, and renders them as linked badges.
package ticker

import (
	"regexp"
	"sort"
)

// Kind is the textual form a ticker was written in.
type Kind int

const (
	KindDollar   Kind = iota // $NVDA
	KindParen                // (NVDA)
	KindBare                 // NVDA shares rose
	KindExchange             // (NASDAQ:NVDA)
)

func (k Kind) String() string {
	switch k {
	case KindDollar:
		return "dollar"
	case KindParen:
		return "paren"
	case KindBare:
		return "bare"
	case KindExchange:
		return "exchange"
	default:
		return "unknown"
	}
}

// Ticker is one recognized mention.
type Ticker struct {
	Symbol   string
	Exchange string
	Kind     Kind
	// Offset is the byte offset of the first mention.
	Offset int
}

// Key identifies the ticker: EXCH:SYM when exchange-qualified, else SYM.
func (t Ticker) Key() string {
	if t.Exchange != "" {
		return t.Exchange + ":" + t.Symbol
	}
	return t.Symbol
}

var (
	dollarPattern   = regexp.MustCompile(`\$([A-Z]{1,5})\b`)
	parenPattern    = regexp.MustCompile(`\(([A-Z]{1,5})\)`)
	exchangePattern = regexp.MustCompile(`\(([A-Z]+):([A-Z0-9]+)\)`)
	barePattern     = regexp.MustCompile(`\b([A-Z]{1,5})\s+(?:stock|shares|price|fell|rose|gained|dropped|surged|plunged)\b`)
)

// bareStopwords are capitalized words that precede market verbs without
// being tickers.
var bareStopwords = map[string]struct{}{
	"A": {}, "I": {}, "THE": {}, "CEO": {}, "CFO": {}, "AI": {}, "US": {}, "UK": {}, "EU": {},
	"ETF": {}, "IPO": {}, "GDP": {}, "CPI": {}, "FED": {}, "SEC": {}, "EPS": {}, "NYSE": {}, "USD": {},
}

// Find returns every distinct ticker in text ordered by first mention.
// It is a pure function of text.
func Find(text string) []Ticker {
	var found []Ticker

	for _, m := range dollarPattern.FindAllStringSubmatchIndex(text, -1) {
		found = append(found, Ticker{Symbol: text[m[2]:m[3]], Kind: KindDollar, Offset: m[0]})
	}
	for _, m := range parenPattern.FindAllStringSubmatchIndex(text, -1) {
		found = append(found, Ticker{Symbol: text[m[2]:m[3]], Kind: KindParen, Offset: m[0]})
	}
	for _, m := range exchangePattern.FindAllStringSubmatchIndex(text, -1) {
		found = append(found, Ticker{
			Exchange: text[m[2]:m[3]],
			Symbol:   text[m[4]:m[5]],
			Kind:     KindExchange,
			Offset:   m[0],
		})
	}
	for _, m := range barePattern.FindAllStringSubmatchIndex(text, -1) {
		symbol := text[m[2]:m[3]]
		if _, stop := bareStopwords[symbol]; stop {
			continue
		}
		found = append(found, Ticker{Symbol: symbol, Kind: KindBare, Offset: m[2]})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Offset < found[j].Offset })

	seen := make(map[string]struct{}, len(found))
	out := found[:0]
	for _, t := range found {
		if _, dup := seen[t.Key()]; dup {
			continue
		}
		seen[t.Key()] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Limit keeps the first n plain tickers ($SYM, (SYM) and bare) in order.
// Exchange-qualified tickers are always kept: Render drops every
// (EXCH:SYM) missing from the resolved set, so each one must be looked up.
// n <= 0 keeps all.
func Limit(tickers []Ticker, n int) []Ticker {
	if n <= 0 || len(tickers) <= n {
		return tickers
	}
	out := make([]Ticker, 0, len(tickers))
	plain := 0
	for _, t := range tickers {
		if t.Kind != KindExchange {
			if plain == n {
				continue
			}
			plain++
		}
		out = append(out, t)
	}
	return out
}
