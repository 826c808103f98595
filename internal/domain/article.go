// Package domain holds the data model shared by every pipeline stage.
package domain

import "time"

// Article is a listing entry discovered on a source site. Stages receive it
// by value and never modify it.
type Article struct {
	Source   string
	SourceID string
	Title    string
	URL      string
	ImageURL string
	Summary  string
	// InstrumentHints are instrument ids attached by a structured listing API.
	InstrumentHints []string
	PublishedAt     time.Time
}

// Strategy identifies the extraction technique that produced a body.
type Strategy int

const (
	StrategyStructured Strategy = iota
	StrategyReadability
	StrategyStructuredData
	// StrategySummary marks a body taken from the listing summary.
	StrategySummary
)

func (s Strategy) String() string {
	switch s {
	case StrategyStructured:
		return "structured"
	case StrategyReadability:
		return "readability"
	case StrategyStructuredData:
		return "structured_data"
	case StrategySummary:
		return "summary"
	default:
		return "unknown"
	}
}

// ExtractionResult is a successful extraction. Title may be empty.
type ExtractionResult struct {
	Title    string
	Body     string
	Strategy Strategy
}

// InstrumentRecord is the canonical identity of a tradable instrument.
type InstrumentRecord struct {
	Symbol       string
	InstrumentID string
	// ExchangeID is the catalog's numeric exchange id, when known.
	ExchangeID string
	// Exchange is the exchange short name, e.g. NASDAQ.
	Exchange string
	Name     string
}

// TranslatedChunk is one translation unit. Err is set when the call for
// this chunk failed; Translated is empty in that case.
type TranslatedChunk struct {
	Index      int
	Source     string
	Translated string
	Err        error
}

// PublishRecord identifies a written artifact.
type PublishRecord struct {
	IdentityKey string
	FilePath    string
}

// SourceProfile carries the per-source publishing attributes.
type SourceProfile struct {
	ID string
	// Author is shown in front matter and in the attribution footer.
	Author   string
	Category string
	// FilePrefix is inserted between the date and the slug when set.
	FilePrefix string
	// TitleCleanups are case-insensitive patterns removed from translated titles.
	TitleCleanups []string
	// SummaryFirst uses a long enough listing summary without crawling the page.
	SummaryFirst bool
}
