// Package validator rejects extracted text that is mostly legal notices,
// disclaimers, or site boilerplate rather than article content.
package validator

import (
	"strings"
)

// Config holds the denylist and the thresholds.
type Config struct {
	Phrases []string
	// LeadingWindow is the number of leading runes inspected for front-loaded notices.
	LeadingWindow int
	// LeadingDistinct distinct phrases inside the window reject the text.
	LeadingDistinct int
	// ShortTextLength is the rune length under which density is checked.
	ShortTextLength int
	// ShortTextMinHits total phrase occurrences reject a short text.
	ShortTextMinHits int
}

// Rejection reasons.
const (
	ReasonFrontLoaded = "legal_notice_front_loaded"
	ReasonDense       = "legal_notice_dense"
)

// Verdict explains a validation decision.
type Verdict struct {
	Valid       bool
	Reason      string
	LeadingHits int
	TotalHits   int
}

// Validator classifies text. It is immutable and safe for concurrent use.
type Validator struct {
	phrases []string
	cfg     Config
}

// New builds a Validator; zero thresholds take the defaults.
func New(cfg Config) *Validator {
	if cfg.LeadingWindow <= 0 {
		cfg.LeadingWindow = 500
	}
	if cfg.LeadingDistinct <= 0 {
		cfg.LeadingDistinct = 2
	}
	if cfg.ShortTextLength <= 0 {
		cfg.ShortTextLength = 1000
	}
	if cfg.ShortTextMinHits <= 0 {
		cfg.ShortTextMinHits = 5
	}

	phrases := make([]string, 0, len(cfg.Phrases))
	seen := make(map[string]struct{}, len(cfg.Phrases))
	for _, p := range cfg.Phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		phrases = append(phrases, p)
	}

	return &Validator{phrases: phrases, cfg: cfg}
}

// IsValid reports whether text looks like article content.
func (v *Validator) IsValid(text string) bool {
	return v.Check(text).Valid
}

// Check classifies text and reports the counts behind the decision.
func (v *Validator) Check(text string) Verdict {
	runes := []rune(text)
	leading := strings.ToLower(string(runes[:min(len(runes), v.cfg.LeadingWindow)]))
	lower := strings.ToLower(text)

	verdict := Verdict{Valid: true}
	for _, phrase := range v.phrases {
		if strings.Contains(leading, phrase) {
			verdict.LeadingHits++
		}
		verdict.TotalHits += strings.Count(lower, phrase)
	}

	switch {
	case verdict.LeadingHits >= v.cfg.LeadingDistinct:
		verdict.Valid = false
		verdict.Reason = ReasonFrontLoaded
	case len(runes) < v.cfg.ShortTextLength && verdict.TotalHits >= v.cfg.ShortTextMinHits:
		verdict.Valid = false
		verdict.Reason = ReasonDense
	}
	return verdict
}
