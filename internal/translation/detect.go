package translation

import (
	"strings"
	"unicode"
)

// DefaultThreshold is the script ratio above which text counts as already
// written in the target language. Tickers and figures dilute the ratio of
// translated financial text, so the bar is low.
const DefaultThreshold = 0.3

// ScriptDetector measures how much of a text is written in one script.
type ScriptDetector struct {
	inScript  func(r rune) bool
	threshold float64
}

func isHangulSyllable(r rune) bool { return r >= 0xAC00 && r <= 0xD7A3 }

func isJapanese(r rune) bool {
	return unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han)
}

func isHan(r rune) bool { return unicode.Is(unicode.Han, r) }

// DetectorFor returns a detector for the target language, or nil when the
// language has no distinctive script (nil detectors never skip).
func DetectorFor(lang string, threshold float64) *ScriptDetector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var fn func(rune) bool
	switch strings.ToLower(lang) {
	case "ko":
		fn = isHangulSyllable
	case "ja":
		fn = isJapanese
	case "zh", "zh-cn", "zh-tw":
		fn = isHan
	default:
		return nil
	}
	return &ScriptDetector{inScript: fn, threshold: threshold}
}

// Ratio is (runes in script) / (non-whitespace runes); 0 for blank text.
func (d *ScriptDetector) Ratio(text string) float64 {
	var inScript, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if d.inScript(r) {
			inScript++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inScript) / float64(total)
}

// IsTarget reports whether text already reads as the target language.
func (d *ScriptDetector) IsTarget(text string) bool {
	if d == nil {
		return false
	}
	return d.Ratio(text) > d.threshold
}
