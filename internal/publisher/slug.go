package publisher

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxSlugRunes = 80
	minSlugRunes = 5
	dateLayout   = "2006-01-02"
)

var (
	slugDrop     = regexp.MustCompile(`[^\p{L}\p{N}_\s\x{3131}-\x{314E}\x{314F}-\x{3163}\x{AC00}-\x{D7A3}-]`)
	slugSeparate = regexp.MustCompile(`[-\s]+`)
)

// Slugify turns a title into a filename-safe slug of at most 80 runes.
func Slugify(text string) string {
	s := slugDrop.ReplaceAllString(text, "")
	s = slugSeparate.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if utf8.RuneCountInString(s) > maxSlugRunes {
		s = string([]rune(s)[:maxSlugRunes])
		s = strings.Trim(s, "-")
	}
	return s
}

// PostSlug prefers the translated title and falls back to the original
// when the translated slug is too short to be meaningful.
func PostSlug(title, originalTitle string) string {
	slug := Slugify(title)
	if utf8.RuneCountInString(slug) < minSlugRunes {
		slug = Slugify(originalTitle)
	}
	return slug
}

// IdentityKey is the source article id, or the date and original-title slug
// for sources without stable ids.
func IdentityKey(sourceID string, date time.Time, originalTitle string) string {
	if id := strings.TrimSpace(sourceID); id != "" {
		return id
	}
	return date.Format(dateLayout) + "/" + Slugify(originalTitle)
}

// FileName builds "<date>-[<prefix>-]<slug>.md".
func FileName(date time.Time, prefix, slug string) string {
	var b strings.Builder
	b.WriteString(date.Format(dateLayout))
	b.WriteByte('-')
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte('-')
	}
	b.WriteString(slug)
	b.WriteString(".md")
	return b.String()
}
