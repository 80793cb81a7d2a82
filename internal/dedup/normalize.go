// Package dedup implements duplicate detection for discovered opportunity
// postings. It provides text normalization, content fingerprinting, weighted
// field similarity scoring, a per-candidate decision engine, and a batch
// reconciler that re-scans recently stored records for missed duplicates.
//
// The package is stateless per call: configuration is passed explicitly and
// the only external dependency is the record store behind the Repository
// interface. Store errors always propagate; a failed lookup is never
// converted into a "no duplicate" result.
package dedup

import (
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
)

// NormalizedFields holds the canonicalized fields of a candidate record.
// Optional fields use HasOrganization/HasDeadline as explicit absent
// sentinels so scoring can distinguish "both absent" from "one absent".
type NormalizedFields struct {
	Title           string
	Organization    string
	HasOrganization bool
	Deadline        time.Time
	HasDeadline     bool
	Description     string
	URL             string
}

// Normalize canonicalizes a candidate's text and date fields for comparison.
// Pure function: no I/O, no side effects.
func Normalize(record domain.CandidateRecord) NormalizedFields {
	fields := NormalizedFields{
		Title:       NormalizeText(record.Title),
		Description: NormalizeText(record.Description),
		URL:         NormalizeURL(record.URL),
	}

	org := NormalizeText(record.Organization)
	if org != "" {
		fields.Organization = org
		fields.HasOrganization = true
	}

	if record.Deadline != nil && !record.Deadline.IsZero() {
		fields.Deadline = DateOnly(*record.Deadline)
		fields.HasDeadline = true
	}

	return fields
}

// NormalizeText lowercases, strips combining marks and punctuation, and
// collapses whitespace. Punctuation is replaced with a space rather than
// removed so word boundaries survive for downstream tokenization.
func NormalizeText(text string) string {
	decomposed := norm.NFD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))

	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Combining marks from NFD decomposition are dropped so
			// accented and unaccented spellings compare equal.
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeURL canonicalizes a URL for exact-match comparison: lowercased
// scheme and host, www. prefix and trailing slash stripped, fragment dropped.
// Unparseable input is returned trimmed and lowercased as-is.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String()
}

// DateOnly truncates a timestamp to its UTC calendar date, so that
// 2024-12-31 and 2024-12-31T00:00:00Z normalize identically.
func DateOnly(t time.Time) time.Time {
	utc := t.UTC()

	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
