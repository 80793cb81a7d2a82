package dedup

import (
	"testing"
	"time"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
)

func candidate(title, org string, deadline time.Time) domain.CandidateRecord {
	record := domain.CandidateRecord{
		Title:       title,
		Description: "An opportunity for artists.",
		URL:         "https://example.org/opportunity",
	}

	if org != "" {
		record.Organization = org
	}

	if !deadline.IsZero() {
		record.Deadline = &deadline
	}

	return record
}

func TestFingerprint_Stability(t *testing.T) {
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	base := Fingerprint(Normalize(candidate("Visual Arts Grant 2024", "National Arts Council", deadline)))

	if len(base) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(base))
	}

	tests := []struct {
		name   string
		record domain.CandidateRecord
	}{
		{
			name:   "casing differences",
			record: candidate("VISUAL ARTS GRANT 2024", "national arts council", deadline),
		},
		{
			name:   "punctuation differences",
			record: candidate("Visual Arts Grant, 2024!!!", "National Arts Council", deadline),
		},
		{
			name:   "time of day on deadline",
			record: candidate("Visual Arts Grant 2024", "National Arts Council", time.Date(2024, 12, 31, 23, 15, 0, 0, time.UTC)),
		},
		{
			name: "different description and url",
			record: func() domain.CandidateRecord {
				r := candidate("Visual Arts Grant 2024", "National Arts Council", deadline)
				r.Description = "Completely different text from a mirror site."
				r.URL = "https://mirror.example.net/grants/visual-arts"

				return r
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(Normalize(tt.record)); got != base {
				t.Errorf("fingerprint diverged: %s != %s", got, base)
			}
		})
	}
}

func TestFingerprint_Sensitivity(t *testing.T) {
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	base := Fingerprint(Normalize(candidate("Visual Arts Grant 2024", "National Arts Council", deadline)))

	tests := []struct {
		name   string
		record domain.CandidateRecord
	}{
		{
			name:   "different title",
			record: candidate("Visual Arts Grant 2025", "National Arts Council", deadline),
		},
		{
			name:   "different organization",
			record: candidate("Visual Arts Grant 2024", "Regional Arts Council", deadline),
		},
		{
			name:   "different deadline date",
			record: candidate("Visual Arts Grant 2024", "National Arts Council", deadline.AddDate(0, 0, 1)),
		},
		{
			name:   "absent organization",
			record: candidate("Visual Arts Grant 2024", "", deadline),
		},
		{
			name:   "absent deadline",
			record: candidate("Visual Arts Grant 2024", "National Arts Council", time.Time{}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(Normalize(tt.record)); got == base {
				t.Error("fingerprint collision for differing identity fields")
			}
		})
	}
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	// The NUL separator must keep content from sliding between fields.
	a := Fingerprint(NormalizedFields{Title: "arts grant", Organization: "council", HasOrganization: true})
	b := Fingerprint(NormalizedFields{Title: "arts", Organization: "grant council", HasOrganization: true})

	if a == b {
		t.Error("field boundary collision: title/organization split must affect the hash")
	}
}
