package domain

import "time"

// SourceType identifies the discovery channel that produced a candidate.
type SourceType string

const (
	SourceWebSearch  SourceType = "websearch"
	SourceSocial     SourceType = "social"
	SourceBookmark   SourceType = "bookmark"
	SourceNewsletter SourceType = "newsletter"
	SourceManual     SourceType = "manual"
)

// Opportunity status constants.
const (
	OpportunityStatusActive   = "active"
	OpportunityStatusArchived = "archived"
	OpportunityStatusExpired  = "expired"
)

// Dedup decision actions.
const (
	ActionNewOpportunity  = "new_opportunity"
	ActionSourceAdded     = "source_added"
	ActionDuplicateLinked = "duplicate_linked"
)

// CandidateRecord is a freshly discovered opportunity posting awaiting
// dedup evaluation. It is ephemeral: consumed synchronously by the
// pipeline and discarded once a decision is made.
type CandidateRecord struct {
	Title        string
	Description  string
	URL          string
	Organization string
	Deadline     *time.Time
	Tags         []string
	SourceType   SourceType
	DiscoveredAt time.Time
}

// Opportunity is a persisted, canonical opportunity record. At most one
// row should exist per real-world opportunity; the decision engine's
// checks enforce the goal and the unique constraints on url and
// source_hash are the backstop under races.
type Opportunity struct {
	ID           string
	Title        string
	Description  string
	URL          string
	Organization string
	Deadline     *time.Time
	Tags         []string
	SourceType   SourceType
	SourceHash   string
	Status       string
	DiscoveredAt time.Time
	CreatedAt    time.Time
}

// DuplicateLink associates a newly seen duplicate occurrence with its
// canonical opportunity. Append-only: never mutated after creation.
type DuplicateLink struct {
	ID              string
	OpportunityID   string
	SourceURL       string
	SourceType      SourceType
	SimilarityScore float64
	MatchedFields   []string
	DetectedAt      time.Time
}

// OpportunitySource records an additional discovery source pointing at
// an already known opportunity (exact re-discovery).
type OpportunitySource struct {
	ID            string
	OpportunityID string
	URL           string
	SourceType    SourceType
	DiscoveredAt  time.Time
}
