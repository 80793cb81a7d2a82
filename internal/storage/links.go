package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
)

// DuplicateLink is an alias for the domain type.
type DuplicateLink = domain.DuplicateLink

// OpportunitySource is an alias for the domain type.
type OpportunitySource = domain.OpportunitySource

// SaveDuplicateLink records a duplicate occurrence against its canonical
// opportunity. Links are append-only: there is no update or delete path.
func (db *DB) SaveDuplicateLink(ctx context.Context, link *DuplicateLink) error {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO duplicate_links
			(opportunity_id, source_url, source_type, similarity_score, matched_fields, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		toUUID(link.OpportunityID),
		toText(link.SourceURL),
		string(link.SourceType),
		link.SimilarityScore,
		toTextArray(link.MatchedFields),
		toTimestamptz(link.DetectedAt),
	)

	var id pgtype.UUID

	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("save duplicate link: %w", err)
	}

	link.ID = fromUUID(id)

	return nil
}

// RecordSource records an additional discovery source for an opportunity
// found through the exact-match path.
func (db *DB) RecordSource(ctx context.Context, source *OpportunitySource) error {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO opportunity_sources
			(opportunity_id, url, source_type, discovered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (opportunity_id, url) DO UPDATE SET discovered_at = EXCLUDED.discovered_at
		RETURNING id
	`,
		toUUID(source.OpportunityID),
		source.URL,
		string(source.SourceType),
		toTimestamptz(source.DiscoveredAt),
	)

	var id pgtype.UUID

	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("record opportunity source: %w", err)
	}

	source.ID = fromUUID(id)

	return nil
}

// CountDuplicateLinks returns the total number of duplicate links.
func (db *DB) CountDuplicateLinks(ctx context.Context) (int64, error) {
	var count int64

	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM duplicate_links`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count duplicate links: %w", err)
	}

	return count, nil
}
