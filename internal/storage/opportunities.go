package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
	coreerrors "github.com/artsradar/opportunity-radar/internal/core/errors"
)

const uniqueViolationCode = "23505"

// Opportunity is an alias for the domain type.
type Opportunity = domain.Opportunity

// SaveOpportunity inserts a new canonical opportunity and fills in the
// generated id and created_at. The unique constraints on url and
// source_hash are the backstop against duplicate creation under racing
// discoveries; callers must treat a conflict as a late-detected duplicate.
func (db *DB) SaveOpportunity(ctx context.Context, opp *Opportunity) error {
	status := opp.Status
	if status == "" {
		status = domain.OpportunityStatusActive
	}

	row := db.Pool.QueryRow(ctx, `
		INSERT INTO opportunities
			(title, description, url, organization, deadline, tags, source_type, source_hash, status, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`,
		SanitizeUTF8(opp.Title),
		toText(opp.Description),
		opp.URL,
		toText(opp.Organization),
		toDatePtr(opp.Deadline),
		toTextArray(opp.Tags),
		string(opp.SourceType),
		opp.SourceHash,
		status,
		toTimestamptz(opp.DiscoveredAt),
	)

	var id pgtype.UUID

	if err := row.Scan(&id, &opp.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("save opportunity: %w", coreerrors.ErrAlreadyExists)
		}

		return fmt.Errorf("save opportunity: %w", err)
	}

	opp.ID = fromUUID(id)
	opp.Status = status

	return nil
}

// FindByURLOrFingerprint returns the opportunity matching the normalized
// URL or content fingerprint exactly, or nil when none exists.
func (db *DB) FindByURLOrFingerprint(ctx context.Context, url, fingerprint string) (*Opportunity, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, title, description, url, organization, deadline, tags,
		       source_type, source_hash, status, discovered_at, created_at
		FROM opportunities
		WHERE url = $1 OR source_hash = $2
		LIMIT 1
	`, url, fingerprint)

	opp, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates opportunity not found
		}

		return nil, fmt.Errorf("find by url or fingerprint: %w", err)
	}

	return opp, nil
}

// FindRecent returns non-archived opportunities discovered within the
// window, most recent first, capped at limit. This is the fuzzy-match
// candidate pool and the reconciliation batch.
func (db *DB) FindRecent(ctx context.Context, window time.Duration, limit int) ([]Opportunity, error) {
	cutoff := time.Now().Add(-window)

	rows, err := db.Pool.Query(ctx, `
		SELECT id, title, description, url, organization, deadline, tags,
		       source_type, source_hash, status, discovered_at, created_at
		FROM opportunities
		WHERE discovered_at > $1 AND status != $2
		ORDER BY discovered_at DESC
		LIMIT $3
	`, toTimestamptz(cutoff), domain.OpportunityStatusArchived, limit)
	if err != nil {
		return nil, fmt.Errorf("find recent opportunities: %w", err)
	}
	defer rows.Close()

	var opportunities []Opportunity

	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent opportunity: %w", err)
		}

		opportunities = append(opportunities, *opp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent opportunities: %w", err)
	}

	return opportunities, nil
}

// MarkArchived flags an opportunity as a reconciled duplicate. Flagging is
// non-destructive: rows are never deleted here.
func (db *DB) MarkArchived(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE opportunities SET status = $1 WHERE id = $2
	`, domain.OpportunityStatusArchived, toUUID(id))
	if err != nil {
		return fmt.Errorf("mark opportunity archived: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark opportunity archived: %s: no such row", id)
	}

	return nil
}

// CountOpportunities returns the total number of stored opportunities.
func (db *DB) CountOpportunities(ctx context.Context) (int64, error) {
	var count int64

	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count opportunities: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row rowScanner) (*Opportunity, error) {
	var (
		id           pgtype.UUID
		description  pgtype.Text
		organization pgtype.Text
		deadline     pgtype.Date
		sourceType   string
		discoveredAt pgtype.Timestamptz
	)

	opp := Opportunity{}

	if err := row.Scan(
		&id,
		&opp.Title,
		&description,
		&opp.URL,
		&organization,
		&deadline,
		&opp.Tags,
		&sourceType,
		&opp.SourceHash,
		&opp.Status,
		&discoveredAt,
		&opp.CreatedAt,
	); err != nil {
		return nil, err
	}

	opp.ID = fromUUID(id)
	opp.Description = description.String
	opp.Organization = organization.String
	opp.Deadline = fromDate(deadline)
	opp.SourceType = domain.SourceType(sourceType)
	opp.DiscoveredAt = discoveredAt.Time

	return &opp, nil
}
