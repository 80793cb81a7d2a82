package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
	coreerrors "github.com/artsradar/opportunity-radar/internal/core/errors"
)

const (
	minTitleLength       = 3
	minDescriptionLength = 10

	logFieldURL       = "url"
	logFieldScore     = "score"
	logFieldExisting  = "existing_id"
	logFieldPoolSize  = "pool_size"
	logFieldBestScore = "best_score"
)

// Repository is the record-store surface the decision engine depends on.
// Implementations may block; they must honor ctx cancellation.
type Repository interface {
	// FindByURLOrFingerprint returns the stored opportunity matching the
	// normalized URL or fingerprint exactly, or nil when none exists.
	FindByURLOrFingerprint(ctx context.Context, url, fingerprint string) (*domain.Opportunity, error)

	// FindRecent returns stored opportunities discovered within the
	// window, most recent first, capped at limit.
	FindRecent(ctx context.Context, window time.Duration, limit int) ([]domain.Opportunity, error)
}

// DecisionResult is the outcome of a duplicate check. Low confidence and
// "not a duplicate" are normal values, never errors; only infrastructure
// failures surface as errors.
type DecisionResult struct {
	IsDuplicate     bool
	ExistingID      string
	Action          string
	SimilarityScore float64
	MatchedFields   []string
	Hash            string
}

// Engine decides whether an incoming candidate is an exact re-discovery,
// a fuzzy duplicate, or a new opportunity. It returns decisions only: all
// storage writes are the caller's responsibility.
//
// The engine provides no mutual exclusion across concurrent checks. Two
// discovery sources submitting the same opportunity near-simultaneously
// can both receive a new_opportunity decision; the store's uniqueness
// constraints on url and source_hash are the authority for detecting that
// race, and callers must treat a conflicting create as a follow-up
// duplicate link rather than a failure.
type Engine struct {
	repo   Repository
	scorer *Scorer
	opts   Options
	logger *zerolog.Logger
}

// NewEngine creates a decision engine with the given store and options.
func NewEngine(repo Repository, opts Options, logger *zerolog.Logger) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if opts.FuzzyWindow <= 0 {
		opts.FuzzyWindow = DefaultFuzzyWindow
	}

	if opts.FuzzyPoolLimit <= 0 {
		opts.FuzzyPoolLimit = DefaultFuzzyPoolLimit
	}

	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}

	return &Engine{
		repo:   repo,
		scorer: NewScorer(opts),
		opts:   opts,
		logger: logger,
	}
}

// CheckDuplicate runs the decision state machine for one candidate:
// validate, normalize, fingerprint, exact check, then fuzzy check. The
// exact check always completes before any fuzzy comparison and
// short-circuits on a hit. Re-entrant and idempotent for the same
// candidate, so callers can safely retry after a store failure.
func (e *Engine) CheckDuplicate(ctx context.Context, candidate domain.CandidateRecord) (DecisionResult, error) {
	if err := ValidateCandidate(candidate); err != nil {
		return DecisionResult{}, err
	}

	fields := Normalize(candidate)
	hash := Fingerprint(fields)

	existing, err := e.repo.FindByURLOrFingerprint(ctx, fields.URL, hash)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("exact match lookup: %w", err)
	}

	if existing != nil {
		e.logger.Debug().
			Str(logFieldURL, fields.URL).
			Str(logFieldExisting, existing.ID).
			Msg("exact duplicate found")

		return DecisionResult{
			IsDuplicate:     true,
			ExistingID:      existing.ID,
			Action:          domain.ActionSourceAdded,
			SimilarityScore: 1.0,
			MatchedFields:   exactMatchedFields(existing, fields.URL, hash),
			Hash:            hash,
		}, nil
	}

	result, err := e.fuzzyMatch(ctx, fields)
	if err != nil {
		return DecisionResult{}, err
	}

	if result != nil {
		result.Hash = hash

		return *result, nil
	}

	return DecisionResult{
		Action: domain.ActionNewOpportunity,
		Hash:   hash,
	}, nil
}

// fuzzyMatch scores the candidate against the recency-window pool and
// returns a decision when the best score clears every threshold, nil
// otherwise. A single malformed pool entry never aborts the scan: absent
// fields score through the sentinel defaults.
func (e *Engine) fuzzyMatch(ctx context.Context, fields NormalizedFields) (*DecisionResult, error) {
	pool, err := e.repo.FindRecent(ctx, e.opts.FuzzyWindow, e.opts.FuzzyPoolLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch fuzzy candidate pool: %w", err)
	}

	var (
		bestScore   float64
		bestID      string
		bestFactors SimilarityFactors
	)

	for i := range pool {
		stored := NormalizeStored(pool[i])

		factors := e.scorer.Factors(fields, stored)
		if factors.Title < e.opts.TitleSimilarityThreshold {
			continue
		}

		if factors.Description < e.opts.DescriptionSimilarityThreshold {
			continue
		}

		score := e.scorer.Overall(factors)
		if score > bestScore {
			bestScore = score
			bestID = pool[i].ID
			bestFactors = factors
		}
	}

	e.logger.Debug().
		Int(logFieldPoolSize, len(pool)).
		Float64(logFieldBestScore, bestScore).
		Msg("fuzzy match scan complete")

	if bestID == "" || bestScore < e.opts.SimilarityThreshold {
		return nil, nil //nolint:nilnil // nil,nil indicates no fuzzy match
	}

	e.logger.Debug().
		Str(logFieldExisting, bestID).
		Float64(logFieldScore, bestScore).
		Msg("fuzzy duplicate found")

	return &DecisionResult{
		IsDuplicate:     true,
		ExistingID:      bestID,
		Action:          domain.ActionDuplicateLinked,
		SimilarityScore: bestScore,
		MatchedFields:   MatchedFields(bestFactors),
	}, nil
}

// exactMatchedFields reports which exact lookup actually hit: the stored
// record may share only the URL (same page, changed content) or only the
// fingerprint (same content, mirror URL).
func exactMatchedFields(existing *domain.Opportunity, url, hash string) []string {
	matched := make([]string, 0, 2)

	if NormalizeURL(existing.URL) == url {
		matched = append(matched, "url")
	}

	if existing.SourceHash == hash {
		matched = append(matched, "fingerprint")
	}

	return matched
}

// NormalizeStored converts a stored opportunity into normalized fields for
// comparison. Stored rows predating schema additions may miss optional
// fields; those normalize to the absent sentinel instead of failing.
func NormalizeStored(opp domain.Opportunity) NormalizedFields {
	return Normalize(domain.CandidateRecord{
		Title:        opp.Title,
		Description:  opp.Description,
		URL:          opp.URL,
		Organization: opp.Organization,
		Deadline:     opp.Deadline,
	})
}

// ValidateCandidate rejects candidates below minimum content requirements
// before any fingerprinting. Validation failures are distinct sentinel
// errors, never silently coerced into a new-opportunity decision.
func ValidateCandidate(candidate domain.CandidateRecord) error {
	if len(strings.TrimSpace(candidate.Title)) < minTitleLength {
		return fmt.Errorf("%w: %q", coreerrors.ErrMissingTitle, candidate.Title)
	}

	if len(strings.TrimSpace(candidate.Description)) < minDescriptionLength {
		return coreerrors.ErrMissingDescription
	}

	if strings.TrimSpace(candidate.URL) == "" {
		return coreerrors.ErrMissingURL
	}

	return nil
}
