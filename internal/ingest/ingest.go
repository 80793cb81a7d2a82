// Package ingest drains discovery producers and applies dedup decisions
// to the record store. The decision engine only decides; every write --
// new opportunity, source row, duplicate link -- happens here.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
	coreerrors "github.com/artsradar/opportunity-radar/internal/core/errors"
	"github.com/artsradar/opportunity-radar/internal/dedup"
	"github.com/artsradar/opportunity-radar/internal/platform/observability"
	"github.com/artsradar/opportunity-radar/internal/platform/worker"
)

const (
	logFieldProducer = "producer"
	logFieldAction   = "action"
	logFieldURL      = "url"
	logFieldCount    = "count"

	rejectReasonTitle       = "missing_title"
	rejectReasonDescription = "missing_description"
	rejectReasonURL         = "missing_url"
	rejectReasonOther       = "invalid"
)

// Producer supplies candidate records from one discovery channel.
type Producer interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.CandidateRecord, error)
}

// Checker is the decision surface of the dedup engine.
type Checker interface {
	CheckDuplicate(ctx context.Context, candidate domain.CandidateRecord) (dedup.DecisionResult, error)
}

// DecisionStore is the write surface the ingestor needs to apply decisions.
type DecisionStore interface {
	SaveOpportunity(ctx context.Context, opp *domain.Opportunity) error
	SaveDuplicateLink(ctx context.Context, link *domain.DuplicateLink) error
	RecordSource(ctx context.Context, source *domain.OpportunitySource) error
}

// Ingestor runs the discovery-to-decision pipeline.
type Ingestor struct {
	producers []Producer
	checker   Checker
	store     DecisionStore
	logger    *zerolog.Logger
}

// New creates an ingestor over the given producers.
func New(producers []Producer, checker Checker, store DecisionStore, logger *zerolog.Logger) *Ingestor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Ingestor{
		producers: producers,
		checker:   checker,
		store:     store,
		logger:    logger,
	}
}

// Run processes producers on a poll loop until the context is canceled.
func (in *Ingestor) Run(ctx context.Context, pollInterval time.Duration) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "ingest",
		PollInterval: pollInterval,
		Process:      in.Process,
		OnError: func(err error) bool {
			// Store and fetch failures are retryable on the next poll.
			in.logger.Error().Err(err).Msg("ingest pass failed, will retry")

			return true
		},
		Logger: in.logger,
	})
}

// Process runs one ingestion pass over all producers. A producer fetch
// failure skips that producer for the pass; a store failure aborts so the
// same candidates are retried next pass (the dedup check is idempotent).
func (in *Ingestor) Process(ctx context.Context) error {
	for _, producer := range in.producers {
		candidates, err := producer.Fetch(ctx)
		if err != nil {
			in.logger.Warn().Err(err).Str(logFieldProducer, producer.Name()).Msg("producer fetch failed")

			continue
		}

		if len(candidates) == 0 {
			continue
		}

		in.logger.Debug().
			Str(logFieldProducer, producer.Name()).
			Int(logFieldCount, len(candidates)).
			Msg("fetched candidates")

		for _, candidate := range candidates {
			if err := in.handleCandidate(ctx, candidate); err != nil {
				return fmt.Errorf("ingest candidate %s: %w", candidate.URL, err)
			}
		}
	}

	return nil
}

// handleCandidate runs one candidate through the engine and applies the
// decision. Validation rejections are terminal for the candidate and do
// not fail the pass; infrastructure errors propagate for retry.
func (in *Ingestor) handleCandidate(ctx context.Context, candidate domain.CandidateRecord) error {
	observability.CandidatesIngested.WithLabelValues(string(candidate.SourceType)).Inc()

	result, err := in.checker.CheckDuplicate(ctx, candidate)
	if err != nil {
		if reason := rejectReason(err); reason != "" {
			observability.CandidatesRejected.WithLabelValues(reason).Inc()
			in.logger.Warn().Err(err).Str(logFieldURL, candidate.URL).Msg("candidate rejected")

			return nil
		}

		return err
	}

	if err := in.applyDecision(ctx, candidate, result); err != nil {
		return err
	}

	observability.DedupDecisions.WithLabelValues(result.Action).Inc()

	in.logger.Info().
		Str(logFieldAction, result.Action).
		Str(logFieldURL, candidate.URL).
		Msg("candidate processed")

	return nil
}

func (in *Ingestor) applyDecision(ctx context.Context, candidate domain.CandidateRecord, result dedup.DecisionResult) error {
	switch result.Action {
	case domain.ActionNewOpportunity:
		return in.createOpportunity(ctx, candidate, result)

	case domain.ActionSourceAdded:
		return in.store.RecordSource(ctx, &domain.OpportunitySource{
			OpportunityID: result.ExistingID,
			URL:           candidate.URL,
			SourceType:    candidate.SourceType,
			DiscoveredAt:  candidate.DiscoveredAt,
		})

	case domain.ActionDuplicateLinked:
		observability.SimilarityScores.Observe(result.SimilarityScore)

		return in.store.SaveDuplicateLink(ctx, &domain.DuplicateLink{
			OpportunityID:   result.ExistingID,
			SourceURL:       candidate.URL,
			SourceType:      candidate.SourceType,
			SimilarityScore: result.SimilarityScore,
			MatchedFields:   result.MatchedFields,
			DetectedAt:      candidate.DiscoveredAt,
		})
	}

	return fmt.Errorf("unknown decision action %q", result.Action)
}

// createOpportunity persists a new unique opportunity. When the create
// loses a race to a concurrent discovery (unique constraint hit), the
// candidate is re-checked so it lands as a source or duplicate link
// against the winner instead of being dropped.
func (in *Ingestor) createOpportunity(ctx context.Context, candidate domain.CandidateRecord, result dedup.DecisionResult) error {
	err := in.store.SaveOpportunity(ctx, &domain.Opportunity{
		Title:        candidate.Title,
		Description:  candidate.Description,
		URL:          dedup.NormalizeURL(candidate.URL),
		Organization: candidate.Organization,
		Deadline:     candidate.Deadline,
		Tags:         candidate.Tags,
		SourceType:   candidate.SourceType,
		SourceHash:   result.Hash,
		DiscoveredAt: candidate.DiscoveredAt,
	})
	if err == nil {
		return nil
	}

	if !coreerrors.Is(err, coreerrors.ErrAlreadyExists) {
		return err
	}

	in.logger.Info().Str(logFieldURL, candidate.URL).Msg("lost creation race, rechecking candidate")

	recheck, err := in.checker.CheckDuplicate(ctx, candidate)
	if err != nil {
		return err
	}

	if recheck.Action == domain.ActionNewOpportunity {
		// The conflicting row exists but is invisible to the engine
		// (e.g. already archived); nothing further to record.
		in.logger.Warn().Str(logFieldURL, candidate.URL).Msg("recheck after race still reports new, skipping")

		return nil
	}

	return in.applyDecision(ctx, candidate, recheck)
}

func rejectReason(err error) string {
	switch {
	case coreerrors.Is(err, coreerrors.ErrMissingTitle):
		return rejectReasonTitle
	case coreerrors.Is(err, coreerrors.ErrMissingDescription):
		return rejectReasonDescription
	case coreerrors.Is(err, coreerrors.ErrMissingURL):
		return rejectReasonURL
	default:
		return ""
	}
}
