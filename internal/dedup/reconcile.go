package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/artsradar/opportunity-radar/internal/core/domain"
	coreerrors "github.com/artsradar/opportunity-radar/internal/core/errors"
)

// MaxReconcileBatch caps the pairwise comparison batch. Reconciliation is
// O(n^2) over the batch; this is a documented scaling limit, larger
// windows must be processed in successive runs.
const MaxReconcileBatch = 500

const (
	logFieldBatch  = "batch_size"
	logFieldPairs  = "pairs"
	logFieldWindow = "window"
)

// ReconcilerRepository is the store surface batch reconciliation depends on.
type ReconcilerRepository interface {
	// FindRecent returns stored opportunities discovered within the
	// window, most recent first, capped at limit.
	FindRecent(ctx context.Context, window time.Duration, limit int) ([]domain.Opportunity, error)

	// CountOpportunities returns the total number of stored opportunities.
	CountOpportunities(ctx context.Context) (int64, error)

	// CountDuplicateLinks returns the total number of duplicate links.
	CountDuplicateLinks(ctx context.Context) (int64, error)
}

// DuplicatePair records one reconciled duplicate: the primary is the
// earlier-discovered record (ties broken by id) and stays canonical; the
// secondary is flagged for archival. Whether flagged records are ever
// hard-deleted is the store owner's call, not the reconciler's.
type DuplicatePair struct {
	PrimaryID     string
	SecondaryID   string
	SecondaryURL  string
	SecondaryType domain.SourceType
	Similarity    float64
	MatchedFields []string
}

// ReconcileReport aggregates one reconciliation run.
type ReconcileReport struct {
	DuplicatesFound   int
	DuplicatesFlagged int
	Pairs             []DuplicatePair
	ProcessingTime    time.Duration
}

// DedupStats summarizes cumulative deduplication effectiveness.
type DedupStats struct {
	TotalOpportunities   int64
	DuplicatesIdentified int64
	DeduplicationRate    float64
}

// Reconciler re-runs pairwise similarity over a window of already stored
// records to catch duplicates that arrived before a reference existed.
type Reconciler struct {
	repo   ReconcilerRepository
	scorer *Scorer
	opts   Options
	logger *zerolog.Logger
}

// NewReconciler creates a batch reconciler with the given store and options.
func NewReconciler(repo ReconcilerRepository, opts Options, logger *zerolog.Logger) *Reconciler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if opts.FuzzyWindow <= 0 {
		opts.FuzzyWindow = DefaultFuzzyWindow
	}

	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}

	return &Reconciler{
		repo:   repo,
		scorer: NewScorer(opts),
		opts:   opts,
		logger: logger,
	}
}

// RunDeduplication fetches up to batchSize recent records and compares
// every pair, reporting those above the similarity threshold. An empty
// batch returns zero counts without error. Cancellation is checked between
// comparisons so long batches stop cooperatively.
func (r *Reconciler) RunDeduplication(ctx context.Context, batchSize int) (ReconcileReport, error) {
	start := time.Now()

	if batchSize > MaxReconcileBatch {
		return ReconcileReport{}, fmt.Errorf("%w: %d > %d", coreerrors.ErrBatchSizeTooLarge, batchSize, MaxReconcileBatch)
	}

	if batchSize <= 0 {
		batchSize = MaxReconcileBatch
	}

	batch, err := r.repo.FindRecent(ctx, r.opts.FuzzyWindow, batchSize)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("fetch reconcile batch: %w", err)
	}

	pairs, err := r.findPairs(ctx, batch)
	if err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{
		DuplicatesFound:   len(pairs),
		DuplicatesFlagged: len(flaggedSecondaries(pairs)),
		Pairs:             pairs,
		ProcessingTime:    positiveDuration(time.Since(start)),
	}

	r.logger.Info().
		Int(logFieldBatch, len(batch)).
		Int(logFieldPairs, len(pairs)).
		Dur(logFieldWindow, r.opts.FuzzyWindow).
		Msg("batch reconciliation complete")

	return report, nil
}

// findPairs runs the O(n^2) pairwise scan. The batch is re-sorted by
// discovery time (ties broken by id) before scanning: the store returns
// records most recent first, and scanning in that order would let a record
// claim secondaries before losing canonical status itself, turning a
// cluster into a chain. With the earliest record scanned first, it claims
// the whole cluster and every pair carries the same canonical primary.
func (r *Reconciler) findPairs(ctx context.Context, batch []domain.Opportunity) ([]DuplicatePair, error) {
	ordered := make([]domain.Opportunity, len(batch))
	copy(ordered, batch)

	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].DiscoveredAt.Equal(ordered[j].DiscoveredAt) {
			return ordered[i].DiscoveredAt.Before(ordered[j].DiscoveredAt)
		}

		return ordered[i].ID < ordered[j].ID
	})

	normalized := make([]NormalizedFields, len(ordered))
	for i := range ordered {
		normalized[i] = NormalizeStored(ordered[i])
	}

	claimed := make(map[string]bool)

	var pairs []DuplicatePair

	for i := 0; i < len(ordered); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconciliation canceled: %w", err)
		}

		if claimed[ordered[i].ID] {
			continue
		}

		for j := i + 1; j < len(ordered); j++ {
			if claimed[ordered[j].ID] {
				continue
			}

			factors := r.scorer.Factors(normalized[i], normalized[j])
			if factors.Title < r.opts.TitleSimilarityThreshold {
				continue
			}

			if factors.Description < r.opts.DescriptionSimilarityThreshold {
				continue
			}

			score := r.scorer.Overall(factors)
			if score < r.opts.SimilarityThreshold {
				continue
			}

			claimed[ordered[j].ID] = true

			pairs = append(pairs, DuplicatePair{
				PrimaryID:     ordered[i].ID,
				SecondaryID:   ordered[j].ID,
				SecondaryURL:  ordered[j].URL,
				SecondaryType: ordered[j].SourceType,
				Similarity:    score,
				MatchedFields: MatchedFields(factors),
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Similarity != pairs[j].Similarity {
			return pairs[i].Similarity > pairs[j].Similarity
		}

		return pairs[i].PrimaryID < pairs[j].PrimaryID
	})

	return pairs, nil
}

// Stats reports cumulative dedup effectiveness from store counters.
func (r *Reconciler) Stats(ctx context.Context) (DedupStats, error) {
	total, err := r.repo.CountOpportunities(ctx)
	if err != nil {
		return DedupStats{}, fmt.Errorf("count opportunities: %w", err)
	}

	links, err := r.repo.CountDuplicateLinks(ctx)
	if err != nil {
		return DedupStats{}, fmt.Errorf("count duplicate links: %w", err)
	}

	stats := DedupStats{
		TotalOpportunities:   total,
		DuplicatesIdentified: links,
	}

	if total > 0 {
		stats.DeduplicationRate = float64(links) / float64(total)
	}

	return stats, nil
}

func flaggedSecondaries(pairs []DuplicatePair) map[string]struct{} {
	flagged := make(map[string]struct{}, len(pairs))

	for _, p := range pairs {
		flagged[p.SecondaryID] = struct{}{}
	}

	return flagged
}

// positiveDuration guards against a zero elapsed reading on coarse clocks
// so reports always carry a positive processing time.
func positiveDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Nanosecond
	}

	return d
}
