package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/artsradar/opportunity-radar/internal/dedup"
	"github.com/artsradar/opportunity-radar/internal/ingest"
	"github.com/artsradar/opportunity-radar/internal/ingest/feed"
	"github.com/artsradar/opportunity-radar/internal/platform/config"
	"github.com/artsradar/opportunity-radar/internal/platform/observability"
	"github.com/artsradar/opportunity-radar/internal/platform/worker"
	db "github.com/artsradar/opportunity-radar/internal/storage"
)

const (
	modeWorker    = "worker"
	modeReconcile = "reconcile"

	appEnvLocal = "local"
)

func main() {
	mode := flag.String("mode", modeWorker, "run mode: worker or reconcile")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &logger, *mode, *once); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("exited with error")
	}

	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, mode string, once bool) error {
	store, err := db.NewWithOptions(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	go func() {
		if err := observability.NewServer(store, cfg.HealthPort, logger).Start(ctx); err != nil {
			logger.Error().Err(err).Msg("health server failed")
		}
	}()

	opts := dedupOptions(cfg)

	switch mode {
	case modeWorker:
		return runWorker(ctx, cfg, store, opts, logger, once)
	case modeReconcile:
		return runReconcile(ctx, cfg, store, opts, logger, once)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func runWorker(ctx context.Context, cfg *config.Config, store *db.DB, opts dedup.Options, logger *zerolog.Logger, once bool) error {
	engine := dedup.NewEngine(store, opts, logger)

	producers := []ingest.Producer{
		feed.New(feed.Config{
			URLs:         cfg.FeedURLs,
			FetchRPS:     cfg.FeedFetchRPS,
			FetchTimeout: cfg.FeedFetchTimeout,
		}, logger),
	}

	ingestor := ingest.New(producers, engine, store, logger)

	if once {
		return ingestor.Process(ctx)
	}

	return ingestor.Run(ctx, cfg.WorkerPollInterval)
}

func runReconcile(ctx context.Context, cfg *config.Config, store *db.DB, opts dedup.Options, logger *zerolog.Logger, once bool) error {
	reconciler := dedup.NewReconciler(store, opts, logger)

	pass := func(ctx context.Context) {
		defer worker.RecoverPanic(logger, "reconcile pass")

		if err := reconcilePass(ctx, cfg, store, reconciler, logger); err != nil {
			logger.Error().Err(err).Msg("reconcile pass failed")
		}
	}

	if once {
		return reconcilePass(ctx, cfg, store, reconciler, logger)
	}

	return worker.TickerLoop(ctx, worker.TickerConfig{
		Name:       "reconcile",
		Interval:   cfg.ReconcileInterval,
		OnTick:     pass,
		RunOnStart: true,
		Logger:     logger,
	})
}

// reconcilePass runs one batch reconciliation, persists discovered pairs
// as duplicate links, archives the flagged secondaries and refreshes the
// cumulative stats gauge.
func reconcilePass(ctx context.Context, cfg *config.Config, store *db.DB, reconciler *dedup.Reconciler, logger *zerolog.Logger) error {
	report, err := reconciler.RunDeduplication(ctx, cfg.ReconcileBatchSize)
	if err != nil {
		return fmt.Errorf("run deduplication: %w", err)
	}

	observability.ReconcileDurationSeconds.Observe(report.ProcessingTime.Seconds())
	observability.ReconcilePairsFound.Add(float64(report.DuplicatesFound))

	now := time.Now().UTC()

	for _, pair := range report.Pairs {
		if err := store.SaveDuplicateLink(ctx, &db.DuplicateLink{
			OpportunityID:   pair.PrimaryID,
			SourceURL:       pair.SecondaryURL,
			SourceType:      pair.SecondaryType,
			SimilarityScore: pair.Similarity,
			MatchedFields:   pair.MatchedFields,
			DetectedAt:      now,
		}); err != nil {
			return fmt.Errorf("save reconciled link: %w", err)
		}

		if err := store.MarkArchived(ctx, pair.SecondaryID); err != nil {
			return fmt.Errorf("archive duplicate %s: %w", pair.SecondaryID, err)
		}
	}

	stats, err := reconciler.Stats(ctx)
	if err != nil {
		return fmt.Errorf("dedup stats: %w", err)
	}

	observability.DeduplicationRate.Set(stats.DeduplicationRate)

	logger.Info().
		Int("pairs", report.DuplicatesFound).
		Int("flagged", report.DuplicatesFlagged).
		Int64("total", stats.TotalOpportunities).
		Float64("rate", stats.DeduplicationRate).
		Msg("reconciliation pass finished")

	return nil
}

func dedupOptions(cfg *config.Config) dedup.Options {
	return dedup.Options{
		SimilarityThreshold:            cfg.SimilarityThreshold,
		TitleSimilarityThreshold:       cfg.TitleSimilarityThreshold,
		DescriptionSimilarityThreshold: cfg.DescriptionSimilarityThreshold,
		OrganizationMatchRequired:      cfg.OrganizationMatchRequired,
		DeadlineDecayDays:              cfg.DeadlineDecayDays,
		FuzzyWindow:                    cfg.FuzzyWindow(),
		FuzzyPoolLimit:                 cfg.FuzzyPoolLimit,
		Weights: dedup.Weights{
			Title:        cfg.TitleWeight,
			Organization: cfg.OrganizationWeight,
			Deadline:     cfg.DeadlineWeight,
			Description:  cfg.DescriptionWeight,
		},
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == appEnvLocal {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
