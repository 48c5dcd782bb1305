package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	ingestservice "github.com/FACorreiaa/statement-ledger/internal/domain/ingest/service"
	"github.com/FACorreiaa/statement-ledger/internal/domain/learning"
	"github.com/FACorreiaa/statement-ledger/internal/domain/resolution"
	"github.com/FACorreiaa/statement-ledger/internal/observability"
	"github.com/FACorreiaa/statement-ledger/pkg/config"
	"github.com/FACorreiaa/statement-ledger/pkg/cron"
	"github.com/FACorreiaa/statement-ledger/pkg/db"
	"github.com/FACorreiaa/statement-ledger/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Logger *slog.Logger

	Store       *learning.Store
	Engine      *resolution.Engine
	Fuzzy       *resolution.FuzzyMatcher
	Phonetic    *resolution.PhoneticMatcher
	Bayes       *resolution.BayesClassifier
	Cascade     *resolution.Cascade
	VendorIndex *resolution.VendorIndex

	IngestService *ingestservice.Service
	Scheduler     *cron.Scheduler
	Metrics       *observability.Metrics
}

// buildDependencies wires the full pipeline from configuration.
func buildDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	pool, err := db.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	learningRepo := learning.NewPostgresRepository(pool, cfg.Resolution.SuspenseAccount)
	vendors, err := learningRepo.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vendors: %w", err)
	}
	patterns, err := learningRepo.ListPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load learned patterns: %w", err)
	}

	store := learning.NewStore(vendors, patterns, learningRepo, logger)

	engine := resolution.NewEngine(vendors, patterns)
	fuzzy := resolution.NewFuzzyMatcher(vendors)
	phonetic := resolution.NewPhoneticMatcher(vendors)
	bayes := resolution.NewBayesClassifier(vendors, patterns)

	vendorIndex, err := resolution.NewVendorIndex(cfg.Ingest.SearchIndexDir)
	if err != nil {
		return nil, fmt.Errorf("open vendor index: %w", err)
	}
	if err := vendorIndex.IndexVendors(vendors); err != nil {
		return nil, fmt.Errorf("index vendors: %w", err)
	}

	var batch *resolution.BatchClassifier
	if cfg.Resolution.ClassifierEnabled {
		gemini, err := resolution.NewGeminiClassifier(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("create classifier: %w", err)
		}
		limiter := rate.NewLimiter(
			rate.Limit(cfg.Resolution.RateLimitPerSecond),
			cfg.Resolution.RateLimitBurst,
		)
		batch = resolution.NewBatchClassifier(gemini, limiter, cfg.Resolution.ClassifierWorkers, logger)
	}

	// Successful external classifications become confirmed vendors, so the
	// next import resolves them locally.
	cascade := resolution.NewCascade(engine, fuzzy, phonetic, bayes, batch, cfg.Resolution.SuspenseAccount, logger).
		WithLearner(store)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	}

	ingestRepo := ingestservice.NewPostgresRepository(pool)
	svc := ingestservice.New(ingestRepo, cascade, logger)
	if metrics != nil {
		svc.WithMetrics(metrics)
	}
	if cfg.Ingest.ArchiveDir != "" {
		archive, err := storage.NewLocalArchive(cfg.Ingest.ArchiveDir)
		if err != nil {
			return nil, fmt.Errorf("open statement archive: %w", err)
		}
		svc.WithArchive(archive)
	}

	// Confirmations feed the Bayes model incrementally; deletions drop it.
	// The deterministic matchers rebuild on every vendor book change.
	rebuilders := matcherRebuilders(engine, fuzzy, phonetic)
	store.Subscribe(&bayesListener{bayes: bayes})
	store.Subscribe(&matcherListener{store: store, rebuilders: rebuilders})

	// The service itself retries suspense bookings once the nightly rebuild
	// has folded in the day's confirmations.
	scheduler := cron.NewScheduler(store, rebuilders, svc, logger)

	return &Dependencies{
		Config:        cfg,
		Pool:          pool,
		Logger:        logger,
		Store:         store,
		Engine:        engine,
		Fuzzy:         fuzzy,
		Phonetic:      phonetic,
		Bayes:         bayes,
		Cascade:       cascade,
		VendorIndex:   vendorIndex,
		IngestService: svc,
		Scheduler:     scheduler,
		Metrics:       metrics,
	}, nil
}

// Close releases pooled resources.
func (d *Dependencies) Close() {
	if d.VendorIndex != nil {
		_ = d.VendorIndex.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
