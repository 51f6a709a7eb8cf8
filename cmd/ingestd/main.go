// Command ingestd runs the document-ingestion pipeline: it watches the
// driver's input directory for new service manuals, drives each one
// through the eight pipeline stages, and writes the resulting chunks and
// image captions into the configured search backends. It exposes no
// query or serving endpoint.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/db"
	"github.com/kunzeritter/docpipeline/internal/dedup"
	"github.com/kunzeritter/docpipeline/internal/driver"
	"github.com/kunzeritter/docpipeline/internal/embedding"
	"github.com/kunzeritter/docpipeline/internal/ingest"
	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/objectstore"
	"github.com/kunzeritter/docpipeline/internal/observability"
	"github.com/kunzeritter/docpipeline/internal/pipeline"
	"github.com/kunzeritter/docpipeline/internal/repo"
	"github.com/kunzeritter/docpipeline/internal/retry"
	"github.com/kunzeritter/docpipeline/internal/scheduler"
	"github.com/kunzeritter/docpipeline/internal/scrapeclient"
	"github.com/kunzeritter/docpipeline/internal/stage"
	"github.com/kunzeritter/docpipeline/internal/transcribe"
	"github.com/kunzeritter/docpipeline/internal/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("ingestd exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	httpClient := observability.NewHTTPClient(&http.Client{Timeout: 60 * time.Second})

	objects, err := objectstore.NewS3Store(ctx, cfg.ObjectStore.S3())
	if err != nil {
		return err
	}

	searchMgr, err := db.NewManager(ctx, cfg.Search, cfg.Database, cfg.Embedding.Dimension)
	if err != nil {
		return err
	}
	defer searchMgr.Close()

	describer, err := vision.Build(cfg.Vision, httpClient)
	if err != nil {
		return err
	}

	transcriber, err := transcribe.Build(cfg, httpClient)
	if err != nil {
		return err
	}

	cache, err := buildDedupCache(cfg.DedupeCache)
	if err != nil {
		return err
	}

	orchestrator := stage.New(store, store)

	deps := &pipeline.Dependencies{
		Store:        store,
		Orchestrator: orchestrator,
		Objects:      objects,
		Search:       searchMgr,
		Embedder:     embedding.NewClient(cfg.Embedding, httpClient),
		Vision:       describer,
		Scraper:      scrapeclient.New(cfg.Scrape),
		Transcriber:  transcriber,
		DedupCache:   cache,
		Cfg:          cfg,
	}

	workers := make(map[model.StageName]int, len(cfg.Scheduler.Workers))
	for s, n := range cfg.Scheduler.Workers {
		workers[model.StageName(s)] = n
	}

	var sched *scheduler.Scheduler
	sched = scheduler.New(scheduler.Config{
		Stages:  pipeline.Stages(deps),
		Workers: workers,
		OnResult: func(res scheduler.Result) {
			onResult(ctx, store, orchestrator, sched, cfg, res)
		},
	})

	enqueuer := ingest.New(store, objects, sched)
	fileDriver := driver.New(cfg.Driver, enqueuer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return fileDriver.Run(gctx) })
	g.Go(func() error { return pollRetries(gctx, store, sched) })

	return g.Wait()
}

func buildStore(ctx context.Context, cfg config.Config) (repo.Store, error) {
	if cfg.Database.ConnectionURL == "" {
		log.Warn().Msg("DATABASE_CONNECTION_URL not set, falling back to in-memory store")
		return repo.NewMemoryStore(), nil
	}
	if err := db.Migrate(cfg.Database.ConnectionURL); err != nil {
		return nil, err
	}
	pool, err := db.OpenPool(ctx, cfg.Database.ConnectionURL)
	if err != nil {
		return nil, err
	}
	return repo.NewPostgresStore(pool), nil
}

func buildDedupCache(cfg config.DedupeCacheConfig) (dedup.Cache, error) {
	if cfg.RedisAddr == "" {
		return dedup.NoopCache{}, nil
	}
	return dedup.NewRedisCache(cfg.RedisAddr)
}

// retryPolicyFor maps a failing stage to the external service whose
// config.ServiceRetryPolicy governs its backoff, per spec.md §4.8's
// per-service (not per-stage) policy model.
func retryPolicyFor(cfg config.Config, s model.StageName) config.ServiceRetryPolicy {
	service := map[model.StageName]string{
		model.StageUpload:             "object_store",
		model.StageTextExtraction:     "database",
		model.StageTableExtraction:    "database",
		model.StageImageProcessing:    "vision",
		model.StageClassification:     "scrape",
		model.StagePartsExtraction:    "database",
		model.StageSeriesDetection:    "database",
		model.StageEmbeddingAndSearch: "embedder",
	}[s]
	if policy, ok := cfg.Retry.Policies[service]; ok {
		return policy
	}
	return config.DefaultRetryPolicy
}

// onResult implements the scheduler's documented feedback contract: it is
// the only place that advances a document to its next stage or hands a
// failure to the retry subsystem (internal/scheduler's OnResult godoc).
func onResult(ctx context.Context, store repo.Store, orch *stage.Orchestrator, sched *scheduler.Scheduler, cfg config.Config, res scheduler.Result) {
	logger := log.With().Str("document_id", res.DocID).Str("stage", string(res.Stage)).Str("correlation_id", res.CorrelationID).Logger()

	if res.Outcome == scheduler.OutcomeOK {
		if prior, found, err := store.GetByCorrelation(ctx, res.CorrelationID, res.Stage); err == nil && found && prior.RetryCount > 0 {
			if err := retry.Resolve(ctx, store, prior, "stage succeeded after retry"); err != nil {
				logger.Error().Err(err).Msg("resolve pipeline error")
			}
		}
		next, ok := stage.NextStage(res.Stage)
		if !ok {
			if err := store.SetProcessingStatus(ctx, res.DocID, model.ProcessingCompleted, ""); err != nil {
				logger.Error().Err(err).Msg("mark document completed")
			}
			return
		}
		if err := sched.Enqueue(ctx, next, res.DocID, res.CorrelationID); err != nil {
			logger.Error().Err(err).Msg("enqueue next stage")
		}
		return
	}

	if res.Outcome == scheduler.OutcomeCancelled {
		return
	}

	prior, _, err := store.GetByCorrelation(ctx, res.CorrelationID, res.Stage)
	if err != nil {
		logger.Error().Err(err).Msg("load prior pipeline error")
	}

	policy := retryPolicyFor(cfg, res.Stage)
	pe, delay, shouldRetry, err := retry.Attempt(ctx, store, policy, prior, res.CorrelationID, res.Stage, res.Err)
	if err != nil {
		logger.Error().Err(err).Msg("record retry attempt")
	}

	if err := orch.FailStage(ctx, res.DocID, res.Stage, pe, !shouldRetry); err != nil {
		logger.Error().Err(err).Msg("mark stage failed")
	}

	if shouldRetry {
		docID, stageName, correlationID := res.DocID, res.Stage, res.CorrelationID
		time.AfterFunc(delay, func() {
			if err := sched.Enqueue(ctx, stageName, docID, correlationID); err != nil {
				logger.Error().Err(err).Msg("re-enqueue after retry delay")
			}
		})
	}
}

// pollRetries periodically re-enqueues documents whose PipelineError rows
// came due for retry while ingestd was not running, covering the gap
// between process restarts that time.AfterFunc alone cannot.
func pollRetries(ctx context.Context, store repo.Store, sched *scheduler.Scheduler) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			due, err := store.DueForRetry(ctx, time.Now())
			if err != nil {
				log.Error().Err(err).Msg("poll due retries")
				continue
			}
			for _, pe := range due {
				if err := sched.Enqueue(ctx, pe.StageName, pe.DocumentID, pe.CorrelationID); err != nil {
					log.Error().Err(err).Str("document_id", pe.DocumentID).Msg("re-enqueue due retry")
				}
			}
		}
	}
}
