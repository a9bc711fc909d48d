package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/docsource"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	jobsmem "github.com/dvloznov/statement-extractor/internal/jobs/inmemory"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/model"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/dvloznov/statement-extractor/internal/retry"
	"github.com/dvloznov/statement-extractor/internal/store"
	bqstore "github.com/dvloznov/statement-extractor/internal/store/bigquery"
	"github.com/dvloznov/statement-extractor/internal/store/inmemory"
)

func main() {
	configPath := flag.String("config", "extractor.yaml", "path to config file")
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	pipe, source, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire extraction pipeline")
	}
	defer cleanup()

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(100, cfg.Pipeline.MaxConcurrent, jobStore)

	log.Info().Msg("Starting worker service")

	// Create job handler that processes extraction jobs
	handler := func(ctx context.Context, job jobs.Job) error {
		extractJob, ok := job.(*jobs.ExtractDocumentJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", extractJob.JobID).
			Str("document_ref", extractJob.DocumentRef).
			Msg("Processing extraction job")

		doc, err := source.Load(ctx, extractJob.DocumentRef)
		if err != nil {
			log.Error().Err(err).Str("job_id", extractJob.JobID).Msg("Failed to load document")
			return err
		}
		extractJob.DocID = doc.DocID

		result, err := pipe.Run(ctx, doc)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", extractJob.JobID).
				Str("doc_id", doc.DocID).
				Msg("Extraction failed")
			return err
		}

		log.Info().
			Str("job_id", extractJob.JobID).
			Str("doc_id", doc.DocID).
			Str("method", result.Method).
			Int("transactions", len(result.Transactions)).
			Msg("Extraction completed successfully")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	// Close the queue
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, docsource.Source, func(), error) {
	var closers []func() error
	cleanup := func() {
		for _, close := range closers {
			_ = close()
		}
	}

	newCaller := func(timeout time.Duration) (model.Caller, error) {
		if cfg.Model.Provider == "gemini" {
			return model.NewGeminiClient(ctx, cfg.Model.ModelName, timeout)
		}
		return model.NewOllamaClient(model.Endpoint{
			BaseURL:     cfg.Model.BaseURL,
			ModelName:   cfg.Model.ModelName,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
			Timeout:     timeout,
		}), nil
	}

	caller, err := newCaller(cfg.Model.Timeout)
	if err != nil {
		return nil, nil, cleanup, err
	}

	// Narrative and summary calls run much longer than extraction calls.
	narrator, err := newCaller(cfg.Model.NarrativeTimeout)
	if err != nil {
		return nil, nil, cleanup, err
	}

	retrier := retry.NewController(caller, retry.Config{
		MaxAttempts:             cfg.Pipeline.MaxAttempts,
		IncludeErrorFeedback:    true,
		IncludePreviousResponse: true,
	})
	extractor := extract.New(retrier, extract.Options{
		ChunkSize: cfg.Pipeline.ChunkSize,
		MaxChunks: cfg.Pipeline.MaxChunks,
	})

	var (
		txStore  store.TransactionStore
		mappings store.MerchantMappingStore
		runs     store.RunStore
	)
	if cfg.BigQuery.ProjectID != "" {
		bq, err := bqstore.New(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, nil, cleanup, err
		}
		closers = append(closers, bq.Close)
		txStore, mappings, runs = bq, bq, bq
	} else {
		mem := inmemory.New()
		txStore, mappings, runs = mem, mem, mem
	}

	var source docsource.Source
	if cfg.GCS.Bucket != "" {
		gcs, err := docsource.NewGCSSource(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			return nil, nil, cleanup, err
		}
		closers = append(closers, gcs.Close)
		source = gcs
	} else {
		source = docsource.NewLocalSource()
	}

	pipe := pipeline.New(extractor, narrator, retrier, txStore, mappings, runs, pipeline.Options{
		MaxConcurrent:    cfg.Pipeline.MaxConcurrent,
		SummaryEnabled:   cfg.Pipeline.SummaryEnabled,
		NarrativeEnabled: cfg.Pipeline.NarrativeEnabled,
	})
	return pipe, source, cleanup, nil
}
