package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/docsource"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/model"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/dvloznov/statement-extractor/internal/retry"
	"github.com/dvloznov/statement-extractor/internal/store"
	bqstore "github.com/dvloznov/statement-extractor/internal/store/bigquery"
	"github.com/dvloznov/statement-extractor/internal/store/inmemory"
)

// app holds everything a command needs once wiring is done.
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	source   docsource.Source
	mappings store.MerchantMappingStore

	closers []func() error
}

func (a *app) Close() {
	for _, close := range a.closers {
		_ = close()
	}
}

// buildApp wires the pipeline from configuration. Without a BigQuery
// project the stores are in-memory, which still exercises the full
// pipeline for one-shot CLI runs.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	caller, closeCaller, err := buildCaller(ctx, cfg.Model, cfg.Model.Timeout)
	if err != nil {
		return nil, err
	}

	// Narrative and summary calls run much longer than extraction calls.
	narrator, closeNarrator, err := buildCaller(ctx, cfg.Model, cfg.Model.NarrativeTimeout)
	if err != nil {
		if closeCaller != nil {
			_ = closeCaller()
		}
		return nil, err
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

	a := &app{cfg: cfg}
	if closeCaller != nil {
		a.closers = append(a.closers, closeCaller)
	}
	if closeNarrator != nil {
		a.closers = append(a.closers, closeNarrator)
	}

	var (
		txStore  store.TransactionStore
		mappings store.MerchantMappingStore
		runs     store.RunStore
	)
	if cfg.BigQuery.ProjectID != "" {
		bq, err := bqstore.New(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, bq.Close)
		txStore, mappings, runs = bq, bq, bq
	} else {
		mem := inmemory.New()
		txStore, mappings, runs = mem, mem, mem
	}
	a.mappings = mappings

	if cfg.GCS.Bucket != "" {
		gcs, err := docsource.NewGCSSource(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		a.source = gcs
	} else {
		a.source = docsource.NewLocalSource()
	}

	a.pipeline = pipeline.New(extractor, narrator, retrier, txStore, mappings, runs, pipeline.Options{
		MaxConcurrent:    cfg.Pipeline.MaxConcurrent,
		SummaryEnabled:   cfg.Pipeline.SummaryEnabled,
		NarrativeEnabled: cfg.Pipeline.NarrativeEnabled,
	})
	return a, nil
}

func buildCaller(ctx context.Context, cfg config.ModelConfig, timeout time.Duration) (model.Caller, func() error, error) {
	switch cfg.Provider {
	case "ollama":
		client := model.NewOllamaClient(model.Endpoint{
			BaseURL:     cfg.BaseURL,
			ModelName:   cfg.ModelName,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		})
		return client, nil, nil
	case "gemini":
		client, err := model.NewGeminiClient(ctx, cfg.ModelName, timeout)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
