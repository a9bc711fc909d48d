// Command api serves the extractor HTTP API: statement uploads; extraction
// job enqueueing and status; and read access to extraction results and the
// learned merchant dictionary. An embedded worker processes enqueued jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/statement-extractor/internal/api/handlers"
	"github.com/dvloznov/statement-extractor/internal/api/middleware"
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
	var (
		port       = flag.String("port", "8080", "HTTP server port")
		configPath = flag.String("config", "extractor.yaml", "path to config file")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if cfg.GCS.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - statement uploads will be disabled")
	}

	ctx := logger.WithContext(context.Background(), log)

	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire extraction pipeline")
	}
	defer deps.cleanup()

	// Initialize job infrastructure
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(100, cfg.Pipeline.MaxConcurrent, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		extractJob, ok := job.(*jobs.ExtractDocumentJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", extractJob.JobID).
			Str("document_ref", extractJob.DocumentRef).
			Msg("Processing extraction job")

		doc, err := deps.source.Load(ctx, extractJob.DocumentRef)
		if err != nil {
			log.Error().Err(err).Str("job_id", extractJob.JobID).Msg("Failed to load document")
			return err
		}
		extractJob.DocID = doc.DocID

		result, err := deps.pipe.Run(ctx, doc)
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

	go func() {
		log.Info().Msg("Starting embedded job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	documentsHandler := handlers.NewDocumentsHandler(jobQueue, cfg.GCS.Bucket, log)
	resultsHandler := handlers.NewResultsHandler(deps.txStore, deps.runs, log)
	mappingsHandler := handlers.NewMappingsHandler(deps.mappings, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/documents/upload-url", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			documentsHandler.CreateUploadURL(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/documents/upload/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			documentID := strings.TrimPrefix(r.URL.Path, "/api/documents/upload/")
			if documentID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Document ID is required")
				return
			}
			documentsHandler.UploadDocument(w, r, documentID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/documents/extract", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			documentsHandler.EnqueueExtraction(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Results endpoints: /api/documents/{docID}/{transactions|analysis|run}
	mux.HandleFunc("/api/documents/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
		docID, resource, found := strings.Cut(rest, "/")
		if !found || docID == "" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}

		switch resource {
		case "transactions":
			resultsHandler.GetTransactions(w, r, docID)
		case "analysis":
			resultsHandler.GetAnalysis(w, r, docID)
		case "run":
			resultsHandler.GetLastRun(w, r, docID)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	mux.HandleFunc("/api/mappings/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			mappingsHandler.Stats(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/mappings/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rawName := strings.TrimPrefix(r.URL.Path, "/api/mappings/")
		if rawName == "" || rawName == "stats" {
			middleware.WriteError(w, http.StatusBadRequest, "Merchant name is required")
			return
		}
		mappingsHandler.Lookup(w, r, rawName)
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

// deps bundles the wired pipeline and the stores the read endpoints serve
// from.
type deps struct {
	pipe     *pipeline.Pipeline
	source   docsource.Source
	txStore  store.TransactionStore
	mappings store.MerchantMappingStore
	runs     store.RunStore
	cleanup  func()
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
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
		cleanup()
		return nil, err
	}

	// Narrative and summary calls run much longer than extraction calls.
	narrator, err := newCaller(cfg.Model.NarrativeTimeout)
	if err != nil {
		cleanup()
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

	d := &deps{cleanup: cleanup}

	if cfg.BigQuery.ProjectID != "" {
		bq, err := bqstore.New(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			cleanup()
			return nil, err
		}
		closers = append(closers, bq.Close)
		d.txStore, d.mappings, d.runs = bq, bq, bq
	} else {
		mem := inmemory.New()
		d.txStore, d.mappings, d.runs = mem, mem, mem
	}

	if cfg.GCS.Bucket != "" {
		gcs, err := docsource.NewGCSSource(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			cleanup()
			return nil, err
		}
		closers = append(closers, gcs.Close)
		d.source = gcs
	} else {
		d.source = docsource.NewLocalSource()
	}

	d.pipe = pipeline.New(extractor, narrator, retrier, d.txStore, d.mappings, d.runs, pipeline.Options{
		MaxConcurrent:    cfg.Pipeline.MaxConcurrent,
		SummaryEnabled:   cfg.Pipeline.SummaryEnabled,
		NarrativeEnabled: cfg.Pipeline.NarrativeEnabled,
	})

	return d, nil
}
