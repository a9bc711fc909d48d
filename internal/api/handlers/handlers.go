// Package handlers implements the extractor API endpoints: statement
// uploads, extraction job management, and read access to extraction
// results and the learned merchant dictionary.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/api/middleware"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/store"
)

// DocumentsHandler handles statement upload and extraction endpoints.
type DocumentsHandler struct {
	publisher jobs.Publisher
	bucket    string
	log       zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler. An empty bucket
// disables the upload endpoints.
func NewDocumentsHandler(publisher jobs.Publisher, bucket string, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		publisher: publisher,
		bucket:    bucket,
		log:       log,
	}
}

// CreateUploadURL handles POST /api/documents/upload-url. It returns a V4
// signed URL when the ambient credentials can sign, and falls back to the
// direct upload endpoint for local development with user credentials.
func (h *DocumentsHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	if h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "No upload bucket configured")
		return
	}

	var req struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Filename == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Filename is required")
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/pdf"
	}

	objectName := fmt.Sprintf("uploads/%s/%s", time.Now().Format("2006/01/02"), uuid.New().String()+"-"+req.Filename)
	gcsURI := fmt.Sprintf("gs://%s/%s", h.bucket, objectName)
	documentID := uuid.New().String()

	uploadURL, err := h.generateSignedURL(r.Context(), h.bucket, objectName, req.ContentType)
	if err != nil {
		h.log.Debug().Err(err).Msg("Signed URL unavailable, falling back to direct upload")
		uploadURL = fmt.Sprintf("/api/documents/upload/%s?object_name=%s&filename=%s",
			documentID, url.QueryEscape(objectName), url.QueryEscape(req.Filename))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"upload_url":  uploadURL,
		"gcs_uri":     gcsURI,
		"object_name": objectName,
		"document_id": documentID,
	})
}

// UploadDocument handles POST /api/documents/upload/:documentId, the direct
// upload path for local development with user credentials.
func (h *DocumentsHandler) UploadDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	if h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "No upload bucket configured")
		return
	}

	ctx := r.Context()

	objectName := r.URL.Query().Get("object_name")
	if objectName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "object_name is required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	gcsURI := fmt.Sprintf("gs://%s/%s", h.bucket, objectName)

	client, err := storage.NewClient(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create storage client")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	defer client.Close()

	wc := client.Bucket(h.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	written, err := io.Copy(wc, r.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to write to GCS")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	if err := wc.Close(); err != nil {
		h.log.Error().Err(err).Msg("Failed to close GCS writer")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "statement.pdf"
	}
	if idx := strings.Index(filename, "?"); idx > 0 {
		filename = filename[:idx]
	}
	filename = filepath.Base(filename)

	h.log.Info().
		Str("document_id", documentID).
		Str("gcs_uri", gcsURI).
		Str("filename", filename).
		Int64("bytes", written).
		Msg("File uploaded successfully")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"document_id": documentID,
		"gcs_uri":     gcsURI,
		"status":      "uploaded",
	})
}

// EnqueueExtraction handles POST /api/documents/extract.
func (h *DocumentsHandler) EnqueueExtraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentRef string `json:"document_ref"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.DocumentRef == "" {
		middleware.WriteError(w, http.StatusBadRequest, "document_ref is required")
		return
	}

	ctx := r.Context()

	job := &jobs.ExtractDocumentJob{
		DocumentRef: req.DocumentRef,
	}

	if err := h.publisher.PublishExtractDocument(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue extraction job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue extraction job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("document_ref", req.DocumentRef).Msg("Extraction job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":       job.JobID,
		"document_ref": req.DocumentRef,
		"status":       string(job.Status),
	})
}

func (h *DocumentsHandler) generateSignedURL(ctx context.Context, bucket, object, contentType string) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create storage client: %w", err)
	}
	defer client.Close()

	opts := &storage.SignedURLOptions{
		Method:      "PUT",
		Expires:     time.Now().Add(15 * time.Minute),
		ContentType: contentType,
		Scheme:      storage.SigningSchemeV4,
	}

	url, err := client.Bucket(bucket).SignedURL(object, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}

	return url, nil
}

// ResultsHandler serves extraction results for a processed document.
type ResultsHandler struct {
	txStore store.TransactionStore
	runs    store.RunStore
	log     zerolog.Logger
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(txStore store.TransactionStore, runs store.RunStore, log zerolog.Logger) *ResultsHandler {
	return &ResultsHandler{
		txStore: txStore,
		runs:    runs,
		log:     log,
	}
}

// GetTransactions handles GET /api/documents/{docID}/transactions.
func (h *ResultsHandler) GetTransactions(w http.ResponseWriter, r *http.Request, docID string) {
	ctx := r.Context()

	txs, err := h.txStore.GetTransactionsFor(ctx, docID)
	if err != nil {
		h.log.Error().Err(err).Str("doc_id", docID).Msg("Failed to load transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"document_id":  docID,
		"transactions": txs,
		"count":        len(txs),
	})
}

// GetAnalysis handles GET /api/documents/{docID}/analysis.
func (h *ResultsHandler) GetAnalysis(w http.ResponseWriter, r *http.Request, docID string) {
	ctx := r.Context()

	analysis, err := h.txStore.GetAnalysisFor(ctx, docID)
	if err != nil {
		h.log.Error().Err(err).Str("doc_id", docID).Msg("Failed to load analysis")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load analysis")
		return
	}
	if analysis == nil {
		middleware.WriteError(w, http.StatusNotFound, "No analysis for document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, analysis)
}

// GetLastRun handles GET /api/documents/{docID}/run.
func (h *ResultsHandler) GetLastRun(w http.ResponseWriter, r *http.Request, docID string) {
	ctx := r.Context()

	run, err := h.runs.LastRunFor(ctx, docID)
	if err != nil {
		h.log.Error().Err(err).Str("doc_id", docID).Msg("Failed to load run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}
	if run == nil {
		middleware.WriteError(w, http.StatusNotFound, "No extraction run for document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// MappingsHandler serves the learned merchant dictionary.
type MappingsHandler struct {
	mappings store.MerchantMappingStore
	log      zerolog.Logger
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(mappings store.MerchantMappingStore, log zerolog.Logger) *MappingsHandler {
	return &MappingsHandler{
		mappings: mappings,
		log:      log,
	}
}

// Stats handles GET /api/mappings/stats.
func (h *MappingsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.mappings.Stats(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load mapping stats")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load mapping stats")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_merchants": stats.TotalMerchants,
		"high_confidence": stats.HighConfidence,
	})
}

// Lookup handles GET /api/mappings/{rawName}.
func (h *MappingsHandler) Lookup(w http.ResponseWriter, r *http.Request, rawName string) {
	ctx := r.Context()

	mapping, err := h.mappings.GetMapping(ctx, rawName)
	if err != nil {
		h.log.Error().Err(err).Str("raw_name", rawName).Msg("Failed to look up mapping")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to look up mapping")
		return
	}
	if mapping == nil {
		middleware.WriteError(w, http.StatusNotFound, "No mapping for merchant")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, mapping)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		DocumentRef: query.Get("document_ref"),
		Status:      jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
