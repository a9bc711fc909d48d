// Package store defines the persistence contracts for extracted
// transactions, learned merchant mappings, and extraction run records.
// Implementations live in the inmemory and bigquery subpackages.
package store

import (
	"context"
	"time"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

// HighConfidenceThreshold marks a learned mapping as trusted. Mapping
// confidence grows by one on each re-observation, so a mapping seen a few
// times crosses this line.
const HighConfidenceThreshold = 3.0

// MerchantMapping is a learned raw-to-canonical merchant association.
// Its confidence is a running score, not a probability: each upsert of an
// existing (raw, category) pair bumps the score by one.
type MerchantMapping struct {
	RawName        string
	NormalizedName string
	Category       domain.Category
	Confidence     float64
	UpdatedAt      time.Time
}

// Run statuses recorded in the run ledger.
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is one extraction attempt over a document.
type Run struct {
	RunID            string
	DocID            string
	Method           string
	Status           string
	TransactionCount int
	Error            string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// MappingStats summarizes the learned merchant dictionary.
type MappingStats struct {
	TotalMerchants int
	HighConfidence int
}

// TransactionStore persists transaction sets and their analysis, keyed by
// document identifier.
type TransactionStore interface {
	// HasTransactionsFor is the idempotency gate: true means extraction
	// already ran for this document and must not run again.
	HasTransactionsFor(ctx context.Context, docID string) (bool, error)
	SaveTransactions(ctx context.Context, docID string, txs []domain.Transaction) error
	GetTransactionsFor(ctx context.Context, docID string) ([]domain.Transaction, error)
	SaveAnalysis(ctx context.Context, analysis domain.AnalysisResult) error
	GetAnalysisFor(ctx context.Context, docID string) (*domain.AnalysisResult, error)
}

// MerchantMappingStore persists the learned merchant dictionary.
type MerchantMappingStore interface {
	// GetMapping returns nil when no mapping exists for the raw name.
	GetMapping(ctx context.Context, rawName string) (*MerchantMapping, error)
	// UpsertMapping inserts the mapping, or bumps the stored confidence
	// by one when the (raw name, category) pair already exists.
	UpsertMapping(ctx context.Context, mapping MerchantMapping) error
	Stats(ctx context.Context) (MappingStats, error)
}

// RunStore is the extraction run ledger.
type RunStore interface {
	RecordRun(ctx context.Context, run Run) error
	LastRunFor(ctx context.Context, docID string) (*Run, error)
}
