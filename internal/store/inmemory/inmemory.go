// Package inmemory provides mutex-guarded map implementations of the
// store interfaces, used by the CLI's local mode and by tests.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/store"
)

// Store implements every store interface over in-process maps.
type Store struct {
	mu           sync.RWMutex
	transactions map[string][]domain.Transaction
	analyses     map[string]domain.AnalysisResult
	mappings     map[mappingKey]store.MerchantMapping
	runs         map[string][]store.Run
}

type mappingKey struct {
	rawName  string
	category domain.Category
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		transactions: make(map[string][]domain.Transaction),
		analyses:     make(map[string]domain.AnalysisResult),
		mappings:     make(map[mappingKey]store.MerchantMapping),
		runs:         make(map[string][]store.Run),
	}
}

func (s *Store) HasTransactionsFor(_ context.Context, docID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions[docID]) > 0, nil
}

func (s *Store) SaveTransactions(_ context.Context, docID string, txs []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[docID] = append([]domain.Transaction(nil), txs...)
	return nil
}

func (s *Store) GetTransactionsFor(_ context.Context, docID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Transaction(nil), s.transactions[docID]...), nil
}

func (s *Store) SaveAnalysis(_ context.Context, analysis domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[analysis.DocID] = analysis
	return nil
}

func (s *Store) GetAnalysisFor(_ context.Context, docID string) (*domain.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	analysis, ok := s.analyses[docID]
	if !ok {
		return nil, nil
	}
	return &analysis, nil
}

func (s *Store) GetMapping(_ context.Context, rawName string) (*store.MerchantMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *store.MerchantMapping
	for key, mapping := range s.mappings {
		if key.rawName != rawName {
			continue
		}
		if best == nil || mapping.Confidence > best.Confidence {
			m := mapping
			best = &m
		}
	}
	return best, nil
}

func (s *Store) UpsertMapping(_ context.Context, mapping store.MerchantMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mappingKey{rawName: mapping.RawName, category: mapping.Category}
	if existing, ok := s.mappings[key]; ok {
		mapping.Confidence = existing.Confidence + 1
	}
	mapping.UpdatedAt = time.Now().UTC()
	s.mappings[key] = mapping
	return nil
}

func (s *Store) Stats(_ context.Context) (store.MappingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := store.MappingStats{TotalMerchants: len(s.mappings)}
	for _, mapping := range s.mappings {
		if mapping.Confidence >= store.HighConfidenceThreshold {
			stats.HighConfidence++
		}
	}
	return stats, nil
}

func (s *Store) RecordRun(_ context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.DocID] = append(s.runs[run.DocID], run)
	return nil
}

func (s *Store) LastRunFor(_ context.Context, docID string) (*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := s.runs[docID]
	if len(runs) == 0 {
		return nil, nil
	}
	run := runs[len(runs)-1]
	return &run, nil
}
