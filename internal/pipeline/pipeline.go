// Package pipeline orchestrates document extraction end to end: identity
// detection, optional structural summary, staged extraction, merchant
// enrichment, local aggregate analysis, optional narrative enrichment,
// and persistence. Each stage is a Step executing against shared State.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-extractor/internal/docsource"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/model"
	"github.com/dvloznov/statement-extractor/internal/retry"
	"github.com/dvloznov/statement-extractor/internal/store"
)

// Stages recorded on State as the pipeline advances.
const (
	StageIdentityReady         = "IDENTITY_READY"
	StageStructureReady        = "STRUCTURE_READY"
	StageTransactionsExtracted = "TRANSACTIONS_EXTRACTED"
	StageValidated             = "VALIDATED"
	StagePersisted             = "PERSISTED"
)

// Step is a single stage of the extraction pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is the shared state threaded through the pipeline steps for one
// document.
type State struct {
	Doc      docsource.Document
	Identity extract.Identity
	Stage    string
	Result   domain.ExtractionResult
}

// Options tunes a Pipeline.
type Options struct {
	MaxConcurrent    int
	SummaryEnabled   bool
	NarrativeEnabled bool
}

// Pipeline runs documents through extraction with an idempotency gate, a
// per-document critical section, and bounded concurrency across documents.
type Pipeline struct {
	extractor *extract.Extractor
	narrator  model.Caller
	retrier   *retry.Controller
	txStore   store.TransactionStore
	mappings  store.MerchantMappingStore
	runs      store.RunStore
	opts      Options

	sem chan struct{}

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// New wires a Pipeline. The narrator caller serves the structural summary
// and narrative enrichment calls and may be nil when both are disabled.
func New(extractor *extract.Extractor, narrator model.Caller, retrier *retry.Controller,
	txStore store.TransactionStore, mappings store.MerchantMappingStore, runs store.RunStore,
	opts Options) *Pipeline {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Pipeline{
		extractor: extractor,
		narrator:  narrator,
		retrier:   retrier,
		txStore:   txStore,
		mappings:  mappings,
		runs:      runs,
		opts:      opts,
		sem:       make(chan struct{}, opts.MaxConcurrent),
		inflight:  make(map[string]*sync.Mutex),
	}
}

// Run processes one document and returns its ExtractionResult. A document
// already extracted returns the cached result without any model call.
// Failures affect only this document; concurrent runs for other documents
// proceed independently.
func (p *Pipeline) Run(ctx context.Context, doc docsource.Document) (domain.ExtractionResult, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return domain.ExtractionResult{}, ctx.Err()
	}

	lock := p.docLock(doc.DocID)
	lock.Lock()
	defer lock.Unlock()

	log := logger.FromContext(ctx).With().Str("doc_id", doc.DocID).Logger()
	ctx = logger.WithContext(ctx, log)

	cached, err := p.cachedResult(ctx, doc.DocID)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	if cached != nil {
		log.Info().Msg("transactions already extracted, returning cached result")
		return *cached, nil
	}

	state := &State{Doc: doc}
	state.Result.DocID = doc.DocID

	started := time.Now().UTC()
	runErr := p.execute(ctx, state)
	p.recordRun(ctx, state, started, runErr)
	if runErr != nil {
		return domain.ExtractionResult{}, runErr
	}
	return state.Result, nil
}

func (p *Pipeline) execute(ctx context.Context, state *State) error {
	steps := []Step{
		&identityStep{},
	}
	if p.opts.SummaryEnabled && p.narrator != nil {
		steps = append(steps, &summaryStep{caller: p.narrator})
	}
	steps = append(steps,
		&extractStep{extractor: p.extractor},
		&enrichStep{mappings: p.mappings},
		&analyzeStep{},
	)
	if p.opts.NarrativeEnabled && p.narrator != nil {
		steps = append(steps, &narrativeStep{retrier: p.retrier})
	}
	steps = append(steps, &persistStep{txStore: p.txStore})

	for _, step := range steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("stage %s: %w", state.Stage, err)
		}
	}
	return nil
}

func (p *Pipeline) cachedResult(ctx context.Context, docID string) (*domain.ExtractionResult, error) {
	exists, err := p.txStore.HasTransactionsFor(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("idempotency check: %w", err)
	}
	if !exists {
		return nil, nil
	}

	txs, err := p.txStore.GetTransactionsFor(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loading cached transactions: %w", err)
	}
	analysis, err := p.txStore.GetAnalysisFor(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loading cached analysis: %w", err)
	}
	return &domain.ExtractionResult{
		DocID:        docID,
		Method:       domain.MethodCached,
		Transactions: txs,
		Analysis:     analysis,
	}, nil
}

func (p *Pipeline) recordRun(ctx context.Context, state *State, started time.Time, runErr error) {
	if p.runs == nil {
		return
	}
	run := store.Run{
		RunID:            uuid.NewString(),
		DocID:            state.Doc.DocID,
		Method:           state.Result.Method,
		Status:           store.RunStatusSucceeded,
		TransactionCount: len(state.Result.Transactions),
		StartedAt:        started,
		FinishedAt:       time.Now().UTC(),
	}
	if runErr != nil {
		run.Status = store.RunStatusFailed
		run.Error = runErr.Error()
	}
	if err := p.runs.RecordRun(ctx, run); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("failed to record extraction run")
	}
}

func (p *Pipeline) docLock(docID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.inflight[docID]
	if !ok {
		lock = &sync.Mutex{}
		p.inflight[docID] = lock
	}
	return lock
}
