package extract

import (
	"context"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/retry"
)

// Options tunes an Extractor. Zero values fall back to the defaults.
type Options struct {
	ChunkSize int
	MaxChunks int
}

// Extractor produces transactions from statement text, deterministically
// when a grammar matches and generatively otherwise.
type Extractor struct {
	retrier   *retry.Controller
	chunkSize int
	maxChunks int
}

// New builds an Extractor around a retry controller. The controller owns
// the model transport so the extractor never talks to a model directly.
func New(retrier *retry.Controller, opts Options) *Extractor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = DefaultMaxChunks
	}
	return &Extractor{retrier: retrier, chunkSize: opts.ChunkSize, maxChunks: opts.MaxChunks}
}

// ExtractTransactions runs the staged extraction: grammar pass first, then
// the generative fallback when the grammar finds nothing at all. A grammar
// pass that finds even one transaction wins; the two sources never mix.
func (e *Extractor) ExtractTransactions(ctx context.Context, identity Identity, fullText string) domain.ExtractionResult {
	log := logger.FromContext(ctx)

	patterned := PatternExtract(fullText, identity.StatementType)
	if len(patterned.Transactions) > 0 {
		log.Info().Str("doc_id", identity.DocID).Int("count", len(patterned.Transactions)).
			Int("dropped", patterned.Dropped).Msg("pattern extraction succeeded")
		return domain.ExtractionResult{
			DocID:             identity.DocID,
			Method:            domain.MethodPattern,
			Transactions:      patterned.Transactions,
			DroppedCandidates: patterned.Dropped,
		}
	}

	log.Info().Str("doc_id", identity.DocID).Str("statement_type", identity.StatementType).
		Msg("no pattern matches, falling back to generative extraction")

	gen := e.generativeExtract(ctx, identity, fullText)
	return domain.ExtractionResult{
		DocID:              identity.DocID,
		Method:             domain.MethodGenerativeFallback,
		Transactions:       gen.Transactions,
		RawModelResponse:   joinResponses(gen.RawResponses),
		ValidationWarnings: gen.Warnings,
		DroppedCandidates:  patterned.Dropped,
		SkippedChunks:      gen.SkippedChunks,
	}
}
