package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/schema"
)

const (
	// DefaultChunkSize splits statement text for generative extraction.
	DefaultChunkSize = 2800
	// DefaultMaxChunks caps how many leading chunks are sent to the model.
	DefaultMaxChunks = 3
)

// GenerativeResult aggregates per-chunk extraction. A chunk whose response
// never validates is skipped, not fatal; SkippedChunks records how many.
type GenerativeResult struct {
	Transactions  []domain.Transaction
	Warnings      []string
	RawResponses  []string
	SkippedChunks int
}

func extractionPrompt(filename, chunk string) string {
	return "Extract ALL transactions from the following statement chunk." +
		` Return ONLY valid JSON array with {"date":"MM/DD", "merchant":"", "amount":-45.23, "description":""}.` +
		" Do not explain." +
		fmt.Sprintf("\nDocument: %s", filename) +
		fmt.Sprintf("\nChunk:\n%s", chunk)
}

// generativeExtract sends the leading chunks of the statement to the model,
// validating each response and retrying with correction feedback.
func (e *Extractor) generativeExtract(ctx context.Context, identity Identity, text string) GenerativeResult {
	log := logger.FromContext(ctx)

	var result GenerativeResult
	chunks := chunkText(text, e.chunkSize)
	if len(chunks) > e.maxChunks {
		result.SkippedChunks += len(chunks) - e.maxChunks
		chunks = chunks[:e.maxChunks]
	}

	for i, chunk := range chunks {
		var (
			txs      []domain.Transaction
			warnings []string
		)
		res, err := e.retrier.RunWithRetry(ctx, extractionPrompt(identity.Filename, chunk), func(raw string) ([]string, error) {
			var verr error
			txs, warnings, verr = schema.ValidateTransactions(raw)
			return warnings, verr
		})
		if err != nil {
			log.Warn().Err(err).Int("chunk", i).Str("doc_id", identity.DocID).
				Msg("chunk extraction failed, skipping")
			result.SkippedChunks++
			continue
		}

		result.Transactions = append(result.Transactions, txs...)
		result.Warnings = append(result.Warnings, warnings...)
		result.RawResponses = append(result.RawResponses, res.Response)
	}
	return result
}

func chunkText(text string, size int) []string {
	if size <= 0 || text == "" {
		return nil
	}
	chunks := make([]string, 0, (len(text)+size-1)/size)
	for i := 0; i < len(text); i += size {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
	}
	return chunks
}

func joinResponses(responses []string) string {
	return strings.Join(responses, "\n")
}
