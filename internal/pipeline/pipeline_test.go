package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/docsource"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/retry"
	"github.com/dvloznov/statement-extractor/internal/store"
	"github.com/dvloznov/statement-extractor/internal/store/inmemory"
)

type countingCaller struct {
	response string
	calls    int
}

func (c *countingCaller) Call(context.Context, string) (string, error) {
	c.calls++
	return c.response, nil
}

func appleCardDoc(docID string) docsource.Document {
	text := "Apple Card\nStatement\n\n" +
		"01/15/2024 STARBUCKS STORE #123 $4.50\n" +
		"01/16/2024 SHELL OIL 76 $40.00\n"
	return docsource.Document{
		DocID:       docID,
		Filename:    "statement.txt",
		Pages:       1,
		HeaderLines: []string{"Apple Card", "Statement"},
		Text:        text,
	}
}

func newTestPipeline(caller *countingCaller, mem *inmemory.Store, opts Options) *Pipeline {
	retrier := retry.NewController(caller, retry.DefaultConfig())
	extractor := extract.New(retrier, extract.Options{})
	return New(extractor, caller, retrier, mem, mem, mem, opts)
}

func TestRunDeterministicEndToEnd(t *testing.T) {
	caller := &countingCaller{response: "[]"}
	mem := inmemory.New()
	p := newTestPipeline(caller, mem, Options{})
	ctx := context.Background()

	result, err := p.Run(ctx, appleCardDoc("doc-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.MethodPattern, result.Method)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "Starbucks", result.Transactions[0].Merchant)
	assert.Equal(t, domain.CategoryDining, result.Transactions[0].Category)
	assert.Equal(t, "Shell", result.Transactions[1].Merchant)
	assert.Equal(t, domain.CategoryGas, result.Transactions[1].Category)

	require.NotNil(t, result.Analysis)
	assert.Equal(t, 44.50, result.Analysis.TotalSpent)
	assert.Equal(t, 4.50, result.Analysis.ByCategory[domain.CategoryDining])
	assert.Equal(t, 40.00, result.Analysis.ByCategory[domain.CategoryGas])

	assert.Zero(t, caller.calls, "deterministic run must not call the model")

	// Persisted and ledgered.
	saved, err := mem.GetTransactionsFor(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	run, err := mem.LastRunFor(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, store.RunStatusSucceeded, run.Status)
	assert.Equal(t, domain.MethodPattern, run.Method)
	assert.Equal(t, 2, run.TransactionCount)
}

// A document already extracted returns the cached result without any
// model call and without re-running extraction.
func TestRunIdempotent(t *testing.T) {
	caller := &countingCaller{response: "[]"}
	mem := inmemory.New()
	p := newTestPipeline(caller, mem, Options{})
	ctx := context.Background()

	first, err := p.Run(ctx, appleCardDoc("doc-1"))
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)

	second, err := p.Run(ctx, appleCardDoc("doc-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.MethodCached, second.Method)
	assert.Len(t, second.Transactions, 2)
	require.NotNil(t, second.Analysis)
	assert.Equal(t, 44.50, second.Analysis.TotalSpent)
	assert.Zero(t, caller.calls, "cached run must not call the model")
}

func TestRunNothingExtractedIsReportableFailure(t *testing.T) {
	// Pattern pass finds nothing and the model returns an empty list, so
	// the generative fallback also yields nothing.
	caller := &countingCaller{response: "[]"}
	mem := inmemory.New()
	p := newTestPipeline(caller, mem, Options{})
	ctx := context.Background()

	doc := docsource.Document{
		DocID:       "doc-empty",
		Filename:    "empty.txt",
		HeaderLines: []string{"nothing"},
		Text:        "free-form prose with no transactions",
	}
	_, err := p.Run(ctx, doc)
	require.Error(t, err)

	run, lerr := mem.LastRunFor(ctx, "doc-empty")
	require.NoError(t, lerr)
	require.NotNil(t, run)
	assert.Equal(t, store.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestRunNarrativeEnrichmentMergesValidatedFields(t *testing.T) {
	caller := &countingCaller{
		response: `{"analysis": {"insights": ["Gas dominates"], "recommendations": ["Carpool"], "potential_savings": 20.0}}`,
	}
	mem := inmemory.New()
	p := newTestPipeline(caller, mem, Options{NarrativeEnabled: true})
	ctx := context.Background()

	result, err := p.Run(ctx, appleCardDoc("doc-1"))
	require.NoError(t, err)

	require.NotNil(t, result.Analysis)
	assert.Equal(t, []string{"Gas dominates"}, result.Analysis.Insights)
	assert.Equal(t, []string{"Carpool"}, result.Analysis.Recommendations)
	assert.Equal(t, 20.0, result.Analysis.PotentialSavings)
	// Numeric fields stay locally computed.
	assert.Equal(t, 44.50, result.Analysis.TotalSpent)
	assert.Equal(t, 1, caller.calls)
}

func TestRunNarrativeFailureIsNonFatal(t *testing.T) {
	caller := &countingCaller{response: "not json at all"}
	mem := inmemory.New()
	p := newTestPipeline(caller, mem, Options{NarrativeEnabled: true})
	ctx := context.Background()

	result, err := p.Run(ctx, appleCardDoc("doc-1"))
	require.NoError(t, err)

	require.NotNil(t, result.Analysis)
	assert.Equal(t, 44.50, result.Analysis.TotalSpent)
	assert.Empty(t, result.Analysis.Insights)
	assert.Equal(t, 3, caller.calls, "narrative retries then gives up")
}

func TestRunLearnsMerchantMappings(t *testing.T) {
	caller := &countingCaller{response: "[]"}
	mem := inmemory.New()
	p := newTestPipeline(caller, mem, Options{})
	ctx := context.Background()

	_, err := p.Run(ctx, appleCardDoc("doc-1"))
	require.NoError(t, err)

	mapping, err := mem.GetMapping(ctx, "STARBUCKS STORE #123")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, "Starbucks", mapping.NormalizedName)
	assert.Equal(t, domain.CategoryDining, mapping.Category)
}
