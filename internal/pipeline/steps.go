package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/analysis"
	"github.com/dvloznov/statement-extractor/internal/canonical"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/model"
	"github.com/dvloznov/statement-extractor/internal/retry"
	"github.com/dvloznov/statement-extractor/internal/schema"
	"github.com/dvloznov/statement-extractor/internal/store"
)

// identityStep derives the per-document identity context.
type identityStep struct{}

func (s *identityStep) Execute(_ context.Context, state *State) error {
	state.Identity = extract.BuildIdentity(
		state.Doc.DocID,
		state.Doc.Filename,
		state.Doc.Pages,
		state.Doc.FileSizeBytes,
		state.Doc.HeaderLines,
		state.Doc.Text,
	)
	state.Stage = StageIdentityReady
	return nil
}

// summaryStep asks the model to describe the document layout. Failures
// leave Result.Summary nil and never abort the run.
type summaryStep struct {
	caller model.Caller
}

func (s *summaryStep) Execute(ctx context.Context, state *State) error {
	summary, err := extract.StructuralSummary(ctx, s.caller, state.Identity, state.Doc.Text)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("structural summary failed, continuing without it")
	} else {
		state.Result.Summary = &summary
	}
	state.Stage = StageStructureReady
	return nil
}

// extractStep runs the staged extraction. Both paths yielding nothing is
// a reportable failure for this document.
type extractStep struct {
	extractor *extract.Extractor
}

func (s *extractStep) Execute(ctx context.Context, state *State) error {
	result := s.extractor.ExtractTransactions(ctx, state.Identity, state.Doc.Text)
	result.Summary = state.Result.Summary
	state.Result = result
	state.Stage = StageTransactionsExtracted

	if len(result.Transactions) == 0 {
		return fmt.Errorf("no transactions extracted via %s", result.Method)
	}
	return nil
}

// enrichStep canonicalizes merchants, overlays trusted learned mappings,
// and writes the session's normalizations back to the mapping store so
// future documents benefit.
type enrichStep struct {
	mappings store.MerchantMappingStore
}

func (s *enrichStep) Execute(ctx context.Context, state *State) error {
	canonical.Enrich(state.Result.Transactions)

	if s.mappings == nil {
		state.Stage = StageValidated
		return nil
	}

	log := logger.FromContext(ctx)
	for i := range state.Result.Transactions {
		tx := &state.Result.Transactions[i]

		mapping, err := s.mappings.GetMapping(ctx, tx.RawMerchant)
		if err != nil {
			log.Warn().Err(err).Str("raw_merchant", tx.RawMerchant).Msg("mapping lookup failed")
		} else if mapping != nil && mapping.Confidence >= store.HighConfidenceThreshold {
			tx.Merchant = mapping.NormalizedName
			tx.Category = mapping.Category
		}

		if err := s.mappings.UpsertMapping(ctx, store.MerchantMapping{
			RawName:        tx.RawMerchant,
			NormalizedName: tx.Merchant,
			Category:       tx.Category,
			Confidence:     tx.Confidence,
		}); err != nil {
			log.Warn().Err(err).Str("raw_merchant", tx.RawMerchant).Msg("mapping upsert failed")
		}
	}

	state.Stage = StageValidated
	return nil
}

// analyzeStep computes the numeric aggregate locally. No model call.
type analyzeStep struct{}

func (s *analyzeStep) Execute(_ context.Context, state *State) error {
	result := analysis.Compute(state.Doc.DocID, state.Result.Transactions)
	state.Result.Analysis = &result
	return nil
}

// narrativeStep asks the model for insights over the pre-computed numeric
// summary and merges only the validated narrative fields. A failure here
// leaves the numeric analysis intact.
type narrativeStep struct {
	retrier *retry.Controller
}

func (s *narrativeStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	var narrative *domain.AnalysisResult
	_, err := s.retrier.RunWithRetry(ctx, narrativePrompt(*state.Result.Analysis), func(raw string) ([]string, error) {
		parsed, warnings, verr := schema.ValidateAnalysis(raw)
		narrative = parsed
		return warnings, verr
	})
	if err != nil {
		log.Warn().Err(err).Msg("narrative enrichment failed, keeping numeric analysis")
		return nil
	}

	if len(narrative.Insights) > 0 {
		state.Result.Analysis.Insights = narrative.Insights
	}
	if len(narrative.Recommendations) > 0 {
		state.Result.Analysis.Recommendations = narrative.Recommendations
	}
	if narrative.PotentialSavings > 0 {
		state.Result.Analysis.PotentialSavings = narrative.PotentialSavings
	}
	return nil
}

// persistStep saves the transaction set and analysis.
type persistStep struct {
	txStore store.TransactionStore
}

func (s *persistStep) Execute(ctx context.Context, state *State) error {
	if err := s.txStore.SaveTransactions(ctx, state.Doc.DocID, state.Result.Transactions); err != nil {
		return fmt.Errorf("saving transactions: %w", err)
	}
	if err := s.txStore.SaveAnalysis(ctx, *state.Result.Analysis); err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	state.Stage = StagePersisted
	return nil
}

func narrativePrompt(a domain.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this spending data:\n\n")
	fmt.Fprintf(&b, "Total Spent: $%.2f\n", a.TotalSpent)
	fmt.Fprintf(&b, "Transaction Count: %d\n", a.TransactionCount)
	if a.DateRange != nil {
		fmt.Fprintf(&b, "Date Range: %s to %s\n", a.DateRange.Start, a.DateRange.End)
	} else {
		fmt.Fprintf(&b, "Date Range: N/A\n")
	}

	fmt.Fprintf(&b, "\nTop Categories:\n")
	categories := make([]string, 0, len(a.ByCategory))
	for category := range a.ByCategory {
		categories = append(categories, string(category))
	}
	sort.Slice(categories, func(i, j int) bool {
		return a.ByCategory[domain.Category(categories[i])] > a.ByCategory[domain.Category(categories[j])]
	})
	for _, category := range categories {
		fmt.Fprintf(&b, "- %s: $%.2f\n", category, a.ByCategory[domain.Category(category)])
	}

	fmt.Fprintf(&b, "\nTop Merchants:\n")
	for _, merchant := range a.TopMerchants {
		fmt.Fprintf(&b, "- %s: $%.2f\n", merchant.Name, merchant.Total)
	}

	b.WriteString("\nRespond with JSON: {\"analysis\": {\"insights\": [...], \"recommendations\": [...], \"potential_savings\": 0.0}}")
	return b.String()
}
