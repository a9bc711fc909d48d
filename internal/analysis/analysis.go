// Package analysis computes the numeric aggregate for a finalized
// transaction list. No model call is involved; decimal arithmetic keeps
// the per-category sums exact so they reconcile against total_spent.
package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

const topMerchantLimit = 10

// Compute aggregates a transaction list into an AnalysisResult. Spending
// totals count positive amounts only; category and merchant buckets use
// absolute values so refunds still attribute to their bucket.
func Compute(docID string, txs []domain.Transaction) domain.AnalysisResult {
	result := domain.AnalysisResult{
		DocID:            docID,
		Currency:         "USD",
		TransactionCount: len(txs),
		ByCategory:       map[domain.Category]float64{},
		TopMerchants:     []domain.MerchantTotal{},
	}
	if len(txs) == 0 {
		return result
	}

	totalSpent := decimal.Zero
	byCategory := map[domain.Category]decimal.Decimal{}
	merchantTotals := map[string]decimal.Decimal{}
	var minDate, maxDate string

	for _, tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount)
		if amount.IsPositive() {
			totalSpent = totalSpent.Add(amount)
		}

		category := tx.Category
		if category == "" {
			category = domain.CategoryOther
		}
		byCategory[category] = byCategory[category].Add(amount.Abs())

		merchant := tx.Merchant
		if merchant == "" {
			merchant = "Unknown"
		}
		merchantTotals[merchant] = merchantTotals[merchant].Add(amount.Abs())

		if tx.Date != "" {
			if minDate == "" || tx.Date < minDate {
				minDate = tx.Date
			}
			if tx.Date > maxDate {
				maxDate = tx.Date
			}
		}
	}

	result.TotalSpent = totalSpent.Round(2).InexactFloat64()
	for category, sum := range byCategory {
		result.ByCategory[category] = sum.Round(2).InexactFloat64()
	}

	for name, total := range merchantTotals {
		result.TopMerchants = append(result.TopMerchants, domain.MerchantTotal{
			Name:  name,
			Total: total.Round(2).InexactFloat64(),
		})
	}
	sort.Slice(result.TopMerchants, func(i, j int) bool {
		if result.TopMerchants[i].Total != result.TopMerchants[j].Total {
			return result.TopMerchants[i].Total > result.TopMerchants[j].Total
		}
		return result.TopMerchants[i].Name < result.TopMerchants[j].Name
	})
	if len(result.TopMerchants) > topMerchantLimit {
		result.TopMerchants = result.TopMerchants[:topMerchantLimit]
	}

	if minDate != "" {
		result.DateRange = &domain.DateRange{Start: minDate, End: maxDate}
	}
	return result
}
