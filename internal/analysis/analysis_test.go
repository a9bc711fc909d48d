package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

func TestComputeEmpty(t *testing.T) {
	result := Compute("doc-1", nil)
	assert.Equal(t, "doc-1", result.DocID)
	assert.Equal(t, "USD", result.Currency)
	assert.Zero(t, result.TransactionCount)
	assert.Zero(t, result.TotalSpent)
	assert.Empty(t, result.ByCategory)
	assert.Empty(t, result.TopMerchants)
	assert.Nil(t, result.DateRange)
}

func TestComputeAppleCardScenario(t *testing.T) {
	txs := []domain.Transaction{
		{Date: "01/15/2024", Merchant: "Starbucks", Amount: 4.50, Category: domain.CategoryDining},
		{Date: "01/16/2024", Merchant: "Shell", Amount: 40.00, Category: domain.CategoryGas},
	}
	result := Compute("doc-1", txs)

	assert.Equal(t, 2, result.TransactionCount)
	assert.Equal(t, 44.50, result.TotalSpent)
	assert.Equal(t, map[domain.Category]float64{
		domain.CategoryDining: 4.50,
		domain.CategoryGas:    40.00,
	}, result.ByCategory)

	require.Len(t, result.TopMerchants, 2)
	assert.Equal(t, domain.MerchantTotal{Name: "Shell", Total: 40.00}, result.TopMerchants[0])
	assert.Equal(t, domain.MerchantTotal{Name: "Starbucks", Total: 4.50}, result.TopMerchants[1])

	require.NotNil(t, result.DateRange)
	assert.Equal(t, "01/15/2024", result.DateRange.Start)
	assert.Equal(t, "01/16/2024", result.DateRange.End)
}

// Refunds do not add to total_spent but still attribute to their
// category and merchant buckets by absolute value.
func TestComputeRefundHandling(t *testing.T) {
	txs := []domain.Transaction{
		{Merchant: "Amazon", Amount: 30.00, Category: domain.CategoryShopping},
		{Merchant: "Amazon", Amount: -10.00, Category: domain.CategoryShopping},
	}
	result := Compute("doc-1", txs)

	assert.Equal(t, 30.00, result.TotalSpent)
	assert.Equal(t, 40.00, result.ByCategory[domain.CategoryShopping])
	require.Len(t, result.TopMerchants, 1)
	assert.Equal(t, 40.00, result.TopMerchants[0].Total)
}

// by_category must reconcile with grouped absolute sums to 2 decimals
// even for amounts that misbehave in binary floating point.
func TestComputeDecimalExactness(t *testing.T) {
	txs := []domain.Transaction{
		{Merchant: "A", Amount: 0.1, Category: domain.CategoryOther},
		{Merchant: "B", Amount: 0.2, Category: domain.CategoryOther},
		{Merchant: "C", Amount: 0.3, Category: domain.CategoryOther},
	}
	result := Compute("doc-1", txs)

	assert.Equal(t, 0.6, result.TotalSpent)
	assert.Equal(t, 0.6, result.ByCategory[domain.CategoryOther])
}

func TestComputeTopMerchantCap(t *testing.T) {
	var txs []domain.Transaction
	for i := 0; i < 15; i++ {
		txs = append(txs, domain.Transaction{
			Merchant: string(rune('A' + i)),
			Amount:   float64(i + 1),
			Category: domain.CategoryOther,
		})
	}
	result := Compute("doc-1", txs)

	require.Len(t, result.TopMerchants, 10)
	assert.Equal(t, 15.00, result.TopMerchants[0].Total)
	assert.True(t, result.TopMerchants[0].Total >= result.TopMerchants[9].Total)
}

func TestComputeDefaultsForMissingFields(t *testing.T) {
	txs := []domain.Transaction{{Amount: 5.00}}
	result := Compute("doc-1", txs)

	assert.Equal(t, 5.00, result.ByCategory[domain.CategoryOther])
	require.Len(t, result.TopMerchants, 1)
	assert.Equal(t, "Unknown", result.TopMerchants[0].Name)
	assert.Nil(t, result.DateRange)
}
