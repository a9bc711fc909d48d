package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

func TestNormalizeRuleMatch(t *testing.T) {
	tests := []struct {
		raw      string
		name     string
		category domain.Category
	}{
		{"STARBUCKS STORE #123", "Starbucks", domain.CategoryDining},
		{"starbucks coffee 0456", "Starbucks", domain.CategoryDining},
		{"SHELL OIL 76", "Shell", domain.CategoryGas},
		{"AMAZON.COM*M12AB34CD", "Amazon", domain.CategoryShopping},
		{"UBER EATS HELP.UBER.COM", "Uber Eats", domain.CategoryDining},
		{"NETFLIX.COM", "Netflix", domain.CategoryEntertainment},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			name, category, confidence := Normalize(tt.raw)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, ConfidenceRule, confidence)
		})
	}
}

func TestNormalizePrefixCapture(t *testing.T) {
	name, _, confidence := Normalize("TST* JOES PIZZA")
	assert.Equal(t, "Joes Pizza", name)
	assert.Equal(t, ConfidenceRule, confidence)

	name, _, _ = Normalize("SQ *CORNER CAFE")
	assert.Equal(t, "Corner Cafe", name)
}

func TestNormalizeTrailingStoreNumber(t *testing.T) {
	name, category, confidence := Normalize("LOCAL DINER #42")
	assert.Equal(t, "Local Diner", name)
	assert.Empty(t, category)
	assert.Equal(t, ConfidenceCleanup, confidence)
}

func TestNormalizeFallbackTitleCase(t *testing.T) {
	name, category, confidence := Normalize("SOME OBSCURE VENDOR")
	assert.Equal(t, "Some Obscure Vendor", name)
	assert.Empty(t, category)
	assert.Equal(t, ConfidenceRaw, confidence)
}

func TestNormalizeEmpty(t *testing.T) {
	name, category, confidence := Normalize("   ")
	assert.Equal(t, "Unknown", name)
	assert.Empty(t, category)
	assert.Zero(t, confidence)
}

func TestEnrich(t *testing.T) {
	txs := []domain.Transaction{
		{Merchant: "STARBUCKS STORE #123", Amount: 4.50},
		{Merchant: "SOME VENDOR", Amount: 10, Category: domain.CategoryTravel},
	}
	Enrich(txs)

	assert.Equal(t, "Starbucks", txs[0].Merchant)
	assert.Equal(t, "STARBUCKS STORE #123", txs[0].RawMerchant)
	assert.Equal(t, domain.CategoryDining, txs[0].Category)
	assert.Equal(t, ConfidenceRule, txs[0].Confidence)

	// A pre-set category is preserved.
	assert.Equal(t, domain.CategoryTravel, txs[1].Category)
	assert.Equal(t, "Some Vendor", txs[1].Merchant)
}

func TestComputeStats(t *testing.T) {
	txs := []domain.Transaction{
		{RawMerchant: "STARBUCKS #1", Merchant: "Starbucks", Confidence: 0.95},
		{RawMerchant: "STARBUCKS #2", Merchant: "Starbucks", Confidence: 0.95},
		{RawMerchant: "LOCAL DINER #42", Merchant: "Local Diner", Confidence: 0.5},
		{RawMerchant: "ODD VENDOR", Merchant: "Odd Vendor", Confidence: 0.3},
	}
	stats := ComputeStats(txs)

	assert.Equal(t, 2, stats.HighConfidence)
	assert.Equal(t, 1, stats.MediumConfidence)
	assert.Equal(t, 1, stats.LowConfidence)
	assert.Equal(t, 4, stats.UniqueRaw)
	assert.Equal(t, 3, stats.UniqueNormalized)
}
