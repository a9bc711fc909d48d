package schema

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

func TestValidateTransactionsBareArray(t *testing.T) {
	raw := `[{"date": "01/15/2024", "merchant": "Starbucks", "amount": 4.50, "category": "dining"}]`
	txs, _, err := ValidateTransactions(raw)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Starbucks", txs[0].Merchant)
	assert.Equal(t, 4.50, txs[0].Amount)
	assert.Equal(t, domain.CategoryDining, txs[0].Category)
}

func TestValidateTransactionsWrappedObject(t *testing.T) {
	raw := `{"transactions": [{"date": "2024-01-15", "merchant": "Shell", "amount": 40.00}]}`
	txs, _, err := ValidateTransactions(raw)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Shell", txs[0].Merchant)
}

func TestValidateTransactionsInvalidDate(t *testing.T) {
	raw := `[{"date": "13/45/2024", "merchant": "Shop", "amount": 5.00}]`
	_, _, err := ValidateTransactions(raw)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.NotEmpty(t, verr.Errors)
	assert.Contains(t, verr.Errors[0], "invalid date format")
	assert.Contains(t, verr.Feedback, "validation errors")
}

func TestValidateTransactionsAmountBounds(t *testing.T) {
	raw := `[{"date": "01/15/2024", "merchant": "Shop", "amount": 2000000}]`
	_, _, err := ValidateTransactions(raw)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Errors[0], "outside reasonable bounds")
}

func TestValidateTransactionsMerchantFallbacks(t *testing.T) {
	raw := `[{"date": "01/15/2024", "description": "Corner Store", "amount": 3.25}]`
	txs, _, err := ValidateTransactions(raw)
	require.NoError(t, err)
	assert.Equal(t, "Corner Store", txs[0].Merchant)
}

func TestValidateTransactionsAmountStringCoercion(t *testing.T) {
	raw := `[{"date": "01/15/2024", "merchant": "Shop", "amount": "$1,234.56"}]`
	txs, _, err := ValidateTransactions(raw)
	require.NoError(t, err)
	assert.Equal(t, 1234.56, txs[0].Amount)
}

// Every category a validated transaction carries must be in the closed
// vocabulary, no matter what the model emitted.
func TestValidateTransactionsCategoryClosure(t *testing.T) {
	inputs := []string{"dining", "FOOD", "fuel", "made-up-category", "", "Restaurants"}

	var items []string
	for _, c := range inputs {
		items = append(items, fmt.Sprintf(
			`{"date": "01/15/2024", "merchant": "M", "amount": 1.00, "category": %q}`, c))
	}
	raw := "[" + strings.Join(items, ",") + "]"

	txs, _, err := ValidateTransactions(raw)
	require.NoError(t, err)
	require.Len(t, txs, len(inputs))
	for _, tx := range txs {
		assert.True(t, tx.Category.Valid(), "category %q not in vocabulary", tx.Category)
	}
	assert.Equal(t, domain.CategoryDining, txs[1].Category)
	assert.Equal(t, domain.CategoryGas, txs[2].Category)
	assert.Equal(t, domain.CategoryOther, txs[3].Category)
}

func TestValidateTransactionsNoisyWrapper(t *testing.T) {
	raw := "Here are the transactions:\n```json\n[{\"date\": \"01/15/2024\", \"merchant\": \"Shop\", \"amount\": 5.00}]\n```"
	txs, _, err := ValidateTransactions(raw)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestValidateAnalysis(t *testing.T) {
	raw := `{
		"doc_id": "doc-1",
		"transaction_count": 2,
		"total_spent": 44.50,
		"by_category": {"dining": 4.50, "gas": 40.00},
		"top_merchants": [{"name": "Shell", "total": 40.00}, {"name": "Starbucks", "total": 4.50}],
		"date_range": {"start": "01/15/2024", "end": "01/16/2024"}
	}`
	a, warnings, err := ValidateAnalysis(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "USD", a.Currency)
	assert.Equal(t, 44.50, a.TotalSpent)
	assert.Equal(t, 4.50, a.ByCategory[domain.CategoryDining])
	require.Len(t, a.TopMerchants, 2)
	assert.Equal(t, "Shell", a.TopMerchants[0].Name)
}

func TestValidateAnalysisTotalAlias(t *testing.T) {
	raw := `{"transaction_count": 2, "total": 44.50, "by_category": {"dining": 4.50, "gas": 40.00}}`
	a, warnings, err := ValidateAnalysis(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 44.50, a.TotalSpent)
}

func TestValidateAnalysisZeroSpendWarning(t *testing.T) {
	raw := `{"transaction_count": 5, "total_spent": 0}`
	_, warnings, err := ValidateAnalysis(raw)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "total_spent is 0")
}

func TestValidateAnalysisCategorySumWarning(t *testing.T) {
	raw := `{"transaction_count": 2, "total_spent": 100.00, "by_category": {"dining": 10.00}}`
	_, warnings, err := ValidateAnalysis(raw)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Contains(t, strings.Join(warnings, "; "), "by_category")
}

func TestValidateAnalysisWrappedNarrative(t *testing.T) {
	raw := `{"analysis": {"insights": ["Dining is your top category"], "recommendations": ["Brew at home"], "potential_savings": 12.50}}`
	a, _, err := ValidateAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dining is your top category"}, a.Insights)
	assert.Equal(t, 12.50, a.PotentialSavings)
}

func TestValidDate(t *testing.T) {
	valid := []string{"01/15/2024", "2024-01-15", "15-01-2024", "1/2", "01/02", "01/15/24"}
	for _, d := range valid {
		assert.True(t, ValidDate(d), d)
	}
	invalid := []string{"13/45/2024", "2024/01/15", "Jan 15", ""}
	for _, d := range invalid {
		assert.False(t, ValidDate(d), d)
	}
}

func TestCanonicalDate(t *testing.T) {
	got, err := CanonicalDate("01/15/2024", 2023)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got)

	got, err = CanonicalDate("01/15", 2023)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-15", got)

	_, err = CanonicalDate("13/45/2024", 2023)
	assert.Error(t, err)
}
