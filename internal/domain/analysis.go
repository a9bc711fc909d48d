package domain

// MerchantTotal is one entry of AnalysisResult.TopMerchants.
type MerchantTotal struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// DateRange is the min/max transaction date observed in a document.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AnalysisResult aggregates a finalized transaction list for one document.
// The numeric fields are computed locally; Insights, Recommendations and
// PotentialSavings may be merged in later from the model's narrative path.
type AnalysisResult struct {
	DocID            string               `json:"doc_id"`
	Currency         string               `json:"currency"`
	TransactionCount int                  `json:"transaction_count"`
	TotalSpent       float64              `json:"total_spent"`
	ByCategory       map[Category]float64 `json:"by_category"`
	TopMerchants     []MerchantTotal      `json:"top_merchants"`
	DateRange        *DateRange           `json:"date_range"`
	Insights         []string             `json:"insights,omitempty"`
	Recommendations  []string             `json:"recommendations,omitempty"`
	PotentialSavings float64              `json:"potential_savings,omitempty"`
}
