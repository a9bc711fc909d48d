package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// TransactionRow is the statements.transactions table schema.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	DocumentID    string `bigquery:"document_id"`    // REQUIRED

	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULLABLE

	Merchant    string              `bigquery:"merchant"`     // REQUIRED
	RawMerchant bigquery.NullString `bigquery:"raw_merchant"` // NULLABLE

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	Category string `bigquery:"category"` // REQUIRED

	RawLine    bigquery.NullString  `bigquery:"raw_line"`   // NULLABLE
	Confidence bigquery.NullFloat64 `bigquery:"confidence"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// MerchantMappingRow is the statements.merchant_mappings table schema.
type MerchantMappingRow struct {
	RawName        string `bigquery:"raw_name"`        // REQUIRED
	NormalizedName string `bigquery:"normalized_name"` // REQUIRED
	Category       string `bigquery:"category"`        // REQUIRED

	ConfidenceScore float64 `bigquery:"confidence_score"`

	UpdatedTS time.Time `bigquery:"updated_ts"` // REQUIRED
}

// RunRow is the statements.extraction_runs table schema.
type RunRow struct {
	RunID      string `bigquery:"run_id"`      // REQUIRED
	DocumentID string `bigquery:"document_id"` // REQUIRED

	Method string `bigquery:"method"` // REQUIRED
	Status string `bigquery:"status"` // REQUIRED

	TransactionCount int64               `bigquery:"transaction_count"`
	ErrorMessage     bigquery.NullString `bigquery:"error_message"` // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"` // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`
}

// AnalysisRow is the statements.analyses table schema. The aggregate
// breakdowns are stored as JSON rather than repeated records so the table
// schema survives category vocabulary changes.
type AnalysisRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED

	Currency         string   `bigquery:"currency"` // REQUIRED
	TransactionCount int64    `bigquery:"transaction_count"`
	TotalSpent       *big.Rat `bigquery:"total_spent"` // REQUIRED NUMERIC

	ByCategory   bigquery.NullJSON `bigquery:"by_category"`   // NULLABLE JSON
	TopMerchants bigquery.NullJSON `bigquery:"top_merchants"` // NULLABLE JSON

	DateRangeStart bigquery.NullDate `bigquery:"date_range_start"`
	DateRangeEnd   bigquery.NullDate `bigquery:"date_range_end"`

	Insights         []string             `bigquery:"insights"`        // REPEATED STRING
	Recommendations  []string             `bigquery:"recommendations"` // REPEATED STRING
	PotentialSavings bigquery.NullFloat64 `bigquery:"potential_savings"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func civilDateOrNull(date string) bigquery.NullDate {
	parsed, err := civil.ParseDate(date)
	if err != nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: parsed, Valid: true}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func ratFromFloat(f float64) *big.Rat {
	return new(big.Rat).SetFloat64(f)
}
