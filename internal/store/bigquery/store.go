// Package bigquery persists extraction output to BigQuery. Tables live in
// a single dataset: transactions, merchant_mappings, extraction_runs, and
// analyses, all keyed by document identifier.
package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/schema"
)

const (
	transactionsTable = "transactions"
	mappingsTable     = "merchant_mappings"
	runsTable         = "extraction_runs"
	analysesTable     = "analyses"
)

// Store implements the store interfaces over a BigQuery dataset.
type Store struct {
	client  *bigquery.Client
	dataset string
}

// New creates a Store for the given project and dataset. The caller owns
// the client lifecycle via Close.
func New(ctx context.Context, projectID, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Store{client: client, dataset: dataset}, nil
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client *bigquery.Client, dataset string) *Store {
	return &Store{client: client, dataset: dataset}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) table(name string) string {
	return fmt.Sprintf("%s.%s", s.dataset, name)
}

func (s *Store) HasTransactionsFor(ctx context.Context, docID string) (bool, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE document_id = @document_id
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: docID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("HasTransactionsFor: query read: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return false, fmt.Errorf("HasTransactionsFor: iter next: %w", err)
	}
	return row.N > 0, nil
}

func (s *Store) SaveTransactions(ctx context.Context, docID string, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		var txDate bigquery.NullDate
		if canonical, err := schema.CanonicalDate(tx.Date, now.Year()); err == nil {
			txDate = civilDateOrNull(canonical)
		}
		rows = append(rows, &TransactionRow{
			TransactionID:   uuid.NewString(),
			DocumentID:      docID,
			TransactionDate: txDate,
			Merchant:        tx.Merchant,
			RawMerchant:     nullString(tx.RawMerchant),
			Amount:          ratFromFloat(tx.Amount),
			Currency:        "USD",
			Category:        string(tx.Category),
			RawLine:         nullString(tx.RawLine),
			Confidence:      bigquery.NullFloat64{Float64: tx.Confidence, Valid: true},
			CreatedTS:       now,
		})
	}

	inserter := s.client.Dataset(s.dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("SaveTransactions: inserting rows: %w", err)
	}
	return nil
}

func (s *Store) GetTransactionsFor(ctx context.Context, docID string) ([]domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			transaction_date,
			merchant,
			raw_merchant,
			amount,
			category,
			raw_line,
			confidence
		FROM %s
		WHERE document_id = @document_id
		ORDER BY transaction_date, created_ts
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: docID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionsFor: query read: %w", err)
	}

	var txs []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetTransactionsFor: iter next: %w", err)
		}

		tx := domain.Transaction{
			Merchant:    row.Merchant,
			RawMerchant: row.RawMerchant.StringVal,
			Category:    domain.Category(row.Category),
			RawLine:     row.RawLine.StringVal,
			Confidence:  row.Confidence.Float64,
		}
		if row.TransactionDate.Valid {
			tx.Date = row.TransactionDate.Date.String()
		}
		if row.Amount != nil {
			tx.Amount, _ = row.Amount.Float64()
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (s *Store) SaveAnalysis(ctx context.Context, analysis domain.AnalysisResult) error {
	byCategory, err := json.Marshal(analysis.ByCategory)
	if err != nil {
		return fmt.Errorf("SaveAnalysis: marshal by_category: %w", err)
	}
	topMerchants, err := json.Marshal(analysis.TopMerchants)
	if err != nil {
		return fmt.Errorf("SaveAnalysis: marshal top_merchants: %w", err)
	}

	row := &AnalysisRow{
		DocumentID:       analysis.DocID,
		Currency:         analysis.Currency,
		TransactionCount: int64(analysis.TransactionCount),
		TotalSpent:       ratFromFloat(analysis.TotalSpent),
		ByCategory:       bigquery.NullJSON{JSONVal: string(byCategory), Valid: true},
		TopMerchants:     bigquery.NullJSON{JSONVal: string(topMerchants), Valid: true},
		Insights:         analysis.Insights,
		Recommendations:  analysis.Recommendations,
		PotentialSavings: bigquery.NullFloat64{Float64: analysis.PotentialSavings, Valid: analysis.PotentialSavings > 0},
		CreatedTS:        time.Now().UTC(),
	}
	if analysis.DateRange != nil {
		row.DateRangeStart = civilDateOrNull(analysis.DateRange.Start)
		row.DateRangeEnd = civilDateOrNull(analysis.DateRange.End)
	}

	inserter := s.client.Dataset(s.dataset).Table(analysesTable).Inserter()
	if err := inserter.Put(ctx, []*AnalysisRow{row}); err != nil {
		return fmt.Errorf("SaveAnalysis: inserting row: %w", err)
	}
	return nil
}

func (s *Store) GetAnalysisFor(ctx context.Context, docID string) (*domain.AnalysisResult, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			document_id,
			currency,
			transaction_count,
			total_spent,
			by_category,
			top_merchants,
			date_range_start,
			date_range_end,
			insights,
			recommendations,
			potential_savings
		FROM %s
		WHERE document_id = @document_id
		ORDER BY created_ts DESC
		LIMIT 1
	`, s.table(analysesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: docID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetAnalysisFor: query read: %w", err)
	}

	var row AnalysisRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, fmt.Errorf("GetAnalysisFor: iter next: %w", err)
	}

	analysis := &domain.AnalysisResult{
		DocID:            row.DocumentID,
		Currency:         row.Currency,
		TransactionCount: int(row.TransactionCount),
		ByCategory:       map[domain.Category]float64{},
		Insights:         row.Insights,
		Recommendations:  row.Recommendations,
		PotentialSavings: row.PotentialSavings.Float64,
	}
	if row.TotalSpent != nil {
		analysis.TotalSpent, _ = row.TotalSpent.Float64()
	}
	if row.ByCategory.Valid {
		if err := json.Unmarshal([]byte(row.ByCategory.JSONVal), &analysis.ByCategory); err != nil {
			return nil, fmt.Errorf("GetAnalysisFor: unmarshal by_category: %w", err)
		}
	}
	if row.TopMerchants.Valid {
		if err := json.Unmarshal([]byte(row.TopMerchants.JSONVal), &analysis.TopMerchants); err != nil {
			return nil, fmt.Errorf("GetAnalysisFor: unmarshal top_merchants: %w", err)
		}
	}
	if row.DateRangeStart.Valid {
		analysis.DateRange = &domain.DateRange{
			Start: row.DateRangeStart.Date.String(),
			End:   row.DateRangeEnd.Date.String(),
		}
	}
	return analysis, nil
}
