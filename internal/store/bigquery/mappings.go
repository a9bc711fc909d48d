package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/store"
)

func (s *Store) GetMapping(ctx context.Context, rawName string) (*store.MerchantMapping, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			raw_name,
			normalized_name,
			category,
			confidence_score,
			updated_ts
		FROM %s
		WHERE raw_name = @raw_name
		ORDER BY confidence_score DESC
		LIMIT 1
	`, s.table(mappingsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "raw_name", Value: rawName},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetMapping: query read: %w", err)
	}

	var row MerchantMappingRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, fmt.Errorf("GetMapping: iter next: %w", err)
	}

	return &store.MerchantMapping{
		RawName:        row.RawName,
		NormalizedName: row.NormalizedName,
		Category:       domain.Category(row.Category),
		Confidence:     row.ConfidenceScore,
		UpdatedAt:      row.UpdatedTS,
	}, nil
}

func (s *Store) UpsertMapping(ctx context.Context, mapping store.MerchantMapping) error {
	q := s.client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @raw_name AS raw_name, @category AS category) src
		ON t.raw_name = src.raw_name AND t.category = src.category
		WHEN MATCHED THEN UPDATE SET
			normalized_name = @normalized_name,
			confidence_score = t.confidence_score + 1,
			updated_ts = @updated_ts
		WHEN NOT MATCHED THEN INSERT (
			raw_name, normalized_name, category, confidence_score, updated_ts
		) VALUES (
			@raw_name, @normalized_name, @category, @confidence_score, @updated_ts
		)
	`, s.table(mappingsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "raw_name", Value: mapping.RawName},
		{Name: "normalized_name", Value: mapping.NormalizedName},
		{Name: "category", Value: string(mapping.Category)},
		{Name: "confidence_score", Value: mapping.Confidence},
		{Name: "updated_ts", Value: time.Now().UTC()},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpsertMapping: running merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpsertMapping: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpsertMapping: job error: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (store.MappingStats, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			COUNT(*) AS total,
			COUNTIF(confidence_score >= @threshold) AS high_confidence
		FROM %s
	`, s.table(mappingsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "threshold", Value: store.HighConfidenceThreshold},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return store.MappingStats{}, fmt.Errorf("Stats: query read: %w", err)
	}
	var row struct {
		Total          int64 `bigquery:"total"`
		HighConfidence int64 `bigquery:"high_confidence"`
	}
	if err := it.Next(&row); err != nil {
		return store.MappingStats{}, fmt.Errorf("Stats: iter next: %w", err)
	}
	return store.MappingStats{
		TotalMerchants: int(row.Total),
		HighConfidence: int(row.HighConfidence),
	}, nil
}
