package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-extractor/internal/store"
)

func (s *Store) RecordRun(ctx context.Context, run store.Run) error {
	row := &RunRow{
		RunID:            run.RunID,
		DocumentID:       run.DocID,
		Method:           run.Method,
		Status:           run.Status,
		TransactionCount: int64(run.TransactionCount),
		ErrorMessage:     nullString(run.Error),
		StartedTS:        run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		row.FinishedTS = bigquery.NullTimestamp{Timestamp: run.FinishedAt, Valid: true}
	}

	inserter := s.client.Dataset(s.dataset).Table(runsTable).Inserter()
	if err := inserter.Put(ctx, []*RunRow{row}); err != nil {
		return fmt.Errorf("RecordRun: inserting row: %w", err)
	}
	return nil
}

func (s *Store) LastRunFor(ctx context.Context, docID string) (*store.Run, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			document_id,
			method,
			status,
			transaction_count,
			error_message,
			started_ts,
			finished_ts
		FROM %s
		WHERE document_id = @document_id
		ORDER BY started_ts DESC
		LIMIT 1
	`, s.table(runsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: docID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("LastRunFor: query read: %w", err)
	}

	var row RunRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, fmt.Errorf("LastRunFor: iter next: %w", err)
	}

	run := &store.Run{
		RunID:            row.RunID,
		DocID:            row.DocumentID,
		Method:           row.Method,
		Status:           row.Status,
		TransactionCount: int(row.TransactionCount),
		Error:            row.ErrorMessage.StringVal,
		StartedAt:        row.StartedTS,
	}
	if row.FinishedTS.Valid {
		run.FinishedAt = row.FinishedTS.Timestamp
	}
	return run, nil
}
