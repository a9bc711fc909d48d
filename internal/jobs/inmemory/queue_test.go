package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/jobs"
)

func TestQueuePublishAndProcess(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 2, store)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processed := make(chan string, 1)
	handler := func(ctx context.Context, job jobs.Job) error {
		extractJob, ok := job.(*jobs.ExtractDocumentJob)
		require.True(t, ok)
		processed <- extractJob.DocumentRef
		return nil
	}
	require.NoError(t, queue.Start(ctx, handler))

	job := &jobs.ExtractDocumentJob{DocumentRef: "statements/jan.txt"}
	require.NoError(t, queue.PublishExtractDocument(ctx, job))

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, 3, job.MaxRetries)

	select {
	case ref := <-processed:
		assert.Equal(t, "statements/jan.txt", ref)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	// The store eventually records completion.
	require.Eventually(t, func() bool {
		stored, err := store.GetJob(ctx, job.JobID)
		return err == nil && stored.Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	attempts := 0
	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		return nil
	}
	require.NoError(t, queue.Start(ctx, handler))

	job := &jobs.ExtractDocumentJob{DocumentRef: "statements/feb.txt", MaxRetries: 2}
	require.NoError(t, queue.PublishExtractDocument(ctx, job))

	require.Eventually(t, func() bool {
		stored, err := store.GetJob(ctx, job.JobID)
		return err == nil && stored.Status == jobs.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestQueueRejectsPublishAfterClose(t *testing.T) {
	queue := NewQueue(1, 1, NewStore())
	require.NoError(t, queue.Close())

	err := queue.PublishExtractDocument(context.Background(), &jobs.ExtractDocumentJob{DocumentRef: "x"})
	assert.Error(t, err)
}

func TestStoreListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for i, ref := range []string{"a.txt", "a.txt", "b.txt"} {
		job := &jobs.ExtractDocumentJob{
			JobID:       string(rune('1' + i)),
			DocumentRef: ref,
			Status:      jobs.JobStatusPending,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, store.SaveJob(ctx, job))
	}

	byRef, err := store.ListJobs(ctx, jobs.JobFilter{DocumentRef: "a.txt"})
	require.NoError(t, err)
	assert.Len(t, byRef, 2)

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
