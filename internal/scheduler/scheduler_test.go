package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/pipelineerr"
)

func TestScheduler_RoutesSuccessAndFailureOutcomes(t *testing.T) {
	var mu sync.Mutex
	var results []Result
	done := make(chan struct{}, 10)

	s := New(Config{
		Stages: map[model.StageName]StageFunc{
			model.StageUpload: func(_ context.Context, docID, _ string) error {
				if docID == "bad" {
					return &pipelineerr.ValidationError{Field: "x", Message: "nope"}
				}
				return nil
			},
		},
		Workers:   map[model.StageName]int{model.StageUpload: 2},
		QueueSize: 4,
		OnResult: func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			done <- struct{}{}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.NoError(t, s.Enqueue(ctx, model.StageUpload, "good", "corr-1"))
	require.NoError(t, s.Enqueue(ctx, model.StageUpload, "bad", "corr-2"))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2)
	byDoc := map[string]Result{}
	for _, r := range results {
		byDoc[r.DocID] = r
	}
	assert.Equal(t, OutcomeOK, byDoc["good"].Outcome)
	assert.Equal(t, OutcomePermanentError, byDoc["bad"].Outcome)
}

func TestClassify_TransientVsPermanent(t *testing.T) {
	assert.Equal(t, OutcomeTransientError, classify(&pipelineerr.TransientServiceError{Service: "embedder", Err: errors.New("timeout")}))
	assert.Equal(t, OutcomePermanentError, classify(&pipelineerr.ValidationError{Field: "f", Message: "m"}))
}

func TestLocks_PreventsConcurrentSameDocStage(t *testing.T) {
	l := newLocks()
	assert.True(t, l.tryAcquire("doc-1", model.StageUpload))
	assert.False(t, l.tryAcquire("doc-1", model.StageUpload))
	l.release("doc-1", model.StageUpload)
	assert.True(t, l.tryAcquire("doc-1", model.StageUpload))
}
