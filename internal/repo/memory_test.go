package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/model"
)

func TestMemoryStore_PutAndGetDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutDocument(ctx, model.Document{ID: "d1", FileHash: "abc", Filename: "manual.pdf"}))

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", got.Filename)

	id, found, err := s.LookupByFileHash(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "d1", id)
}

func TestMemoryStore_GetDocument_MissingReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateStageStatus_PreservesOtherStages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutDocument(ctx, model.Document{ID: "d1"}))

	require.NoError(t, s.UpdateStageStatus(ctx, "d1", model.StageUpload, func(prev model.StageState) model.StageState {
		return model.StageState{Status: model.StageStatusCompleted, Progress: 100}
	}))
	require.NoError(t, s.UpdateStageStatus(ctx, "d1", model.StageTextExtraction, func(prev model.StageState) model.StageState {
		return model.StageState{Status: model.StageStatusProcessing, Progress: 10}
	}))

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusCompleted, got.StageStatus[model.StageUpload].Status)
	assert.Equal(t, model.StageStatusProcessing, got.StageStatus[model.StageTextExtraction].Status)
}

func TestMemoryStore_PutChunk_DedupesByContentHash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c := model.Chunk{ID: "c1", DocumentID: "d1", ContentHash: "h1", Content: "first"}
	require.NoError(t, s.PutChunk(ctx, c))
	require.NoError(t, s.PutChunk(ctx, model.Chunk{ID: "c2", DocumentID: "d1", ContentHash: "h1", Content: "duplicate"}))

	chunks, err := s.ListChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "first", chunks[0].Content)

	id, found, err := s.LookupByContentHash(ctx, "d1", "h1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "c1", id)
}

func TestMemoryStore_RecordAttempt_UpsertsByCorrelationAndStage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	pe := model.PipelineError{CorrelationID: "corr-1", StageName: model.StageClassification, RetryCount: 1}
	require.NoError(t, s.RecordAttempt(ctx, pe))
	pe.RetryCount = 2
	require.NoError(t, s.RecordAttempt(ctx, pe))

	got, found, err := s.GetByCorrelation(ctx, "corr-1", model.StageClassification)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got.RetryCount)
}

func TestMemoryStore_DueForRetry_FiltersByStatusAndTime(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	require.NoError(t, s.RecordAttempt(ctx, model.PipelineError{
		CorrelationID: "due", StageName: model.StageUpload, Status: model.PipelineErrorRetrying, NextRetryAt: &past,
	}))
	require.NoError(t, s.RecordAttempt(ctx, model.PipelineError{
		CorrelationID: "not-due", StageName: model.StageUpload, Status: model.PipelineErrorRetrying, NextRetryAt: &future,
	}))
	require.NoError(t, s.RecordAttempt(ctx, model.PipelineError{
		CorrelationID: "resolved", StageName: model.StageUpload, Status: model.PipelineErrorResolved, NextRetryAt: &past,
	}))

	due, err := s.DueForRetry(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].CorrelationID)
}

func TestMemoryStore_GetOrCreateManufacturer_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, err := s.GetOrCreateManufacturer(ctx, "HP Inc.")
	require.NoError(t, err)
	b, err := s.GetOrCreateManufacturer(ctx, "HP Inc.")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestMemoryStore_GetOrCreateProduct_UpsertsByNaturalKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p1, err := s.GetOrCreateProduct(ctx, model.Product{ManufacturerID: "mfg-1", ModelNumber: "CX920de", ProductType: model.ProductLaserMultifunction})
	require.NoError(t, err)
	p2, err := s.GetOrCreateProduct(ctx, model.Product{ManufacturerID: "mfg-1", ModelNumber: "CX920de", ProductType: model.ProductLaserMultifunction})
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
}

func TestDedupIndex_LooksUpDocumentsOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutDocument(ctx, model.Document{ID: "d1", FileHash: "h1"}))
	idx := NewDedupIndex(s)

	id, found, err := idx.Lookup(ctx, "document", "h1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "d1", id)

	_, found, err = idx.Lookup(ctx, "chunk", "h1")
	require.NoError(t, err)
	assert.False(t, found)
}
