package stage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/model"
)

type memStore struct {
	mu        sync.Mutex
	docs      map[string]model.Document
	statuses  map[string]model.StageStatus
	markers   map[string]model.StageCompletionMarker
}

func newMemStore() *memStore {
	return &memStore{
		docs:     map[string]model.Document{},
		statuses: map[string]model.StageStatus{},
		markers:  map[string]model.StageCompletionMarker{},
	}
}

func markerKey(docID string, s model.StageName) string { return docID + "|" + string(s) }

func (m *memStore) GetDocument(_ context.Context, docID string) (model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[docID], nil
}

func (m *memStore) UpdateStageStatus(_ context.Context, docID string, s model.StageName, mutate func(model.StageState) model.StageState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ss, ok := m.statuses[docID]
	if !ok {
		ss = model.StageStatus{}
	}
	ss[s] = mutate(ss[s])
	m.statuses[docID] = ss
	return nil
}

func (m *memStore) SetProcessingStatus(_ context.Context, docID string, status model.ProcessingStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[docID]
	d.ProcessingStatus = status
	d.ErrorMessage = errMsg
	m.docs[docID] = d
	return nil
}

func (m *memStore) PutStageCompletionMarker(_ context.Context, mk model.StageCompletionMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[markerKey(mk.DocumentID, mk.StageName)] = mk
	return nil
}

func (m *memStore) GetStageCompletionMarker(_ context.Context, docID string, s model.StageName) (model.StageCompletionMarker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markers[markerKey(docID, s)]
	return mk, ok, nil
}

type memErrs struct {
	recorded []model.PipelineError
}

func (e *memErrs) RecordAttempt(_ context.Context, pe model.PipelineError) error {
	e.recorded = append(e.recorded, pe)
	return nil
}

func TestStartStage_DoesNotOverwriteCompleted(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	o := New(store, &memErrs{})

	require.NoError(t, o.CompleteStage(ctx, "doc-1", model.StageUpload, "hash-1", nil))
	require.NoError(t, o.StartStage(ctx, "doc-1", model.StageUpload))

	ss := store.statuses["doc-1"][model.StageUpload]
	assert.Equal(t, model.StageStatusCompleted, ss.Status)
}

func TestCompleteStage_IsNoOpWhenAlreadyCompleted(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	o := New(store, &memErrs{})

	require.NoError(t, o.CompleteStage(ctx, "doc-1", model.StageUpload, "hash-1", nil))
	require.NoError(t, o.CompleteStage(ctx, "doc-1", model.StageUpload, "hash-2", nil))

	marker, found, err := store.GetStageCompletionMarker(ctx, "doc-1", model.StageUpload)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hash-1", marker.DataHash)
}

func TestSkipIfComplete_MatchesDataHash(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	o := New(store, &memErrs{})

	require.NoError(t, o.CompleteStage(ctx, "doc-1", model.StageTextExtraction, "hash-a", nil))

	d, err := o.SkipIfComplete(ctx, "doc-1", model.StageTextExtraction, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, DecisionSkip, d)

	d, err = o.SkipIfComplete(ctx, "doc-1", model.StageTextExtraction, "hash-b")
	require.NoError(t, err)
	assert.Equal(t, DecisionRun, d)
}

func TestFailStage_PermanentMarksDocumentFailed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	errs := &memErrs{}
	o := New(store, errs)

	pe := model.PipelineError{DocumentID: "doc-1", StageName: model.StageClassification, ErrorMessage: "bad product type"}
	require.NoError(t, o.FailStage(ctx, "doc-1", model.StageClassification, pe, true))

	doc, err := o.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.ProcessingFailed, doc.ProcessingStatus)
	assert.Len(t, errs.recorded, 1)
}

func TestFailStage_TransientLeavesDocumentAlone(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	o := New(store, &memErrs{})

	pe := model.PipelineError{DocumentID: "doc-1", StageName: model.StageEmbeddingAndSearch, ErrorMessage: "timeout"}
	require.NoError(t, o.FailStage(ctx, "doc-1", model.StageEmbeddingAndSearch, pe, false))

	doc, err := o.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.NotEqual(t, model.ProcessingFailed, doc.ProcessingStatus)
}

func TestNextStage_WalksFixedOrder(t *testing.T) {
	next, ok := NextStage(model.StageUpload)
	require.True(t, ok)
	assert.Equal(t, model.StageTextExtraction, next)

	_, ok = NextStage(model.StageEmbeddingAndSearch)
	assert.False(t, ok)
}
