package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/db"
	"github.com/kunzeritter/docpipeline/internal/dedup"
	"github.com/kunzeritter/docpipeline/internal/embedding"
	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/repo"
	"github.com/kunzeritter/docpipeline/internal/stage"
)

func newTestEmbedder(baseURL string) *embedding.Client {
	return embedding.NewClient(config.EmbeddingConfig{BaseURL: baseURL, Model: "test"}, nil)
}

func newTestDeps(t *testing.T) (*Dependencies, *repo.MemoryStore) {
	t.Helper()
	store := repo.NewMemoryStore()
	deps := &Dependencies{
		Store:        store,
		Orchestrator: stage.New(store, store),
		Search:       db.Manager{Search: db.NewMemorySearch(), Vector: db.NewMemoryVector()},
		DedupCache:   dedup.NoopCache{},
		Cfg: config.Config{
			Features: config.FeatureToggles{
				ContextExtraction:   true,
				ErrorCodeExtraction: true,
				ProductExtraction:   true,
			},
		},
	}
	return deps, store
}

func putDoc(t *testing.T, store *repo.MemoryStore, doc model.Document) {
	t.Helper()
	require.NoError(t, store.PutDocument(context.Background(), doc))
}

func TestClassificationStage_DetectsManufacturerAndErrorCodes(t *testing.T) {
	deps, store := newTestDeps(t)
	docID := uuid.NewString()
	putDoc(t, store, model.Document{ID: docID, Filename: "km-c284-service-manual.pdf"})

	require.NoError(t, store.PutChunk(context.Background(), model.Chunk{
		ID:         uuid.NewString(),
		DocumentID: docID,
		ChunkIndex: 0,
		PageStart:  3,
		PageEnd:    3,
		Content:    "Konica Minolta bizhub C284 service manual. Error C1234 occurs when the fuser is cold. Replace the fuser unit.",
		Metadata:   model.ChunkMetadata{ContainsErrorCode: true, Confidence: 0.9},
	}))

	_, meta, err := classificationStage(context.Background(), deps, docID, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, "Konica Minolta, Inc.", meta["manufacturer"])
	assert.Equal(t, 1, meta["error_code_count"])

	doc, err := store.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, "Konica Minolta, Inc.", doc.Manufacturer)
	assert.Equal(t, model.DocTypeServiceManual, doc.DocumentType)

	codes, err := store.ListErrorCodes(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "C1234", codes[0].Code)
}

func TestClassificationStage_DiscoversLinksAndVideos(t *testing.T) {
	deps, store := newTestDeps(t)
	docID := uuid.NewString()
	putDoc(t, store, model.Document{ID: docID, Filename: "doc.pdf"})

	require.NoError(t, store.PutChunk(context.Background(), model.Chunk{
		ID:         uuid.NewString(),
		DocumentID: docID,
		PageStart:  1,
		PageEnd:    1,
		Content:    "See https://support.example.com/km/c284 for parts. Tutorial: https://www.youtube.com/watch?v=abc123",
	}))

	_, meta, err := classificationStage(context.Background(), deps, docID, "corr-2")
	require.NoError(t, err)
	assert.Equal(t, 1, meta["link_count"])
	assert.Equal(t, 1, meta["video_count"])

	links, err := store.ListLinks(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, model.ScrapePending, links[0].ScrapeStatus)

	videos, err := store.ListVideos(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, videos, 1)
}

func TestTableExtractionStage_BoostsTableChunkConfidence(t *testing.T) {
	deps, store := newTestDeps(t)
	docID := uuid.NewString()
	putDoc(t, store, model.Document{ID: docID})

	chunkID := uuid.NewString()
	require.NoError(t, store.PutChunk(context.Background(), model.Chunk{
		ID:          chunkID,
		DocumentID:  docID,
		ChunkType:   model.ChunkTypeTable,
		ContentHash: "h1",
		Metadata:    model.ChunkMetadata{Confidence: 0.5},
	}))

	_, meta, err := tableExtractionStage(context.Background(), deps, docID, "corr-3")
	require.NoError(t, err)
	assert.Equal(t, 1, meta["table_chunk_count"])

	chunks, err := store.ListChunks(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0.85, chunks[0].Metadata.Confidence)
}

func TestPartsExtractionStage_WritesPartsOnce(t *testing.T) {
	deps, store := newTestDeps(t)
	docID := uuid.NewString()
	putDoc(t, store, model.Document{ID: docID, Manufacturer: "Canon Inc."})

	require.NoError(t, store.PutChunk(context.Background(), model.Chunk{
		ID:         uuid.NewString(),
		DocumentID: docID,
		Content:    "Replace part RM2-5415-000 — Fuser Assembly, 110V.",
		Metadata:   model.ChunkMetadata{ContainsPartNumber: true},
	}))

	_, meta, err := partsExtractionStage(context.Background(), deps, docID, "corr-4")
	require.NoError(t, err)
	assert.Equal(t, 1, meta["part_count"])

	// Re-running must not duplicate the row.
	_, meta, err = partsExtractionStage(context.Background(), deps, docID, "corr-4")
	require.NoError(t, err)
	assert.Equal(t, 0, meta["part_count"])

	parts, err := store.ListParts(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "RM2-5415-000", parts[0].PartNumber)
}

func TestSeriesDetectionStage_GroupsModelsUnderSeries(t *testing.T) {
	deps, store := newTestDeps(t)
	docID := uuid.NewString()
	putDoc(t, store, model.Document{
		ID:           docID,
		Manufacturer: "Lexmark International, Inc.",
		Series:       "CX920de",
		Models:       []string{"CX920de"},
	})

	_, meta, err := seriesDetectionStage(context.Background(), deps, docID, "corr-5")
	require.NoError(t, err)
	assert.Equal(t, "CX920de", meta["series"])

	manufacturers, err := store.ListManufacturers(context.Background())
	require.NoError(t, err)
	require.Len(t, manufacturers, 1)
}

func TestEmbeddingAndSearchStage_EmbedsChunksAndImages(t *testing.T) {
	deps, store := newTestDeps(t)
	docID := uuid.NewString()
	putDoc(t, store, model.Document{ID: docID})

	chunkID := uuid.NewString()
	require.NoError(t, store.PutChunk(context.Background(), model.Chunk{
		ID:          chunkID,
		DocumentID:  docID,
		Content:     "Replace the fuser unit when error C1234 appears.",
		ContentHash: "hash-1",
	}))
	imageID := uuid.NewString()
	require.NoError(t, store.PutImage(context.Background(), model.Image{
		ID:            imageID,
		DocumentID:    docID,
		FileHash:      "img-hash-1",
		AIDescription: "Diagram of the fuser assembly",
	}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{0.1, 0.2, 0.3}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	deps.Embedder = newTestEmbedder(srv.URL)

	_, meta, err := embeddingAndSearchStage(context.Background(), deps, docID, "corr-6")
	require.NoError(t, err)
	assert.Equal(t, 2, meta["embedded_count"])

	results, err := deps.Search.Vector.SimilaritySearch(context.Background(), []float32{0.1, 0.2, 0.3}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
