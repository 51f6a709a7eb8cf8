package search

import (
	"context"
	"testing"

	"github.com/kunzeritter/docpipeline/internal/db"
)

func seedManager(t *testing.T) db.Manager {
	t.Helper()
	vec := db.NewMemoryVector()
	ctx := context.Background()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	must(vec.Upsert(ctx, "chunk-1", []float32{1, 0, 0}, map[string]string{"modality": "chunk_text"}))
	must(vec.Upsert(ctx, "chunk-2", []float32{0.9, 0.1, 0}, map[string]string{"modality": "chunk_text"}))
	must(vec.Upsert(ctx, "image-1", []float32{1, 0, 0}, map[string]string{"modality": "image_caption"}))

	lex := db.NewMemorySearch()
	must(lex.Index(ctx, "chunk-1", "fuser unit replacement procedure", nil))
	must(lex.Index(ctx, "chunk-3", "toner cartridge replacement", nil))

	return db.Manager{Search: lex, Vector: vec}
}

func TestAssemble_FusesAcrossModalitiesByRank(t *testing.T) {
	mgr := seedManager(t)
	a := NewAssembler(mgr)

	hits, err := a.Assemble(context.Background(), []Query{
		{Modality: ModalityChunkText, Vector: []float32{1, 0, 0}},
		{Modality: ModalityImageCaption, Vector: []float32{1, 0, 0}},
		{Modality: ModalityLexical, Text: "replacement"},
	}, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected fused hits")
	}

	for i := 1; i < len(hits); i++ {
		if hits[i].RRFScore > hits[i-1].RRFScore {
			t.Fatalf("hits not sorted by RRFScore descending at index %d: %+v", i, hits)
		}
	}

	// Hits are kept per modality, so the top hit of each modality gets the
	// same RRF score (1/61 at weight 1). Ties sort by ID, and chunk-1 (first
	// in the chunk_text modality) sorts ahead of image-1.
	if hits[0].ID != "chunk-1" {
		t.Fatalf("expected chunk-1 to rank first, got %+v", hits[0])
	}
}

func TestAssemble_SkipsModalityWithZeroWeight(t *testing.T) {
	mgr := seedManager(t)
	a := NewAssembler(mgr)

	weights := DefaultWeights()
	weights[ModalityImageCaption] = 0

	hits, err := a.Assemble(context.Background(), []Query{
		{Modality: ModalityImageCaption, Vector: []float32{1, 0, 0}},
	}, 10, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits with zero-weighted modality, got %+v", hits)
	}
}

func TestFilterModality(t *testing.T) {
	hits := []Hit{
		{ID: "a", Modality: ModalityChunkText},
		{ID: "b", Modality: ModalityImageCaption},
		{ID: "c", Modality: ModalityChunkText},
	}
	got := FilterModality(hits, ModalityChunkText)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected filtered hits: %+v", got)
	}
}
