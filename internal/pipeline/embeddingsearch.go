package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/kunzeritter/docpipeline/internal/pipelineerr"
)

// embeddingAndSearchStage implements spec.md §4.7: batch-embed every chunk
// and every image with a non-empty AI description, write vectors to the
// vector store, and index the same text into full-text search. The stage
// is idempotent: re-running it re-upserts the same ids with the same
// vectors, which every backend treats as a replace.
func embeddingAndSearchStage(ctx context.Context, deps *Dependencies, docID, correlationID string) (string, map[string]any, error) {
	chunks, err := deps.Store.ListChunks(ctx, docID)
	if err != nil {
		return "", nil, err
	}
	images, err := deps.Store.ListImages(ctx, docID)
	if err != nil {
		return "", nil, err
	}

	var texts []string
	var ids []string
	var metas []map[string]string
	hashes := make([]string, 0, len(chunks)+len(images))

	for _, c := range chunks {
		texts = append(texts, c.Content)
		ids = append(ids, c.ID)
		metas = append(metas, map[string]string{
			"document_id": c.DocumentID,
			"chunk_type":  string(c.ChunkType),
			"page_start":  strconv.Itoa(c.PageStart),
		})
		hashes = append(hashes, c.ContentHash)
	}

	for _, img := range images {
		if img.AIDescription == "" {
			continue
		}
		text := strings.TrimSpace(img.AIDescription + " " + img.OCRText)
		texts = append(texts, text)
		ids = append(ids, img.ID)
		metas = append(metas, map[string]string{
			"document_id": img.DocumentID,
			"kind":        "image",
			"page_number": strconv.Itoa(img.PageNumber),
		})
		hashes = append(hashes, img.FileHash)
	}

	if len(texts) == 0 {
		return mergeHash(hashes), map[string]any{"embedded_count": 0}, nil
	}

	vectors, err := deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return "", nil, err
	}
	if len(vectors) != len(texts) {
		return "", nil, &pipelineerr.InvariantViolation{Message: "embedding client returned a mismatched vector count"}
	}

	for i := range texts {
		if err := deps.Search.Vector.Upsert(ctx, ids[i], vectors[i], metas[i]); err != nil {
			return "", nil, err
		}
		if err := deps.Search.Search.Index(ctx, ids[i], texts[i], metas[i]); err != nil {
			return "", nil, err
		}
	}

	return mergeHash(hashes), map[string]any{"embedded_count": len(texts)}, nil
}
