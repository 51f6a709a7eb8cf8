package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kunzeritter/docpipeline/internal/chunker"
	"github.com/kunzeritter/docpipeline/internal/extract"
)

// dedupCacheTTL bounds how long a content hash's "already written" fast
// path stays trusted before falling back to the authoritative store
// lookup, per internal/dedup's "a miss here is never authoritative"
// contract.
const dedupCacheTTL = 10 * time.Minute

// textExtractionStage implements spec.md §4.3: per-page text extraction,
// hierarchical chunking, and content-hash deduplication. A crash between
// persisting some chunks and completing the stage is safe to re-run:
// chunks already written are skipped by content_hash lookup.
func textExtractionStage(ctx context.Context, deps *Dependencies, docID, correlationID string) (string, map[string]any, error) {
	doc, data, err := fetchDocumentPDF(ctx, deps, docID)
	if err != nil {
		return "", nil, err
	}

	pages, err := extract.PDFPages(data)
	if err != nil {
		return "", nil, err
	}

	chunks, err := chunker.New(chunker.DefaultConfig()).Chunk(pages)
	if err != nil {
		return "", nil, err
	}

	hashes := make([]string, 0, len(chunks))
	written := 0
	for _, c := range chunks {
		c.DocumentID = doc.ID
		hashes = append(hashes, c.ContentHash)
		cacheKey := doc.ID + ":" + c.ContentHash

		if _, cached, err := deps.DedupCache.Get(ctx, cacheKey); err == nil && cached {
			continue
		}
		if _, found, err := deps.Store.LookupByContentHash(ctx, doc.ID, c.ContentHash); err != nil {
			return "", nil, err
		} else if found {
			_ = deps.DedupCache.Set(ctx, cacheKey, "1", dedupCacheTTL)
			continue
		}

		c.ID = uuid.NewString()
		if err := deps.Store.PutChunk(ctx, c); err != nil {
			return "", nil, err
		}
		_ = deps.DedupCache.Set(ctx, cacheKey, "1", dedupCacheTTL)
		written++
	}

	return mergeHash(hashes), map[string]any{"chunk_count": len(chunks), "chunks_written": written}, nil
}
