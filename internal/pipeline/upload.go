package pipeline

import (
	"context"

	"github.com/kunzeritter/docpipeline/internal/extract"
	"github.com/kunzeritter/docpipeline/internal/pipelineerr"
)

// uploadStage implements spec.md §4.1's stage 1: the document row and its
// object-store blob already exist by the time this stage runs (created by
// internal/ingest's Enqueuer bridge, which is the only component able to
// assign a document id per spec.md §4.2's "every document enters the
// pipeline at upload to obtain an id"). This stage's own job is to read
// the page count back and record it.
func uploadStage(ctx context.Context, deps *Dependencies, docID, correlationID string) (string, map[string]any, error) {
	doc, data, err := fetchDocumentPDF(ctx, deps, docID)
	if err != nil {
		return "", nil, err
	}

	pageCount, err := extract.PageCount(data)
	if err != nil {
		return "", nil, &pipelineerr.InputError{Path: doc.Filename, Message: err.Error()}
	}

	doc.PageCount = pageCount
	if err := deps.Store.PutDocument(ctx, doc); err != nil {
		return "", nil, err
	}

	return doc.FileHash, map[string]any{"page_count": pageCount}, nil
}
