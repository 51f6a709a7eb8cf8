// Package repo implements entity persistence for the document-ingestion
// pipeline (spec.md §3): documents and their stage_status, the retry
// audit trail, and the classification/parts/series entities every later
// stage reads back. Store is the Postgres-backed implementation used in
// production; MemoryStore backs unit tests and the acceptance suite
// without a live database, mirroring internal/db's memorySearch/
// memoryVector fallback pattern.
package repo

import (
	"context"
	"time"

	"github.com/kunzeritter/docpipeline/internal/model"
)

// Documents covers document lifecycle reads/writes, satisfying
// internal/stage.Store structurally (repo does not import that package,
// to avoid a dependency edge from storage back to orchestration).
type Documents interface {
	GetDocument(ctx context.Context, docID string) (model.Document, error)
	PutDocument(ctx context.Context, d model.Document) error
	UpdateStageStatus(ctx context.Context, docID string, stage model.StageName, mutate func(model.StageState) model.StageState) error
	SetProcessingStatus(ctx context.Context, docID string, status model.ProcessingStatus, errMsg string) error
	PutStageCompletionMarker(ctx context.Context, m model.StageCompletionMarker) error
	GetStageCompletionMarker(ctx context.Context, docID string, stage model.StageName) (model.StageCompletionMarker, bool, error)
	LookupByFileHash(ctx context.Context, fileHash string) (string, bool, error)
}

// PipelineErrors satisfies internal/retry.Recorder structurally, plus the
// lookups the retry subsystem needs to find a stage's prior audit row.
type PipelineErrors interface {
	RecordAttempt(ctx context.Context, pe model.PipelineError) error
	GetByCorrelation(ctx context.Context, correlationID string, stage model.StageName) (model.PipelineError, bool, error)
	DueForRetry(ctx context.Context, before time.Time) ([]model.PipelineError, error)
}

// RetryPolicies stores the per-service backoff policy rows (spec.md §3).
type RetryPolicies interface {
	GetRetryPolicy(ctx context.Context, service string) (model.RetryPolicy, bool, error)
	PutRetryPolicy(ctx context.Context, p model.RetryPolicy) error
}

// Chunks covers the hierarchical chunker's output (spec.md §4.3).
type Chunks interface {
	PutChunk(ctx context.Context, c model.Chunk) error
	ListChunks(ctx context.Context, documentID string) ([]model.Chunk, error)
	LookupByContentHash(ctx context.Context, documentID, hash string) (string, bool, error)
}

// Images covers the image-processing stage's deduplicated output.
// LookupImageByFileHash is scoped globally by hash, not per document: the
// same bytes turning up in two manuals (a rebranded OEM set reusing the
// same diagrams) must resolve to the one image row already described,
// per spec.md §3's "file_hash globally unique in the image table."
type Images interface {
	PutImage(ctx context.Context, img model.Image) error
	ListImages(ctx context.Context, documentID string) ([]model.Image, error)
	LookupImageByFileHash(ctx context.Context, hash string) (string, bool, error)
}

// ErrorCodes covers the classification stage's extracted fault codes.
type ErrorCodes interface {
	PutErrorCode(ctx context.Context, ec model.ErrorCode) error
	ListErrorCodes(ctx context.Context, documentID string) ([]model.ErrorCode, error)
}

// Manufacturers covers the closed manufacturer identity table.
type Manufacturers interface {
	GetOrCreateManufacturer(ctx context.Context, canonicalName string) (model.Manufacturer, error)
	ListManufacturers(ctx context.Context) ([]model.Manufacturer, error)
}

// Products covers products, their series, and accessory-compatibility
// edges (spec.md §4.6's relation model).
type Products interface {
	GetOrCreateSeries(ctx context.Context, manufacturerID, seriesName string) (model.ProductSeries, error)
	GetOrCreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	PutProductAccessory(ctx context.Context, pa model.ProductAccessory) error
	Edges(ctx context.Context, productID string) ([]model.ProductAccessory, error)
}

// Links, Videos, and Parts cover the remaining per-document entities the
// classification and parts-extraction stages populate.
type Links interface {
	PutLink(ctx context.Context, l model.Link) error
	ListLinks(ctx context.Context, documentID string) ([]model.Link, error)
}

type Videos interface {
	PutVideo(ctx context.Context, v model.Video) error
	ListVideos(ctx context.Context, documentID string) ([]model.Video, error)
}

type Parts interface {
	PutPart(ctx context.Context, p model.Part) error
	ListParts(ctx context.Context, documentID string) ([]model.Part, error)
}

// Store is the full repository surface used by the pipeline. Both
// *PostgresStore and *MemoryStore implement it.
type Store interface {
	Documents
	PipelineErrors
	RetryPolicies
	Chunks
	Images
	ErrorCodes
	Manufacturers
	Products
	Links
	Videos
	Parts
}

// ErrNotFound is returned by Get/Lookup methods that find nothing, so
// callers can distinguish "new" from a real storage error.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "repo: not found" }
