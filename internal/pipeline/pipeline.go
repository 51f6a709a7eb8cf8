// Package pipeline implements the business logic of the eight pipeline
// stages (spec.md §4.1): one scheduler.StageFunc per stage, wired to the
// Stage Orchestrator for idempotency/progress bookkeeping and to the
// concrete extraction/normalization/search clients for the actual work.
// Stage-to-stage advancement is not done here: per internal/scheduler's
// OnResult contract, that is the caller's job (cmd/ingestd).
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/db"
	"github.com/kunzeritter/docpipeline/internal/dedup"
	"github.com/kunzeritter/docpipeline/internal/embedding"
	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/objectstore"
	"github.com/kunzeritter/docpipeline/internal/repo"
	"github.com/kunzeritter/docpipeline/internal/scheduler"
	"github.com/kunzeritter/docpipeline/internal/scrapeclient"
	"github.com/kunzeritter/docpipeline/internal/stage"
	"github.com/kunzeritter/docpipeline/internal/transcribe"
	"github.com/kunzeritter/docpipeline/internal/vision"
)

// Dependencies is the full set of collaborators a stage body may call,
// assembled once at startup (spec.md §9's "explicit dependency injection"
// design note) and shared by every stage.
type Dependencies struct {
	Store        repo.Store
	Orchestrator *stage.Orchestrator
	Objects      objectstore.ObjectStore
	Search       db.Manager
	Embedder     *embedding.Client
	Vision       vision.Describer
	Scraper      *scrapeclient.Client
	Transcriber  transcribe.Transcriber // nil when SPEC_FULL §6.6's toggle is off
	DedupCache   dedup.Cache
	Cfg          config.Config
}

// stageBody is what each stage file implements: the actual work, returning
// a data_hash (for the StageCompletionMarker) and metadata on success.
type stageBody func(ctx context.Context, deps *Dependencies, docID, correlationID string) (dataHash string, metadata map[string]any, err error)

// Wrap adapts a stageBody into a scheduler.StageFunc: it starts the stage,
// runs the body, and completes the stage on success. On failure it returns
// the error unwrapped so the scheduler can classify it via pipelineerr and
// the caller's OnResult can run FailStage/retry bookkeeping — this package
// never calls FailStage directly, keeping "who writes processing_status"
// singular per spec.md §7.
func Wrap(s model.StageName, deps *Dependencies, body stageBody) scheduler.StageFunc {
	return func(ctx context.Context, docID, correlationID string) error {
		if err := deps.Orchestrator.StartStage(ctx, docID, s); err != nil {
			return fmt.Errorf("pipeline: start %s: %w", s, err)
		}
		dataHash, metadata, err := body(ctx, deps, docID, correlationID)
		if err != nil {
			return err
		}
		if err := deps.Orchestrator.CompleteStage(ctx, docID, s, dataHash, metadata); err != nil {
			return fmt.Errorf("pipeline: complete %s: %w", s, err)
		}
		return nil
	}
}

// Stages returns every stage's scheduler.StageFunc, ready to hand to
// scheduler.Config.Stages.
func Stages(deps *Dependencies) map[model.StageName]scheduler.StageFunc {
	return map[model.StageName]scheduler.StageFunc{
		model.StageUpload:             Wrap(model.StageUpload, deps, uploadStage),
		model.StageTextExtraction:     Wrap(model.StageTextExtraction, deps, textExtractionStage),
		model.StageTableExtraction:    Wrap(model.StageTableExtraction, deps, tableExtractionStage),
		model.StageImageProcessing:    Wrap(model.StageImageProcessing, deps, imageProcessingStage),
		model.StageClassification:     Wrap(model.StageClassification, deps, classificationStage),
		model.StagePartsExtraction:    Wrap(model.StagePartsExtraction, deps, partsExtractionStage),
		model.StageSeriesDetection:    Wrap(model.StageSeriesDetection, deps, seriesDetectionStage),
		model.StageEmbeddingAndSearch: Wrap(model.StageEmbeddingAndSearch, deps, embeddingAndSearchStage),
	}
}

// documentObjectKey and imageObjectKey implement spec.md §6's
// content-addressed path layout.
func documentObjectKey(fileHash string) string {
	return fmt.Sprintf("documents/%s/%s.pdf", fileHash[:2], fileHash)
}

func imageObjectKey(fileHash string) string {
	return fmt.Sprintf("images/%s/%s.png", fileHash[:2], fileHash)
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// mergeHash folds a set of natural-key hashes into one StageCompletionMarker
// data_hash, per spec.md §4.7's "XOR/merge of chunk content_hashes."
func mergeHash(parts []string) string {
	sum := sha256.New()
	for _, p := range parts {
		sum.Write([]byte(p))
	}
	return hex.EncodeToString(sum.Sum(nil))
}

// fetchDocumentPDF loads the document row and its raw PDF bytes from the
// object store at its content-addressed path.
func fetchDocumentPDF(ctx context.Context, deps *Dependencies, docID string) (model.Document, []byte, error) {
	doc, err := deps.Store.GetDocument(ctx, docID)
	if err != nil {
		return model.Document{}, nil, fmt.Errorf("pipeline: get document: %w", err)
	}
	rc, _, err := deps.Objects.Get(ctx, documentObjectKey(doc.FileHash))
	if err != nil {
		return doc, nil, fmt.Errorf("pipeline: fetch document bytes: %w", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return doc, nil, fmt.Errorf("pipeline: read document bytes: %w", err)
	}
	return doc, data, nil
}
