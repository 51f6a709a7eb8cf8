// Package ingest bridges internal/driver's filesystem watcher to the stage
// scheduler: it is the one component that creates a Document row and
// assigns its id, per spec.md §4.2's "every document enters the pipeline
// at upload to obtain an id."
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/objectstore"
	"github.com/kunzeritter/docpipeline/internal/repo"
	"github.com/kunzeritter/docpipeline/internal/scheduler"
)

// Enqueuer implements internal/driver.Enqueuer against a concrete store,
// object backend, and stage scheduler.
type Enqueuer struct {
	Store     repo.Store
	Objects   objectstore.ObjectStore
	Scheduler *scheduler.Scheduler
}

// New returns an Enqueuer wired to the given collaborators.
func New(store repo.Store, objects objectstore.ObjectStore, sched *scheduler.Scheduler) *Enqueuer {
	return &Enqueuer{Store: store, Objects: objects, Scheduler: sched}
}

// Enqueue implements internal/driver.Enqueuer. Re-submitting bytes with a
// file hash already on record is idempotent: the existing document is
// re-enqueued at the upload stage rather than duplicated, so a crashed or
// restarted driver scan never creates twin documents for the same file.
func (e *Enqueuer) Enqueue(ctx context.Context, filename string, pdfBytes []byte) error {
	sum := sha256.Sum256(pdfBytes)
	fileHash := hex.EncodeToString(sum[:])

	docID, found, err := e.Store.LookupByFileHash(ctx, fileHash)
	if err != nil {
		return fmt.Errorf("ingest: lookup file hash: %w", err)
	}

	key := fmt.Sprintf("documents/%s/%s.pdf", fileHash[:2], fileHash)
	if !found {
		docID = uuid.NewString()
		now := time.Now()
		doc := model.Document{
			ID:               docID,
			FileHash:         fileHash,
			Filename:         filename,
			FileSize:         int64(len(pdfBytes)),
			ProcessingStatus: model.ProcessingProcessing,
			StageStatus:      model.StageStatus{},
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if _, err := e.Objects.Put(ctx, key, bytes.NewReader(pdfBytes), objectstore.PutOptions{ContentType: "application/pdf"}); err != nil {
			return fmt.Errorf("ingest: store document bytes: %w", err)
		}
		if err := e.Store.PutDocument(ctx, doc); err != nil {
			return fmt.Errorf("ingest: create document: %w", err)
		}
	}

	correlationID := uuid.NewString()
	return e.Scheduler.Enqueue(ctx, model.StageUpload, docID, correlationID)
}
