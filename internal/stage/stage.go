// Package stage implements the Stage Orchestrator (spec.md §4.1): the
// per-document state machine that drives a Document through the eight
// pipeline stages, persisting progress into stage_status and routing
// failures to the retry subsystem.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/kunzeritter/docpipeline/internal/model"
)

// Store is the subset of document persistence the orchestrator needs. A
// real implementation lives over internal/db's Postgres pool; tests use an
// in-memory one. All four mutations must be atomic with respect to one
// document's stage_status field, per spec.md §4.1's contract.
type Store interface {
	GetDocument(ctx context.Context, docID string) (model.Document, error)
	UpdateStageStatus(ctx context.Context, docID string, stage model.StageName, mutate func(model.StageState) model.StageState) error
	SetProcessingStatus(ctx context.Context, docID string, status model.ProcessingStatus, errMsg string) error
	PutStageCompletionMarker(ctx context.Context, m model.StageCompletionMarker) error
	GetStageCompletionMarker(ctx context.Context, docID string, stage model.StageName) (model.StageCompletionMarker, bool, error)
}

// ErrorRecorder persists a PipelineError on stage failure (spec.md §4.8).
type ErrorRecorder interface {
	RecordAttempt(ctx context.Context, pe model.PipelineError) error
}

// Orchestrator drives stage_status transitions for one document at a time.
// It holds no per-document state itself; everything lives in Store.
type Orchestrator struct {
	store Store
	errs  ErrorRecorder
}

// New returns an Orchestrator backed by store, writing failure audit rows
// to errs.
func New(store Store, errs ErrorRecorder) *Orchestrator {
	return &Orchestrator{store: store, errs: errs}
}

// StartStage sets stage_status[S] = {processing, progress:0, started_at}.
// Idempotent: a stage already completed is left untouched, per spec.md
// §4.1's "start_stage must not overwrite a completed status."
func (o *Orchestrator) StartStage(ctx context.Context, docID string, s model.StageName) error {
	return o.store.UpdateStageStatus(ctx, docID, s, func(prev model.StageState) model.StageState {
		if prev.Status == model.StageStatusCompleted {
			return prev
		}
		now := time.Now()
		return model.StageState{Status: model.StageStatusProcessing, Progress: 0, StartedAt: &now}
	})
}

// UpdateProgress merges progress (clamped to [0,100]) and metadata into the
// stage's current state.
func (o *Orchestrator) UpdateProgress(ctx context.Context, docID string, s model.StageName, progress int, metadata map[string]any) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return o.store.UpdateStageStatus(ctx, docID, s, func(prev model.StageState) model.StageState {
		prev.Progress = progress
		if metadata != nil {
			if prev.Metadata == nil {
				prev.Metadata = map[string]any{}
			}
			for k, v := range metadata {
				prev.Metadata[k] = v
			}
		}
		return prev
	})
}

// CompleteStage sets status=completed, progress=100, completed_at=now, and
// writes a StageCompletionMarker keyed by dataHash so a future run can
// skip this stage via SkipIfComplete. A no-op if the stage is already
// completed (spec.md §4.1).
func (o *Orchestrator) CompleteStage(ctx context.Context, docID string, s model.StageName, dataHash string, metadata map[string]any) error {
	var alreadyDone bool
	err := o.store.UpdateStageStatus(ctx, docID, s, func(prev model.StageState) model.StageState {
		if prev.Status == model.StageStatusCompleted {
			alreadyDone = true
			return prev
		}
		now := time.Now()
		return model.StageState{Status: model.StageStatusCompleted, Progress: 100, CompletedAt: &now, Metadata: metadata}
	})
	if err != nil || alreadyDone {
		return err
	}
	return o.store.PutStageCompletionMarker(ctx, model.StageCompletionMarker{
		DocumentID:  docID,
		StageName:   s,
		CompletedAt: time.Now(),
		DataHash:    dataHash,
		Metadata:    metadata,
	})
}

// FailStage marks the stage failed, records a PipelineError, and — for
// permanent failures — marks the whole document failed so later stages
// never run (spec.md §4.1's failure semantics). A transient failure leaves
// the document's overall processing_status alone so the scheduler can
// retry the stage.
func (o *Orchestrator) FailStage(ctx context.Context, docID string, s model.StageName, pe model.PipelineError, permanent bool) error {
	err := o.store.UpdateStageStatus(ctx, docID, s, func(prev model.StageState) model.StageState {
		return model.StageState{Status: model.StageStatusFailed, Progress: prev.Progress, Error: pe.ErrorMessage}
	})
	if err != nil {
		return err
	}
	if o.errs != nil {
		if err := o.errs.RecordAttempt(ctx, pe); err != nil {
			return fmt.Errorf("stage %s: record pipeline error: %w", s, err)
		}
	}
	if permanent {
		return o.store.SetProcessingStatus(ctx, docID, model.ProcessingFailed, pe.ErrorMessage)
	}
	return nil
}

// Decision is the result of SkipIfComplete.
type Decision string

const (
	DecisionSkip Decision = "skip"
	DecisionRun  Decision = "run"
)

// SkipIfComplete reports whether stage s can be skipped for docID because
// a StageCompletionMarker already exists with a matching data hash
// (spec.md §4.1's "data_hash check lets the driver short-circuit").
func (o *Orchestrator) SkipIfComplete(ctx context.Context, docID string, s model.StageName, currentDataHash string) (Decision, error) {
	marker, found, err := o.store.GetStageCompletionMarker(ctx, docID, s)
	if err != nil {
		return DecisionRun, err
	}
	if found && marker.DataHash == currentDataHash {
		return DecisionSkip, nil
	}
	return DecisionRun, nil
}

// GetDocument returns the current document row, including its overall
// processing_status.
func (o *Orchestrator) GetDocument(ctx context.Context, docID string) (model.Document, error) {
	return o.store.GetDocument(ctx, docID)
}

// NextStage returns the stage that follows s in the fixed order, and false
// when s is the last stage.
func NextStage(s model.StageName) (model.StageName, bool) {
	for i, st := range model.Stages {
		if st == s && i+1 < len(model.Stages) {
			return model.Stages[i+1], true
		}
	}
	return "", false
}
