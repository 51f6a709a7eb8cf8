// Package scheduler implements the Stage-Parallel Scheduler (spec.md
// §4.2): one bounded work queue and worker pool per stage, so documents at
// different stages advance concurrently while per-stage concurrency stays
// bounded to that stage's resource profile.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/pipelineerr"
)

func classify(err error) Outcome {
	if pipelineerr.IsTransient(err) {
		return OutcomeTransientError
	}
	return OutcomePermanentError
}

// StageFunc executes one stage body for one document. It returns nil on
// success, or an error classified by pipelineerr for the scheduler to
// route to the retry subsystem. docID and correlationID identify the unit
// of work; ctx carries cancellation (spec.md §4.2's Cancellation clause).
type StageFunc func(ctx context.Context, docID, correlationID string) error

// job is one unit of work enqueued onto a stage's channel.
type job struct {
	docID         string
	correlationID string
}

// locks implements the advisory per-(document, stage) lock spec.md §4.2
// requires: held only during the stage body, compatible with crash
// recovery since nothing survives process restart.
type locks struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newLocks() *locks { return &locks{set: map[string]struct{}{}} }

func lockKey(docID string, s model.StageName) string { return string(s) + "|" + docID }

// tryAcquire reports whether the (docID, stage) lock was free and is now
// held by the caller.
func (l *locks) tryAcquire(docID string, s model.StageName) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := lockKey(docID, s)
	if _, held := l.set[k]; held {
		return false
	}
	l.set[k] = struct{}{}
	return true
}

func (l *locks) release(docID string, s model.StageName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.set, lockKey(docID, s))
}

// Outcome classifies how a stage invocation ended, for the caller's
// bookkeeping (advance, retry schedule, or give up).
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTransientError
	OutcomePermanentError
	OutcomeCancelled
)

// Result is delivered to OnResult after a worker finishes one job.
type Result struct {
	DocID         string
	CorrelationID string
	Stage         model.StageName
	Outcome       Outcome
	Err           error
}

// Scheduler owns one bounded queue and worker pool per stage.
type Scheduler struct {
	queues    map[model.StageName]chan job
	fns       map[model.StageName]StageFunc
	workers   map[model.StageName]int
	queueSize int
	locks     *locks
	onResult  func(Result)
}

// Config wires the scheduler: per-stage bodies, worker counts, and the
// bounded queue capacity each stage's channel gets.
type Config struct {
	Stages    map[model.StageName]StageFunc
	Workers   map[model.StageName]int
	QueueSize int
	// OnResult is invoked from worker goroutines after every job; it must
	// be safe for concurrent use. It is the scheduler's only feedback
	// path — advancing a document to the next stage on success, or
	// handing failures to the retry subsystem, is the caller's job.
	OnResult func(Result)
}

// New builds a Scheduler. Queue channels are created but workers are not
// started until Run.
func New(cfg Config) *Scheduler {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &Scheduler{
		queues:    make(map[model.StageName]chan job, len(cfg.Stages)),
		fns:       cfg.Stages,
		workers:   cfg.Workers,
		queueSize: queueSize,
		locks:     newLocks(),
		onResult:  cfg.OnResult,
	}
	for stage := range cfg.Stages {
		s.queues[stage] = make(chan job, queueSize)
	}
	return s
}

// Enqueue submits docID for stage s. It blocks if the stage's queue is
// full (spec.md §4.2's Backpressure clause), honoring ctx cancellation.
// Every document must first be enqueued to model.StageUpload to obtain an
// id; the scheduler itself does not enforce that — the driver does, since
// it's the only caller that can create documents.
func (s *Scheduler) Enqueue(ctx context.Context, stageName model.StageName, docID, correlationID string) error {
	q, ok := s.queues[stageName]
	if !ok {
		return fmt.Errorf("scheduler: no queue configured for stage %s", stageName)
	}
	select {
	case q <- job{docID: docID, correlationID: correlationID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts every stage's worker pool and blocks until ctx is cancelled
// or a worker goroutine returns a non-nil error (which should not happen
// in normal operation: stage failures are reported via OnResult, not by
// returning an error from Run).
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for stageName, fn := range s.fns {
		stageName, fn := stageName, fn
		n := s.workers[stageName]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			g.Go(func() error {
				s.runWorker(ctx, stageName, fn)
				return nil
			})
		}
	}
	return g.Wait()
}

func (s *Scheduler) runWorker(ctx context.Context, stageName model.StageName, fn StageFunc) {
	q := s.queues[stageName]
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.runJob(ctx, stageName, fn, j)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, stageName model.StageName, fn StageFunc, j job) {
	if !s.locks.tryAcquire(j.docID, stageName) {
		// Another worker already holds this (doc, stage); requeue rather
		// than drop the job.
		go func() {
			q := s.queues[stageName]
			select {
			case q <- j:
			case <-ctx.Done():
			}
		}()
		return
	}
	defer s.locks.release(j.docID, stageName)

	err := fn(ctx, j.docID, j.correlationID)
	res := Result{DocID: j.docID, CorrelationID: j.correlationID, Stage: stageName}
	switch {
	case err == nil:
		res.Outcome = OutcomeOK
	case ctx.Err() != nil:
		res.Outcome = OutcomeCancelled
		res.Err = ctx.Err()
	default:
		res.Outcome = classify(err)
		res.Err = err
	}
	if s.onResult != nil {
		s.onResult(res)
	}
}
