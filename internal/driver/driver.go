// Package driver implements the Pipeline Driver (spec.md §4.9): it watches
// an input directory, transparently decompresses `.pdfz` variants,
// enqueues each discovered file into the upload stage, and relocates the
// source file to a "processed" directory as soon as its enqueue succeeds.
// The move does not wait for the document's stages to finish, so a file in
// the processed directory may belong to a document that later fails.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/validation"
)

// Enqueuer hands a decompressed PDF's bytes to the upload stage. Driver is
// deliberately decoupled from internal/stage and internal/repo's concrete
// wiring — cmd/ingestd supplies the real implementation backed by the
// Stage Orchestrator and object store.
type Enqueuer interface {
	Enqueue(ctx context.Context, filename string, pdfBytes []byte) error
}

// BatchMetrics is the batch summary spec.md §4.9 requires the driver to
// emit: files_found, succeeded, failed, elapsed, chunks_total,
// images_total. ChunksTotal/ImagesTotal are supplied by the caller after a
// batch completes (the driver itself only observes file-level outcomes),
// via AddChunks/AddImages.
type BatchMetrics struct {
	FilesFound  atomic.Int64
	Succeeded   atomic.Int64
	Failed      atomic.Int64
	ChunksTotal atomic.Int64
	ImagesTotal atomic.Int64
	startedAt   time.Time
}

// Snapshot is an immutable point-in-time read of BatchMetrics.
type Snapshot struct {
	FilesFound  int64
	Succeeded   int64
	Failed      int64
	Elapsed     time.Duration
	ChunksTotal int64
	ImagesTotal int64
}

func (m *BatchMetrics) snapshot() Snapshot {
	return Snapshot{
		FilesFound:  m.FilesFound.Load(),
		Succeeded:   m.Succeeded.Load(),
		Failed:      m.Failed.Load(),
		Elapsed:     time.Since(m.startedAt),
		ChunksTotal: m.ChunksTotal.Load(),
		ImagesTotal: m.ImagesTotal.Load(),
	}
}

// Driver watches cfg.InputDir for *.pdf/*.pdfz files and hands each one to
// an Enqueuer, moving the source file to cfg.ProcessedDir afterward.
type Driver struct {
	cfg      config.DriverConfig
	enqueuer Enqueuer
	metrics  BatchMetrics
}

// New builds a Driver. cfg.ProcessedDir is created lazily on first move.
func New(cfg config.DriverConfig, enqueuer Enqueuer) *Driver {
	d := &Driver{cfg: cfg, enqueuer: enqueuer}
	d.metrics.startedAt = time.Now()
	return d
}

// Metrics returns a snapshot of the current batch counters.
func (d *Driver) Metrics() Snapshot { return d.metrics.snapshot() }

// AddChunks/AddImages let a caller (the stage pipeline, once a document
// finishes) roll per-document totals into the driver's batch metrics.
func (d *Driver) AddChunks(n int) { d.metrics.ChunksTotal.Add(int64(n)) }
func (d *Driver) AddImages(n int) { d.metrics.ImagesTotal.Add(int64(n)) }

// Run watches cfg.InputDir until ctx is cancelled, processing both
// pre-existing files (a restart must not silently skip files dropped while
// the driver was down) and files created afterward.
func (d *Driver) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := os.MkdirAll(d.cfg.InputDir, 0o755); err != nil {
		return fmt.Errorf("ensure input dir: %w", err)
	}
	if err := watcher.Add(d.cfg.InputDir); err != nil {
		return fmt.Errorf("watch input dir: %w", err)
	}

	d.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !isCandidateFile(event.Name) {
				continue
			}
			d.processOne(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Str("dir", d.cfg.InputDir).Msg("driver_watch_error")
		}
	}
}

// scanExisting processes files already sitting in the input directory at
// startup, before the watcher starts observing new events.
func (d *Driver) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(d.cfg.InputDir)
	if err != nil {
		log.Error().Err(err).Str("dir", d.cfg.InputDir).Msg("driver_scan_existing_error")
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isCandidateFile(e.Name()) {
			continue
		}
		d.processOne(ctx, filepath.Join(d.cfg.InputDir, e.Name()))
	}
}

func isCandidateFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".pdfz")
}

func (d *Driver) processOne(ctx context.Context, path string) {
	d.metrics.FilesFound.Add(1)

	name, err := validation.Filename(filepath.Base(path))
	if err != nil {
		d.metrics.Failed.Add(1)
		log.Error().Err(err).Str("path", path).Msg("driver_invalid_filename")
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		d.metrics.Failed.Add(1)
		log.Error().Err(err).Str("path", path).Msg("driver_read_error")
		return
	}

	pdfBytes, err := Decompress(raw)
	if err != nil {
		d.metrics.Failed.Add(1)
		log.Error().Err(err).Str("path", path).Msg("driver_decompress_error")
		return
	}

	if err := d.enqueuer.Enqueue(ctx, name, pdfBytes); err != nil {
		d.metrics.Failed.Add(1)
		log.Error().Err(err).Str("path", path).Msg("driver_enqueue_error")
		return
	}

	if err := d.moveToProcessed(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("driver_move_processed_error")
	}
	d.metrics.Succeeded.Add(1)
}

func (d *Driver) moveToProcessed(path string) error {
	if err := os.MkdirAll(d.cfg.ProcessedDir, 0o755); err != nil {
		return fmt.Errorf("ensure processed dir: %w", err)
	}
	dest := filepath.Join(d.cfg.ProcessedDir, filepath.Base(path))
	return os.Rename(path, dest)
}
