package driver

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kunzeritter/docpipeline/internal/config"
)

func TestDecompress_PassesThroughRawPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4\n...")
	out, err := Decompress(pdf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, pdf) {
		t.Fatalf("expected passthrough, got %q", out)
	}
}

func TestDecompress_GunzipsPdfz(t *testing.T) {
	pdf := []byte("%PDF-1.4\nhello world")
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write(pdf)
	_ = gw.Close()

	out, err := Decompress(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, pdf) {
		t.Fatalf("got %q, want %q", out, pdf)
	}
}

func TestDecompress_RejectsGarbage(t *testing.T) {
	_, err := Decompress([]byte("not a pdf or gzip"))
	if err == nil {
		t.Fatal("expected error for unrecognized content")
	}
}

type fakeEnqueuer struct {
	enqueued map[string][]byte
	err      error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, filename string, pdfBytes []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.enqueued == nil {
		f.enqueued = map[string][]byte{}
	}
	f.enqueued[filename] = pdfBytes
	return nil
}

func TestDriver_ScanExisting_MovesToProcessed(t *testing.T) {
	inputDir := t.TempDir()
	processedDir := t.TempDir()

	pdfPath := filepath.Join(inputDir, "manual.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4\ncontent"), 0o644); err != nil {
		t.Fatal(err)
	}

	enq := &fakeEnqueuer{}
	d := New(config.DriverConfig{InputDir: inputDir, ProcessedDir: processedDir}, enq)
	d.scanExisting(context.Background())

	if _, err := os.Stat(pdfPath); !os.IsNotExist(err) {
		t.Fatalf("expected source file to be moved, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(processedDir, "manual.pdf")); err != nil {
		t.Fatalf("expected file in processed dir: %v", err)
	}
	if _, ok := enq.enqueued["manual.pdf"]; !ok {
		t.Fatal("expected manual.pdf to be enqueued")
	}

	snap := d.Metrics()
	if snap.FilesFound != 1 || snap.Succeeded != 1 || snap.Failed != 0 {
		t.Fatalf("unexpected metrics: %+v", snap)
	}
}

func TestDriver_ScanExisting_IgnoresNonPDFFiles(t *testing.T) {
	inputDir := t.TempDir()
	processedDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(inputDir, "readme.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	enq := &fakeEnqueuer{}
	d := New(config.DriverConfig{InputDir: inputDir, ProcessedDir: processedDir}, enq)
	d.scanExisting(context.Background())

	if len(enq.enqueued) != 0 {
		t.Fatalf("expected no files enqueued, got %v", enq.enqueued)
	}
}

func TestDriver_ScanExisting_CountsFailedEnqueue(t *testing.T) {
	inputDir := t.TempDir()
	processedDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(inputDir, "bad.pdf"), []byte("%PDF-1.4\nx"), 0o644); err != nil {
		t.Fatal(err)
	}

	enq := &fakeEnqueuer{err: context.DeadlineExceeded}
	d := New(config.DriverConfig{InputDir: inputDir, ProcessedDir: processedDir}, enq)
	d.scanExisting(context.Background())

	snap := d.Metrics()
	if snap.Failed != 1 || snap.Succeeded != 0 {
		t.Fatalf("unexpected metrics: %+v", snap)
	}
	// A failed enqueue must not move the source file to processed.
	if _, err := os.Stat(filepath.Join(inputDir, "bad.pdf")); err != nil {
		t.Fatalf("expected source file to remain: %v", err)
	}
}

func TestDriver_AddChunksAndImages(t *testing.T) {
	d := New(config.DriverConfig{InputDir: t.TempDir(), ProcessedDir: t.TempDir()}, &fakeEnqueuer{})
	d.AddChunks(3)
	d.AddImages(2)
	snap := d.Metrics()
	if snap.ChunksTotal != 3 || snap.ImagesTotal != 2 {
		t.Fatalf("unexpected metrics: %+v", snap)
	}
	if snap.Elapsed < 0 {
		t.Fatalf("expected non-negative elapsed duration, got %v", snap.Elapsed)
	}
}
