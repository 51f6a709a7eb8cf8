package driver

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

var pdfMagic = []byte("%PDF")

// Decompress implements spec.md §4.9's `.pdfz` handling: if the input
// already starts with the PDF magic bytes it is returned unchanged
// (the "fallback when the file is actually uncompressed" case); otherwise
// it is treated as gzip and decompressed.
func Decompress(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, pdfMagic) {
		return data, nil
	}

	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("not a PDF and not gzip: %w", err)
	}
	defer func() { _ = gr.Close() }()

	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	if !bytes.HasPrefix(out, pdfMagic) {
		return nil, fmt.Errorf("decompressed content is not a PDF")
	}
	return out, nil
}
