package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kunzeritter/docpipeline/internal/chunker"
)

// PDFPages reads raw (already-decompressed) PDF bytes and returns one
// chunker.Page per page, preserving page numbers even for pages that
// extract no text (spec.md §4.3: "empty or non-textual pages are not
// chunked but are counted in page_count"). No pack example repo parses
// PDFs; github.com/ledongthuc/pdf is a minimal, pure-Go, widely used
// extraction library chosen for that reason (DESIGN.md records the
// stdlib-fallback-equivalent justification for this one dependency).
func PDFPages(data []byte) ([]chunker.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: open pdf: %w", err)
	}

	total := r.NumPage()
	pages := make([]chunker.Page, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, chunker.Page{Number: i, Text: ""})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Unreadable page: spec.md §4.3 treats this as a warning, not a
			// failure, and still counts the page.
			pages = append(pages, chunker.Page{Number: i, Text: ""})
			continue
		}
		pages = append(pages, chunker.Page{Number: i, Text: text})
	}
	return pages, nil
}

// PageCount returns the number of pages in data without extracting text,
// used by the upload stage to populate Document.PageCount up front.
func PageCount(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("extract: open pdf: %w", err)
	}
	return r.NumPage(), nil
}
