package pipeline

import (
	"context"

	"github.com/kunzeritter/docpipeline/internal/extract"
	"github.com/kunzeritter/docpipeline/internal/model"
)

// partsExtractionStage implements spec.md §4.1's parts_extraction stage:
// scan chunks flagged by the chunker as containing part numbers and
// persist one Part row per distinct (document_id, part_number), reusing
// internal/extract.PartNumbers for the pattern match and description
// pairing.
func partsExtractionStage(ctx context.Context, deps *Dependencies, docID, correlationID string) (string, map[string]any, error) {
	doc, err := deps.Store.GetDocument(ctx, docID)
	if err != nil {
		return "", nil, err
	}
	chunks, err := deps.Store.ListChunks(ctx, docID)
	if err != nil {
		return "", nil, err
	}
	existing, err := deps.Store.ListParts(ctx, docID)
	if err != nil {
		return "", nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.PartNumber] = true
	}

	hashes := make([]string, 0, len(chunks))
	written := 0
	for _, c := range chunks {
		hashes = append(hashes, c.ContentHash)
		if !c.Metadata.ContainsPartNumber {
			continue
		}
		for _, pn := range extract.PartNumbers(c.Content) {
			if seen[pn.PartNumber] {
				continue
			}
			seen[pn.PartNumber] = true
			if err := deps.Store.PutPart(ctx, model.Part{
				DocumentID:   docID,
				PartNumber:   pn.PartNumber,
				Description:  pn.Description,
				Manufacturer: doc.Manufacturer,
			}); err != nil {
				return "", nil, err
			}
			written++
		}
	}

	return mergeHash(hashes), map[string]any{"part_count": written}, nil
}
