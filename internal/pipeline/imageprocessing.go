package pipeline

import (
	"bytes"
	"context"

	"github.com/google/uuid"

	"github.com/kunzeritter/docpipeline/internal/extract"
	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/objectstore"
)

// imageProcessingStage implements spec.md §4.4: extract embedded images,
// store each once at its content-addressed path (the path itself gives
// global dedup — re-uploading identical bytes to the same key is a
// no-op object-store write), caption via the Vision Client, and link
// each image to its nearest chunk by page distance.
func imageProcessingStage(ctx context.Context, deps *Dependencies, docID, correlationID string) (string, map[string]any, error) {
	doc, data, err := fetchDocumentPDF(ctx, deps, docID)
	if err != nil {
		return "", nil, err
	}

	images, err := extract.Images(data)
	if err != nil {
		return "", nil, err
	}

	chunks, err := deps.Store.ListChunks(ctx, docID)
	if err != nil {
		return "", nil, err
	}

	hashes := make([]string, 0, len(images))
	for idx, img := range images {
		fileHash := hashBytes(img.PNGBytes)
		hashes = append(hashes, fileHash)

		key := imageObjectKey(fileHash)
		if _, err := deps.Objects.Put(ctx, key, bytes.NewReader(img.PNGBytes), objectstore.PutOptions{ContentType: "image/png"}); err != nil {
			return "", nil, err
		}

		if _, found, err := deps.Store.LookupImageByFileHash(ctx, fileHash); err != nil {
			return "", nil, err
		} else if found {
			// Same bytes already described and stored under another
			// document (or this one, on a re-run) — file_hash is the
			// table's global dedup key, so nothing left to do here.
			continue
		}

		var description, ocrText string
		var confidence float64
		if deps.Vision != nil {
			res, err := deps.Vision.Describe(ctx, img.PNGBytes, "image/png", deps.Cfg.Vision.EnableOCR)
			if err != nil {
				// Vision failures on a single image don't fail the stage
				// (spec.md §7's partial-failure policy); the row persists
				// with ai_description unset and is eligible for a later
				// embedding pass once a description exists.
				description, ocrText, confidence = "", "", 0
			} else {
				description, ocrText, confidence = res.Description, res.OCRText, res.Confidence
			}
		}

		row := model.Image{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			PageNumber:    img.PageNumber,
			ImageIndex:    idx,
			FileHash:      fileHash,
			StoragePath:   key,
			WidthPx:       img.WidthPx,
			HeightPx:      img.HeightPx,
			ImageFormat:   "png",
			ImageType:     model.ImageTypePNGConversion,
			AIDescription: description,
			AIConfidence:  confidence,
			OCRText:       ocrText,
			ChunkID:       nearestChunkID(chunks, img.PageNumber),
		}
		if err := deps.Store.PutImage(ctx, row); err != nil {
			return "", nil, err
		}
	}

	return mergeHash(hashes), map[string]any{"image_count": len(images)}, nil
}

// nearestChunkID finds the chunk whose page span contains pageNumber,
// falling back to the chunk with minimal distance to it, per spec.md
// §4.4's "prefer chunk containing the same page; tie-break on minimal
// distance."
func nearestChunkID(chunks []model.Chunk, pageNumber int) string {
	bestID := ""
	bestDist := -1
	for _, c := range chunks {
		if pageNumber >= c.PageStart && pageNumber <= c.PageEnd {
			return c.ID
		}
		dist := c.PageStart - pageNumber
		if dist < 0 {
			dist = -dist
		}
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			bestID = c.ID
		}
	}
	return bestID
}
