package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/kunzeritter/docpipeline/internal/extract"
	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/normalize"
)

var manufacturerRe *regexp.Regexp

func init() {
	var alts []string
	for alias := range manufacturerAliasesForDetection {
		alts = append(alts, regexp.QuoteMeta(alias))
	}
	manufacturerRe = regexp.MustCompile(`(?i)\b(` + strings.Join(alts, "|") + `)\b`)
}

// manufacturerAliasesForDetection mirrors internal/normalize's closed alias
// table keys; it exists here (rather than exporting normalize's private
// map) because classification needs to *find* a candidate substring in
// free text before handing it to normalize.Manufacturer for
// canonicalization.
var manufacturerAliasesForDetection = map[string]bool{
	"hp": true, "hewlett packard": true, "canon": true, "xerox": true,
	"ricoh": true, "konica minolta": true, "kyocera": true, "brother": true,
	"lexmark": true, "epson": true, "sharp": true, "toshiba": true,
	"oki": true, "utax": true, "triumph adler": true, "savin": true,
	"lanier": true, "gestetner": true,
}

// classificationStage implements spec.md §4.5: manufacturer/series/model
// detection, document-type classification, and the error-code/link/video
// extraction passes over the document's already-chunked text, reusing
// internal/extract's closed regex tables for every per-manufacturer
// pattern rather than inventing new ones here.
func classificationStage(ctx context.Context, deps *Dependencies, docID, correlationID string) (string, map[string]any, error) {
	doc, err := deps.Store.GetDocument(ctx, docID)
	if err != nil {
		return "", nil, err
	}
	chunks, err := deps.Store.ListChunks(ctx, docID)
	if err != nil {
		return "", nil, err
	}

	var allText strings.Builder
	for _, c := range chunks {
		allText.WriteString(c.Content)
		allText.WriteString("\n")
	}
	text := allText.String()

	manufacturer := ""
	if m := manufacturerRe.FindString(text); m != "" {
		manufacturer = normalize.Manufacturer(m)
	}
	doc.Manufacturer = manufacturer
	doc.DocumentType = detectDocumentType(doc.Filename, text)

	models := detectModels(text)
	doc.Models = models
	if len(models) > 0 {
		doc.Series = models[0]
	}

	var manufacturerID string
	if manufacturer != "" {
		man, err := deps.Store.GetOrCreateManufacturer(ctx, manufacturer)
		if err != nil {
			return "", nil, err
		}
		manufacturerID = man.ID
	}

	errorCodeCount := 0
	if deps.Cfg.Features.ErrorCodeExtraction {
		effectiveManufacturer := manufacturer
		if len(models) > 0 {
			effectiveManufacturer = normalize.EffectiveManufacturer(manufacturer, models[0], normalize.PurposeErrorCodes)
		}
		errorCodeCount, err = extractErrorCodes(ctx, deps, &doc, manufacturerID, effectiveManufacturer, chunks)
		if err != nil {
			return "", nil, err
		}
	}

	linkCount, videoCount := 0, 0
	if deps.Cfg.Features.ContextExtraction {
		linkCount, videoCount, err = extractLinksAndVideos(ctx, deps, doc.ID, text)
		if err != nil {
			return "", nil, err
		}
	}

	if deps.Cfg.Features.ProductExtraction && manufacturerID != "" {
		for _, m := range models {
			pt := normalize.ProductType(m, doc.Series, true)
			if pt == "" {
				continue
			}
			if _, err := deps.Store.GetOrCreateProduct(ctx, model.Product{
				ManufacturerID: manufacturerID,
				ModelNumber:    m,
				ProductType:    pt,
			}); err != nil {
				return "", nil, err
			}
		}
	}

	if err := deps.Store.PutDocument(ctx, doc); err != nil {
		return "", nil, err
	}

	dataHash := hashBytes([]byte(text))
	return dataHash, map[string]any{
		"manufacturer":     manufacturer,
		"error_code_count": errorCodeCount,
		"link_count":       linkCount,
		"video_count":      videoCount,
	}, nil
}

// extractErrorCodes runs internal/extract.ErrorCodes per chunk (so each
// match keeps its originating page/chunk) and persists one model.ErrorCode
// row per match, matching spec.md §9's rule that error-code extraction
// belongs to classification, not text_extraction. effectiveManufacturer is
// the document's badge manufacturer resolved through normalize's OEM/rebrand
// table for the error_codes purpose, since a rebranded unit's error codes
// are documented under the OEM's pattern table, not the badge's.
func extractErrorCodes(ctx context.Context, deps *Dependencies, doc *model.Document, manufacturerID, effectiveManufacturer string, chunks []model.Chunk) (int, error) {
	count := 0
	for _, c := range chunks {
		if !c.Metadata.ContainsErrorCode {
			continue
		}
		for _, m := range extract.ErrorCodes(c.Content, effectiveManufacturer) {
			ec := model.ErrorCode{
				DocumentID:       doc.ID,
				ManufacturerID:   manufacturerID,
				Code:             m.Code,
				Description:      m.Solution,
				SolutionText:     m.Solution,
				PageNumber:       c.PageStart,
				Confidence:       c.Metadata.Confidence,
				ExtractionMethod: m.ExtractionMethod,
				ChunkID:          c.ID,
			}
			if err := deps.Store.PutErrorCode(ctx, ec); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func detectDocumentType(filename, text string) model.DocumentType {
	limit := len(text)
	if limit > 2000 {
		limit = 2000
	}
	lower := strings.ToLower(filename + " " + text[:limit])
	switch {
	case strings.Contains(lower, "parts catalog") || strings.Contains(lower, "parts list"):
		return model.DocTypePartsCatalog
	case strings.Contains(lower, "troubleshooting"):
		return model.DocTypeTroubleshootingGuide
	case strings.Contains(lower, "user guide") || strings.Contains(lower, "user manual"):
		return model.DocTypeUserManual
	case strings.Contains(lower, "service manual"):
		return model.DocTypeServiceManual
	default:
		return model.DocTypeOther
	}
}

// detectModels adapts internal/extract.Products to the plain model-number
// strings the document row and downstream series_detection stage need.
// spec.md §4.5 calls for filtering by the document's detected
// manufacturer, but Products has no manufacturer table to filter
// against; a manufacturer-less or unfiltered document still records the
// candidates it found rather than discarding them.
func detectModels(text string) []string {
	var out []string
	for _, p := range extract.Products(text) {
		out = append(out, p.ModelNumber)
		if len(out) >= 20 {
			break
		}
	}
	return out
}

func extractLinksAndVideos(ctx context.Context, deps *Dependencies, docID, text string) (linkCount, videoCount int, err error) {
	videos := make(map[string]bool)
	for _, u := range extract.Videos(text) {
		videos[u] = true
		fp := sha256.Sum256([]byte(u))
		video := model.Video{DocumentID: docID, URL: u, Fingerprint: hex.EncodeToString(fp[:])}
		if deps.Transcriber != nil {
			if transcript, terr := deps.Transcriber.Transcribe(ctx, u); terr == nil && transcript != "" {
				video.TranscriptText = transcript
				video.HasTranscript = true
			}
		}
		if err := deps.Store.PutVideo(ctx, video); err != nil {
			return linkCount, videoCount, err
		}
		videoCount++
	}

	for _, u := range extract.Links(text) {
		if videos[u] {
			continue
		}
		link := model.Link{DocumentID: docID, URL: u, ScrapeStatus: model.ScrapePending}
		if deps.Scraper != nil {
			res, serr := deps.Scraper.Scrape(ctx, u)
			if serr == nil && res.Success {
				sum := sha256.Sum256([]byte(res.Content))
				link.ScrapeStatus = model.ScrapeSuccess
				link.ScrapedContent = res.Content
				link.ContentHash = hex.EncodeToString(sum[:])
				link.ScrapedMetadata = res.Metadata
			} else {
				link.ScrapeStatus = model.ScrapeFailed
			}
		}
		if err := deps.Store.PutLink(ctx, link); err != nil {
			return linkCount, videoCount, err
		}
		linkCount++
	}
	return linkCount, videoCount, nil
}
