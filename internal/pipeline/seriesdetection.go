package pipeline

import (
	"context"

	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/normalize"
)

// seriesDetectionStage implements spec.md §4.1's series_detection stage:
// the classification stage already resolved the document's manufacturer
// and candidate model numbers, so this stage's job is to group those
// models under a ProductSeries and attach any accessory models (toner
// cartridges, finishers, trays) detected among them as ProductAccessory
// edges on the primary (non-accessory) product.
func seriesDetectionStage(ctx context.Context, deps *Dependencies, docID, correlationID string) (string, map[string]any, error) {
	doc, err := deps.Store.GetDocument(ctx, docID)
	if err != nil {
		return "", nil, err
	}
	if doc.Manufacturer == "" || doc.Series == "" {
		// No manufacturer/series resolved in classification: nothing to
		// group. Not a failure, per spec.md §4.5's "missing manufacturer
		// is not fatal."
		return hashBytes([]byte(docID)), map[string]any{"series": "", "product_count": 0}, nil
	}

	manufacturer, err := deps.Store.GetOrCreateManufacturer(ctx, doc.Manufacturer)
	if err != nil {
		return "", nil, err
	}
	series, err := deps.Store.GetOrCreateSeries(ctx, manufacturer.ID, doc.Series)
	if err != nil {
		return "", nil, err
	}

	var primaryID string
	var accessoryModels []string
	for _, m := range doc.Models {
		if accType, isAccessory := normalize.DetectAccessoryType(m); isAccessory {
			accessoryModels = append(accessoryModels, m)
			if _, err := deps.Store.GetOrCreateProduct(ctx, model.Product{
				ManufacturerID:  manufacturer.ID,
				ProductSeriesID: series.ID,
				ModelNumber:     m,
				ProductType:     accType,
			}); err != nil {
				return "", nil, err
			}
			continue
		}

		pt := normalize.ProductType(m, doc.Series, true)
		if pt == "" {
			continue
		}
		product, err := deps.Store.GetOrCreateProduct(ctx, model.Product{
			ManufacturerID:  manufacturer.ID,
			ProductSeriesID: series.ID,
			ModelNumber:     m,
			ProductType:     pt,
		})
		if err != nil {
			return "", nil, err
		}
		if primaryID == "" {
			primaryID = product.ID
		}
	}

	edgeCount := 0
	if primaryID != "" {
		for _, am := range accessoryModels {
			accType, _ := normalize.DetectAccessoryType(am)
			accessory, err := deps.Store.GetOrCreateProduct(ctx, model.Product{
				ManufacturerID:  manufacturer.ID,
				ProductSeriesID: series.ID,
				ModelNumber:     am,
				ProductType:     accType,
			})
			if err != nil {
				return "", nil, err
			}
			if err := deps.Store.PutProductAccessory(ctx, model.ProductAccessory{
				ProductID:         primaryID,
				AccessoryID:       accessory.ID,
				CompatibilityType: model.CompatCompatible,
			}); err != nil {
				return "", nil, err
			}
			edgeCount++
		}
	}

	dataHash := hashBytes([]byte(manufacturer.ID + series.ID))
	return dataHash, map[string]any{
		"series":        series.SeriesName,
		"product_count": len(doc.Models) - len(accessoryModels),
		"accessory_count": edgeCount,
	}, nil
}
