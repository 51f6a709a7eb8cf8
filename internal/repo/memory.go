package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kunzeritter/docpipeline/internal/model"
)

// MemoryStore is an in-process Store, used by unit tests and the godog
// acceptance suite so the pipeline runs without a live Postgres instance,
// mirroring internal/db's memorySearch/memoryVector fallback pattern.
type MemoryStore struct {
	mu sync.Mutex

	documents       map[string]model.Document
	fileHashIndex   map[string]string
	markers         map[string]model.StageCompletionMarker
	pipelineErrors  map[string]model.PipelineError // keyed by correlationID|stage
	retryPolicies   map[string]model.RetryPolicy
	chunks          map[string][]model.Chunk
	images          map[string]model.Image // keyed by file_hash, globally unique
	errorCodes      map[string][]model.ErrorCode
	manufacturers   map[string]model.Manufacturer
	productSeries   map[string]model.ProductSeries
	products        map[string]model.Product
	productByNatKey map[string]string
	accessories     []model.ProductAccessory
	links           map[string][]model.Link
	videos          map[string][]model.Video
	parts           map[string][]model.Part
}

// NewMemoryStore returns an empty MemoryStore ready to use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:       map[string]model.Document{},
		fileHashIndex:   map[string]string{},
		markers:         map[string]model.StageCompletionMarker{},
		pipelineErrors:  map[string]model.PipelineError{},
		retryPolicies:   map[string]model.RetryPolicy{},
		chunks:          map[string][]model.Chunk{},
		images:          map[string]model.Image{},
		errorCodes:      map[string][]model.ErrorCode{},
		manufacturers:   map[string]model.Manufacturer{},
		productSeries:   map[string]model.ProductSeries{},
		products:        map[string]model.Product{},
		productByNatKey: map[string]string{},
		links:           map[string][]model.Link{},
		videos:          map[string][]model.Video{},
		parts:           map[string][]model.Part{},
	}
}

func markerKey(docID string, stage model.StageName) string { return docID + "|" + string(stage) }
func pipelineErrKey(correlationID string, stage model.StageName) string {
	return correlationID + "|" + string(stage)
}

func (m *MemoryStore) GetDocument(ctx context.Context, docID string) (model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[docID]
	if !ok {
		return model.Document{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) PutDocument(ctx context.Context, d model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.StageStatus == nil {
		d.StageStatus = model.StageStatus{}
	}
	d.UpdatedAt = time.Now()
	m.documents[d.ID] = d
	if d.FileHash != "" {
		m.fileHashIndex[d.FileHash] = d.ID
	}
	return nil
}

// DocumentCount returns the number of distinct documents on record, for
// the godog acceptance suite's idempotent-upload assertions.
func (m *MemoryStore) DocumentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents)
}

func (m *MemoryStore) UpdateStageStatus(ctx context.Context, docID string, stage model.StageName, mutate func(model.StageState) model.StageState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[docID]
	if !ok {
		return ErrNotFound
	}
	if d.StageStatus == nil {
		d.StageStatus = model.StageStatus{}
	}
	d.StageStatus[stage] = mutate(d.StageStatus[stage])
	d.UpdatedAt = time.Now()
	m.documents[docID] = d
	return nil
}

func (m *MemoryStore) SetProcessingStatus(ctx context.Context, docID string, status model.ProcessingStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[docID]
	if !ok {
		return ErrNotFound
	}
	d.ProcessingStatus = status
	d.ErrorMessage = errMsg
	d.UpdatedAt = time.Now()
	m.documents[docID] = d
	return nil
}

func (m *MemoryStore) PutStageCompletionMarker(ctx context.Context, marker model.StageCompletionMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[markerKey(marker.DocumentID, marker.StageName)] = marker
	return nil
}

func (m *MemoryStore) GetStageCompletionMarker(ctx context.Context, docID string, stage model.StageName) (model.StageCompletionMarker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	marker, ok := m.markers[markerKey(docID, stage)]
	return marker, ok, nil
}

func (m *MemoryStore) LookupByFileHash(ctx context.Context, fileHash string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.fileHashIndex[fileHash]
	return id, ok, nil
}

func (m *MemoryStore) RecordAttempt(ctx context.Context, pe model.PipelineError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pe.ErrorID == "" {
		pe.ErrorID = uuid.NewString()
	}
	m.pipelineErrors[pipelineErrKey(pe.CorrelationID, pe.StageName)] = pe
	return nil
}

func (m *MemoryStore) GetByCorrelation(ctx context.Context, correlationID string, stage model.StageName) (model.PipelineError, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pe, ok := m.pipelineErrors[pipelineErrKey(correlationID, stage)]
	return pe, ok, nil
}

func (m *MemoryStore) DueForRetry(ctx context.Context, before time.Time) ([]model.PipelineError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PipelineError
	for _, pe := range m.pipelineErrors {
		if pe.Status == model.PipelineErrorRetrying && pe.NextRetryAt != nil && !pe.NextRetryAt.After(before) {
			out = append(out, pe)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetRetryPolicy(ctx context.Context, service string) (model.RetryPolicy, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.retryPolicies[service]
	return p, ok, nil
}

func (m *MemoryStore) PutRetryPolicy(ctx context.Context, p model.RetryPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryPolicies[p.Service] = p
	return nil
}

func (m *MemoryStore) PutChunk(ctx context.Context, c model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.chunks[c.DocumentID] {
		if existing.ContentHash == c.ContentHash {
			return nil
		}
	}
	m.chunks[c.DocumentID] = append(m.chunks[c.DocumentID], c)
	return nil
}

func (m *MemoryStore) ListChunks(ctx context.Context, documentID string) ([]model.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Chunk, len(m.chunks[documentID]))
	copy(out, m.chunks[documentID])
	return out, nil
}

func (m *MemoryStore) LookupByContentHash(ctx context.Context, documentID, hash string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chunks[documentID] {
		if c.ContentHash == hash {
			return c.ID, true, nil
		}
	}
	return "", false, nil
}

// PutImage upserts by file_hash (the table's only unique key, per spec.md
// §3: "file_hash globally unique in the image table"). (document_id,
// image_index) is carried on the row as a secondary, non-unique key for
// ListImages, not a second uniqueness constraint.
func (m *MemoryStore) PutImage(ctx context.Context, img model.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[img.FileHash] = img
	return nil
}

func (m *MemoryStore) ListImages(ctx context.Context, documentID string) ([]model.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Image
	for _, img := range m.images {
		if img.DocumentID == documentID {
			out = append(out, img)
		}
	}
	return out, nil
}

// LookupImageByFileHash is scoped globally, not per document: the same
// bytes surfacing in a second manual must resolve to the image row
// already on record instead of being re-described and re-stored.
func (m *MemoryStore) LookupImageByFileHash(ctx context.Context, hash string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img, ok := m.images[hash]; ok {
		return img.ID, true, nil
	}
	return "", false, nil
}

func (m *MemoryStore) PutErrorCode(ctx context.Context, ec model.ErrorCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ec.ID == "" {
		ec.ID = uuid.NewString()
	}
	m.errorCodes[ec.DocumentID] = append(m.errorCodes[ec.DocumentID], ec)
	return nil
}

func (m *MemoryStore) ListErrorCodes(ctx context.Context, documentID string) ([]model.ErrorCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ErrorCode, len(m.errorCodes[documentID]))
	copy(out, m.errorCodes[documentID])
	return out, nil
}

func (m *MemoryStore) GetOrCreateManufacturer(ctx context.Context, canonicalName string) (model.Manufacturer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mf, ok := m.manufacturers[canonicalName]; ok {
		return mf, nil
	}
	mf := model.Manufacturer{ID: uuid.NewString(), CanonicalName: canonicalName}
	m.manufacturers[canonicalName] = mf
	return mf, nil
}

func (m *MemoryStore) ListManufacturers(ctx context.Context) ([]model.Manufacturer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Manufacturer, 0, len(m.manufacturers))
	for _, mf := range m.manufacturers {
		out = append(out, mf)
	}
	return out, nil
}

func seriesKey(manufacturerID, seriesName string) string { return manufacturerID + "|" + seriesName }

func (m *MemoryStore) GetOrCreateSeries(ctx context.Context, manufacturerID, seriesName string) (model.ProductSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := seriesKey(manufacturerID, seriesName)
	if ps, ok := m.productSeries[key]; ok {
		return ps, nil
	}
	ps := model.ProductSeries{ID: uuid.NewString(), ManufacturerID: manufacturerID, SeriesName: seriesName}
	m.productSeries[key] = ps
	return ps, nil
}

func productKey(manufacturerID, modelNumber string) string { return manufacturerID + "|" + modelNumber }

func (m *MemoryStore) GetOrCreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := productKey(p.ManufacturerID, p.ModelNumber)
	if id, ok := m.productByNatKey[key]; ok {
		existing := m.products[id]
		existing.ProductType = p.ProductType
		if p.Specifications != nil {
			existing.Specifications = p.Specifications
		}
		m.products[id] = existing
		return existing, nil
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.products[p.ID] = p
	m.productByNatKey[key] = p.ID
	return p, nil
}

func (m *MemoryStore) PutProductAccessory(ctx context.Context, pa model.ProductAccessory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.accessories {
		if existing.ProductID == pa.ProductID && existing.AccessoryID == pa.AccessoryID && existing.CompatibilityType == pa.CompatibilityType {
			m.accessories[i] = pa
			return nil
		}
	}
	m.accessories = append(m.accessories, pa)
	return nil
}

func (m *MemoryStore) Edges(ctx context.Context, productID string) ([]model.ProductAccessory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ProductAccessory
	for _, pa := range m.accessories {
		if pa.ProductID == productID {
			out = append(out, pa)
		}
	}
	return out, nil
}

func (m *MemoryStore) PutLink(ctx context.Context, l model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.links[l.DocumentID] {
		if existing.URL == l.URL {
			m.links[l.DocumentID][i] = l
			return nil
		}
	}
	m.links[l.DocumentID] = append(m.links[l.DocumentID], l)
	return nil
}

func (m *MemoryStore) ListLinks(ctx context.Context, documentID string) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Link, len(m.links[documentID]))
	copy(out, m.links[documentID])
	return out, nil
}

func (m *MemoryStore) PutVideo(ctx context.Context, v model.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.videos[v.DocumentID] {
		if existing.URL == v.URL {
			m.videos[v.DocumentID][i] = v
			return nil
		}
	}
	m.videos[v.DocumentID] = append(m.videos[v.DocumentID], v)
	return nil
}

func (m *MemoryStore) ListVideos(ctx context.Context, documentID string) ([]model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Video, len(m.videos[documentID]))
	copy(out, m.videos[documentID])
	return out, nil
}

func (m *MemoryStore) PutPart(ctx context.Context, p model.Part) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.parts[p.DocumentID] {
		if existing.PartNumber == p.PartNumber {
			m.parts[p.DocumentID][i] = p
			return nil
		}
	}
	m.parts[p.DocumentID] = append(m.parts[p.DocumentID], p)
	return nil
}

func (m *MemoryStore) ListParts(ctx context.Context, documentID string) ([]model.Part, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Part, len(m.parts[documentID]))
	copy(out, m.parts[documentID])
	return out, nil
}
