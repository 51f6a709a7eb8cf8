package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/kunzeritter/docpipeline/internal/model"
)

// PostgresStore is the production Store, backed by a pgxpool.Pool whose
// schema is brought up to date by db.Migrate before this is constructed.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-migrated pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetDocument(ctx context.Context, docID string) (model.Document, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, file_hash, filename, file_size, page_count, document_type, manufacturer,
       series, models, language, processing_status, stage_status, error_message,
       created_at, updated_at
FROM documents WHERE id=$1`, docID)
	return scanDocument(row)
}

func scanDocument(row pgx.Row) (model.Document, error) {
	var d model.Document
	var modelsJSON, stageStatusJSON []byte
	err := row.Scan(&d.ID, &d.FileHash, &d.Filename, &d.FileSize, &d.PageCount, &d.DocumentType,
		&d.Manufacturer, &d.Series, &modelsJSON, &d.Language, &d.ProcessingStatus, &stageStatusJSON,
		&d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Document{}, ErrNotFound
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("scan document: %w", err)
	}
	if len(modelsJSON) > 0 {
		if err := json.Unmarshal(modelsJSON, &d.Models); err != nil {
			return model.Document{}, fmt.Errorf("unmarshal models: %w", err)
		}
	}
	if len(stageStatusJSON) > 0 {
		if err := json.Unmarshal(stageStatusJSON, &d.StageStatus); err != nil {
			return model.Document{}, fmt.Errorf("unmarshal stage_status: %w", err)
		}
	}
	return d, nil
}

func (s *PostgresStore) PutDocument(ctx context.Context, d model.Document) error {
	modelsJSON, err := json.Marshal(d.Models)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}
	stageStatusJSON, err := json.Marshal(d.StageStatus)
	if err != nil {
		return fmt.Errorf("marshal stage_status: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO documents (id, file_hash, filename, file_size, page_count, document_type,
  manufacturer, series, models, language, processing_status, stage_status, error_message,
  created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
ON CONFLICT (id) DO UPDATE SET
  filename=EXCLUDED.filename, file_size=EXCLUDED.file_size, page_count=EXCLUDED.page_count,
  document_type=EXCLUDED.document_type, manufacturer=EXCLUDED.manufacturer,
  series=EXCLUDED.series, models=EXCLUDED.models, language=EXCLUDED.language,
  processing_status=EXCLUDED.processing_status, stage_status=EXCLUDED.stage_status,
  error_message=EXCLUDED.error_message, updated_at=now()
`, d.ID, d.FileHash, d.Filename, d.FileSize, d.PageCount, d.DocumentType, d.Manufacturer,
		d.Series, modelsJSON, d.Language, d.ProcessingStatus, stageStatusJSON, d.ErrorMessage, time.Now())
	return err
}

// UpdateStageStatus reads stage_status as raw JSON, applies mutate to the
// one stage's current state via gjson/sjson rather than a full unmarshal
// into model.StageStatus, so a concurrently-written stage key this
// transaction never touched survives the round trip untouched (spec.md §9,
// "dynamic dicts for stage_status"). The read and write happen inside one
// transaction with a row lock to keep concurrent stage workers on the same
// document from clobbering each other.
func (s *PostgresStore) UpdateStageStatus(ctx context.Context, docID string, stage model.StageName, mutate func(model.StageState) model.StageState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT stage_status FROM documents WHERE id=$1 FOR UPDATE`, docID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock document: %w", err)
	}

	var prev model.StageState
	if current := gjson.GetBytes(raw, string(stage)); current.Exists() {
		if err := json.Unmarshal([]byte(current.Raw), &prev); err != nil {
			return fmt.Errorf("unmarshal stage state: %w", err)
		}
	}
	next := mutate(prev)
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal stage state: %w", err)
	}
	merged, err := sjson.SetRawBytes(raw, string(stage), nextJSON)
	if err != nil {
		return fmt.Errorf("merge stage_status: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE documents SET stage_status=$2, updated_at=now() WHERE id=$1`, docID, merged); err != nil {
		return fmt.Errorf("write stage_status: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) SetProcessingStatus(ctx context.Context, docID string, status model.ProcessingStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET processing_status=$2, error_message=$3, updated_at=now() WHERE id=$1`,
		docID, status, errMsg)
	return err
}

func (s *PostgresStore) PutStageCompletionMarker(ctx context.Context, m model.StageCompletionMarker) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal marker metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO stage_completion_markers (document_id, stage_name, completed_at, data_hash, metadata)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (document_id, stage_name) DO UPDATE SET
  completed_at=EXCLUDED.completed_at, data_hash=EXCLUDED.data_hash, metadata=EXCLUDED.metadata
`, m.DocumentID, m.StageName, m.CompletedAt, m.DataHash, metaJSON)
	return err
}

func (s *PostgresStore) GetStageCompletionMarker(ctx context.Context, docID string, stage model.StageName) (model.StageCompletionMarker, bool, error) {
	var m model.StageCompletionMarker
	var metaJSON []byte
	err := s.pool.QueryRow(ctx, `
SELECT document_id, stage_name, completed_at, data_hash, metadata
FROM stage_completion_markers WHERE document_id=$1 AND stage_name=$2`, docID, stage).
		Scan(&m.DocumentID, &m.StageName, &m.CompletedAt, &m.DataHash, &metaJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StageCompletionMarker{}, false, nil
	}
	if err != nil {
		return model.StageCompletionMarker{}, false, fmt.Errorf("get stage completion marker: %w", err)
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &m.Metadata)
	}
	return m, true, nil
}

func (s *PostgresStore) LookupByFileHash(ctx context.Context, fileHash string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM documents WHERE file_hash=$1`, fileHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, pe model.PipelineError) error {
	if pe.ErrorID == "" {
		pe.ErrorID = uuid.NewString()
	}
	ctxJSON, err := json.Marshal(pe.Context)
	if err != nil {
		return fmt.Errorf("marshal pipeline error context: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO pipeline_errors (error_id, document_id, stage_name, error_type, error_category,
  error_message, stack_trace, context, retry_count, max_retries, status, is_transient,
  correlation_id, next_retry_at, resolved_at, resolution_notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (correlation_id, stage_name) DO UPDATE SET
  error_type=EXCLUDED.error_type, error_category=EXCLUDED.error_category,
  error_message=EXCLUDED.error_message, stack_trace=EXCLUDED.stack_trace,
  context=EXCLUDED.context, retry_count=EXCLUDED.retry_count, max_retries=EXCLUDED.max_retries,
  status=EXCLUDED.status, is_transient=EXCLUDED.is_transient, next_retry_at=EXCLUDED.next_retry_at,
  resolved_at=EXCLUDED.resolved_at, resolution_notes=EXCLUDED.resolution_notes
`, pe.ErrorID, pe.DocumentID, pe.StageName, pe.ErrorType, pe.ErrorCategory, pe.ErrorMessage,
		pe.StackTrace, ctxJSON, pe.RetryCount, pe.MaxRetries, pe.Status, pe.IsTransient,
		pe.CorrelationID, pe.NextRetryAt, pe.ResolvedAt, pe.ResolutionNotes)
	return err
}

func (s *PostgresStore) GetByCorrelation(ctx context.Context, correlationID string, stage model.StageName) (model.PipelineError, bool, error) {
	var pe model.PipelineError
	var ctxJSON []byte
	err := s.pool.QueryRow(ctx, `
SELECT error_id, document_id, stage_name, error_type, error_category, error_message,
       stack_trace, context, retry_count, max_retries, status, is_transient, correlation_id,
       next_retry_at, resolved_at, resolution_notes
FROM pipeline_errors WHERE correlation_id=$1 AND stage_name=$2`, correlationID, stage).Scan(
		&pe.ErrorID, &pe.DocumentID, &pe.StageName, &pe.ErrorType, &pe.ErrorCategory, &pe.ErrorMessage,
		&pe.StackTrace, &ctxJSON, &pe.RetryCount, &pe.MaxRetries, &pe.Status, &pe.IsTransient,
		&pe.CorrelationID, &pe.NextRetryAt, &pe.ResolvedAt, &pe.ResolutionNotes)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PipelineError{}, false, nil
	}
	if err != nil {
		return model.PipelineError{}, false, err
	}
	if len(ctxJSON) > 0 {
		_ = json.Unmarshal(ctxJSON, &pe.Context)
	}
	return pe, true, nil
}

func (s *PostgresStore) DueForRetry(ctx context.Context, before time.Time) ([]model.PipelineError, error) {
	rows, err := s.pool.Query(ctx, `
SELECT error_id, document_id, stage_name, correlation_id, retry_count, max_retries, next_retry_at
FROM pipeline_errors WHERE status='retrying' AND next_retry_at <= $1`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PipelineError
	for rows.Next() {
		var pe model.PipelineError
		if err := rows.Scan(&pe.ErrorID, &pe.DocumentID, &pe.StageName, &pe.CorrelationID,
			&pe.RetryCount, &pe.MaxRetries, &pe.NextRetryAt); err != nil {
			return nil, err
		}
		pe.Status = model.PipelineErrorRetrying
		out = append(out, pe)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetRetryPolicy(ctx context.Context, service string) (model.RetryPolicy, bool, error) {
	var p model.RetryPolicy
	err := s.pool.QueryRow(ctx, `
SELECT service, max_retries, base_delay_seconds, max_delay_seconds, exponential_base, jitter_enabled
FROM retry_policies WHERE service=$1`, service).
		Scan(&p.Service, &p.MaxRetries, &p.BaseDelaySeconds, &p.MaxDelaySeconds, &p.ExponentialBase, &p.JitterEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RetryPolicy{}, false, nil
	}
	if err != nil {
		return model.RetryPolicy{}, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) PutRetryPolicy(ctx context.Context, p model.RetryPolicy) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO retry_policies (service, max_retries, base_delay_seconds, max_delay_seconds, exponential_base, jitter_enabled)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (service) DO UPDATE SET max_retries=EXCLUDED.max_retries,
  base_delay_seconds=EXCLUDED.base_delay_seconds, max_delay_seconds=EXCLUDED.max_delay_seconds,
  exponential_base=EXCLUDED.exponential_base, jitter_enabled=EXCLUDED.jitter_enabled
`, p.Service, p.MaxRetries, p.BaseDelaySeconds, p.MaxDelaySeconds, p.ExponentialBase, p.JitterEnabled)
	return err
}

func (s *PostgresStore) PutChunk(ctx context.Context, c model.Chunk) error {
	sectionJSON, err := json.Marshal(c.SectionHierarchy)
	if err != nil {
		return fmt.Errorf("marshal section hierarchy: %w", err)
	}
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal chunk metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO chunks (id, document_id, chunk_index, page_start, page_end, content, content_hash,
  chunk_type, section_hierarchy, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (document_id, content_hash) DO NOTHING
`, c.ID, c.DocumentID, c.ChunkIndex, c.PageStart, c.PageEnd, c.Content, c.ContentHash,
		c.ChunkType, sectionJSON, metaJSON, c.CreatedAt)
	return err
}

func (s *PostgresStore) ListChunks(ctx context.Context, documentID string) ([]model.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, chunk_index, page_start, page_end, content, content_hash, chunk_type,
       section_hierarchy, metadata, created_at
FROM chunks WHERE document_id=$1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var sectionJSON, metaJSON []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.PageStart, &c.PageEnd, &c.Content,
			&c.ContentHash, &c.ChunkType, &sectionJSON, &metaJSON, &c.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(sectionJSON, &c.SectionHierarchy)
		_ = json.Unmarshal(metaJSON, &c.Metadata)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LookupByContentHash(ctx context.Context, documentID, hash string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM chunks WHERE document_id=$1 AND content_hash=$2`, documentID, hash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// PutImage upserts by file_hash, the table's only unique key (spec.md §3:
// "file_hash globally unique in the image table, same bytes deduped
// across documents"). document_id/image_index ride along on the row as a
// secondary, non-unique key for ListImages, not a second upsert target.
func (s *PostgresStore) PutImage(ctx context.Context, img model.Image) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO images (id, document_id, page_number, image_index, file_hash, storage_path, width_px,
  height_px, image_format, image_type, ai_description, ai_confidence, ocr_text, chunk_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (file_hash) DO UPDATE SET
  ai_description=EXCLUDED.ai_description, ai_confidence=EXCLUDED.ai_confidence, ocr_text=EXCLUDED.ocr_text
`, img.ID, img.DocumentID, img.PageNumber, img.ImageIndex, img.FileHash, img.StoragePath,
		img.WidthPx, img.HeightPx, img.ImageFormat, img.ImageType, img.AIDescription,
		img.AIConfidence, img.OCRText, img.ChunkID, img.CreatedAt)
	return err
}

func (s *PostgresStore) ListImages(ctx context.Context, documentID string) ([]model.Image, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, page_number, image_index, file_hash, storage_path, width_px, height_px,
       image_format, image_type, ai_description, ai_confidence, ocr_text, chunk_id, created_at
FROM images WHERE document_id=$1 ORDER BY page_number, image_index`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Image
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.ID, &img.DocumentID, &img.PageNumber, &img.ImageIndex, &img.FileHash,
			&img.StoragePath, &img.WidthPx, &img.HeightPx, &img.ImageFormat, &img.ImageType,
			&img.AIDescription, &img.AIConfidence, &img.OCRText, &img.ChunkID, &img.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// LookupImageByFileHash is scoped globally, not per document: the same
// bytes surfacing in a second manual must resolve to the image row
// already on record instead of being re-described and re-stored.
func (s *PostgresStore) LookupImageByFileHash(ctx context.Context, hash string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM images WHERE file_hash=$1`, hash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *PostgresStore) PutErrorCode(ctx context.Context, ec model.ErrorCode) error {
	if ec.ID == "" {
		ec.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO error_codes (id, document_id, manufacturer_id, code, description, solution_text,
  page_number, confidence, severity, extraction_method, chunk_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (document_id, code, page_number) DO UPDATE SET
  description=EXCLUDED.description, solution_text=EXCLUDED.solution_text,
  confidence=EXCLUDED.confidence, severity=EXCLUDED.severity
`, ec.ID, ec.DocumentID, ec.ManufacturerID, ec.Code, ec.Description, ec.SolutionText,
		ec.PageNumber, ec.Confidence, ec.Severity, ec.ExtractionMethod, ec.ChunkID)
	return err
}

func (s *PostgresStore) ListErrorCodes(ctx context.Context, documentID string) ([]model.ErrorCode, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, manufacturer_id, code, description, solution_text, page_number,
       confidence, severity, extraction_method, chunk_id
FROM error_codes WHERE document_id=$1 ORDER BY page_number`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ErrorCode
	for rows.Next() {
		var ec model.ErrorCode
		if err := rows.Scan(&ec.ID, &ec.DocumentID, &ec.ManufacturerID, &ec.Code, &ec.Description,
			&ec.SolutionText, &ec.PageNumber, &ec.Confidence, &ec.Severity, &ec.ExtractionMethod, &ec.ChunkID); err != nil {
			return nil, err
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetOrCreateManufacturer(ctx context.Context, canonicalName string) (model.Manufacturer, error) {
	var m model.Manufacturer
	var aliasJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT id, canonical_name, aliases FROM manufacturers WHERE canonical_name=$1`, canonicalName).
		Scan(&m.ID, &m.CanonicalName, &aliasJSON)
	if err == nil {
		_ = json.Unmarshal(aliasJSON, &m.Aliases)
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Manufacturer{}, err
	}
	m = model.Manufacturer{ID: uuid.NewString(), CanonicalName: canonicalName}
	if _, err := s.pool.Exec(ctx, `
INSERT INTO manufacturers (id, canonical_name, aliases) VALUES ($1,$2,'[]'::jsonb)
ON CONFLICT (canonical_name) DO NOTHING
`, m.ID, m.CanonicalName); err != nil {
		return model.Manufacturer{}, err
	}
	return s.GetOrCreateManufacturer(ctx, canonicalName)
}

func (s *PostgresStore) ListManufacturers(ctx context.Context) ([]model.Manufacturer, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, canonical_name, aliases FROM manufacturers ORDER BY canonical_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Manufacturer
	for rows.Next() {
		var m model.Manufacturer
		var aliasJSON []byte
		if err := rows.Scan(&m.ID, &m.CanonicalName, &aliasJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(aliasJSON, &m.Aliases)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetOrCreateSeries(ctx context.Context, manufacturerID, seriesName string) (model.ProductSeries, error) {
	var ps model.ProductSeries
	err := s.pool.QueryRow(ctx, `SELECT id, manufacturer_id, series_name FROM product_series WHERE manufacturer_id=$1 AND series_name=$2`,
		manufacturerID, seriesName).Scan(&ps.ID, &ps.ManufacturerID, &ps.SeriesName)
	if err == nil {
		return ps, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.ProductSeries{}, err
	}
	ps = model.ProductSeries{ID: uuid.NewString(), ManufacturerID: manufacturerID, SeriesName: seriesName}
	if _, err := s.pool.Exec(ctx, `
INSERT INTO product_series (id, manufacturer_id, series_name) VALUES ($1,$2,$3)
ON CONFLICT (manufacturer_id, series_name) DO NOTHING
`, ps.ID, ps.ManufacturerID, ps.SeriesName); err != nil {
		return model.ProductSeries{}, err
	}
	return s.GetOrCreateSeries(ctx, manufacturerID, seriesName)
}

func (s *PostgresStore) GetOrCreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	specJSON, err := json.Marshal(p.Specifications)
	if err != nil {
		return model.Product{}, fmt.Errorf("marshal specifications: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var seriesID any
	if p.ProductSeriesID != "" {
		seriesID = p.ProductSeriesID
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO products (id, manufacturer_id, product_series_id, model_number, product_type, specifications)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (manufacturer_id, model_number) DO UPDATE SET
  product_type=EXCLUDED.product_type, specifications=EXCLUDED.specifications
`, p.ID, p.ManufacturerID, seriesID, p.ModelNumber, p.ProductType, specJSON)
	if err != nil {
		return model.Product{}, err
	}
	var out model.Product
	var outSeriesID *string
	var outSpecJSON []byte
	err = s.pool.QueryRow(ctx, `
SELECT id, manufacturer_id, product_series_id, model_number, product_type, specifications
FROM products WHERE manufacturer_id=$1 AND model_number=$2`, p.ManufacturerID, p.ModelNumber).
		Scan(&out.ID, &out.ManufacturerID, &outSeriesID, &out.ModelNumber, &out.ProductType, &outSpecJSON)
	if err != nil {
		return model.Product{}, err
	}
	if outSeriesID != nil {
		out.ProductSeriesID = *outSeriesID
	}
	_ = json.Unmarshal(outSpecJSON, &out.Specifications)
	return out, nil
}

func (s *PostgresStore) PutProductAccessory(ctx context.Context, pa model.ProductAccessory) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO product_accessories (product_id, accessory_id, compatibility_type, is_standard, notes)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (product_id, accessory_id, compatibility_type) DO UPDATE SET
  is_standard=EXCLUDED.is_standard, notes=EXCLUDED.notes
`, pa.ProductID, pa.AccessoryID, pa.CompatibilityType, pa.IsStandard, pa.Notes)
	return err
}

func (s *PostgresStore) Edges(ctx context.Context, productID string) ([]model.ProductAccessory, error) {
	rows, err := s.pool.Query(ctx, `
SELECT product_id, accessory_id, compatibility_type, is_standard, notes
FROM product_accessories WHERE product_id=$1`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ProductAccessory
	for rows.Next() {
		var pa model.ProductAccessory
		if err := rows.Scan(&pa.ProductID, &pa.AccessoryID, &pa.CompatibilityType, &pa.IsStandard, &pa.Notes); err != nil {
			return nil, err
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutLink(ctx context.Context, l model.Link) error {
	metaJSON, err := json.Marshal(l.ScrapedMetadata)
	if err != nil {
		return fmt.Errorf("marshal scraped metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO links (document_id, url, scrape_status, scraped_content, content_hash, scraped_metadata, scraped_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (document_id, url) DO UPDATE SET
  scrape_status=EXCLUDED.scrape_status, scraped_content=EXCLUDED.scraped_content,
  content_hash=EXCLUDED.content_hash, scraped_metadata=EXCLUDED.scraped_metadata, scraped_at=EXCLUDED.scraped_at
`, l.DocumentID, l.URL, l.ScrapeStatus, l.ScrapedContent, l.ContentHash, metaJSON, l.ScrapedAt)
	return err
}

func (s *PostgresStore) ListLinks(ctx context.Context, documentID string) ([]model.Link, error) {
	rows, err := s.pool.Query(ctx, `
SELECT document_id, url, scrape_status, scraped_content, content_hash, scraped_metadata, scraped_at
FROM links WHERE document_id=$1`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Link
	for rows.Next() {
		var l model.Link
		var metaJSON []byte
		if err := rows.Scan(&l.DocumentID, &l.URL, &l.ScrapeStatus, &l.ScrapedContent, &l.ContentHash, &metaJSON, &l.ScrapedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(metaJSON, &l.ScrapedMetadata)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutVideo(ctx context.Context, v model.Video) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO videos (document_id, url, fingerprint, transcript_text, has_transcript)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (document_id, url) DO UPDATE SET
  transcript_text=EXCLUDED.transcript_text, has_transcript=EXCLUDED.has_transcript
`, v.DocumentID, v.URL, v.Fingerprint, v.TranscriptText, v.HasTranscript)
	return err
}

func (s *PostgresStore) ListVideos(ctx context.Context, documentID string) ([]model.Video, error) {
	rows, err := s.pool.Query(ctx, `SELECT document_id, url, fingerprint, transcript_text, has_transcript FROM videos WHERE document_id=$1`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Video
	for rows.Next() {
		var v model.Video
		if err := rows.Scan(&v.DocumentID, &v.URL, &v.Fingerprint, &v.TranscriptText, &v.HasTranscript); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutPart(ctx context.Context, p model.Part) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO parts (document_id, part_number, description, manufacturer)
VALUES ($1,$2,$3,$4)
ON CONFLICT (document_id, part_number) DO UPDATE SET description=EXCLUDED.description, manufacturer=EXCLUDED.manufacturer
`, p.DocumentID, p.PartNumber, p.Description, p.Manufacturer)
	return err
}

func (s *PostgresStore) ListParts(ctx context.Context, documentID string) ([]model.Part, error) {
	rows, err := s.pool.Query(ctx, `SELECT document_id, part_number, description, manufacturer FROM parts WHERE document_id=$1`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Part
	for rows.Next() {
		var p model.Part
		if err := rows.Scan(&p.DocumentID, &p.PartNumber, &p.Description, &p.Manufacturer); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
