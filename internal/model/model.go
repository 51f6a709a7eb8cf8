// Package model defines the entities of the document-ingestion pipeline
// (spec.md §3). Storage layout lives in internal/db; these types are the
// in-memory, strongly typed shapes every stage and repository passes
// around.
package model

import "time"

// ProcessingStatus is the lifecycle state of a Document as a whole.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// DocumentType is a closed vocabulary of recognized manual kinds.
type DocumentType string

const (
	DocTypeServiceManual         DocumentType = "service_manual"
	DocTypePartsCatalog          DocumentType = "parts_catalog"
	DocTypeTroubleshootingGuide  DocumentType = "troubleshooting_guide"
	DocTypeUserManual            DocumentType = "user_manual"
	DocTypeOther                 DocumentType = "other"
)

// StageName enumerates the eight pipeline stages in their fixed order
// (spec.md §4.1; this module standardizes on the orchestrator's list per
// spec.md §9's Design Notes on the two competing stage lists upstream).
type StageName string

const (
	StageUpload               StageName = "upload"
	StageTextExtraction       StageName = "text_extraction"
	StageTableExtraction      StageName = "table_extraction"
	StageImageProcessing      StageName = "image_processing"
	StageClassification       StageName = "classification"
	StagePartsExtraction      StageName = "parts_extraction"
	StageSeriesDetection      StageName = "series_detection"
	StageEmbeddingAndSearch   StageName = "embedding_and_search"
)

// Stages is the total order stage bodies execute in for one document.
var Stages = []StageName{
	StageUpload,
	StageTextExtraction,
	StageTableExtraction,
	StageImageProcessing,
	StageClassification,
	StagePartsExtraction,
	StageSeriesDetection,
	StageEmbeddingAndSearch,
}

// StageStatusValue is the status of a single stage slot.
type StageStatusValue string

const (
	StageStatusProcessing StageStatusValue = "processing"
	StageStatusCompleted  StageStatusValue = "completed"
	StageStatusFailed     StageStatusValue = "failed"
)

// StageState is one entry of Document.StageStatus.
type StageState struct {
	Status      StageStatusValue       `json:"status"`
	Progress    int                    `json:"progress"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

// StageStatus is the document's stage_status JSON field, keyed by stage
// name. Kept as a typed map in memory; (de)serialized to JSON at rest via
// internal/repo's gjson/sjson merge in PostgresStore so unknown keys survive a
// partial update (spec.md §9, "Dynamic dicts for stage_status").
type StageStatus map[StageName]StageState

// Document is the root entity created by the upload stage.
type Document struct {
	ID               string
	FileHash         string
	Filename         string
	FileSize         int64
	PageCount        int
	DocumentType     DocumentType
	Manufacturer     string
	Series           string
	Models           []string
	Language         string
	ProcessingStatus ProcessingStatus
	StageStatus      StageStatus
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ChunkType classifies the semantic content of a Chunk.
type ChunkType string

const (
	ChunkTypeText      ChunkType = "text"
	ChunkTypeProcedure ChunkType = "procedure"
	ChunkTypeErrorCode ChunkType = "error_code"
	ChunkTypeList      ChunkType = "list"
	ChunkTypeTable     ChunkType = "table"
)

// ChunkMetadata carries the classification hints spec.md §3 requires on
// every chunk.
type ChunkMetadata struct {
	Confidence         float64 `json:"confidence"`
	ContainsErrorCode  bool    `json:"contains_error_code"`
	ContainsProcedure  bool    `json:"contains_procedure"`
	ContainsPartNumber bool    `json:"contains_part_number"`
	ErrorCode          string  `json:"error_code,omitempty"`
}

// Chunk is a unit of extracted, chunked text.
type Chunk struct {
	ID               string
	DocumentID       string
	ChunkIndex       int
	PageStart        int
	PageEnd          int
	Content          string
	ContentHash      string
	ChunkType        ChunkType
	SectionHierarchy []string
	Metadata         ChunkMetadata
	CreatedAt        time.Time
}

// ImageType classifies an extracted Image.
type ImageType string

const (
	ImageTypeDiagram       ImageType = "diagram"
	ImageTypePhoto         ImageType = "photo"
	ImageTypeVectorGraphic ImageType = "vector_graphic"
	ImageTypePNGConversion ImageType = "png_conversion"
)

// Image is an extracted, deduplicated image with its vision caption.
type Image struct {
	ID           string
	DocumentID   string
	PageNumber   int
	ImageIndex   int
	FileHash     string
	StoragePath  string
	WidthPx      int
	HeightPx     int
	ImageFormat  string
	ImageType    ImageType
	AIDescription string
	AIConfidence float64
	OCRText      string
	ChunkID      string
	CreatedAt    time.Time
}

// Embedding is the vector attached to one chunk.
type Embedding struct {
	ChunkID   string
	Vector    []float32
	ModelName string
	CreatedAt time.Time
}

// ExtractionMethod records how an ErrorCode was found.
type ExtractionMethod string

const (
	ExtractionRegex        ExtractionMethod = "regex"
	ExtractionLLM          ExtractionMethod = "llm"
	ExtractionPatternTable ExtractionMethod = "pattern_table"
)

// ErrorCode is a manufacturer fault code extracted from a document.
type ErrorCode struct {
	ID               string
	DocumentID       string
	ManufacturerID   string
	Code             string
	Description      string
	SolutionText     string
	PageNumber       int
	Confidence       float64
	Severity         string
	ExtractionMethod ExtractionMethod
	ChunkID          string
}

// Manufacturer is a canonical manufacturer identity.
type Manufacturer struct {
	ID            string
	CanonicalName string
	Aliases       []string
}

// ProductSeries groups Products under one manufacturer.
type ProductSeries struct {
	ID             string
	ManufacturerID string
	SeriesName     string
}

// ProductType is the closed vocabulary from spec.md §3.
type ProductType string

const (
	ProductLaserPrinter          ProductType = "laser_printer"
	ProductLaserMultifunction    ProductType = "laser_multifunction"
	ProductInkjetPrinter         ProductType = "inkjet_printer"
	ProductInkjetMultifunction   ProductType = "inkjet_multifunction"
	ProductLaserProductionPrint  ProductType = "laser_production_printer"
	ProductFinisher              ProductType = "finisher"
	ProductSaddleFinisher        ProductType = "saddle_finisher"
	ProductPaperFeeder           ProductType = "paper_feeder"
	ProductCabinet               ProductType = "cabinet"
	ProductFaxKit                ProductType = "fax_kit"
	ProductHardDrive             ProductType = "hard_drive"
	ProductImageController       ProductType = "image_controller"
	ProductControllerAccessory   ProductType = "controller_accessory"
	ProductRelayUnit             ProductType = "relay_unit"
	ProductAuthenticationUnit    ProductType = "authentication_unit"
	ProductTonerCartridge        ProductType = "toner_cartridge"
	ProductDrumUnit              ProductType = "drum_unit"
)

// ValidProductTypes is the closed vocabulary a Product.ProductType must
// belong to; anything else is a ValidationError (spec.md §4.5).
var ValidProductTypes = map[ProductType]bool{
	ProductLaserPrinter:         true,
	ProductLaserMultifunction:   true,
	ProductInkjetPrinter:        true,
	ProductInkjetMultifunction:  true,
	ProductLaserProductionPrint: true,
	ProductFinisher:             true,
	ProductSaddleFinisher:       true,
	ProductPaperFeeder:          true,
	ProductCabinet:              true,
	ProductFaxKit:               true,
	ProductHardDrive:            true,
	ProductImageController:      true,
	ProductControllerAccessory:  true,
	ProductRelayUnit:            true,
	ProductAuthenticationUnit:   true,
	ProductTonerCartridge:       true,
	ProductDrumUnit:             true,
}

// Product is a manufacturer model, possibly an accessory.
type Product struct {
	ID              string
	ManufacturerID  string
	ProductSeriesID string
	ModelNumber     string
	ProductType     ProductType
	Specifications  map[string]any
}

// CompatibilityType is the relation kind of a ProductAccessory edge.
type CompatibilityType string

const (
	CompatCompatible  CompatibilityType = "compatible"
	CompatRequires    CompatibilityType = "requires"
	CompatConflicts   CompatibilityType = "conflicts"
	CompatRecommended CompatibilityType = "recommended"
	CompatAlternative CompatibilityType = "alternative"
	CompatPrerequisite CompatibilityType = "prerequisite"
)

// ProductAccessory is a directed edge between a product and an accessory.
type ProductAccessory struct {
	ProductID         string
	AccessoryID       string
	CompatibilityType CompatibilityType
	IsStandard        bool
	Notes             string
}

// ScrapeStatus is the outcome of a Link enrichment attempt.
type ScrapeStatus string

const (
	ScrapePending ScrapeStatus = "pending"
	ScrapeSuccess ScrapeStatus = "success"
	ScrapeFailed  ScrapeStatus = "failed"
)

// Link is a hyperlink discovered in a document, optionally enriched by
// the Scrape Client.
type Link struct {
	DocumentID      string
	URL             string
	ScrapeStatus    ScrapeStatus
	ScrapedContent  string
	ContentHash     string
	ScrapedMetadata ScrapedMetadata
	ScrapedAt       *time.Time
}

// ScrapedMetadata is the structured metadata attached to a scraped Link.
type ScrapedMetadata struct {
	Backend    string    `json:"backend"`
	RetryCount int       `json:"retry_count"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Video is a document-scoped embedded or linked video reference.
type Video struct {
	DocumentID      string
	URL             string
	Fingerprint     string
	TranscriptText  string
	HasTranscript   bool
}

// Part is a manufacturer part referenced in a document.
type Part struct {
	DocumentID   string
	PartNumber   string
	Description  string
	Manufacturer string
}

// StageCompletionMarker proves a stage finished for a given input
// fingerprint, enabling idempotent skips on re-run (spec.md GLOSSARY).
type StageCompletionMarker struct {
	DocumentID  string
	StageName   StageName
	CompletedAt time.Time
	DataHash    string
	Metadata    map[string]any
}

// PipelineErrorStatus tracks a PipelineError through the retry lifecycle.
type PipelineErrorStatus string

const (
	PipelineErrorOpen      PipelineErrorStatus = "open"
	PipelineErrorRetrying  PipelineErrorStatus = "retrying"
	PipelineErrorResolved  PipelineErrorStatus = "resolved"
	PipelineErrorGaveUp    PipelineErrorStatus = "gave_up"
)

// PipelineError is a durable audit record of a stage failure.
type PipelineError struct {
	ErrorID        string
	DocumentID     string
	StageName      StageName
	ErrorType      string
	ErrorCategory  string
	ErrorMessage   string
	StackTrace     string
	Context        map[string]any
	RetryCount     int
	MaxRetries     int
	Status         PipelineErrorStatus
	IsTransient    bool
	CorrelationID  string
	NextRetryAt    *time.Time
	ResolvedAt     *time.Time
	ResolutionNotes string
}

// RetryPolicy is the per-service backoff policy from spec.md §3.
type RetryPolicy struct {
	Service          string
	MaxRetries       int
	BaseDelaySeconds float64
	MaxDelaySeconds  float64
	ExponentialBase  float64
	JitterEnabled    bool
}
