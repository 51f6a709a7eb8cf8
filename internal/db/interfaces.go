package db

import "context"

// SearchResult represents a single hit from the full-text search backend.
type SearchResult struct {
	ID       string
	Score    float64
	Snippet  string
	Text     string
	Metadata map[string]string
}

// FullTextSearch defines the minimum interface for a pluggable full-text
// search backend (spec.md §4.7's "search" modality).
type FullTextSearch interface {
	Index(ctx context.Context, id string, text string, metadata map[string]string) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// VectorResult represents a single nearest neighbor lookup result.
type VectorResult struct {
	ID       string
	Score    float64 // higher is closer
	Metadata map[string]string
}

// VectorStore defines the minimum interface for a pluggable vector store.
// Implementations back chunk embeddings, image caption embeddings, or any
// other modality the Search Indexing stage (spec.md §4.7) writes vectors for.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)
}

// Manager holds the concrete search and vector backends resolved from
// configuration (config.SearchConfig).
type Manager struct {
	Search FullTextSearch
	Vector VectorStore
}

// Close closes each backend that has a Close method (the Qdrant vector
// store does). The Postgres search and vector backends have none, so
// their pools are not released here; the in-memory fallbacks hold nothing.
func (m Manager) Close() {
	for _, b := range []any{m.Search, m.Vector} {
		switch c := b.(type) {
		case interface{ Close() }:
			c.Close()
		case interface{ Close() error }:
			_ = c.Close()
		}
	}
}
