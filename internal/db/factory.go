package db

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kunzeritter/docpipeline/internal/config"
)

// NewManager resolves the full-text search and vector store backends named
// by cfg (config.SearchConfig), connecting to dbCfg's Postgres instance when
// either backend is "postgres". An empty dbCfg.ConnectionURL falls back to
// in-memory backends, which is how unit tests and the godog acceptance
// suite (SPEC_FULL.md §4.13) run without a live database.
func NewManager(ctx context.Context, cfg config.SearchConfig, dbCfg config.DatabaseConfig, embeddingDimension int) (Manager, error) {
	var m Manager

	switch cfg.SearchBackend {
	case config.SearchBackendPostgres:
		if dbCfg.ConnectionURL == "" {
			m.Search = NewMemorySearch()
			break
		}
		pool, err := newPgPool(ctx, dbCfg.ConnectionURL)
		if err != nil {
			return Manager{}, fmt.Errorf("connect postgres (search): %w", err)
		}
		m.Search = NewPostgresSearch(pool)
	default:
		m.Search = NewMemorySearch()
	}

	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		if cfg.QdrantAddr == "" {
			return Manager{}, fmt.Errorf("vector backend qdrant requires QDRANT_ADDR")
		}
		v, err := NewQdrantVector(cfg.QdrantAddr, "chunks", embeddingDimension, "cosine")
		if err != nil {
			return Manager{}, fmt.Errorf("connect qdrant: %w", err)
		}
		m.Vector = v
	case config.VectorBackendPostgres:
		if dbCfg.ConnectionURL == "" {
			m.Vector = NewMemoryVector()
			break
		}
		pool, err := newPgPool(ctx, dbCfg.ConnectionURL)
		if err != nil {
			return Manager{}, fmt.Errorf("connect postgres (vector): %w", err)
		}
		m.Vector = NewPostgresVector(pool, embeddingDimension, "cosine")
	default:
		m.Vector = NewMemoryVector()
	}

	return m, nil
}

// memorySearch is a naive substring-match full-text search used when no
// Postgres DSN is configured.
type memorySearch struct {
	mu   sync.RWMutex
	docs map[string]memDoc
}

type memDoc struct {
	text     string
	metadata map[string]string
}

// NewMemorySearch returns an in-process FullTextSearch backend.
func NewMemorySearch() FullTextSearch {
	return &memorySearch{docs: make(map[string]memDoc)}
}

func (s *memorySearch) Index(_ context.Context, id, text string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = memDoc{text: text, metadata: metadata}
	return nil
}

func (s *memorySearch) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *memorySearch) Search(_ context.Context, query string, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	var results []SearchResult
	for id, d := range s.docs {
		lower := strings.ToLower(d.text)
		if q == "" || strings.Contains(lower, q) {
			results = append(results, SearchResult{ID: id, Score: 1, Snippet: snippet(d.text, 160), Metadata: d.metadata})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// memoryVector is a brute-force cosine-similarity vector store used when no
// Postgres DSN or Qdrant address is configured.
type memoryVector struct {
	mu   sync.RWMutex
	rows map[string]memVec
}

type memVec struct {
	vector   []float32
	metadata map[string]string
}

// NewMemoryVector returns an in-process VectorStore backend.
func NewMemoryVector() VectorStore {
	return &memoryVector{rows: make(map[string]memVec)}
}

func (v *memoryVector) Upsert(_ context.Context, id string, vector []float32, metadata map[string]string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rows[id] = memVec{vector: vector, metadata: metadata}
	return nil
}

func (v *memoryVector) Delete(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.rows, id)
	return nil
}

func (v *memoryVector) SimilaritySearch(_ context.Context, query []float32, k int, filter map[string]string) ([]VectorResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var results []VectorResult
	for id, row := range v.rows {
		if !matchesFilter(row.metadata, filter) {
			continue
		}
		results = append(results, VectorResult{ID: id, Score: cosineSimilarity(query, row.vector), Metadata: row.metadata})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func newPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
