// Package search implements spec.md §4.7's "search assembly": a unified
// multimodal view built by taking the top-K hits within each modality and
// merging them with configurable weights. The merge strategy is
// reciprocal rank fusion (RRF) — SPEC_FULL.md §6.7 names it explicitly —
// chosen because it only needs each modality's rank order, not
// comparable similarity scales across a vector-cosine modality and a
// Postgres tsvector lexical modality.
package search

import (
	"context"
	"sort"

	"github.com/kunzeritter/docpipeline/internal/db"
)

// Modality names the five multimodal views spec.md §4.7 lists, plus the
// lexical full-text ranking SPEC_FULL.md §6.7 adds as "the lexical half of
// hybrid retrieval".
type Modality string

const (
	ModalityChunkText    Modality = "chunk_text"
	ModalityImageCaption Modality = "image_caption"
	ModalityTableText    Modality = "table_text"
	ModalityLinkContext  Modality = "link_context"
	ModalityVideoContext Modality = "video_context"
	ModalityLexical      Modality = "lexical"
)

// defaultRRFConstant is RRF's usual rank-damping constant (the "60" in
// 1/(60+rank) from the original Cormack/Clarke/Buettcher paper); it keeps
// a single top-ranked hit from one modality from completely dominating a
// modality with a deeper, evenly-scored result set.
const defaultRRFConstant = 60.0

// Hit is one fused multimodal search result.
type Hit struct {
	ID       string
	Modality Modality
	Score    float64 // underlying modality score (cosine similarity or tsvector rank)
	RRFScore float64 // fused score; results are sorted by this, descending
	Metadata map[string]string
}

// Weights maps a modality to its fusion weight. A modality absent from
// the map, or a query that supplies no vector/text for it, is skipped.
type Weights map[Modality]float64

// DefaultWeights weighs every modality equally, satisfying spec.md §4.7's
// only hard requirement ("monotonic in similarity and filterable by
// modality") without privileging one modality over another absent a
// product decision to do otherwise.
func DefaultWeights() Weights {
	return Weights{
		ModalityChunkText:    1,
		ModalityImageCaption: 1,
		ModalityTableText:    1,
		ModalityLinkContext:  1,
		ModalityVideoContext: 1,
		ModalityLexical:      1,
	}
}

// Assembler fuses per-modality top-K rankings from a db.Manager's vector
// and full-text backends into one multimodal result list.
type Assembler struct {
	mgr db.Manager
}

// NewAssembler returns an Assembler over mgr's resolved search backends.
func NewAssembler(mgr db.Manager) *Assembler {
	return &Assembler{mgr: mgr}
}

// Query carries one modality's input: a vector for the four
// vector-backed modalities, or text for the lexical modality.
type Query struct {
	Modality Modality
	Vector   []float32
	Text     string
}

// Assemble runs topK similarity/text search for each of queries, then
// fuses the per-modality rankings via RRF weighted by weights. Modalities
// not present in queries contribute nothing. The returned slice is
// sorted by RRFScore descending and is safe to post-filter by Modality
// for a single-modality view without re-querying.
func (a *Assembler) Assemble(ctx context.Context, queries []Query, topK int, weights Weights) ([]Hit, error) {
	if weights == nil {
		weights = DefaultWeights()
	}

	fused := map[string]*Hit{}

	addRanking := func(modality Modality, ids []string, scoreOf func(string) float64, metaOf func(string) map[string]string) {
		weight := weights[modality]
		if weight == 0 {
			return
		}
		for rank, id := range ids {
			contribution := weight / (defaultRRFConstant + float64(rank+1))
			key := string(modality) + ":" + id
			h, ok := fused[key]
			if !ok {
				h = &Hit{ID: id, Modality: modality, Score: scoreOf(id), Metadata: metaOf(id)}
				fused[key] = h
			}
			h.RRFScore += contribution
		}
	}

	for _, q := range queries {
		if q.Modality == ModalityLexical {
			if q.Text == "" || a.mgr.Search == nil {
				continue
			}
			results, err := a.mgr.Search.Search(ctx, q.Text, topK)
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(results))
			scores := map[string]float64{}
			metas := map[string]map[string]string{}
			for i, r := range results {
				ids[i] = r.ID
				scores[r.ID] = r.Score
				metas[r.ID] = r.Metadata
			}
			addRanking(q.Modality, ids, func(id string) float64 { return scores[id] }, func(id string) map[string]string { return metas[id] })
			continue
		}

		if len(q.Vector) == 0 || a.mgr.Vector == nil {
			continue
		}
		results, err := a.mgr.Vector.SimilaritySearch(ctx, q.Vector, topK, map[string]string{"modality": string(q.Modality)})
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(results))
		scores := map[string]float64{}
		metas := map[string]map[string]string{}
		for i, r := range results {
			ids[i] = r.ID
			scores[r.ID] = r.Score
			metas[r.ID] = r.Metadata
		}
		addRanking(q.Modality, ids, func(id string) float64 { return scores[id] }, func(id string) map[string]string { return metas[id] })
	}

	out := make([]Hit, 0, len(fused))
	for _, h := range fused {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FilterModality returns the subset of hits matching m, preserving order.
// This is the "filterable by modality" half of spec.md §4.7's requirement.
func FilterModality(hits []Hit, m Modality) []Hit {
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Modality == m {
			out = append(out, h)
		}
	}
	return out
}
