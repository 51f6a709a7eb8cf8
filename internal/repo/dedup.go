package repo

import "context"

// DedupIndex adapts Store's document-level natural key lookup to
// internal/dedup.Index. Chunk and image content-hash dedup is scoped to one
// document (spec.md §4.3's "intra-document dedup") and goes through
// Chunks.LookupByContentHash / Images.LookupImageByFileHash directly
// instead, since dedup.Index's (kind, hash) shape has no room for a
// document scope. Only the document upload stage's global file_hash check
// fits dedup.Index's kind-agnostic shape, so kind is always "document"
// here.
type DedupIndex struct {
	docs Documents
}

// NewDedupIndex returns a dedup.Index fronting docs' file_hash lookup.
func NewDedupIndex(docs Documents) DedupIndex {
	return DedupIndex{docs: docs}
}

func (d DedupIndex) Lookup(ctx context.Context, kind, hash string) (string, bool, error) {
	if kind != "document" {
		return "", false, nil
	}
	return d.docs.LookupByFileHash(ctx, hash)
}
