package searchindex

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/db"
)

// fakeEmbedder is a deterministic bag-of-words hashing embedder: the same
// text always yields the same vector, and texts sharing words end up with
// higher cosine similarity than unrelated ones. Good enough to exercise
// UpsertChunkEmbeddings without a live embedding service.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Name() string { return "fake-hashing-embedder" }

func (f fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		for _, word := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			v[int(h.Sum32())%f.dim] += 1
		}
		out[i] = v
	}
	return out, nil
}

func TestUpsertChunkEmbeddings_MemoryVector(t *testing.T) {
	ctx := context.Background()
	vec := db.NewMemoryVector()
	emb := fakeEmbedder{dim: 8}
	in := IngestRequest{ID: "doc:acme:1", Tenant: "acme", Source: "test"}
	chunks := []ChunkRecord{{Index: 0, Text: "hello world"}, {Index: 1, Text: "goodbye"}}

	n, err := UpsertChunkEmbeddings(ctx, vec, emb, in.ID, "english", chunks, in, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	qemb, err := emb.EmbedBatch(ctx, []string{"hello world"})
	require.NoError(t, err)

	res, err := vec.SimilaritySearch(ctx, qemb[0], 5, map[string]string{"tenant": "acme", "doc_id": in.ID})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "chunk:"+in.ID+":0", res[0].ID)
}
