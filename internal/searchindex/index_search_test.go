package searchindex_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/chunker"
	"github.com/kunzeritter/docpipeline/internal/db"
	"github.com/kunzeritter/docpipeline/internal/searchindex"
)

func TestUpsertDocumentAndChunks_FallbackMemory(t *testing.T) {
	ctx := context.Background()
	search := db.NewMemorySearch()

	in := searchindex.IngestRequest{
		ID:       "doc:test:1",
		Title:    "Hello",
		URL:      "https://example.com",
		Source:   "test",
		Text:     "1 Overview\n\nPara one.\n\n1.1 Detail\n\nPara two with more words.",
		Metadata: map[string]any{"a": 1},
		Tenant:   "t1",
		Options:  searchindex.IngestOptions{Version: 1},
	}
	pre, err := searchindex.Preprocess(ctx, searchindex.DefaultLanguageDetector{}, in)
	require.NoError(t, err)

	require.NoError(t, searchindex.UpsertDocumentToSearch(ctx, search, in.ID, in, pre, 1))

	c := chunker.New(chunker.DefaultConfig())
	chunks, err := c.Chunk([]chunker.Page{{Number: 1, Text: pre.Text}})
	require.NoError(t, err)

	recs := make([]searchindex.ChunkRecord, 0, len(chunks))
	for _, ch := range chunks {
		recs = append(recs, searchindex.ChunkRecord{Index: ch.ChunkIndex, Text: ch.Content})
	}
	ids, err := searchindex.UpsertChunksToSearch(ctx, search, in.ID, pre.Language, recs, in, 1)
	require.NoError(t, err)
	assert.Len(t, ids, len(chunks))

	docHits, err := search.Search(ctx, "para one", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, docHits)
}

// fakeChunkSearch implements db.FullTextSearch plus the optional chunk-table
// capability interfaces, to exercise the real-chunks-table path.
type fakeChunkSearch struct {
	docs     map[string]string
	hasTable bool
	upserts  []string
}

func (f *fakeChunkSearch) Index(_ context.Context, id, text string, _ map[string]string) error {
	if f.docs == nil {
		f.docs = make(map[string]string)
	}
	f.docs[id] = text
	return nil
}
func (f *fakeChunkSearch) Remove(_ context.Context, id string) error {
	delete(f.docs, id)
	return nil
}
func (f *fakeChunkSearch) Search(context.Context, string, int) ([]db.SearchResult, error) {
	return nil, nil
}
func (f *fakeChunkSearch) HasChunksTable(context.Context) (bool, error) { return f.hasTable, nil }
func (f *fakeChunkSearch) UpsertChunk(_ context.Context, chunkID, _ string, _ int, _ string, _ map[string]string, _ string) error {
	f.upserts = append(f.upserts, chunkID)
	return nil
}

func TestUpsertChunks_UsesChunkTableWhenAvailable(t *testing.T) {
	ctx := context.Background()
	fs := &fakeChunkSearch{hasTable: true}
	in := searchindex.IngestRequest{ID: "doc:test:2", Tenant: "t2"}
	chunks := []searchindex.ChunkRecord{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}

	ids, err := searchindex.UpsertChunksToSearch(ctx, fs, in.ID, "english", chunks, in, 1)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Len(t, fs.upserts, 2)
}
