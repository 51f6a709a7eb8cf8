package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/model"
)

func TestChunk_SectionHierarchyTracksHeadings(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "1 Overview\nThis printer supports duplex printing.\n\n1.1 Power Requirements\nUse a grounded 120V outlet."},
	}
	c := New(DefaultConfig())
	chunks, err := c.Chunk(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, []string{"1 Overview"}, chunks[0].SectionHierarchy)
	assert.Equal(t, []string{"1 Overview", "1.1 Power Requirements"}, chunks[1].SectionHierarchy)
	assert.Equal(t, 1, chunks[0].ChunkIndex)
	assert.Equal(t, 2, chunks[1].ChunkIndex)
}

func TestChunk_ChunkSpansMultiplePages(t *testing.T) {
	pages := []Page{
		{Number: 3, Text: "2 Troubleshooting\nWhen the fuser fails to heat,"},
		{Number: 4, Text: "check the thermistor connection before replacing the unit."},
	}
	c := New(DefaultConfig())
	chunks, err := c.Chunk(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Less(t, chunks[0].PageStart, chunks[0].PageEnd)
}

func TestChunk_ErrorCodeBlockClassifiedAndKeptWhole(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "3 Error Codes\nError code E-045 indicates a fault in the fuser unit.\nReplace the fuser assembly and reset the counter."},
	}
	c := New(DefaultConfig())
	chunks, err := c.Chunk(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.ChunkTypeErrorCode, chunks[0].ChunkType)
	assert.True(t, chunks[0].Metadata.ContainsErrorCode)
	assert.Equal(t, "E-045", chunks[0].Metadata.ErrorCode)
}

func TestChunk_ProcedureStepsStayTogether(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "4 Maintenance Procedure\n1. Power off the device.\n2. Open the front cover.\n3. Remove the toner cartridge."},
	}
	c := New(DefaultConfig())
	chunks, err := c.Chunk(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.ChunkTypeProcedure, chunks[0].ChunkType)
	assert.True(t, chunks[0].Metadata.ContainsProcedure)
}

func TestChunk_DuplicateContentDroppedKeepingEarliest(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "5 Notices\nThis device complies with part 15 of the FCC rules."},
		{Number: 2, Text: "6 Notices (repeated)\nThis device complies with part 15 of the FCC rules."},
	}
	c := New(DefaultConfig())
	chunks, err := c.Chunk(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].PageStart)
}

func TestChunk_TargetSizeSplitsLongSections(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
		b.WriteString("\n\n")
	}
	pages := []Page{{Number: 1, Text: "7 Specifications\n" + b.String()}}

	cfg := DefaultConfig()
	cfg.TargetSize = 300
	cfg.Overlap = 20
	cfg.MinSize = 100
	c := New(cfg)
	chunks, err := c.Chunk(pages)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.NotEmpty(t, ch.ContentHash)
		assert.Equal(t, i+1, ch.ChunkIndex)
	}
}

func TestChunk_EmptyInputIsPermanentError(t *testing.T) {
	c := New(DefaultConfig())
	_, err := c.Chunk([]Page{{Number: 1, Text: "   \n\n  "}})
	require.Error(t, err)
}

func TestContentHash_NormalizesWhitespace(t *testing.T) {
	h1 := contentHash("hello world")
	h2 := contentHash("  hello world  ")
	assert.Equal(t, h1, h2)
}
