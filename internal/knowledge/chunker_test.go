package knowledge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID(t *testing.T) {
	assert.Equal(t, "abc123::p0::c0", ChunkID("abc123", 0, 0))
	assert.Equal(t, "abc123::p4::c2", ChunkID("abc123", 4, 2))
}

func TestChunkerSplit_ShortPageProducesOneChunk(t *testing.T) {
	chunker := NewChunker(800, 100)

	chunks := chunker.Split("fp", []string{"short page content"})
	require.Len(t, chunks, 1)
	assert.Equal(t, "fp::p0::c0", chunks[0].ID)
	assert.Equal(t, 0, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "short page content", chunks[0].Text)
}

func TestChunkerSplit_EmptyPageProducesNoChunk(t *testing.T) {
	chunker := NewChunker(800, 100)

	chunks := chunker.Split("fp", []string{"", "   \n\t ", "content"})
	require.Len(t, chunks, 1)
	// 空页不产块，但页码保持原始位置
	assert.Equal(t, 2, chunks[0].Page)
	assert.Equal(t, "fp::p2::c0", chunks[0].ID)
}

func TestChunkerSplit_OverlappingWindows(t *testing.T) {
	chunker := NewChunker(10, 4)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := chunker.Split("fp", []string{text})
	require.True(t, len(chunks) >= 2)

	// 窗口步长为 size-overlap，相邻块共享重叠区
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 10, chunks[0].End)
	assert.Equal(t, "ghijklmnop", chunks[1].Text)
	assert.Equal(t, 6, chunks[1].Start)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, ChunkID("fp", 0, i), chunk.ID)
	}
}

func TestChunkerSplit_Deterministic(t *testing.T) {
	chunker := NewChunker(50, 10)
	pages := []string{
		strings.Repeat("This agreement binds both parties. ", 20),
		strings.Repeat("Termination requires thirty days notice. ", 15),
	}

	first := chunker.Split("fp", pages)
	second := chunker.Split("fp", pages)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestChunkerSplit_PageIndicesAreZeroBased(t *testing.T) {
	chunker := NewChunker(800, 100)

	chunks := chunker.Split("fp", []string{"page one", "page two", "page three"})
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Page)
		assert.Equal(t, 0, chunk.Index)
		assert.Equal(t, fmt.Sprintf("fp::p%d::c0", i), chunk.ID)
	}
}

func TestChunkerSplit_OffsetsMatchText(t *testing.T) {
	chunker := NewChunker(20, 5)
	page := "  leading space then a longer body of text follows here  "

	chunks := chunker.Split("fp", []string{page})
	runes := []rune(page)
	for _, chunk := range chunks {
		assert.Equal(t, string(runes[chunk.Start:chunk.End]), chunk.Text)
	}
}

func TestNewChunker_ClampsInvalidOptions(t *testing.T) {
	chunker := NewChunker(0, -1)
	assert.Equal(t, 800, chunker.chunkSize)
	assert.Equal(t, 0, chunker.chunkOverlap)

	chunker = NewChunker(100, 100)
	assert.Equal(t, 25, chunker.chunkOverlap)
}
