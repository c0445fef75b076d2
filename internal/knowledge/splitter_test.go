package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitterShortText(t *testing.T) {
	s := NewSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 20})

	chunks := s.Split("a short document that fits in one chunk")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document that fits in one chunk", chunks[0])
}

func TestSplitterEmptyText(t *testing.T) {
	s := NewSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 20})

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\n  "))
}

func TestSplitterRespectsChunkSize(t *testing.T) {
	s := NewSplitter(SplitterConfig{ChunkSize: 50, ChunkOverlap: 10})

	text := strings.Repeat("one two three four five. ", 40)
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 50, "chunk %d exceeds the size limit", i)
	}
}

func TestSplitterKeepsParagraphsTogether(t *testing.T) {
	s := NewSplitter(SplitterConfig{ChunkSize: 40, ChunkOverlap: 0})

	text := "first paragraph here\n\nsecond paragraph here\n\nthird paragraph here"
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	joined := strings.Join(chunks, "")
	assert.Contains(t, joined, "first paragraph here")
	assert.Contains(t, joined, "second paragraph here")
	assert.Contains(t, joined, "third paragraph here")
}

func TestSplitterFixedWindowOverlap(t *testing.T) {
	s := NewSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 4})

	// No separators at all, forces the rune-window fallback.
	text := strings.Repeat("x", 9) + strings.Repeat("y", 9)
	chunks := s.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)

	// Consecutive chunks share a tail/head overlap.
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	assert.Equal(t, string(first[len(first)-4:]), string(second[:4]))
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(SplitterConfig{})
	assert.Equal(t, 1000, s.chunkSize)

	// Overlap larger than the chunk size falls back to size/5.
	s = NewSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 150})
	assert.Equal(t, 20, s.chunkOverlap)
}
