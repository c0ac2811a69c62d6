package protocol

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkBytesFitsInOne(t *testing.T) {
	chunks := ChunkBytes([]byte("Hello Arduino"), DefaultMaxByteSize)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello Arduino", string(chunks[0]))
}

func TestChunkBytesEmpty(t *testing.T) {
	assert.Nil(t, ChunkBytes(nil, DefaultMaxByteSize))
}

func TestChunkBytesExactFit(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 20)
	assert.Len(t, ChunkBytes(data, 20), 1)
}

func TestChunkBytesOneByteOver(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 21)
	chunks := ChunkBytes(data, 20)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 20)
	assert.Len(t, chunks[1], 1)
}

func TestChunkBytesReassembles(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog sleeping today"
	chunks := ChunkBytes([]byte(text), 20)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 20, "chunk[%d]", i)
	}
	assert.Equal(t, text, string(bytes.Join(chunks, nil)))
}

func TestChunkBytesUTF8NeverSplitsMidRune(t *testing.T) {
	// 4-byte emojis, max=10 fits two per chunk.
	text := "\U0001F600\U0001F601\U0001F602\U0001F603\U0001F604"
	chunks := ChunkBytes([]byte(text), 10)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 10, "chunk[%d]", i)
		assert.True(t, utf8.Valid(c), "chunk[%d] = %x is not valid UTF-8", i, c)
	}
	assert.Equal(t, text, string(bytes.Join(chunks, nil)))
}

func TestChunkBytesZeroMax(t *testing.T) {
	assert.Nil(t, ChunkBytes([]byte("hello"), 0))
}

func TestChunkBytesMaxSmallerThanRune(t *testing.T) {
	text := strings.Repeat("\U0001F600", 2)
	chunks := ChunkBytes([]byte(text), 1)
	require.Len(t, chunks, 2, "one rune each")
	assert.Equal(t, "\U0001F600", string(chunks[0]))
}
