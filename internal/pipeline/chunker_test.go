package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/apperr"
)

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	for _, text := range []string{"", "hello", strings.Repeat("a", 1000)} {
		chunks, err := Chunk(text, 1000, 200)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 0, chunks[0].ID)
		assert.Equal(t, 0, chunks[0].SourceOffset)
	}
}

func TestChunk_WindowsAndOffsets(t *testing.T) {
	chunks, err := Chunk("abcdefghij", 4, 1)
	require.NoError(t, err)

	var texts []string
	var offsets []int
	for i, c := range chunks {
		assert.Equal(t, i, c.ID)
		texts = append(texts, c.Text)
		offsets = append(offsets, c.SourceOffset)
	}
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, texts)
	assert.Equal(t, []int{0, 3, 6}, offsets)
}

func TestChunk_LastWindowEndsAtText(t *testing.T) {
	chunks, err := Chunk("abcdefghijk", 4, 1)
	require.NoError(t, err)
	last := chunks[len(chunks)-1]
	assert.Equal(t, "jk", last.Text)
	assert.Equal(t, 9, last.SourceOffset)
}

func TestChunk_Multibyte(t *testing.T) {
	text := "简历：工作经历与教育背景"
	chunks, err := Chunk(text, 5, 2)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 5)
	}
	assert.Equal(t, text, Reassemble(chunks))
}

func TestChunk_ReassembleRoundTrip(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 97)
	cases := []struct{ size, overlap int }{
		{1000, 200}, {1000, 0}, {7, 6}, {2, 1}, {50, 49}, {4400, 10},
	}
	for _, tc := range cases {
		chunks, err := Chunk(text, tc.size, tc.overlap)
		require.NoError(t, err, "size=%d overlap=%d", tc.size, tc.overlap)
		assert.Equal(t, text, Reassemble(chunks), "size=%d overlap=%d", tc.size, tc.overlap)

		again, err := Chunk(text, tc.size, tc.overlap)
		require.NoError(t, err)
		assert.Equal(t, chunks, again)
	}
}

func TestChunk_InvalidParams(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{{0, 0}, {10, 10}, {10, 11}, {10, -1}, {-5, 0}} {
		_, err := Chunk("text", tc.size, tc.overlap)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrInvalidChunkParams)
		assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	}
}
