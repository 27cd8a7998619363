package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbovet/docwell/internal/parser"
)

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("word ", 500)
	seg := parser.Segment{Page: 1, Text: text}

	a := Split("/docs/a.txt", 1000, "txt", seg, DefaultOptions())
	b := Split("/docs/a.txt", 1000, "txt", seg, DefaultOptions())

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestSplitOverlap(t *testing.T) {
	text := strings.Repeat("word ", 500)
	seg := parser.Segment{Page: 2, Text: text}

	chunks := Split("/docs/a.txt", 1000, "txt", seg, DefaultOptions())
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, len(strings.TrimSpace(c.Text)), MinChunkChars)
	}
	for _, c := range chunks {
		assert.Equal(t, 2, c.Page)
		assert.Equal(t, "/docs/a.txt", c.Path)
	}

	// Adjacent chunks overlap: the second chunk's text should share a
	// trailing fragment of the first chunk's tail.
	first := chunks[0].Text
	second := chunks[1].Text
	assert.True(t, strings.Contains(first, strings.Fields(second)[0]))
}

func TestSplitEmpty(t *testing.T) {
	seg := parser.Segment{Page: 1, Text: "   \n\t "}
	chunks := Split("/docs/a.txt", 0, "txt", seg, DefaultOptions())
	assert.Empty(t, chunks)
}

func TestSplitSingleShortChunk(t *testing.T) {
	seg := parser.Segment{Page: 1, Text: "hello world"}
	chunks := Split("/docs/a.txt", 0, "txt", seg, DefaultOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
}
